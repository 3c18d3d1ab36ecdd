package cli_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quicktodo/internal/backend/rest"
	"quicktodo/internal/cli"
	"quicktodo/internal/commands"
	"quicktodo/internal/config"
	"quicktodo/internal/exitcode"
	"quicktodo/internal/service"
	"quicktodo/internal/testutil"
)

// testFactory creates a store factory that returns the given FakeStore.
func testFactory(store *testutil.FakeStore) cli.StoreFactory {
	return func(ctx context.Context, cfg *config.Config) (service.Store, error) {
		return store, nil
	}
}

func errFactory(err error) cli.StoreFactory {
	return func(ctx context.Context, cfg *config.Config) (service.Store, error) {
		return nil, err
	}
}

func restFactory(ctx context.Context, cfg *config.Config) (service.Store, error) {
	return rest.New(ctx, cfg)
}

// configDir returns an isolated config directory holding the given config.yaml,
// and points XDG_CONFIG_HOME at a scratch directory for commands run without
// --config.
func configDir(t *testing.T, yaml string) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	if yaml != "" {
		if err := os.WriteFile(filepath.Join(dir, config.ConfigFile), []byte(yaml), 0600); err != nil {
			t.Fatalf("failed to write config.yaml: %v", err)
		}
	}
	return dir
}

func run(t *testing.T, factory cli.StoreFactory, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	code = cli.NewDispatcher(commands.DefaultRegistry, factory).Run(context.Background(), args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	_, stderr, code := run(t, testFactory(testutil.NewFakeStore()), "unknowncmd")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: unknown command: unknowncmd\n" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestDispatcher_FlagBeforeCommand(t *testing.T) {
	_, stderr, code := run(t, testFactory(testutil.NewFakeStore()), "--quiet")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: unknown command: --quiet\n" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestDispatcher_HelpCommand(t *testing.T) {
	configDir(t, "")
	stdout, stderr, code := run(t, nil, "help")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if !strings.Contains(stdout, "Usage:") {
		t.Error("expected help output to contain 'Usage:'")
	}
}

func TestDispatcher_VersionCommand(t *testing.T) {
	configDir(t, "")
	stdout, _, code := run(t, nil, "version")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "quicktodo 0.1.0\n" {
		t.Errorf("expected 'quicktodo 0.1.0\\n', got %q", stdout)
	}
}

func TestDispatcher_FlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"help", "--unknown"}, "error: unknown flag: -unknown\n"},
		{"missing value", []string{"shell", "--refresh"}, "error: flag needs an argument: -refresh\n"},
		{"flag after terminator", []string{"list", "--", "-x"}, "error: unknown flag: -x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configDir(t, "")
			_, stderr, code := run(t, testFactory(testutil.NewFakeStore()), tt.args...)

			if code != exitcode.UserError {
				t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
			}
			if stderr != tt.want {
				t.Errorf("expected %q, got %q", tt.want, stderr)
			}
		})
	}
}

func TestDispatcher_NoArgsLists(t *testing.T) {
	configDir(t, "")
	store := testutil.NewFakeStore(service.Task{ID: 1, Title: "A"})
	stdout, stderr, code := run(t, testFactory(store))

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "   1  [ ] A  #1\n" {
		t.Errorf("unexpected output: %q", stdout)
	}
	if store.ListCalls != 1 {
		t.Errorf("expected 1 list call, got %d", store.ListCalls)
	}
}

func TestDispatcher_InvalidConfigFile(t *testing.T) {
	dir := configDir(t, "backend: carrier-pigeon\n")
	_, stderr, code := run(t, testFactory(testutil.NewFakeStore()), "list", "--config", dir)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.Contains(stderr, "unknown backend: carrier-pigeon") {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestDispatcher_GoogleTasksPreflight(t *testing.T) {
	dir := configDir(t, "backend: googletasks\n")
	store := testutil.NewFakeStore()

	_, stderr, code := run(t, testFactory(store), "list", "--config", dir)
	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if !strings.HasPrefix(stderr, "error: oauth_client.json not found in ") {
		t.Errorf("unexpected stderr: %q", stderr)
	}

	if err := os.WriteFile(filepath.Join(dir, config.OAuthClientFile), []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	_, stderr, code = run(t, testFactory(store), "list", "--config", dir)
	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: not logged in (run: quicktodo login)\n" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
	if store.Calls() != 0 {
		t.Errorf("expected no store calls, got %d", store.Calls())
	}
}

func TestDispatcher_FactoryErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"auth", errors.New("invalid token.json: unexpected EOF"), exitcode.AuthError},
		{"backend", errors.New("invalid base_url: parse \"::\": missing protocol scheme"), exitcode.BackendError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := configDir(t, "")
			_, stderr, code := run(t, errFactory(tt.err), "list", "--config", dir)

			if code != tt.code {
				t.Errorf("expected exit code %d, got %d", tt.code, code)
			}
			if !strings.Contains(stderr, tt.err.Error()) {
				t.Errorf("expected stderr to contain the cause, got %q", stderr)
			}
		})
	}
}

func TestDispatcher_NoFactory(t *testing.T) {
	dir := configDir(t, "")
	_, stderr, code := run(t, nil, "list", "--config", dir)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stderr != "error: backend error: no task store configured\n" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestDispatcher_DebugLogsToStderr(t *testing.T) {
	dir := configDir(t, "")
	store := testutil.NewFakeStore(service.Task{ID: 1, Title: "A"})
	_, stderr, code := run(t, testFactory(store), "list", "--debug", "--config", dir)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.Contains(stderr, "dispatch") || !strings.Contains(stderr, "command=list") {
		t.Errorf("expected debug log lines, got %q", stderr)
	}
}

func TestDispatcher_ShellReadsInput(t *testing.T) {
	dir := configDir(t, "")
	store := testutil.NewFakeStore(service.Task{ID: 1, Title: "A"})

	d := cli.NewDispatcher(commands.DefaultRegistry, testFactory(store))
	d.SetInput(strings.NewReader("rm 1\nls\n"))

	var outBuf, errBuf bytes.Buffer
	code := d.Run(context.Background(), []string{"shell", "--config", dir}, &outBuf, &errBuf)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, errBuf.String())
	}
	if !strings.Contains(outBuf.String(), "no tasks found\n") {
		t.Errorf("expected the speculative delete to empty the list, got %q", outBuf.String())
	}
	if !strings.Contains(outBuf.String(), `ok: deleted "A"`) {
		t.Errorf("expected the delete to be confirmed, got %q", outBuf.String())
	}
}

// End to end over HTTP: list, add and rm against a /todos server.
func TestDispatcher_RESTBackend(t *testing.T) {
	srv := testutil.NewTodoServer(t, testutil.SampleTasks(12)...)
	dir := configDir(t, "base_url: "+srv.URL+"\nlimit: 3\n")

	stdout, stderr, code := run(t, restFactory, "list", "--config", dir)
	if code != exitcode.Success {
		t.Fatalf("list: exit code %d, stderr %q", code, stderr)
	}
	want := "   1  [ ] delectus aut autem  #1\n" +
		"   2  [ ] quis ut nam facilis et officia qui  #2\n" +
		"   3  [x] fugiat veniam minus  #3\n"
	if stdout != want {
		t.Errorf("list output mismatch\nwant: %q\ngot:  %q", want, stdout)
	}
	if got := srv.LastRequest().URL.Query().Get("_limit"); got != "3" {
		t.Errorf("expected _limit=3, got %q", got)
	}

	stdout, stderr, code = run(t, restFactory, "add", "--config", dir, "Buy", "milk")
	if code != exitcode.Success || stdout != "ok\n" {
		t.Errorf("add: exit code %d, stdout %q, stderr %q", code, stdout, stderr)
	}
	if req := srv.LastRequest(); req.Method != http.MethodPost || req.URL.Path != "/todos" {
		t.Errorf("add: unexpected request %s %s", req.Method, req.URL.Path)
	}

	_, stderr, code = run(t, restFactory, "rm", "--config", dir, "2")
	if code != exitcode.Success {
		t.Errorf("rm: exit code %d, stderr %q", code, stderr)
	}
	if req := srv.LastRequest(); req.Method != http.MethodDelete || req.URL.Path != "/todos/2" {
		t.Errorf("rm: unexpected request %s %s", req.Method, req.URL.Path)
	}
}

func TestDispatcher_RESTBackendRollback(t *testing.T) {
	srv := testutil.NewTodoServer(t, testutil.SampleTasks(2)...)
	dir := configDir(t, "base_url: "+srv.URL+"\n")

	// The list succeeds; the delete that follows fails.
	var outBuf, errBuf bytes.Buffer
	d := cli.NewDispatcher(commands.DefaultRegistry, func(ctx context.Context, cfg *config.Config) (service.Store, error) {
		return &failingDeletes{Store: mustREST(t, ctx, cfg)}, nil
	})
	code := d.Run(context.Background(), []string{"rm", "--config", dir, "1"}, &outBuf, &errBuf)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if errBuf.String() != "error: could not delete task (changes rolled back)\n" {
		t.Errorf("unexpected stderr: %q", errBuf.String())
	}
}

type failingDeletes struct {
	service.Store
}

func (f *failingDeletes) DeleteTask(ctx context.Context, id int64) error {
	return &rest.StatusError{Method: http.MethodDelete, Path: "/todos/{id}", Code: http.StatusInternalServerError}
}

func mustREST(t *testing.T, ctx context.Context, cfg *config.Config) service.Store {
	t.Helper()
	c, err := rest.New(ctx, cfg)
	if err != nil {
		t.Fatalf("rest.New: %v", err)
	}
	return c
}
