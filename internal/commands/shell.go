package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"quicktodo/internal/cache"
	"quicktodo/internal/config"
	"quicktodo/internal/exitcode"
	"quicktodo/internal/mutation"
	"quicktodo/internal/output"
	"quicktodo/internal/service"
	"quicktodo/internal/session"
)

func init() {
	Register(&ShellCmd{})
}

// ShellCmd implements the shell command: an interactive session over a single
// cache. Each input line is handled as soon as it arrives, including while
// earlier mutations are still waiting on the store.
type ShellCmd struct {
	metricsAddr string
	refresh     time.Duration
	watch       bool
}

func (c *ShellCmd) Name() string      { return "shell" }
func (c *ShellCmd) Aliases() []string { return nil }
func (c *ShellCmd) Synopsis() string  { return "Interactive session" }
func (c *ShellCmd) Usage() string {
	return "quicktodo shell [--metrics-addr <addr>] [--refresh <duration>] [--watch]"
}
func (c *ShellCmd) NeedsStore() bool { return true }

func (c *ShellCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "")
	fs.DurationVar(&c.refresh, "refresh", 0, "")
	fs.BoolVar(&c.watch, "watch", false, "")
}

func (c *ShellCmd) Run(ctx context.Context, cfg *config.Config, sess *session.Session, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	if c.refresh < 0 {
		fmt.Fprintf(errOut, "error: invalid refresh interval: %s\n", c.refresh)
		return exitcode.UserError
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	if c.metricsAddr != "" {
		ln, err := net.Listen("tcp", c.metricsAddr)
		if err != nil {
			fmt.Fprintf(errOut, "error: could not listen on %s: %v\n", c.metricsAddr, err)
			return exitcode.UserError
		}
		srv := &http.Server{Handler: sess.Metrics.Handler()}
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if !cfg.Quiet {
			fmt.Fprintf(errOut, "metrics on http://%s/metrics\n", ln.Addr())
		}
	}

	code := exitcode.Success
	g.Go(func() error {
		defer stop()
		code = c.loop(gctx, cfg, sess, out, errOut)
		return nil
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return code
}

// shellLoop is the state of one running session. Only the loop goroutine
// touches it, and only that goroutine writes to out and errOut.
type shellLoop struct {
	cfg    *config.Config
	sess   *session.Session
	out    io.Writer
	errOut io.Writer

	results  chan mutation.Result
	inflight int
	fetches  chan error
	fetching int
	showNext bool // print the list when the pending fetch settles
}

// loop is the event loop. Nothing on it waits for the store: mutations and
// fetches run in the background and report back through channels.
func (c *ShellCmd) loop(ctx context.Context, cfg *config.Config, sess *session.Session, out, errOut io.Writer) int {
	l := &shellLoop{
		cfg:     cfg,
		sess:    sess,
		out:     out,
		errOut:  errOut,
		results: make(chan mutation.Result),
		fetches: make(chan error),
	}
	lines := readLines(ctx, cfg.Input())

	var refresh <-chan time.Time
	if c.refresh > 0 {
		ticker := time.NewTicker(c.refresh)
		defer ticker.Stop()
		refresh = ticker.C
	}

	var changes <-chan struct{}
	if c.watch {
		ch, unsubscribe := sess.Cache.Subscribe()
		defer unsubscribe()
		changes = ch
	}

	// Nothing is pending yet, so the first load may block.
	if tasks, code := loadTasks(ctx, sess, errOut); code == exitcode.Success {
		l.printTasks(tasks)
	}

	for {
		// Input closed: drain outstanding work before leaving.
		if lines == nil && l.inflight == 0 && l.fetching == 0 {
			return exitcode.Success
		}

		select {
		case <-ctx.Done():
			return exitcode.Success

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if quit := l.handle(ctx, line); quit {
				lines = nil
			}

		case res := <-l.results:
			l.inflight--
			if res.OK() {
				if !cfg.Quiet {
					fmt.Fprintf(out, "ok: %s %s\n", pastTense(res.Kind), output.DescribeTask(res.Task))
				}
			} else {
				reportMutationFailure(ctx, res, errOut)
			}

		case err := <-l.fetches:
			l.fetching--
			l.settle(ctx, err)

		case <-refresh:
			if sess.Cache.IsStale() {
				l.refetch(ctx, false)
			}

		case <-changes:
			tasks, _ := sess.Cache.Read()
			output.FormatTasks(out, tasks)
		}
	}
}

// handle runs one input line and reports whether the session should end.
func (l *shellLoop) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name, rest := fields[0], fields[1:]

	switch name {
	case "quit", "exit":
		return true

	case "help":
		fmt.Fprint(l.out, shellHelpText)

	case "ls", "list":
		l.list(ctx)

	case "refresh":
		l.sess.Cache.Invalidate()
		l.refetch(ctx, true)

	case "add", "create":
		results, err := l.sess.Mutations.Create(ctx, strings.Join(rest, " "))
		if err != nil {
			if service.IsValidation(err) {
				fmt.Fprintln(l.errOut, "error: title required")
			} else {
				fmt.Fprintf(l.errOut, "error: %v\n", err)
			}
			return false
		}
		l.await(ctx, results)

	case "rm", "delete", "done", "undone":
		task, ok := l.resolve(rest)
		if !ok {
			return false
		}
		if name == "rm" || name == "delete" {
			l.await(ctx, l.sess.Mutations.Delete(ctx, task.ID))
		} else {
			l.await(ctx, l.sess.Mutations.SetCompleted(ctx, task.ID, name == "done"))
		}

	default:
		fmt.Fprintf(l.errOut, "error: unknown command: %s\n", name)
	}
	return false
}

// list prints what the cache holds now. A stale entry is revalidated in the
// background; an absent one is fetched and printed when it arrives.
func (l *shellLoop) list(ctx context.Context) {
	tasks, present := l.sess.Cache.Read()
	if !present {
		if !l.cfg.Quiet {
			fmt.Fprintln(l.out, "loading tasks")
		}
		if l.fetching > 0 {
			l.showNext = true
			return
		}
		l.refetch(ctx, true)
		return
	}
	l.printTasks(tasks)
	if l.sess.Cache.IsStale() && l.fetching == 0 {
		l.refetch(ctx, false)
	}
}

func (l *shellLoop) printTasks(tasks []service.Task) {
	if len(tasks) == 0 {
		if !l.cfg.Quiet {
			fmt.Fprintln(l.out, "no tasks found")
		}
		return
	}
	output.FormatTasks(l.out, tasks)
}

// refetch starts a background fetch whose outcome comes back to the loop.
// A newer fetch supersedes older ones, which settle with cache.ErrCanceled.
func (l *shellLoop) refetch(ctx context.Context, show bool) {
	done := l.sess.Cache.Refetch(ctx)
	l.fetching++
	l.showNext = l.showNext || show
	go func() {
		err := <-done
		select {
		case l.fetches <- err:
		case <-ctx.Done():
		}
	}()
}

// settle reports one finished fetch. A pending listing is printed once the
// last outstanding fetch is done, whichever way it ended.
func (l *shellLoop) settle(ctx context.Context, err error) {
	switch {
	case errors.Is(err, cache.ErrCanceled):
		if l.fetching > 0 || !l.showNext {
			return
		}
		l.showNext = false
		if tasks, present := l.sess.Cache.Read(); present {
			l.printTasks(tasks)
		}
	case err != nil:
		zerolog.Ctx(ctx).Debug().Err(err).Msg("refetch failed")
		fmt.Fprintln(l.errOut, "error: could not load tasks")
		if l.fetching == 0 {
			l.showNext = false
		}
	default:
		if l.showNext {
			l.showNext = false
			tasks, _ := l.sess.Cache.Read()
			l.printTasks(tasks)
		}
	}
}

// await hands a pending mutation result to the loop.
func (l *shellLoop) await(ctx context.Context, pending <-chan mutation.Result) {
	l.inflight++
	go forward(ctx, pending, l.results)
}

// resolve resolves a reference against what the cache currently shows.
// Positions need a loaded list; IDs do not.
func (l *shellLoop) resolve(args []string) (service.Task, bool) {
	ref, err := ParseTaskRef(args)
	if err != nil {
		fmt.Fprintf(l.errOut, "error: %v\n", err)
		return service.Task{}, false
	}

	tasks, present := l.sess.Cache.Read()
	if !present && !ref.ByID {
		fmt.Fprintln(l.errOut, "error: tasks not loaded (try refresh)")
		return service.Task{}, false
	}

	task, err := ResolveTaskRef(tasks, ref)
	if err != nil {
		fmt.Fprintf(l.errOut, "error: %v\n", err)
		return service.Task{}, false
	}
	return task, true
}

func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// forward relays a settled mutation into the event loop.
func forward(ctx context.Context, pending <-chan mutation.Result, results chan<- mutation.Result) {
	res, err := mutation.Wait(ctx, pending)
	if err != nil {
		return
	}
	select {
	case results <- res:
	case <-ctx.Done():
	}
}

func pastTense(kind service.MutationKind) string {
	switch kind {
	case service.MutationCreate:
		return "added"
	case service.MutationDelete:
		return "deleted"
	default:
		return "updated"
	}
}

const shellHelpText = `Commands:
  ls                 List tasks
  add <title...>     Create a task
  rm <ref>           Delete a task
  done <ref>         Mark a task completed
  undone <ref>       Mark a task open again
  refresh            Refetch tasks and print them
  quit               Leave the shell

A <ref> is a list position (3) or a task ID (#12).
`
