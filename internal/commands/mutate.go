package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"quicktodo/internal/config"
	"quicktodo/internal/exitcode"
	"quicktodo/internal/mutation"
	"quicktodo/internal/service"
	"quicktodo/internal/session"
)

// loadTasks loads the task list through the cache.
// Fetch failures are reported as a coarse error with no detail.
func loadTasks(ctx context.Context, sess *session.Session, errOut io.Writer) ([]service.Task, int) {
	tasks, err := sess.Cache.Load(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("load failed")
		fmt.Fprintln(errOut, "error: could not load tasks")
		return nil, exitcode.BackendError
	}
	return tasks, exitcode.Success
}

// resolveTask parses a task reference and resolves it against the cached list.
func resolveTask(ctx context.Context, sess *session.Session, args []string, errOut io.Writer) (service.Task, int) {
	ref, err := ParseTaskRef(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return service.Task{}, exitcode.UserError
	}

	tasks, code := loadTasks(ctx, sess, errOut)
	if code != exitcode.Success {
		return service.Task{}, code
	}

	task, err := ResolveTaskRef(tasks, ref)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return service.Task{}, exitcode.UserError
	}
	return task, exitcode.Success
}

// awaitMutation waits for a mutation to settle and reports the outcome.
func awaitMutation(ctx context.Context, cfg *config.Config, results <-chan mutation.Result, out, errOut io.Writer) int {
	res, err := mutation.Wait(ctx, results)
	if err != nil {
		fmt.Fprintln(errOut, "error: cancelled")
		return exitcode.BackendError
	}
	if !res.OK() {
		reportMutationFailure(ctx, res, errOut)
		return exitcode.BackendError
	}
	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// reportMutationFailure prints the generic failure message; the cause goes to
// the debug log only.
func reportMutationFailure(ctx context.Context, res mutation.Result, errOut io.Writer) {
	var merr *service.MutationError
	if errors.As(res.Err, &merr) {
		zerolog.Ctx(ctx).Debug().Err(merr.Err).Str("kind", string(merr.Kind)).Int64("id", merr.ID).Msg("mutation rejected")
	}
	fmt.Fprintf(errOut, "error: could not %s task (changes rolled back)\n", verb(res.Kind))
}

func verb(kind service.MutationKind) string {
	switch kind {
	case service.MutationCreate:
		return "add"
	case service.MutationDelete:
		return "delete"
	default:
		return "update"
	}
}
