package commands

import (
	"context"
	"flag"
	"io"

	"quicktodo/internal/config"
	"quicktodo/internal/exitcode"
	"quicktodo/internal/session"
)

func init() {
	Register(&DoneCmd{})
	Register(&UndoneCmd{})
}

// DoneCmd implements the done command.
type DoneCmd struct{}

func (c *DoneCmd) Name() string      { return "done" }
func (c *DoneCmd) Aliases() []string { return nil }
func (c *DoneCmd) Synopsis() string  { return "Mark a task completed" }
func (c *DoneCmd) Usage() string     { return "quicktodo done <ref>" }
func (c *DoneCmd) NeedsStore() bool  { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, sess *session.Session, args []string, out, errOut io.Writer) int {
	return runSetCompleted(ctx, cfg, sess, true, args, out, errOut)
}

// UndoneCmd reopens a completed task.
type UndoneCmd struct{}

func (c *UndoneCmd) Name() string      { return "undone" }
func (c *UndoneCmd) Aliases() []string { return []string{"reopen"} }
func (c *UndoneCmd) Synopsis() string  { return "Mark a task open again" }
func (c *UndoneCmd) Usage() string     { return "quicktodo undone <ref>" }
func (c *UndoneCmd) NeedsStore() bool  { return true }

func (c *UndoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *UndoneCmd) Run(ctx context.Context, cfg *config.Config, sess *session.Session, args []string, out, errOut io.Writer) int {
	return runSetCompleted(ctx, cfg, sess, false, args, out, errOut)
}

// runSetCompleted is the shared implementation for done and undone.
func runSetCompleted(ctx context.Context, cfg *config.Config, sess *session.Session, completed bool, args []string, out, errOut io.Writer) int {
	task, code := resolveTask(ctx, sess, args, errOut)
	if code != exitcode.Success {
		return code
	}
	return awaitMutation(ctx, cfg, sess.Mutations.SetCompleted(ctx, task.ID, completed), out, errOut)
}
