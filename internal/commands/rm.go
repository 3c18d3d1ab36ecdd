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
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct{}

func (c *RmCmd) Name() string      { return "rm" }
func (c *RmCmd) Aliases() []string { return []string{"delete"} }
func (c *RmCmd) Synopsis() string  { return "Delete a task" }
func (c *RmCmd) Usage() string     { return "quicktodo rm <ref>" }
func (c *RmCmd) NeedsStore() bool  { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, sess *session.Session, args []string, out, errOut io.Writer) int {
	task, code := resolveTask(ctx, sess, args, errOut)
	if code != exitcode.Success {
		return code
	}
	return awaitMutation(ctx, cfg, sess.Mutations.Delete(ctx, task.ID), out, errOut)
}
