package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"quicktodo/internal/config"
	"quicktodo/internal/exitcode"
	"quicktodo/internal/service"
	"quicktodo/internal/session"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct{}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Create a task" }
func (c *AddCmd) Usage() string     { return "quicktodo add <title...>" }
func (c *AddCmd) NeedsStore() bool  { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, sess *session.Session, args []string, out, errOut io.Writer) int {
	// Join args to form title
	title := strings.Join(args, " ")

	results, err := sess.Mutations.Create(ctx, title)
	if err != nil {
		if service.IsValidation(err) {
			fmt.Fprintln(errOut, "error: title required")
			return exitcode.UserError
		}
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return awaitMutation(ctx, cfg, results, out, errOut)
}
