package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"quicktodo/internal/config"
	"quicktodo/internal/exitcode"
	"quicktodo/internal/session"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command. The command list is built from
// Registry, or DefaultRegistry when nil.
type HelpCmd struct {
	Registry *Registry
}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "quicktodo help" }
func (c *HelpCmd) NeedsStore() bool  { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, _ *session.Session, args []string, out, errOut io.Writer) int {
	registry := c.Registry
	if registry == nil {
		registry = DefaultRegistry
	}

	fmt.Fprint(out, helpHeader)
	for _, cmd := range registry.All() {
		line := fmt.Sprintf("  %-8s %s", cmd.Name(), cmd.Synopsis())
		if aliases := cmd.Aliases(); len(aliases) > 0 {
			line += " (also: " + strings.Join(aliases, ", ") + ")"
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprint(out, helpFooter)
	return exitcode.Success
}

const helpHeader = `Usage:
  quicktodo [command] [common flags] [args...]

With no command, quicktodo lists tasks.

Commands:
`

const helpFooter = `
A <ref> is a list position (3) or a task ID (#12).

Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr

Shell flags:
  --metrics-addr <addr>   Serve Prometheus metrics on addr
  --refresh <duration>    Refetch in the background at this interval
  --watch                 Reprint the list whenever it changes
`
