// Package main is the entry point for the quicktodo CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"quicktodo/internal/backend/googletasks"
	"quicktodo/internal/backend/rest"
	"quicktodo/internal/cli"
	"quicktodo/internal/commands"
	"quicktodo/internal/config"
	"quicktodo/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, newStore)

	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// newStore builds the backend selected in config.yaml.
func newStore(ctx context.Context, cfg *config.Config) (service.Store, error) {
	switch cfg.Backend {
	case config.BackendREST:
		return rest.New(ctx, cfg)
	case config.BackendGoogleTasks:
		return googletasks.New(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
}
