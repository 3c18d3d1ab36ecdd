// Package session wires the task cache and the mutation coordinator to a
// store. A Session is created once per command invocation and passed
// explicitly to whatever needs it.
package session

import (
	"github.com/rs/zerolog"

	"quicktodo/internal/cache"
	"quicktodo/internal/config"
	"quicktodo/internal/metrics"
	"quicktodo/internal/mutation"
	"quicktodo/internal/service"
)

// Session owns the client-side state for one application run.
type Session struct {
	Store     service.Store
	Cache     *cache.Cache
	Mutations *mutation.Coordinator
	Metrics   *metrics.Metrics
}

// New creates a Session over store using the cache settings in cfg.
func New(store service.Store, cfg *config.Config, log zerolog.Logger) *Session {
	m := metrics.New()
	c := cache.New(cache.TasksKey, store.ListTasks,
		cache.WithStaleTime(cfg.StaleTime),
		cache.WithLogger(log.With().Str("component", "cache").Logger()),
		cache.WithMetrics(m),
	)
	return &Session{
		Store: store,
		Cache: c,
		Mutations: mutation.New(c, store,
			mutation.WithLogger(log.With().Str("component", "mutation").Logger()),
			mutation.WithMetrics(m),
		),
		Metrics: m,
	}
}
