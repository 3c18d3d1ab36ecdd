// Package mutation applies task writes optimistically.
//
// Every write follows the same protocol: cancel any in-flight refetch,
// snapshot the cache, replace it with the speculative list, then call the
// store in the background. A failed call restores the snapshot; a successful
// one leaves the speculative list in place.
//
// Created tasks keep their temporary client ID. The store's echo is reported
// in Result.Server but is never written back to the cache.
//
// Overlapping mutations hold independent snapshots, so a failed older
// mutation restores a list that predates a newer speculative write.
package mutation

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"quicktodo/internal/cache"
	"quicktodo/internal/metrics"
	"quicktodo/internal/service"
)

// Result is the outcome of one optimistic mutation.
type Result struct {
	Kind service.MutationKind

	// Task is the task as applied to the cache: the synthesized task for a
	// create, the removed task for a delete, the updated task for an update.
	// For a delete or update of an ID missing from the cache only Task.ID is set.
	Task service.Task

	// Server is the store's echo, when the call succeeded and returned one.
	Server service.Task

	Snapshot cache.Snapshot
	Applied  []service.Task

	// Err is a *service.MutationError when the store call failed.
	Err        error
	RolledBack bool
}

// OK reports whether the store accepted the mutation.
func (r Result) OK() bool {
	return r.Err == nil
}

// Coordinator runs optimistic mutations against a cache and a store.
type Coordinator struct {
	cache   *cache.Cache
	store   service.Store
	now     func() time.Time
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides time.Now, which seeds temporary IDs.
func WithClock(now func() time.Time) Option {
	return func(m *Coordinator) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Coordinator) { m.log = log }
}

// WithMetrics records mutation outcomes.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Coordinator) { m.metrics = mt }
}

// New creates a Coordinator.
func New(c *cache.Cache, store service.Store, opts ...Option) *Coordinator {
	m := &Coordinator{
		cache: c,
		store: store,
		now:   time.Now,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// op describes one mutation.
type op struct {
	kind   service.MutationKind
	task   service.Task
	apply  func(tasks []service.Task) []service.Task
	remote func(ctx context.Context) (service.Task, error)
}

// Create prepends a task with a temporary ID and creates it remotely.
// An empty or whitespace-only title is rejected with service.ErrEmptyTitle
// before the cache or the store is touched.
func (m *Coordinator) Create(ctx context.Context, title string) (<-chan Result, error) {
	if strings.TrimSpace(title) == "" {
		return nil, service.ErrEmptyTitle
	}

	task := service.Task{ID: m.now().UnixMilli(), Title: title}
	return m.run(ctx, op{
		kind: service.MutationCreate,
		task: task,
		apply: func(tasks []service.Task) []service.Task {
			return append([]service.Task{task}, tasks...)
		},
		remote: func(ctx context.Context) (service.Task, error) {
			return m.store.CreateTask(ctx, service.NewTask{Title: title})
		},
	}), nil
}

// Delete removes every task with id and deletes it remotely.
func (m *Coordinator) Delete(ctx context.Context, id int64) <-chan Result {
	task := m.find(id)
	return m.run(ctx, op{
		kind: service.MutationDelete,
		task: task,
		apply: func(tasks []service.Task) []service.Task {
			out := make([]service.Task, 0, len(tasks))
			for _, t := range tasks {
				if t.ID != id {
					out = append(out, t)
				}
			}
			return out
		},
		remote: func(ctx context.Context) (service.Task, error) {
			return service.Task{}, m.store.DeleteTask(ctx, id)
		},
	})
}

// SetCompleted sets the completed flag of id and updates it remotely.
func (m *Coordinator) SetCompleted(ctx context.Context, id int64, completed bool) <-chan Result {
	task := m.find(id)
	task.Completed = completed
	return m.run(ctx, op{
		kind: service.MutationUpdate,
		task: task,
		apply: func(tasks []service.Task) []service.Task {
			for i := range tasks {
				if tasks[i].ID == id {
					tasks[i].Completed = completed
				}
			}
			return tasks
		},
		remote: func(ctx context.Context) (service.Task, error) {
			return m.store.UpdateTask(ctx, id, completed)
		},
	})
}

func (m *Coordinator) find(id int64) service.Task {
	tasks, _ := m.cache.Read()
	for _, t := range tasks {
		if t.ID == id {
			return t
		}
	}
	return service.Task{ID: id}
}

func (m *Coordinator) run(ctx context.Context, o op) <-chan Result {
	snap, applied := m.cache.Apply(o.apply)

	log := m.log.With().Str("kind", string(o.kind)).Int64("id", o.task.ID).Logger()
	log.Debug().Int("before", len(snap.Tasks)).Int("after", len(applied)).Msg("speculative apply")

	res := Result{
		Kind:     o.kind,
		Task:     o.task,
		Snapshot: snap,
		Applied:  applied,
	}

	out := make(chan Result, 1)
	go func() {
		defer close(out)

		server, err := o.remote(ctx)
		if err != nil {
			m.cache.Restore(snap)
			res.Err = &service.MutationError{Kind: o.kind, ID: o.task.ID, Err: err}
			res.RolledBack = true
			m.metrics.Mutation(string(o.kind), metrics.OutcomeRollback)
			log.Debug().Err(err).Msg("mutation failed, rolled back")
			out <- res
			return
		}

		res.Server = server
		m.metrics.Mutation(string(o.kind), metrics.OutcomeSuccess)
		if o.kind == service.MutationCreate && server.ID != 0 && server.ID != o.task.ID {
			log.Debug().Int64("server_id", server.ID).Msg("created; temporary id kept")
		} else {
			log.Debug().Msg("mutation committed")
		}
		out <- res
	}()
	return out
}

// Wait blocks until the result arrives or ctx is done.
func Wait(ctx context.Context, results <-chan Result) (Result, error) {
	select {
	case res := <-results:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
