// Package cache holds the client-side task list cache.
//
// A Cache owns a single logical entry (the task list). Readers get copies;
// writers replace the whole list. Loads follow a stale-while-revalidate
// policy: once populated, the entry keeps serving its last known value while
// a background refetch runs.
//
// Background refetches carry a generation number. CancelRefetch bumps the
// generation so that a fetch already in flight cannot overwrite a later
// speculative write; the network call itself is left to finish.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quicktodo/internal/metrics"
	"quicktodo/internal/service"
)

// TasksKey is the logical key of the task list entry.
const TasksKey = "tasks"

// ErrCanceled is delivered by Refetch when the fetch result was discarded
// because of CancelRefetch or a newer fetch.
var ErrCanceled = errors.New("refetch canceled")

// Status is the coarse load state of the entry.
type Status int

const (
	// StatusLoading means no fetch has settled and nothing was written yet.
	StatusLoading Status = iota
	// StatusReady means the entry has been populated or a fetch has settled.
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Fetcher loads the full task list from the remote store.
type Fetcher func(ctx context.Context) ([]service.Task, error)

// Snapshot is a copy of the entry used to undo a speculative write.
type Snapshot struct {
	Tasks   []service.Task
	Present bool
}

// Cache is an in-memory task list entry with stale-while-revalidate loading.
type Cache struct {
	key       string
	fetch     Fetcher
	staleTime time.Duration
	now       func() time.Time
	log       zerolog.Logger
	metrics   *metrics.Metrics

	mu          sync.Mutex
	tasks       []service.Task
	present     bool
	invalidated bool
	updatedAt   time.Time
	status      Status
	err         error
	fetchID     uint64
	subs        map[uint64]chan struct{}
	nextSub     uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithStaleTime sets how long a written entry counts as fresh.
// The default of zero makes every populated entry stale immediately.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) { c.staleTime = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// WithMetrics records fetch outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New creates an empty (absent) cache entry under key.
func New(key string, fetch Fetcher, opts ...Option) *Cache {
	c := &Cache{
		key:   key,
		fetch: fetch,
		now:   time.Now,
		log:   zerolog.Nop(),
		subs:  make(map[uint64]chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("key", key).Logger()
	return c
}

// Key returns the logical key of the entry.
func (c *Cache) Key() string {
	return c.key
}

// Read returns a copy of the current list and whether the entry is present.
func (c *Cache) Read() ([]service.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return service.CloneTasks(c.tasks), c.present
}

// Replace overwrites the entry with tasks.
func (c *Cache) Replace(tasks []service.Task) {
	c.mu.Lock()
	c.setLocked(tasks)
	c.mu.Unlock()
	c.log.Debug().Int("len", len(tasks)).Msg("cache replaced")
}

// Apply cancels any in-flight refetch, snapshots the entry and replaces it
// with fn's result in one critical section, so no other write can land in
// between. fn receives a copy of the list (empty when absent) and must not
// call back into the cache. Apply returns the snapshot and the new list.
func (c *Cache) Apply(fn func(tasks []service.Task) []service.Task) (Snapshot, []service.Task) {
	c.mu.Lock()
	c.fetchID++
	snap := Snapshot{Tasks: service.CloneTasks(c.tasks), Present: c.present}
	c.setLocked(fn(service.CloneTasks(c.tasks)))
	applied := service.CloneTasks(c.tasks)
	c.mu.Unlock()
	c.log.Debug().Bool("was_present", snap.Present).Int("len", len(applied)).Msg("cache applied")
	return snap, applied
}

// Snapshot captures the entry, including whether it is absent.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Tasks: service.CloneTasks(c.tasks), Present: c.present}
}

// Restore reinstates a snapshot exactly.
func (c *Cache) Restore(s Snapshot) {
	c.mu.Lock()
	if s.Present {
		c.setLocked(s.Tasks)
	} else {
		c.tasks = nil
		c.present = false
		c.notifyLocked()
	}
	c.mu.Unlock()
	c.log.Debug().Bool("present", s.Present).Int("len", len(s.Tasks)).Msg("cache restored")
}

// Invalidate marks the entry stale so the next Load goes to the store.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.invalidated = true
	c.mu.Unlock()
}

// IsStale reports whether the entry is absent, invalidated or past its
// freshness window.
func (c *Cache) IsStale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isStaleLocked()
}

// Status returns the load state.
func (c *Cache) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the last fetch failure, or nil after a successful fetch.
func (c *Cache) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Load returns the task list.
// An absent entry is fetched before returning. A stale entry is returned as
// is and refreshed in the background.
func (c *Cache) Load(ctx context.Context) ([]service.Task, error) {
	c.mu.Lock()
	if !c.present {
		c.mu.Unlock()
		return c.loadAbsent(ctx)
	}
	tasks := service.CloneTasks(c.tasks)
	stale := c.isStaleLocked()
	c.mu.Unlock()

	if stale {
		c.log.Debug().Msg("serving stale entry, revalidating")
		c.Refetch(ctx)
	}
	return tasks, nil
}

// loadAbsent fetches until the entry is present. A discarded fetch is retried
// when nothing else populated the entry meanwhile, which happens when a
// speculative write cancels the fetch and then rolls back to absent.
func (c *Cache) loadAbsent(ctx context.Context) ([]service.Task, error) {
	for {
		err := <-c.Refetch(ctx)
		if err != nil && !errors.Is(err, ErrCanceled) {
			return nil, err
		}
		if tasks, present := c.Read(); present {
			return tasks, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, &service.FetchError{Err: err}
		}
		c.log.Debug().Msg("fetch discarded while absent, retrying")
	}
}

// Refetch fetches the list in the background. The returned channel receives
// nil once the result is committed, a *service.FetchError on failure, or
// ErrCanceled if the result was discarded.
func (c *Cache) Refetch(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	c.mu.Lock()
	c.fetchID++
	id := c.fetchID
	c.mu.Unlock()

	go func() {
		tasks, err := c.fetch(ctx)

		c.mu.Lock()
		if c.fetchID != id {
			c.mu.Unlock()
			c.metrics.RefetchDiscarded()
			c.log.Debug().Uint64("fetch", id).Msg("refetch result discarded")
			done <- ErrCanceled
			return
		}
		if err != nil {
			ferr := &service.FetchError{Err: err}
			c.err = ferr
			c.status = StatusReady
			c.notifyLocked()
			c.mu.Unlock()
			c.metrics.Fetch(metrics.OutcomeFailure)
			c.log.Debug().Err(err).Msg("fetch failed")
			done <- ferr
			return
		}
		c.err = nil
		c.setLocked(tasks)
		c.mu.Unlock()
		c.metrics.Fetch(metrics.OutcomeSuccess)
		c.log.Debug().Int("len", len(tasks)).Msg("fetch committed")
		done <- nil
	}()

	return done
}

// CancelRefetch prevents any in-flight fetch from committing its result.
func (c *Cache) CancelRefetch() {
	c.mu.Lock()
	c.fetchID++
	c.mu.Unlock()
}

// Subscribe returns a channel signalled after every change to the entry.
// Signals are coalesced: a slow reader sees at most one pending signal.
// Call the returned function to unsubscribe.
func (c *Cache) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Cache) setLocked(tasks []service.Task) {
	c.tasks = service.CloneTasks(tasks)
	if c.tasks == nil {
		c.tasks = []service.Task{}
	}
	c.present = true
	c.invalidated = false
	c.updatedAt = c.now()
	c.status = StatusReady
	c.notifyLocked()
}

func (c *Cache) isStaleLocked() bool {
	if !c.present || c.invalidated {
		return true
	}
	return c.now().Sub(c.updatedAt) >= c.staleTime
}

func (c *Cache) notifyLocked() {
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
