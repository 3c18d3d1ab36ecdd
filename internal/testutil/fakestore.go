// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"errors"
	"sync"

	"quicktodo/internal/service"
)

// ErrNotFound is returned when a task does not exist.
var ErrNotFound = errors.New("not found")

// FakeStore is an in-memory implementation of service.Store for testing.
type FakeStore struct {
	mu     sync.Mutex
	tasks  []service.Task
	nextID int64

	// Error injection for testing
	ListErr   error
	CreateErr error
	DeleteErr error
	UpdateErr error

	// Gates hold a call until the channel is closed or receives.
	ListGate  chan struct{}
	WriteGate chan struct{}

	ListCalls   int
	CreateCalls int
	DeleteCalls int
	UpdateCalls int
}

// NewFakeStore creates a FakeStore holding tasks. New IDs start above the
// largest given ID.
func NewFakeStore(tasks ...service.Task) *FakeStore {
	f := &FakeStore{nextID: 200}
	for _, t := range tasks {
		f.tasks = append(f.tasks, t)
		if t.ID >= f.nextID {
			f.nextID = t.ID + 1
		}
	}
	return f
}

// Configure changes error injection or gates while calls may be in flight.
// fn runs under the store's lock and must only set fields.
func (f *FakeStore) Configure(fn func(f *FakeStore)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// Tasks returns a copy of the stored tasks.
func (f *FakeStore) Tasks() []service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return service.CloneTasks(f.tasks)
}

// Calls returns the total number of store calls.
func (f *FakeStore) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ListCalls + f.CreateCalls + f.DeleteCalls + f.UpdateCalls
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListTasks implements service.Store.
func (f *FakeStore) ListTasks(ctx context.Context) ([]service.Task, error) {
	f.mu.Lock()
	f.ListCalls++
	gate := f.ListGate
	injected := f.ListErr
	f.mu.Unlock()

	if err := wait(ctx, gate); err != nil {
		return nil, err
	}
	if injected != nil {
		return nil, injected
	}
	return f.Tasks(), nil
}

// CreateTask implements service.Store.
func (f *FakeStore) CreateTask(ctx context.Context, task service.NewTask) (service.Task, error) {
	f.mu.Lock()
	f.CreateCalls++
	gate := f.WriteGate
	injected := f.CreateErr
	f.mu.Unlock()

	if err := wait(ctx, gate); err != nil {
		return service.Task{}, err
	}
	if injected != nil {
		return service.Task{}, injected
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	created := service.Task{ID: f.nextID, Title: task.Title, Completed: task.Completed}
	f.nextID++
	f.tasks = append([]service.Task{created}, f.tasks...)
	return created, nil
}

// DeleteTask implements service.Store.
func (f *FakeStore) DeleteTask(ctx context.Context, id int64) error {
	f.mu.Lock()
	f.DeleteCalls++
	gate := f.WriteGate
	injected := f.DeleteErr
	f.mu.Unlock()

	if err := wait(ctx, gate); err != nil {
		return err
	}
	if injected != nil {
		return injected
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// UpdateTask implements service.Store.
func (f *FakeStore) UpdateTask(ctx context.Context, id int64, completed bool) (service.Task, error) {
	f.mu.Lock()
	f.UpdateCalls++
	gate := f.WriteGate
	injected := f.UpdateErr
	f.mu.Unlock()

	if err := wait(ctx, gate); err != nil {
		return service.Task{}, err
	}
	if injected != nil {
		return service.Task{}, injected
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks[i].Completed = completed
			return f.tasks[i], nil
		}
	}
	return service.Task{}, ErrNotFound
}

// SampleTasks returns n tasks with IDs 1..n, matching the shape of the
// public demo API.
func SampleTasks(n int) []service.Task {
	tasks := make([]service.Task, n)
	for i := range tasks {
		tasks[i] = service.Task{
			ID:        int64(i + 1),
			Title:     sampleTitles[i%len(sampleTitles)],
			Completed: i%3 == 2,
		}
	}
	return tasks
}

var sampleTitles = []string{
	"delectus aut autem",
	"quis ut nam facilis et officia qui",
	"fugiat veniam minus",
	"et porro tempora",
	"laboriosam mollitia et enim quasi adipisci quia provident illum",
}
