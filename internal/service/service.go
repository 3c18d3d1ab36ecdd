// Package service defines the backend-agnostic interface for task operations.
package service

import "context"

// Store is the remote task store.
// All backend calls go through this interface; commands never import a
// backend package directly.
type Store interface {
	// ListTasks returns the task list in store order.
	ListTasks(ctx context.Context) ([]Task, error)

	// CreateTask creates a task and returns the store's echo of it.
	CreateTask(ctx context.Context, task NewTask) (Task, error)

	// DeleteTask deletes a task by ID.
	DeleteTask(ctx context.Context, id int64) error

	// UpdateTask sets the completed flag of a task.
	UpdateTask(ctx context.Context, id int64, completed bool) (Task, error)
}
