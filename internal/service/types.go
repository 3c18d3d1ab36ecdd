// Package service defines the backend-agnostic interface for task operations.
package service

// Task represents a single task item.
type Task struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// NewTask is the payload for creating a task. The store assigns the ID.
type NewTask struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// CloneTasks returns a copy of tasks that shares no backing array with it.
// A nil input stays nil.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}
