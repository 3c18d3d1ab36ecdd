package service

import (
	"errors"
	"fmt"
)

// ValidationError reports input rejected before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ErrEmptyTitle is returned when a title is empty or whitespace-only.
var ErrEmptyTitle = &ValidationError{Field: "title", Reason: "required"}

// FetchError reports a failed initial or background load.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch tasks: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MutationKind names an optimistic write.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationDelete MutationKind = "delete"
	MutationUpdate MutationKind = "update"
)

// MutationError reports a rejected or failed remote write.
// The speculative change it belongs to has been rolled back.
type MutationError struct {
	Kind MutationKind
	ID   int64
	Err  error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s task %d: %v", e.Kind, e.ID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
