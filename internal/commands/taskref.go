package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"quicktodo/internal/service"
)

// TaskRef represents a parsed task reference.
type TaskRef struct {
	Num  int   // 1-based position in the list, 0 when ByID
	ID   int64 // task ID, set when ByID
	ByID bool  // true if the reference names an ID (#12 or id:12)
}

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// ParseTaskRef parses a task reference from args.
//
// Parsing rules:
//  1. "<digits>" → position in the list as printed by `quicktodo list`
//  2. "#<digits>" or "id:<digits>" → task ID
//  3. anything else → error: invalid task reference: <ref>
//
// Exactly one argument is accepted.
func ParseTaskRef(args []string) (TaskRef, error) {
	if len(args) == 0 {
		return TaskRef{}, ErrTaskRefRequired
	}
	if len(args) > 1 {
		return TaskRef{}, fmt.Errorf("unexpected argument: %s", args[1])
	}

	arg := args[0]
	if isAllDigits(arg) {
		num, err := strconv.Atoi(arg)
		if err != nil {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
		}
		return TaskRef{Num: num}, nil
	}

	for _, prefix := range []string{"#", "id:"} {
		rest, ok := strings.CutPrefix(arg, prefix)
		if !ok || !isAllDigits(rest) {
			continue
		}
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
		}
		return TaskRef{ID: id, ByID: true}, nil
	}

	return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
}

// String formats the reference the way it was written.
func (r TaskRef) String() string {
	if r.ByID {
		return "#" + strconv.FormatInt(r.ID, 10)
	}
	return strconv.Itoa(r.Num)
}

// ResolveTaskRef finds the referenced task in tasks.
// An ID reference to a task missing from the list resolves to a task carrying
// only that ID; a position outside the list is an error.
func ResolveTaskRef(tasks []service.Task, ref TaskRef) (service.Task, error) {
	if ref.ByID {
		for _, t := range tasks {
			if t.ID == ref.ID {
				return t, nil
			}
		}
		return service.Task{ID: ref.ID}, nil
	}
	if ref.Num < 1 || ref.Num > len(tasks) {
		return service.Task{}, fmt.Errorf("task number out of range: %d", ref.Num)
	}
	return tasks[ref.Num-1], nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
