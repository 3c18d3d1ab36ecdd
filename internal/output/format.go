// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"quicktodo/internal/service"
)

// FormatTask formats a task line.
// Format: "{N:>4}  [x] {TITLE}  #{ID}\n"
func FormatTask(w io.Writer, num int, task service.Task) {
	fmt.Fprintf(w, "%4d  [%s] %s  #%d\n", num, checkbox(task.Completed), normalizeTitle(task.Title), task.ID)
}

// FormatTasks formats a task list numbered from 1.
func FormatTasks(w io.Writer, tasks []service.Task) {
	for i, task := range tasks {
		FormatTask(w, i+1, task)
	}
}

// DescribeTask returns a short quoted form of a task for messages.
func DescribeTask(task service.Task) string {
	if task.Title == "" {
		return fmt.Sprintf("#%d", task.ID)
	}
	return fmt.Sprintf("%q", normalizeTitle(task.Title))
}

func checkbox(completed bool) string {
	if completed {
		return "x"
	}
	return " "
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	// Replace newlines with spaces
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	// Trim and check for empty
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
