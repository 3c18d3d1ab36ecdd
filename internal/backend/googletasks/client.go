// Package googletasks implements the service.Store interface using Google Tasks API.
//
// Google task IDs are opaque strings; the store exposes them as stable int64
// handles derived from the string. A handle resolves back to its Google ID
// once the task has been seen by ListTasks or CreateTask in this process.
package googletasks

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"quicktodo/internal/config"
	"quicktodo/internal/service"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	// Scope is the OAuth scope for Google Tasks.
	Scope = "https://www.googleapis.com/auth/tasks"

	statusCompleted   = "completed"
	statusNeedsAction = "needsAction"

	// Handles stay within the integer range JSON numbers represent exactly.
	handleMask = 1<<53 - 1
)

// Client implements service.Store using Google Tasks API.
type Client struct {
	svc   *tasks.Service
	limit int64

	mu  sync.Mutex
	ids map[int64]string // handle -> Google task ID
}

// New creates a new Google Tasks client.
// Requires oauth_client.json and token.json to exist.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	// Load OAuth client config
	clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth_client.json: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(clientJSON, Scope)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth_client.json: %w", err)
	}

	// Load token
	tokenData, err := os.ReadFile(cfg.TokenPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read token.json: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("invalid token.json: %w", err)
	}

	// Create token source that auto-refreshes
	tokenSource := oauthConfig.TokenSource(ctx, &token)

	// Create HTTP client with token source
	httpClient := oauth2.NewClient(ctx, tokenSource)

	client, err := NewWithHTTPClient(ctx, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	client.limit = int64(cfg.Limit)
	return client, nil
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{
		svc:   svc,
		limit: config.DefaultLimit,
		ids:   make(map[int64]string),
	}, nil
}

// ListTasks returns tasks of the default list in API order, completed ones
// included.
func (c *Client) ListTasks(ctx context.Context) ([]service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	call := c.svc.Tasks.List(DefaultListID).
		ShowCompleted(true).
		ShowHidden(true).
		ShowDeleted(false).
		Context(ctx)
	if c.limit > 0 {
		call = call.MaxResults(c.limit)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, wrapError(err)
	}

	result := make([]service.Task, 0, len(resp.Items))
	for _, task := range resp.Items {
		result = append(result, c.toTask(task))
	}
	return result, nil
}

// CreateTask creates a new task in the default list.
func (c *Client) CreateTask(ctx context.Context, task service.NewTask) (service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	created, err := c.svc.Tasks.Insert(DefaultListID, &tasks.Task{
		Title:  task.Title,
		Status: status(task.Completed),
	}).Context(ctx).Do()
	if err != nil {
		return service.Task{}, wrapError(err)
	}
	return c.toTask(created), nil
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	remoteID, err := c.lookup(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if err := c.svc.Tasks.Delete(DefaultListID, remoteID).Context(ctx).Do(); err != nil {
		return wrapError(err)
	}
	return nil
}

// UpdateTask marks a task completed or open.
func (c *Client) UpdateTask(ctx context.Context, id int64, completed bool) (service.Task, error) {
	remoteID, err := c.lookup(id)
	if err != nil {
		return service.Task{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	patch := &tasks.Task{Status: status(completed)}
	if !completed {
		// Reopening needs the completion date cleared too
		patch.NullFields = []string{"Completed"}
	}
	updated, err := c.svc.Tasks.Patch(DefaultListID, remoteID, patch).Context(ctx).Do()
	if err != nil {
		return service.Task{}, wrapError(err)
	}
	return c.toTask(updated), nil
}

func (c *Client) toTask(t *tasks.Task) service.Task {
	handle := Handle(t.Id)
	c.mu.Lock()
	c.ids[handle] = t.Id
	c.mu.Unlock()
	return service.Task{
		ID:        handle,
		Title:     t.Title,
		Completed: t.Status == statusCompleted,
	}
}

func (c *Client) lookup(id int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	remoteID, ok := c.ids[id]
	if !ok {
		return "", fmt.Errorf("task not found: %d", id)
	}
	return remoteID, nil
}

// Handle derives the numeric handle of a Google task ID.
func Handle(remoteID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(remoteID))
	return int64(h.Sum64() & handleMask)
}

func status(completed bool) string {
	if completed {
		return statusCompleted
	}
	return statusNeedsAction
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	// Check for timeout
	if strings.Contains(errStr, "context deadline exceeded") {
		return fmt.Errorf("request timed out")
	}

	// Check for auth errors
	if strings.Contains(errStr, "401") || strings.Contains(errStr, "403") {
		return fmt.Errorf("token expired or revoked (run: quicktodo login)")
	}

	// Check for not found
	if strings.Contains(errStr, "404") {
		return fmt.Errorf("not found")
	}

	return err
}
