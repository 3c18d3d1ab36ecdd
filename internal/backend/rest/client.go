// Package rest implements service.Store against a JSON /todos resource.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"quicktodo/internal/config"
	"quicktodo/internal/service"
)

const (
	// RequestIDHeader carries a per-request correlation ID.
	RequestIDHeader = "X-Request-ID"

	tracerName = "quicktodo/internal/backend/rest"
	todosPath  = "/todos"
)

// ErrTimeout is returned when a call exceeds its deadline.
var ErrTimeout = errors.New("request timed out")

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
}

// Client implements service.Store over HTTP.
type Client struct {
	baseURL string
	limit   int
	timeout time.Duration
	http    *http.Client
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithLimit sets the _limit query parameter for ListTasks. Zero omits it.
func WithLimit(n int) Option {
	return func(c *Client) { c.limit = n }
}

// WithTimeout bounds each call. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a client from config.
// A configured token is sent as a bearer token.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base_url: %w", err)
	}

	httpClient := http.DefaultClient
	if cfg.Token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
		httpClient = oauth2.NewClient(ctx, src)
	}

	return NewWithHTTPClient(cfg.BaseURL, httpClient, WithLimit(cfg.Limit), WithTimeout(cfg.Timeout)), nil
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(baseURL string, httpClient *http.Client, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   config.DefaultLimit,
		http:    httpClient,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListTasks returns the task list.
func (c *Client) ListTasks(ctx context.Context) ([]service.Task, error) {
	path := todosPath
	if c.limit > 0 {
		path += "?_limit=" + strconv.Itoa(c.limit)
	}

	var tasks []service.Task
	if err := c.do(ctx, http.MethodGet, path, todosPath, nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []service.Task{}
	}
	return tasks, nil
}

// CreateTask creates a task and returns the echoed record.
func (c *Client) CreateTask(ctx context.Context, task service.NewTask) (service.Task, error) {
	var created service.Task
	if err := c.do(ctx, http.MethodPost, todosPath, todosPath, task, &created); err != nil {
		return service.Task{}, err
	}
	return created, nil
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), todosPath+"/{id}", nil, nil)
}

// UpdateTask sets the completed flag of a task.
func (c *Client) UpdateTask(ctx context.Context, id int64, completed bool) (service.Task, error) {
	body := struct {
		Completed bool `json:"completed"`
	}{completed}

	var updated service.Task
	if err := c.do(ctx, http.MethodPatch, taskPath(id), todosPath+"/{id}", body, &updated); err != nil {
		return service.Task{}, err
	}
	return updated, nil
}

func taskPath(id int64) string {
	return todosPath + "/" + strconv.FormatInt(id, 10)
}

// do performs one JSON round trip. route is the templated path used to name
// the span.
func (c *Client) do(ctx context.Context, method, path, route string, in, out interface{}) (err error) {
	ctx, span := c.tracer.Start(ctx, method+" "+route, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
		attribute.String("request.id", requestID),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapError(err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: method, Path: route, Code: resp.StatusCode}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, route, wrapError(err))
	}
	return nil
}

// wrapError maps transport errors to user-friendly ones.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
