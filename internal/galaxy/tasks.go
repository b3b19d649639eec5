package galaxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// Polling defaults.
const (
	DefaultPollInterval   = 10 * time.Second
	DefaultOnetimeDelay   = 10 * time.Second
	DefaultMaxAttempts    = 10
	DefaultTaskTimeout    = 300 * time.Second
	DefaultURLWaitTimeout = 6000 * time.Second
)

// Polling holds the tunables shared by the task poller and the gateway
// replay delay.
type Polling struct {
	Interval    time.Duration // between status polls
	Onetime     time.Duration // before a repeated gateway replay
	MaxAttempts int           // bound for WaitTask and WaitAll
}

// DefaultPolling returns the built-in polling tunables.
func DefaultPolling() Polling {
	return Polling{
		Interval:    DefaultPollInterval,
		Onetime:     DefaultOnetimeDelay,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// TaskState is the lifecycle state of an asynchronous server-side job.
type TaskState string

// Task states. Only completed, failed and canceled are terminal.
const (
	TaskWaiting   TaskState = "waiting"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCanceled  TaskState = "canceled"
)

// Terminal reports whether no further transition can leave s.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCanceled:
		return true
	default:
		return false
	}
}

// Task status endpoint families.
const (
	TasksV3   = "v3"
	TasksPulp = "pulp/api/v3"
	TasksV1   = "v1"
)

// TaskHandle references an asynchronous job. Either URL (a path or absolute
// URL as returned by the server) or ID is set. Version selects the tasks
// endpoint an ID is resolved under and the response shape.
type TaskHandle struct {
	URL     string
	ID      string
	Version string
}

// StatusPath returns the path the poller queries for h.
func (h TaskHandle) StatusPath() (string, error) {
	if h.ID != "" {
		version := h.Version
		if version == "" {
			version = TasksV3
		}

		return fmt.Sprintf("%s/tasks/%s/", version, url.PathEscape(h.ID)), nil
	}

	if h.URL == "" {
		return "", errors.New("galaxy: task handle has neither url nor id")
	}

	return h.URL, nil
}

// HandleFromResponse reads the "task" reference from an async response.
func HandleFromResponse(resp *Response) (TaskHandle, error) {
	task := gjson.GetBytes(resp.Body, "task")
	if task.Type != gjson.String || task.Str == "" {
		return TaskHandle{}, &ResponseFormatError{
			StatusCode: resp.StatusCode,
			URL:        resp.URL,
			Body:       string(resp.Body),
			Err:        errors.New("response has no task reference"),
		}
	}

	return TaskHandle{URL: task.Str}, nil
}

// TaskResult is the last status document the poller observed.
type TaskResult struct {
	State TaskState
	Error string
	Raw   json.RawMessage
}

// Decode unmarshals the full status document into v.
func (r *TaskResult) Decode(v any) error {
	return json.Unmarshal(r.Raw, v)
}

// parseTaskResult reads state and error from a status document. v1
// endpoints wrap the task in results[0].
func parseTaskResult(body []byte, version string) (*TaskResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, &ResponseFormatError{Body: string(body), Err: errors.New("task status is not JSON")}
	}

	doc := gjson.ParseBytes(body)
	task := doc
	if version == TasksV1 {
		task = doc.Get("results.0")
	}

	errField := task.Get("error")
	if !errField.Exists() {
		errField = doc.Get("error")
	}

	return &TaskResult{
		State: TaskState(task.Get("state").String()),
		Error: errorText(errField),
		Raw:   json.RawMessage(body),
	}, nil
}

// errorText flattens the error field, which is a string on some endpoints
// and an object with a description on others.
func errorText(r gjson.Result) string {
	switch {
	case !r.Exists() || r.Type == gjson.Null:
		return ""
	case r.Type == gjson.String:
		return r.Str
	case r.IsObject():
		if d := r.Get("description"); d.Exists() {
			return d.String()
		}

		return r.Raw
	default:
		return r.Raw
	}
}

// WaitOptions controls WaitForTask. Zero Timeout means DefaultTaskTimeout.
type WaitOptions struct {
	Timeout      time.Duration
	RaiseOnError bool
}

// WaitForTask polls the task status endpoint until the task is terminal or
// the timeout elapses. A 500 from the status endpoint counts as not ready;
// any other error propagates. A failed task is returned as-is unless
// RaiseOnError is set.
func (c *Client) WaitForTask(ctx context.Context, h TaskHandle, opts WaitOptions) (*TaskResult, error) {
	path, err := h.StatusPath()
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}

	deadline := c.now().Add(timeout)

	for {
		if c.now().After(deadline) {
			return nil, fmt.Errorf("%w: %s after %s", ErrTaskTimeout, path, timeout)
		}

		resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: path})

		switch {
		case err != nil && StatusCode(err) == http.StatusInternalServerError:
			c.logger.Warn("task status endpoint returned 500, polling again", slog.String("task", path))
		case err != nil:
			return nil, err
		default:
			result, parseErr := parseTaskResult(resp.Body, h.Version)
			if parseErr != nil {
				return nil, parseErr
			}

			if result.State == TaskFailed {
				c.logger.Error("task failed", slog.String("task", path), slog.String("error", result.Error))

				if opts.RaiseOnError {
					return nil, &TaskFailedError{URL: resp.URL, Detail: result.Error, Result: result}
				}
			}

			if result.State.Terminal() {
				return result, nil
			}

			c.logger.Debug("task not finished", slog.String("task", path), slog.String("state", string(result.State)))
		}

		if err := c.sleepFunc(ctx, c.polling.Interval); err != nil {
			return nil, fmt.Errorf("galaxy: waiting for task canceled: %w", err)
		}
	}
}

// WaitForTasks waits on several handles concurrently and returns results
// in handle order. The first error cancels the remaining waits.
func (c *Client) WaitForTasks(ctx context.Context, opts WaitOptions, handles ...TaskHandle) ([]*TaskResult, error) {
	results := make([]*TaskResult, len(handles))

	g, gctx := errgroup.WithContext(ctx)
	for i, h := range handles {
		g.Go(func() error {
			r, err := c.WaitForTask(gctx, h, opts)
			if err != nil {
				return err
			}

			results[i] = r

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// WaitForURL polls path until it stops returning 404. Zero timeout means
// DefaultURLWaitTimeout.
func (c *Client) WaitForURL(ctx context.Context, path string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = DefaultURLWaitTimeout
	}

	deadline := c.now().Add(timeout)

	for {
		if c.now().After(deadline) {
			return nil, fmt.Errorf("%w: %s still missing after %s", ErrTaskTimeout, path, timeout)
		}

		resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: path})
		if err == nil {
			return resp, nil
		}

		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		if err := c.sleepFunc(ctx, c.polling.Interval); err != nil {
			return nil, fmt.Errorf("galaxy: waiting for url canceled: %w", err)
		}
	}
}

// Task is one entry of the pulp tasks list.
type Task struct {
	PulpHref    string         `json:"pulp_href"`
	PulpCreated string         `json:"pulp_created"`
	Name        string         `json:"name"`
	State       TaskState      `json:"state"`
	StartedAt   string         `json:"started_at"`
	FinishedAt  string         `json:"finished_at"`
	Error       map[string]any `json:"error"`
}

// TaskList is a page of tasks.
type TaskList struct {
	Count   int    `json:"count"`
	Results []Task `json:"results"`
}

// ListTasks returns tasks newest first, optionally only unfinished ones.
func (c *Client) ListTasks(ctx context.Context, onlyRunning bool) (*TaskList, error) {
	path := "pulp/api/v3/tasks/?ordering=-pulp_created"
	if onlyRunning {
		path += "&state__in=waiting,running"
	}

	var list TaskList
	if err := c.Get(ctx, path, &list); err != nil {
		return nil, err
	}

	return &list, nil
}

// GetTask returns one pulp task by id.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	var t Task
	if err := c.Get(ctx, fmt.Sprintf("pulp/api/v3/tasks/%s/", url.PathEscape(id)), &t); err != nil {
		return nil, err
	}

	return &t, nil
}

// WaitTask polls a pulp task at most Polling.MaxAttempts times (unbounded
// when MaxAttempts is not positive). Anything other than completed is an
// error.
func (c *Client) WaitTask(ctx context.Context, id string) (*Task, error) {
	task, err := c.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	remaining := c.polling.MaxAttempts

	for !task.State.Terminal() {
		if remaining > 0 {
			remaining--
			if remaining == 0 {
				break
			}
		}

		if err := c.sleepFunc(ctx, c.polling.Interval); err != nil {
			return nil, fmt.Errorf("galaxy: waiting for task canceled: %w", err)
		}

		if task, err = c.GetTask(ctx, id); err != nil {
			return nil, err
		}
	}

	switch task.State {
	case TaskCompleted:
		return task, nil
	case TaskFailed, TaskCanceled:
		return nil, &TaskFailedError{URL: task.PulpHref, Detail: "state " + string(task.State)}
	default:
		return nil, fmt.Errorf("%w: task %s still %s after %d attempts",
			ErrTaskTimeout, id, task.State, c.polling.MaxAttempts)
	}
}

// WaitAll polls until no task is waiting or running, at most
// Polling.MaxAttempts times. It returns how many were still unfinished.
func (c *Client) WaitAll(ctx context.Context) (int, error) {
	tasks, err := c.ListTasks(ctx, true)
	if err != nil {
		return 0, err
	}

	remaining := c.polling.MaxAttempts

	for len(tasks.Results) > 0 {
		if remaining > 0 {
			remaining--
			if remaining == 0 {
				break
			}
		}

		if err := c.sleepFunc(ctx, c.polling.Interval); err != nil {
			return 0, fmt.Errorf("galaxy: waiting for tasks canceled: %w", err)
		}

		if tasks, err = c.ListTasks(ctx, true); err != nil {
			return 0, err
		}
	}

	return len(tasks.Results), nil
}
