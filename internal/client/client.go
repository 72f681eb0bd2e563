// Package client is a Go client for the task tracker API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hiroki-koketsu/go-task-tracker/internal/model"
	"github.com/hiroki-koketsu/go-task-tracker/internal/service"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Client talks to the task tracker API.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSession makes Register and Login save to s, Logout clear it, and every
// request carry its token.
func WithSession(s *Session) Option {
	return func(c *Client) { c.session = s }
}

// New creates a Client for the API rooted at baseURL (for example
// http://localhost:8080/api).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the attached session, or nil.
func (c *Client) Session() *Session {
	return c.session
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, email, password string) (*service.AuthResult, error) {
	var res service.AuthResult
	body := map[string]string{"username": username, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, &res); err != nil {
		return nil, err
	}
	return &res, c.remember(&res)
}

// Login authenticates by email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	var res service.AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &res); err != nil {
		return nil, err
	}
	return &res, c.remember(&res)
}

func (c *Client) remember(res *service.AuthResult) error {
	if c.session == nil {
		return nil
	}
	return c.session.Save(res)
}

// Logout forgets the session. The server keeps no session state.
func (c *Client) Logout() error {
	if c.session == nil {
		return nil
	}
	return c.session.Clear()
}

// Me returns the account that owns the current token.
func (c *Client) Me(ctx context.Context) (*model.AccountSummary, error) {
	var res struct {
		User *model.AccountSummary `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &res); err != nil {
		return nil, err
	}
	return res.User, nil
}

// AddTask adds a task and returns the user's full list.
func (c *Client) AddTask(ctx context.Context, req *model.CreateTaskRequest) ([]model.Task, error) {
	var res struct {
		Tasks []model.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodPost, "/tasks", req, &res); err != nil {
		return nil, err
	}
	return res.Tasks, nil
}

// ListTasks returns the user's tasks in stored order.
func (c *Client) ListTasks(ctx context.Context, username string) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(username), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CompleteTask marks a task completed.
func (c *Client) CompleteTask(ctx context.Context, username, taskID string) (*model.Task, error) {
	var res struct {
		Task *model.Task `json:"task"`
	}
	path := "/tasks/" + url.PathEscape(username) + "/" + url.PathEscape(taskID) + "/complete"
	if err := c.do(ctx, http.MethodPatch, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Task, nil
}

// UpdateTaskStatus moves a task to status.
func (c *Client) UpdateTaskStatus(ctx context.Context, username, taskID string, status model.Status) (*model.Task, error) {
	var res struct {
		Task *model.Task `json:"task"`
	}
	path := "/tasks/" + url.PathEscape(username) + "/" + url.PathEscape(taskID) + "/status"
	if err := c.do(ctx, http.MethodPatch, path, model.UpdateStatusRequest{Status: string(status)}, &res); err != nil {
		return nil, err
	}
	return res.Task, nil
}

// DeleteTask removes a task and returns the remaining list.
func (c *Client) DeleteTask(ctx context.Context, username, taskID string) ([]model.Task, error) {
	var res struct {
		Tasks []model.Task `json:"tasks"`
	}
	path := "/tasks/" + url.PathEscape(username) + "/" + url.PathEscape(taskID)
	if err := c.do(ctx, http.MethodDelete, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Tasks, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil {
		if token := c.session.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var e struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &e) == nil && e.Message != "" {
			apiErr.Message = e.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("server did not return JSON (status %d): %w", resp.StatusCode, err)
	}
	return nil
}
