// Package client is a Go client for the TaskDeck API. The bearer
// token lives in an explicit Session passed through the client rather
// than ambient storage; callers can observe its lifecycle
// (absent, valid, expired) and re-login when it runs out.
package client

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
	"time"
)

var (
	ErrNoSession      = errors.New("no session: login first")
	ErrSessionExpired = errors.New("session expired: login again")
)

// SessionState describes the lifecycle of a session.
type SessionState int

const (
	StateAbsent SessionState = iota
	StateValid
	StateExpired
)

// Session holds a bearer token and its expiry.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// State reports the session's lifecycle state at the given time. A nil
// or token-less session is absent; expiry is checked lazily here, the
// server remains the authority via its own verification.
func (s *Session) State(now time.Time) SessionState {
	if s == nil || s.Token == "" {
		return StateAbsent
	}
	if !now.Before(s.ExpiresAt) {
		return StateExpired
	}
	return StateValid
}

// User is a user as returned by the API.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is a task as returned by the API.
type Task struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	Priority    string    `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTask is the payload for creating a task. Priority may be empty,
// the server defaults it to Medium.
type NewTask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// TaskPatch is a partial task update; nil fields are left unchanged.
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
	Priority    *string `json:"priority,omitempty"`
}

// ListTasksOptions are the optional filter and sort parameters of a
// task listing. Zero values mean "no filter" / default sort.
type ListTasksOptions struct {
	Status   string
	Priority string
	SortBy   string
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// Client calls the TaskDeck API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSession injects an existing session, e.g. one restored from
// persisted state.
func WithSession(s *Session) Option {
	return func(c *Client) { c.session = s }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the current session, nil when absent.
func (c *Client) Session() *Session {
	return c.session
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// Signup registers a new account. It does not install a session; call
// Login afterwards.
func (c *Client) Signup(ctx context.Context, name, email, password string) (User, error) {
	var user User
	err := c.do(ctx, http.MethodPost, "/signup", nil, signupRequest{name, email, password}, &user, false)
	return user, err
}

// Login authenticates and installs the returned session on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/login", nil, loginRequest{email, password}, &resp, false); err != nil {
		return nil, err
	}

	c.session = &Session{Token: resp.Token, ExpiresAt: resp.ExpiresAt}
	return c.session, nil
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (User, error) {
	var user User
	err := c.do(ctx, http.MethodGet, "/me", nil, nil, &user, true)
	return user, err
}

// ListTasks returns the authenticated user's tasks.
func (c *Client) ListTasks(ctx context.Context, opts ListTasksOptions) ([]Task, error) {
	query := url.Values{}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.Priority != "" {
		query.Set("priority", opts.Priority)
	}
	if opts.SortBy != "" {
		query.Set("sort_by", opts.SortBy)
	}

	var tasks []Task
	err := c.do(ctx, http.MethodGet, "/tasks", query, nil, &tasks, true)
	return tasks, err
}

// CreateTask creates a task owned by the authenticated user.
func (c *Client) CreateTask(ctx context.Context, req NewTask) (Task, error) {
	var task Task
	err := c.do(ctx, http.MethodPost, "/tasks", nil, req, &task, true)
	return task, err
}

// GetTask fetches a single task by ID.
func (c *Client) GetTask(ctx context.Context, id int64) (Task, error) {
	var task Task
	err := c.do(ctx, http.MethodGet, "/tasks/"+strconv.FormatInt(id, 10), nil, nil, &task, true)
	return task, err
}

// UpdateTask applies a partial update to a task.
func (c *Client) UpdateTask(ctx context.Context, id int64, patch TaskPatch) (Task, error) {
	var task Task
	err := c.do(ctx, http.MethodPut, "/tasks/"+strconv.FormatInt(id, 10), nil, patch, &task, true)
	return task, err
}

// ToggleTask flips a task's completion flag.
func (c *Client) ToggleTask(ctx context.Context, id int64) (Task, error) {
	var task Task
	err := c.do(ctx, http.MethodPatch, "/tasks/"+strconv.FormatInt(id, 10)+"/toggle", nil, nil, &task, true)
	return task, err
}

// DeleteTask permanently removes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+strconv.FormatInt(id, 10), nil, nil, nil, true)
}

// do issues a request and decodes the JSON response into out when out
// is non-nil. Authenticated calls fail fast on an absent or expired
// session; a 401 from the server also marks the session expired.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, authed bool) error {
	if authed {
		switch c.session.State(c.now()) {
		case StateAbsent:
			return ErrNoSession
		case StateExpired:
			return ErrSessionExpired
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if authed && resp.StatusCode == http.StatusUnauthorized {
		c.session.ExpiresAt = c.now()
		return ErrSessionExpired
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: decodeErrorMessage(resp.Body)}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func decodeErrorMessage(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil || payload.Error == "" {
		return "unexpected response"
	}
	return payload.Error
}
