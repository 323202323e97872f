package model

import "time"

// Priority is a task priority level.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Rank orders priorities for sorting: High ranks before Medium before Low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Task represents a task row in the database. Every task belongs to
// exactly one user.
type Task struct {
	ID          int64
	UserID      int64
	Title       string
	Description string
	Completed   bool
	Priority    Priority
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SortKey selects the ordering of a task listing.
type SortKey string

const (
	SortByCreatedAt SortKey = "created_at"
	SortByPriority  SortKey = "priority"
	SortByStatus    SortKey = "status"
)

// TaskFilter is a validated, typed listing filter. Nil pointer fields
// mean "no filter on this field".
type TaskFilter struct {
	Completed *bool
	Priority  *Priority
	SortBy    SortKey
}

// TaskListQuery carries the raw query-string values of a task listing
// request; the service validates them into a TaskFilter.
type TaskListQuery struct {
	Status   string
	Priority string
	SortBy   string
}

// CreateTaskRequest represents a task creation request. Priority is
// optional and defaults to Medium.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// UpdateTaskRequest represents a partial task update. Nil fields are
// left unchanged.
type UpdateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
	Priority    *string `json:"priority"`
}

// TaskResponse represents a task in API responses.
type TaskResponse struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	Priority    Priority  `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTaskResponse converts a Task row into its API representation.
func NewTaskResponse(t *Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
