package service

import (
	"context"
	"errors"
	"strings"

	"github.com/taskdeck/taskdeck-go/internal/model"
	"github.com/taskdeck/taskdeck-go/internal/repository"
)

var (
	ErrTitleRequired   = errors.New("title is required")
	ErrInvalidPriority = errors.New("priority must be Low, Medium or High")
	ErrInvalidStatus   = errors.New("status must be completed or pending")
	ErrInvalidSortKey  = errors.New("sort_by must be created_at, priority or status")
	ErrTaskNotFound    = errors.New("task not found")
)

// TaskStore is the persistence surface TaskService depends on.
// *repository.TaskRepository satisfies it.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, userID, taskID int64) (*model.Task, error)
	List(ctx context.Context, userID int64, filter model.TaskFilter) ([]model.Task, error)
	Update(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, userID, taskID int64) error
}

// TaskService handles task business logic. Every operation is scoped
// to the calling user's identity; a task owned by someone else is
// indistinguishable from a nonexistent one.
type TaskService struct {
	store TaskStore
}

// NewTaskService creates a new TaskService.
func NewTaskService(store TaskStore) *TaskService {
	return &TaskService{store: store}
}

// List returns the user's tasks matching the raw query values,
// validating them first.
func (s *TaskService) List(ctx context.Context, userID int64, query model.TaskListQuery) ([]model.TaskResponse, error) {
	filter, err := parseListQuery(query)
	if err != nil {
		return nil, err
	}

	tasks, err := s.store.List(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	result := make([]model.TaskResponse, 0, len(tasks))
	for i := range tasks {
		result = append(result, model.NewTaskResponse(&tasks[i]))
	}
	return result, nil
}

// Create validates and persists a new task owned by the user. The
// completion flag starts false and priority defaults to Medium.
func (s *TaskService) Create(ctx context.Context, userID int64, req model.CreateTaskRequest) (model.TaskResponse, error) {
	if strings.TrimSpace(req.Title) == "" {
		return model.TaskResponse{}, ErrTitleRequired
	}

	priority := model.PriorityMedium
	if req.Priority != "" {
		p, err := parsePriority(req.Priority)
		if err != nil {
			return model.TaskResponse{}, err
		}
		priority = p
	}

	task := &model.Task{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Completed:   false,
		Priority:    priority,
	}

	if err := s.store.Create(ctx, task); err != nil {
		return model.TaskResponse{}, err
	}

	// Re-read the row so the response carries the store-assigned
	// timestamps.
	created, err := s.store.GetByID(ctx, userID, task.ID)
	if err != nil {
		return model.TaskResponse{}, err
	}

	return model.NewTaskResponse(created), nil
}

// Get retrieves a single task owned by the user.
func (s *TaskService) Get(ctx context.Context, userID, taskID int64) (model.TaskResponse, error) {
	task, err := s.getOwned(ctx, userID, taskID)
	if err != nil {
		return model.TaskResponse{}, err
	}
	return model.NewTaskResponse(task), nil
}

// Update applies the supplied fields to a task owned by the user and
// refreshes its update timestamp. Nil fields are left unchanged.
func (s *TaskService) Update(ctx context.Context, userID, taskID int64, req model.UpdateTaskRequest) (model.TaskResponse, error) {
	task, err := s.getOwned(ctx, userID, taskID)
	if err != nil {
		return model.TaskResponse{}, err
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return model.TaskResponse{}, ErrTitleRequired
		}
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}
	if req.Priority != nil {
		p, err := parsePriority(*req.Priority)
		if err != nil {
			return model.TaskResponse{}, err
		}
		task.Priority = p
	}

	return s.save(ctx, task)
}

// Toggle flips a task's completion flag. Toggling twice restores the
// original value.
func (s *TaskService) Toggle(ctx context.Context, userID, taskID int64) (model.TaskResponse, error) {
	task, err := s.getOwned(ctx, userID, taskID)
	if err != nil {
		return model.TaskResponse{}, err
	}

	task.Completed = !task.Completed
	return s.save(ctx, task)
}

// Delete permanently removes a task owned by the user.
func (s *TaskService) Delete(ctx context.Context, userID, taskID int64) error {
	err := s.store.Delete(ctx, userID, taskID)
	if errors.Is(err, repository.ErrTaskNotFound) {
		return ErrTaskNotFound
	}
	return err
}

func (s *TaskService) getOwned(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	task, err := s.store.GetByID(ctx, userID, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func (s *TaskService) save(ctx context.Context, task *model.Task) (model.TaskResponse, error) {
	if err := s.store.Update(ctx, task); err != nil {
		return model.TaskResponse{}, err
	}

	updated, err := s.store.GetByID(ctx, task.UserID, task.ID)
	if err != nil {
		return model.TaskResponse{}, err
	}
	return model.NewTaskResponse(updated), nil
}

// parseListQuery validates raw query-string values into a typed filter.
func parseListQuery(query model.TaskListQuery) (model.TaskFilter, error) {
	var filter model.TaskFilter

	switch strings.ToLower(query.Status) {
	case "":
		// no status filter
	case "completed", "true", "1":
		completed := true
		filter.Completed = &completed
	case "pending", "false", "0":
		completed := false
		filter.Completed = &completed
	default:
		return model.TaskFilter{}, ErrInvalidStatus
	}

	if query.Priority != "" && !strings.EqualFold(query.Priority, "all") {
		p, err := parsePriority(query.Priority)
		if err != nil {
			return model.TaskFilter{}, err
		}
		filter.Priority = &p
	}

	switch query.SortBy {
	case "", string(model.SortByCreatedAt):
		filter.SortBy = model.SortByCreatedAt
	case string(model.SortByPriority):
		filter.SortBy = model.SortByPriority
	case string(model.SortByStatus):
		filter.SortBy = model.SortByStatus
	default:
		return model.TaskFilter{}, ErrInvalidSortKey
	}

	return filter, nil
}

// parsePriority accepts the priority levels case-insensitively.
func parsePriority(s string) (model.Priority, error) {
	switch strings.ToLower(s) {
	case "low":
		return model.PriorityLow, nil
	case "medium":
		return model.PriorityMedium, nil
	case "high":
		return model.PriorityHigh, nil
	}
	return "", ErrInvalidPriority
}
