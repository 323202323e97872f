package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/taskdeck/taskdeck-go/internal/model"
)

var ErrTaskNotFound = errors.New("task not found")

// TaskRepository handles task persistence operations. Every query is
// scoped by user_id so a task owned by another user behaves exactly
// like a nonexistent one.
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, user_id, title, description, completed, priority, created_at, updated_at`

// Create inserts a new task and sets the generated ID on the task struct.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	query := `INSERT INTO tasks (user_id, title, description, completed, priority) VALUES (?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		task.UserID, task.Title, task.Description, task.Completed, task.Priority,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	task.ID = id
	return nil
}

// GetByID retrieves a task by ID, scoped to the owning user.
func (r *TaskRepository) GetByID(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ? AND user_id = ?`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, taskID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	return task, nil
}

// List retrieves the user's tasks matching the filter, in the order
// selected by the filter's sort key.
func (r *TaskRepository) List(ctx context.Context, userID int64, filter model.TaskFilter) ([]model.Task, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`)
	args := []any{userID}

	if filter.Completed != nil {
		b.WriteString(` AND completed = ?`)
		args = append(args, *filter.Completed)
	}
	if filter.Priority != nil {
		b.WriteString(` AND priority = ?`)
		args = append(args, *filter.Priority)
	}
	b.WriteString(` ORDER BY ` + orderClause(filter.SortBy))

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	return tasks, rows.Err()
}

// Update writes all mutable columns of a task and refreshes its update
// timestamp. The caller is expected to have loaded the task through
// GetByID, which enforces ownership.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	query := `UPDATE tasks
		SET title = ?, description = ?, completed = ?, priority = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`

	_, err := r.db.ExecContext(ctx, query,
		task.Title, task.Description, task.Completed, task.Priority, task.ID, task.UserID,
	)
	return err
}

// Delete permanently removes a task, scoped to the owning user.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID int64) error {
	query := `DELETE FROM tasks WHERE id = ? AND user_id = ?`

	result, err := r.db.ExecContext(ctx, query, taskID, userID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrTaskNotFound
	}

	return nil
}

// orderClause maps a sort key to a stable total order. The trailing
// id tie-break makes the order deterministic for equal keys.
func orderClause(key model.SortKey) string {
	switch key {
	case model.SortByPriority:
		return `FIELD(priority, 'High', 'Medium', 'Low'), created_at DESC, id DESC`
	case model.SortByStatus:
		return `completed ASC, created_at DESC, id DESC`
	default:
		return `created_at DESC, id DESC`
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*model.Task, error) {
	task := &model.Task{}
	var description sql.NullString
	err := row.Scan(
		&task.ID, &task.UserID, &task.Title, &description,
		&task.Completed, &task.Priority, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.Description = description.String
	return task, nil
}
