package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskmanager/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const taskColumns = "id, title, description, hex_color, tag, completed, due_at, uid, priority, created_at, updated_at"

// NewTask is the input for TaskRepository.Create. A zero DueAt means "now"
// and an empty Priority means PriorityLow.
type NewTask struct {
	Title       string
	Description string
	HexColor    string
	Tag         string
	Completed   bool
	DueAt       time.Time
	Priority    models.Priority
	UserID      uuid.UUID
}

type TaskRepository struct {
	base
}

func NewTaskRepository(db *sqlx.DB, timeout time.Duration) *TaskRepository {
	return &TaskRepository{base{db: db, timeout: timeout}}
}

func (r *TaskRepository) Create(ctx context.Context, in NewTask) (models.Task, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	ts := now()
	task := models.Task{
		ID:          uuid.New(),
		Title:       in.Title,
		Description: in.Description,
		HexColor:    in.HexColor,
		Tag:         in.Tag,
		Completed:   in.Completed,
		DueAt:       in.DueAt.UTC().Truncate(time.Microsecond),
		UserID:      in.UserID,
		Priority:    in.Priority,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if in.DueAt.IsZero() {
		task.DueAt = ts
	}
	if task.Priority == "" {
		task.Priority = models.PriorityLow
	}

	query := r.db.Rebind(`INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		task.ID, task.Title, task.Description, task.HexColor, task.Tag, task.Completed,
		task.DueAt, task.UserID, task.Priority, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// ListByUser returns every task owned by userID, oldest first.
func (r *TaskRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Task, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tasks := []models.Task{}
	query := r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE uid = ? ORDER BY created_at, id`)
	if err := r.db.SelectContext(ctx, &tasks, query, userID); err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	return tasks, nil
}

// Update applies patch to the task identified by taskID if it is owned by
// userID. Missing and foreign tasks both yield ErrNotFound.
func (r *TaskRepository) Update(ctx context.Context, taskID, userID uuid.UUID, patch models.TaskPatch) (models.Task, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var (
		sets []string
		args []interface{}
	)
	add := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.HexColor != nil {
		add("hex_color", *patch.HexColor)
	}
	if patch.Tag != nil {
		add("tag", *patch.Tag)
	}
	if patch.Completed != nil {
		add("completed", *patch.Completed)
	}
	if patch.DueAt != nil {
		add("due_at", patch.DueAt.UTC().Truncate(time.Microsecond))
	}
	if patch.Priority != nil {
		add("priority", *patch.Priority)
	}
	add("updated_at", now())
	args = append(args, taskID, userID)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Task{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	query := r.db.Rebind(`UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND uid = ?`)
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	if n == 0 {
		return models.Task{}, ErrNotFound
	}

	var task models.Task
	query = r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`)
	if err := tx.GetContext(ctx, &task, query, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, fmt.Errorf("reload task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Task{}, fmt.Errorf("commit update: %w", err)
	}
	return task, nil
}

// Delete removes the task identified by taskID if it is owned by userID.
func (r *TaskRepository) Delete(ctx context.Context, taskID, userID uuid.UUID) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`DELETE FROM tasks WHERE id = ? AND uid = ?`)
	res, err := r.db.ExecContext(ctx, query, taskID, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
