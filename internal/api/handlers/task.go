package handlers

import (
	"errors"
	"time"

	"taskmanager/internal/middleware"
	"taskmanager/internal/models"
	"taskmanager/internal/repository"
	"taskmanager/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type createTaskRequest struct {
	Title       string           `json:"title" validate:"required,max=255"`
	Description string           `json:"description"`
	HexColor    string           `json:"hexColor" validate:"max=32"`
	Tag         string           `json:"tag" validate:"max=64"`
	DueAt       *time.Time       `json:"dueAt"`
	Completed   *bool            `json:"completed"`
	Priority    *models.Priority `json:"priority"`
}

// updateTaskRequest has pointer fields: absent means unchanged.
type updateTaskRequest struct {
	Title       *string          `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string          `json:"description"`
	HexColor    *string          `json:"hexColor" validate:"omitempty,max=32"`
	Tag         *string          `json:"tag" validate:"omitempty,max=64"`
	DueAt       *time.Time       `json:"dueAt"`
	Completed   *bool            `json:"completed"`
	Priority    *models.Priority `json:"priority"`
}

func (r updateTaskRequest) patch() models.TaskPatch {
	return models.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		HexColor:    r.HexColor,
		Tag:         r.Tag,
		Completed:   r.Completed,
		DueAt:       r.DueAt,
		Priority:    r.Priority,
	}
}

func taskIDParam(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("taskId"))
	return id, err == nil
}

// afterWrite drops the owner's cached list and notifies their sockets.
func (h *Handler) afterWrite(c *fiber.Ctx, userID uuid.UUID, ev websocket.Event) {
	if err := h.deps.Cache.Invalidate(c.UserContext(), userID); err != nil {
		h.deps.Log.Error.Error("Error invalidating task cache", zap.Error(err))
	}
	if h.deps.Hub != nil {
		h.deps.Hub.Publish(userID, ev)
	}
}

// CreateTask stores a task owned by the caller.
func (h *Handler) CreateTask(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)

	var req createTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.deps.Validate.Struct(req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, validationMessage(err))
	}

	in := repository.NewTask{
		Title:       req.Title,
		Description: req.Description,
		HexColor:    req.HexColor,
		Tag:         req.Tag,
		UserID:      identity.UserID,
	}
	if req.DueAt != nil {
		in.DueAt = *req.DueAt
	}
	if req.Completed != nil {
		in.Completed = *req.Completed
	}
	if req.Priority != nil {
		in.Priority = *req.Priority
	}

	task, err := h.deps.Tasks.Create(c.UserContext(), in)
	if err != nil {
		h.deps.Log.Error.Error("Error creating task", zap.Error(err))
		return internalError(c)
	}

	h.afterWrite(c, identity.UserID, websocket.Event{Type: websocket.EventTaskCreated, TaskID: task.ID, Task: &task})
	h.deps.Log.Audit.Info("Task created", zap.String("task_id", task.ID.String()))
	return c.Status(fiber.StatusCreated).JSON(task)
}

// ListTasks returns every task owned by the caller.
func (h *Handler) ListTasks(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)
	ctx := c.UserContext()

	cached, ok, err := h.deps.Cache.Get(ctx, identity.UserID)
	if err != nil {
		h.deps.Log.Error.Error("Error reading task cache", zap.Error(err))
	}
	if ok {
		return c.JSON(cached)
	}

	// read before the query so a concurrent write leaves the cache empty
	gen, genErr := h.deps.Cache.Generation(ctx, identity.UserID)
	if genErr != nil {
		h.deps.Log.Error.Error("Error reading task cache generation", zap.Error(genErr))
	}

	tasks, err := h.deps.Tasks.ListByUser(ctx, identity.UserID)
	if err != nil {
		h.deps.Log.Error.Error("Error fetching tasks", zap.Error(err))
		return internalError(c)
	}

	if genErr == nil {
		if err := h.deps.Cache.Set(ctx, identity.UserID, gen, tasks); err != nil {
			h.deps.Log.Error.Error("Error caching tasks", zap.Error(err))
		}
	}
	return c.JSON(tasks)
}

// UpdateTask applies a partial update to one of the caller's tasks.
func (h *Handler) UpdateTask(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)

	taskID, ok := taskIDParam(c)
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid task id")
	}

	var req updateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.deps.Validate.Struct(req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, validationMessage(err))
	}
	patch := req.patch()
	if patch.Empty() {
		return errorResponse(c, fiber.StatusBadRequest, "No fields to update")
	}

	task, err := h.deps.Tasks.Update(c.UserContext(), taskID, identity.UserID, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.deps.Log.Security.Warn("Update of missing or foreign task",
				zap.String("task_id", taskID.String()), zap.String("user_id", identity.UserID.String()))
			return errorResponse(c, fiber.StatusNotFound, "Task not found")
		}
		h.deps.Log.Error.Error("Error updating task", zap.Error(err))
		return internalError(c)
	}

	h.afterWrite(c, identity.UserID, websocket.Event{Type: websocket.EventTaskUpdated, TaskID: task.ID, Task: &task})
	h.deps.Log.Audit.Info("Task updated", zap.String("task_id", task.ID.String()))
	return c.JSON(task)
}

// DeleteTask removes one of the caller's tasks.
func (h *Handler) DeleteTask(c *fiber.Ctx) error {
	identity, _ := middleware.IdentityFrom(c)

	taskID, ok := taskIDParam(c)
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid task id")
	}

	if err := h.deps.Tasks.Delete(c.UserContext(), taskID, identity.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.deps.Log.Security.Warn("Delete of missing or foreign task",
				zap.String("task_id", taskID.String()), zap.String("user_id", identity.UserID.String()))
			return errorResponse(c, fiber.StatusNotFound, "Task not found")
		}
		h.deps.Log.Error.Error("Error deleting task", zap.Error(err))
		return internalError(c)
	}

	h.afterWrite(c, identity.UserID, websocket.Event{Type: websocket.EventTaskDeleted, TaskID: taskID})
	h.deps.Log.Audit.Info("Task deleted", zap.String("task_id", taskID.String()))
	return c.JSON(true)
}
