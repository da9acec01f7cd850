package config

import (
	"context"

	"taskmanager/internal/cache"
	"taskmanager/internal/models"
	"taskmanager/internal/repository"
	"taskmanager/internal/websocket"
	"taskmanager/pkg/auth"
	"taskmanager/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// UserStore is the user persistence used by handlers and middleware.
type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

// TaskStore is the task persistence used by handlers.
type TaskStore interface {
	Create(ctx context.Context, in repository.NewTask) (models.Task, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Task, error)
	Update(ctx context.Context, taskID, userID uuid.UUID, patch models.TaskPatch) (models.Task, error)
	Delete(ctx context.Context, taskID, userID uuid.UUID) error
}

// Pinger reports datastore health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Dependencies is everything the HTTP layer needs. It is built once in main
// and passed down explicitly.
type Dependencies struct {
	Users     UserStore
	Tasks     TaskStore
	DB        Pinger
	Cache     cache.TaskCache
	Hub       *websocket.Hub
	Passwords *auth.PasswordHasher
	Tokens    *auth.TokenManager
	Validate  *validator.Validate
	Log       *logger.Loggers
}
