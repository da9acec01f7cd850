package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the stored user row. It is never serialized directly; handlers
// respond with UserView.
type User struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Password  string    `db:"password"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// UserView is the public representation of a user.
type UserView struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u User) View() UserView {
	return UserView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type Task struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	HexColor    string    `json:"hexColor" db:"hex_color"`
	Tag         string    `json:"tag" db:"tag"`
	Completed   bool      `json:"completed" db:"completed"`
	DueAt       time.Time `json:"dueAt" db:"due_at"`
	UserID      uuid.UUID `json:"uid" db:"uid"`
	Priority    Priority  `json:"priority" db:"priority"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TaskPatch carries the fields of a partial task update. Nil fields are left
// untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	HexColor    *string
	Tag         *string
	Completed   *bool
	DueAt       *time.Time
	Priority    *Priority
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.HexColor == nil &&
		p.Tag == nil && p.Completed == nil && p.DueAt == nil && p.Priority == nil
}
