package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is rendered per driver: Postgres keeps ids as UUID, SQLite as TEXT.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id %[1]s PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    password TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
    id %[1]s PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    hex_color TEXT NOT NULL DEFAULT '',
    tag TEXT NOT NULL DEFAULT '',
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    due_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    uid %[1]s NOT NULL REFERENCES users (id),
    priority TEXT NOT NULL DEFAULT '1',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_uid ON tasks (uid);
`

func idType(db *sqlx.DB) string {
	if db.DriverName() == "sqlite3" {
		return "TEXT"
	}
	return "UUID"
}

// CreateTableIfNotExists creates the users and tasks tables.
func CreateTableIfNotExists(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf(schema, idType(db))); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// DeleteAllTable drops every table owned by the service.
func DeleteAllTable(ctx context.Context, db *sqlx.DB) error {
	query := `
    DROP TABLE IF EXISTS tasks;
    DROP TABLE IF EXISTS users;
    `
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return nil
}
