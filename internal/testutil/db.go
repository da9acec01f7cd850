// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"taskmanager/internal/repository"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// OpenSQLite returns a private in-memory database with the schema applied.
// It is closed when the test ends.
func OpenSQLite(t testing.TB) *sqlx.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", uuid.NewString())
	db, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	// one connection keeps the in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)

	require.NoError(t, repository.CreateTableIfNotExists(context.Background(), db))
	t.Cleanup(func() { db.Close() })
	return db
}
