package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"cftracker/internal/database"
	"cftracker/internal/domain"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// a single conn keeps the in-memory database alive across the test
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedStudent(t *testing.T, db *sql.DB, id, handle string) *domain.Student {
	t.Helper()

	repo := NewStudentRepository(db, zerolog.Nop())
	st := &domain.Student{
		ID:     id,
		Name:   "Student " + id,
		Email:  id + "@example.com",
		Handle: handle,
		Rating: 1400,
	}
	require.NoError(t, repo.Create(context.Background(), st))
	return st
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}
