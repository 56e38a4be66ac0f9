package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type doc struct {
	ID    int64  `db:"id"`
	Title string `db:"title"`
	Body  string `db:"body"`
	Year  int    `db:"year"`
}

// seedDocs creates and fills the docs table.
func seedDocs(t *testing.T, s *Store, docs ...doc) {
	t.Helper()
	ctx := context.Background()
	_, err := s.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS docs (
			id    INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			body  TEXT NOT NULL,
			year  INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)
	for _, d := range docs {
		_, err := s.ExecContext(ctx, "INSERT INTO docs (id, title, body, year) VALUES (?, ?, ?, ?)", d.ID, d.Title, d.Body, d.Year)
		require.NoError(t, err)
	}
}

func library() []doc {
	return []doc{
		{1, "Go concurrency", "channels and goroutines", 2012},
		{2, "Hello world", "a first program", 2001},
		{3, "World tour", "hello again", 2004},
		{4, "Hello", "an old greeting", 1999},
	}
}
