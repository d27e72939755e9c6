package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "research.db")

	conn, err := Open(path)
	require.NoError(t, err)
	defer conn.Close()

	var name string
	err = conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='research_sessions'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "research_sessions", name)

	// migrations are idempotent
	require.NoError(t, runMigrations(conn))
}

func TestNewTestDB(t *testing.T) {
	conn, err := NewTestDB()
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(`INSERT INTO research_sessions (id, query, source) VALUES ('a', 'q', 'http')`)
	require.NoError(t, err)

	var count int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM research_sessions`).Scan(&count))
	assert.Equal(t, 1, count)
}
