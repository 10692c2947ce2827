package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a file-backed test database with the full schema applied
func setupTestDB(t *testing.T) *Repositories {
	t.Helper()

	dbFile := filepath.Join(t.TempDir(), "test.db")
	repos, err := NewRepositories(context.Background(), Config{DSN: "file:" + dbFile + "?mode=rwc"})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, repos.Close())
	})
	return repos
}

func TestNewRepositories(t *testing.T) {
	repos := setupTestDB(t)

	assert.NotNil(t, repos.Item)
	assert.NotNil(t, repos.Feedback)
	assert.NotNil(t, repos.Quality)
	assert.NotNil(t, repos.Preference)
	assert.NoError(t, repos.Ping(context.Background()))
}

func TestNewRepositories_SchemaIdempotent(t *testing.T) {
	repos := setupTestDB(t)

	// applying the schema twice must not fail, tables use IF NOT EXISTS
	err := initSchema(context.Background(), repos.DB)
	assert.NoError(t, err)
}
