package duckdb

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/sqlgate/pkg/errors"
	"github.com/TFMV/sqlgate/pkg/infrastructure/pool"
	"github.com/TFMV/sqlgate/pkg/models"
)

func newTestRegistry(t *testing.T) *pool.Registry {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	reg, err := pool.NewRegistry(map[string]string{"main": ":memory:"}, pool.Config{}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestQueryRepository(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	repo := NewQueryRepository(newTestRegistry(t), 2, logger)

	assert.Equal(t, []string{"main"}, repo.Databases())

	_, err := repo.ExecuteUpdate(ctx, "main", "CREATE TABLE users (id INTEGER, name VARCHAR)")
	require.NoError(t, err)

	affected, err := repo.ExecuteUpdate(ctx, "main", "INSERT INTO users VALUES (1, 'ada'), (2, 'grace'), (3, 'linus')")
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	t.Run("rows are capped", func(t *testing.T) {
		result, err := repo.ExecuteQuery(ctx, "main", "SELECT id, name FROM users ORDER BY id")
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name"}, result.Columns)
		require.Len(t, result.Rows, 2)
		assert.True(t, result.Truncated)
		assert.Equal(t, "ada", result.Rows[0][1])
	})

	t.Run("under the cap", func(t *testing.T) {
		result, err := repo.ExecuteQuery(ctx, "main", "SELECT name FROM users WHERE id = 2")
		require.NoError(t, err)
		require.Len(t, result.Rows, 1)
		assert.False(t, result.Truncated)
		assert.Equal(t, "grace", result.Rows[0][0])
	})

	t.Run("update affects rows", func(t *testing.T) {
		affected, err := repo.ExecuteUpdate(ctx, "main", "DELETE FROM users WHERE id = 3")
		require.NoError(t, err)
		assert.Equal(t, int64(1), affected)
	})

	t.Run("invalid sql", func(t *testing.T) {
		_, err := repo.ExecuteQuery(ctx, "main", "SELECT * FROM missing_table")
		require.Error(t, err)
		assert.Equal(t, errors.CodeQueryFailed, errors.GetCode(err))
	})

	t.Run("unknown database", func(t *testing.T) {
		_, err := repo.ExecuteQuery(ctx, "other", "SELECT 1")
		require.Error(t, err)
		assert.True(t, errors.IsInvalidRequest(err))

		_, err = repo.ExecuteUpdate(ctx, "other", "DELETE FROM users")
		assert.True(t, errors.IsInvalidRequest(err))
	})
}

func TestHistoryRepository(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(zerolog.NewTestWriter(t))

	p, err := newTestRegistry(t).Get("main")
	require.NoError(t, err)

	repo, err := NewHistoryRepository(ctx, p, logger)
	require.NoError(t, err)

	entries, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	first := []models.HistoryEntry{{
		ID:        "a",
		Query:     "SELECT * FROM users",
		Database:  "main",
		Timestamp: ts,
		Success:   true,
		Type:      models.ReadSimple,
	}}
	require.NoError(t, repo.Save(ctx, first))

	second := append([]models.HistoryEntry{{
		ID:        "b",
		Query:     "DELETE FROM users WHERE id = 5",
		Database:  "main",
		Timestamp: ts.Add(time.Minute),
		Success:   false,
		Type:      models.Delete,
	}}, first...)
	require.NoError(t, repo.Save(ctx, second))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, loaded)

	// A second repository over the same pool sees the overwritten snapshot.
	again, err := NewHistoryRepository(ctx, p, logger)
	require.NoError(t, err)
	loaded, err = again.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "b", loaded[0].ID)

	require.NoError(t, repo.Save(ctx, nil))
	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestTruncateQuery(t *testing.T) {
	assert.Equal(t, "SELECT 1", truncateQuery("SELECT 1"))

	long := "SELECT " + strings.Repeat("x, ", 50) + "y FROM t"
	out := truncateQuery(long)
	assert.Len(t, out, 103)
	assert.True(t, strings.HasSuffix(out, "..."))
}
