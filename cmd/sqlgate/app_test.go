package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/sqlgate/cmd/sqlgate/config"
	"github.com/TFMV/sqlgate/pkg/auth"
	"github.com/TFMV/sqlgate/pkg/errors"
	"github.com/TFMV/sqlgate/pkg/models"
)

func newTestApp(t *testing.T, mutate func(cfg *config.Config)) *app {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.History.Driver = config.HistoryDriverMemory
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	a, err := newApp(context.Background(), cfg, zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNewApp_ExecutesAgainstDefaultDatabase(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()

	outcome, err := a.service.Execute(ctx, nil, &models.QueryRequest{
		Query:            "SELECT 42 AS answer",
		Permissions:      models.NewPermissionSet(models.PermissionSelect),
		ExecutionContext: models.ExecutionContext{Database: a.cfg.DefaultDatabase},
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, "read", outcome.Result.Handler)
	assert.Equal(t, []string{"answer"}, outcome.Result.Columns)
	require.Len(t, outcome.Result.Rows, 1)
	assert.EqualValues(t, 42, outcome.Result.Rows[0][0])

	history := a.service.History()
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.Equal(t, "main", history[0].Database)
}

func TestNewApp_UnknownDatabaseFails(t *testing.T) {
	a := newTestApp(t, nil)

	outcome, err := a.service.Execute(context.Background(), nil, &models.QueryRequest{
		Query:            "SELECT 1",
		ExecutionContext: models.ExecutionContext{Database: "missing"},
	})
	require.Error(t, err)
	require.NotNil(t, outcome)
	assert.Nil(t, outcome.Result)

	history := a.service.History()
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
}

func TestNewApp_HistoryPersistsAcrossRuns(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		file   string
	}{
		{"sqlite", config.HistoryDriverSQLite, "history.db"},
		{"duckdb", config.HistoryDriverDuckDB, "history.duckdb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			mutate := func(cfg *config.Config) {
				cfg.History.Driver = tt.driver
				cfg.History.Path = path
			}
			ctx := context.Background()

			first := newTestApp(t, mutate)
			_, err := first.service.Execute(ctx, nil, &models.QueryRequest{
				Query:            "SELECT DISTINCT 1 ORDER BY 1",
				ExecutionContext: models.ExecutionContext{Database: "main"},
			})
			require.NoError(t, err)
			first.Close()

			second := newTestApp(t, mutate)
			history := second.service.History()
			require.Len(t, history, 1)
			assert.Equal(t, models.SelectAdvanced, history[0].Type)
			assert.True(t, history[0].Features.Distinct)
			assert.True(t, history[0].Features.OrderBy)
		})
	}
}

func TestNewApp_DefaultDuckDBHistory(t *testing.T) {
	a := newTestApp(t, func(cfg *config.Config) {
		cfg.History.Driver = config.HistoryDriverDuckDB
	})

	_, err := a.service.Execute(context.Background(), nil, &models.QueryRequest{
		Query:            "SELECT 1",
		ExecutionContext: models.ExecutionContext{Database: "main"},
	})
	require.NoError(t, err)
	assert.Len(t, a.service.History(), 1)
}

func TestApp_AuthorizeWithoutAuth(t *testing.T) {
	a := newTestApp(t, func(cfg *config.Config) {
		cfg.Permissions = []string{models.PermissionSelect, models.PermissionInsert}
	})
	ctx := context.Background()

	_, perms, err := a.authorize(ctx, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"insert", "select"}, perms.Granted())

	_, perms, err = a.authorize(ctx, "", []string{models.PermissionDelete})
	require.NoError(t, err)
	assert.Equal(t, []string{"delete"}, perms.Granted())

	_, _, err = a.authorize(ctx, "", []string{"admin"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err))
}

func TestApp_AuthorizeWithToken(t *testing.T) {
	a := newTestApp(t, func(cfg *config.Config) {
		cfg.Auth.Enabled = true
		cfg.Auth.JWT.Secret = "test-secret"
	})

	token, err := auth.IssueToken(authConfig(a.cfg), "ada", []string{models.PermissionSelect, models.PermissionDelete}, time.Minute)
	require.NoError(t, err)

	ctx, perms, err := a.authorize(context.Background(), token, []string{models.PermissionDropTable})
	require.NoError(t, err)
	assert.Equal(t, []string{"delete", "select"}, perms.Granted())

	principal, ok := auth.PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "ada", principal.Subject)

	_, _, err = a.authorize(context.Background(), "not-a-token", nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnauthenticated, errors.GetCode(err))
}
