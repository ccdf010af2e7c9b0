package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/sqlgate/cmd/sqlgate/config"
	"github.com/TFMV/sqlgate/pkg/models"
)

func newTestShell(t *testing.T, perms models.PermissionSet) (*shell, *bytes.Buffer) {
	t.Helper()
	a := newTestApp(t, func(cfg *config.Config) {
		cfg.Databases = map[string]string{"main": ":memory:", "scratch": ":memory:"}
	})

	var out bytes.Buffer
	r, err := newRenderer(&out, config.OutputText)
	require.NoError(t, err)

	return newShell(a.service, r, &out, shellOptions{
		Permissions: perms,
		Database:    a.cfg.DefaultDatabase,
		Databases:   a.cfg.DatabaseNames(),
	}), &out
}

func TestShell_ExecutesPermittedStatements(t *testing.T) {
	sh, out := newTestShell(t, models.NewPermissionSet(
		models.PermissionSelect,
		models.PermissionCreateTable,
		models.PermissionInsert,
	))
	ctx := context.Background()

	assert.False(t, sh.handleLine(ctx, "CREATE TABLE users (id INTEGER, name VARCHAR)"))
	assert.NotContains(t, out.String(), "error:")

	out.Reset()
	assert.False(t, sh.handleLine(ctx, "INSERT INTO users VALUES (1, 'ada')"))
	assert.Contains(t, out.String(), "1 row affected")

	out.Reset()
	assert.False(t, sh.handleLine(ctx, "SELECT id, name FROM users"))
	assert.Contains(t, out.String(), "ReadSimple (read handler)")
	assert.Contains(t, out.String(), "ada")
	assert.Contains(t, out.String(), "(1 row in")

	out.Reset()
	sh.handleLine(ctx, ".history")
	assert.Contains(t, out.String(), "TIME")
	assert.Contains(t, out.String(), "INSERT INTO users VALUES (1, 'ada')")
}

func TestShell_DeniedStatementIsNotRecorded(t *testing.T) {
	sh, out := newTestShell(t, models.NewPermissionSet(models.PermissionSelect))
	ctx := context.Background()

	sh.handleLine(ctx, "DELETE FROM users WHERE id = 5")
	assert.Contains(t, out.String(), "Delete (delete handler)")
	assert.Contains(t, out.String(), `error: PERMISSION_DENIED: permission "delete" is required`)

	out.Reset()
	sh.handleLine(ctx, ".history")
	assert.Equal(t, "no history\n", out.String())
}

func TestShell_SelectOnlyCannotMutateThroughFallback(t *testing.T) {
	sh, out := newTestShell(t, models.NewPermissionSet(models.PermissionSelect))
	ctx := context.Background()

	for _, line := range []string{
		"/* hi */ DROP TABLE users",
		"TRUNCATE users",
		"SELECT 1; CREATE TABLE sneaky (id INTEGER)",
	} {
		out.Reset()
		sh.handleLine(ctx, line)
		assert.Contains(t, out.String(), "error: PERMISSION_DENIED", line)
	}

	out.Reset()
	sh.handleLine(ctx, ".history")
	assert.Equal(t, "no history\n", out.String())
}

func TestShell_DotCommands(t *testing.T) {
	sh, out := newTestShell(t, models.NewPermissionSet(models.PermissionSelect, models.PermissionUpdate))
	ctx := context.Background()

	tests := []struct {
		name     string
		line     string
		contains string
	}{
		{"help", ".help", ".analyze <query>"},
		{"analyze", ".analyze SELECT name FROM users ORDER BY name", "SelectAdvanced (select handler)"},
		{"analyze usage", ".analyze", "usage: .analyze <query>"},
		{"examples default table", ".examples", "UPDATE users SET status = 'inactive' WHERE id = 1;"},
		{"examples custom table", ".examples orders", "SELECT * FROM orders LIMIT 5;"},
		{"grants", ".grants", "granted: select, update"},
		{"current database", ".use", "current database: main"},
		{"switch database", ".use scratch", "using scratch"},
		{"unknown database", ".use missing", `unknown database "missing"`},
		{"unknown command", ".tables", "unknown command .tables"},
		{"clear", ".clear", "history cleared"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			assert.False(t, sh.handleLine(ctx, tt.line))
			assert.Contains(t, out.String(), tt.contains)
		})
	}

	assert.Equal(t, "scratch", sh.opts.Database)
}

func TestShell_ExamplesExcludeUngrantedHandlers(t *testing.T) {
	sh, out := newTestShell(t, models.NewPermissionSet(models.PermissionSelect))

	sh.handleLine(context.Background(), ".examples")
	assert.Contains(t, out.String(), "SELECT * FROM users LIMIT 5;")
	assert.NotContains(t, out.String(), "DELETE")
	assert.NotContains(t, out.String(), "UPDATE")
}

func TestShell_Exit(t *testing.T) {
	sh, _ := newTestShell(t, nil)
	ctx := context.Background()

	assert.False(t, sh.handleLine(ctx, "   "))
	assert.True(t, sh.handleLine(ctx, ".exit"))
	assert.True(t, sh.handleLine(ctx, " .quit "))
}
