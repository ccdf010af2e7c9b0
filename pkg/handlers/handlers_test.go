package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/sqlgate/pkg/errors"
	"github.com/TFMV/sqlgate/pkg/models"
	"github.com/TFMV/sqlgate/pkg/repositories"
	"github.com/TFMV/sqlgate/pkg/services"
)

type mockQueryRepository struct {
	executeQueryFunc  func(ctx context.Context, database, query string) (*repositories.QueryResult, error)
	executeUpdateFunc func(ctx context.Context, database, query string) (int64, error)
	queries           []string
	updates           []string
}

func (m *mockQueryRepository) ExecuteQuery(ctx context.Context, database, query string) (*repositories.QueryResult, error) {
	m.queries = append(m.queries, query)
	if m.executeQueryFunc != nil {
		return m.executeQueryFunc(ctx, database, query)
	}
	return &repositories.QueryResult{}, nil
}

func (m *mockQueryRepository) ExecuteUpdate(ctx context.Context, database, query string) (int64, error) {
	m.updates = append(m.updates, query)
	if m.executeUpdateFunc != nil {
		return m.executeUpdateFunc(ctx, database, query)
	}
	return 0, nil
}

func (m *mockQueryRepository) Databases() []string { return []string{"main"} }

func TestNewAll_BuildsRegistry(t *testing.T) {
	all := NewAll(&mockQueryRepository{}, nil)
	require.Len(t, all, len(models.AllQueryKinds))

	for kind, h := range all {
		assert.Equal(t, kind.HandlerName(), h.Name())
	}

	_, err := services.NewRegistry(all)
	require.NoError(t, err)
}

func TestValidatePermissions(t *testing.T) {
	all := NewAll(&mockQueryRepository{}, nil)

	tests := []struct {
		name     string
		kind     models.QueryKind
		query    string
		perms    models.PermissionSet
		required string
	}{
		{"read needs select", models.ReadSimple, "SELECT * FROM users", models.NewPermissionSet(), models.PermissionSelect},
		{"read allowed", models.ReadSimple, "SELECT * FROM users", models.DefaultPermissions(), ""},
		{"select needs select", models.SelectAdvanced, "SELECT a FROM t ORDER BY a", models.NewPermissionSet(models.PermissionInsert), models.PermissionSelect},
		{"insert needs insert", models.Create, "INSERT INTO users VALUES (1)", models.DefaultPermissions(), models.PermissionInsert},
		{"insert allowed", models.Create, "insert into users values (1)", models.NewPermissionSet(models.PermissionInsert), ""},
		{"create needs create_table", models.Create, "CREATE TABLE t (id INT)", models.NewPermissionSet(models.PermissionInsert), models.PermissionCreateTable},
		{"create allowed", models.Create, "  create table t (id INT)", models.NewPermissionSet(models.PermissionCreateTable), ""},
		{"update needs update", models.Update, "UPDATE users SET a = 1", models.DefaultPermissions(), models.PermissionUpdate},
		{"delete needs delete", models.Delete, "DELETE FROM users WHERE id = 5", models.DefaultPermissions(), models.PermissionDelete},
		{"drop needs drop_table", models.Delete, "DROP TABLE users", models.NewPermissionSet(models.PermissionDelete), models.PermissionDropTable},
		{"drop allowed", models.Delete, "DROP TABLE users", models.NewPermissionSet(models.PermissionDropTable), ""},
		{"nil set grants nothing", models.ReadSimple, "SELECT 1", nil, models.PermissionSelect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := all[tt.kind].ValidatePermissions(tt.perms, tt.query)
			if tt.required == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsPermissionDenied(err))
			perm, ok := errors.MissingPermission(err)
			require.True(t, ok)
			assert.Equal(t, tt.required, perm)
		})
	}
}

func TestValidatePermissions_StatementKeywords(t *testing.T) {
	all := NewAll(&mockQueryRepository{}, nil)

	tests := []struct {
		name     string
		kind     models.QueryKind
		query    string
		perms    models.PermissionSet
		required string
		denied   bool
	}{
		{"cte read", models.ReadSimple, "WITH c AS (SELECT 1) SELECT * FROM c", models.DefaultPermissions(), "", false},
		{"parenthesized read", models.ReadSimple, "(SELECT 1)", models.DefaultPermissions(), "", false},
		{"explain read", models.ReadSimple, "EXPLAIN SELECT * FROM users", models.DefaultPermissions(), "", false},
		{"show tables", models.ReadSimple, "SHOW TABLES", models.DefaultPermissions(), "", false},
		{"commented read", models.ReadSimple, "/* report */ SELECT 1 -- trailing; note", models.DefaultPermissions(), "", false},
		{"truncate needs delete", models.ReadSimple, "TRUNCATE users;", models.DefaultPermissions(), models.PermissionDelete, true},
		{"explain analyze delete", models.ReadSimple, "EXPLAIN ANALYZE DELETE FROM users", models.DefaultPermissions(), models.PermissionDelete, true},
		{"cte delete", models.ReadSimple, "WITH c AS (SELECT 1) DELETE FROM users", models.DefaultPermissions(), models.PermissionDelete, true},
		{"trailing drop", models.ReadSimple, "SELECT 1; DROP TABLE users", models.DefaultPermissions(), models.PermissionDropTable, true},
		{"semicolon in literal", models.ReadSimple, "SELECT 'a; DROP TABLE users'", models.DefaultPermissions(), "", false},
		{"alter", models.ReadSimple, "ALTER TABLE users DROP COLUMN name;", models.DefaultPermissions(), "", true},
		{"attach", models.ReadSimple, "ATTACH 'other.db'", models.NewPermissionSet(models.KnownPermissions...), "", true},
		{"copy", models.ReadSimple, "COPY users TO 'out.csv'", models.NewPermissionSet(models.KnownPermissions...), "", true},
		{"read handler refuses granted delete", models.ReadSimple, "TRUNCATE users", models.NewPermissionSet(models.PermissionSelect, models.PermissionDelete), "", true},
		{"truncate on delete handler", models.Delete, "TRUNCATE users", models.NewPermissionSet(models.PermissionDelete), "", false},
		{"create without keyword space", models.Create, "CREATE;", models.NewPermissionSet(models.PermissionInsert), models.PermissionCreateTable, true},
		{"drop with parenthesis", models.Delete, "DROP(users)", models.NewPermissionSet(models.PermissionDelete), models.PermissionDropTable, true},
		{"mixed batch", models.Delete, "DELETE FROM users; INSERT INTO users VALUES (1)", models.NewPermissionSet(models.KnownPermissions...), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := all[tt.kind].ValidatePermissions(tt.perms, tt.query)
			if !tt.denied {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsPermissionDenied(err))
			perm, ok := errors.MissingPermission(err)
			assert.Equal(t, tt.required != "", ok)
			assert.Equal(t, tt.required, perm)
		})
	}
}

func TestDispatch_SelectOnlyCannotMutate(t *testing.T) {
	repo := &mockQueryRepository{}
	registry, err := services.NewRegistry(NewAll(repo, nil))
	require.NoError(t, err)
	dispatcher := services.NewDispatcher(registry, nil, nil)
	classifier := services.NewClassifier()
	perms := models.NewPermissionSet(models.PermissionSelect)

	for _, q := range []string{
		"/* hi */ DELETE FROM users;",
		"-- x\nDROP TABLE users;",
		"TRUNCATE users;",
		"ALTER TABLE users DROP COLUMN name;",
		"  delete from users",
	} {
		_, err := dispatcher.Dispatch(context.Background(), classifier.Classify(q), q, perms, models.ExecutionContext{Database: "main"})
		assert.True(t, errors.IsPermissionDenied(err), q)
	}
	assert.Empty(t, repo.queries)
	assert.Empty(t, repo.updates)
}

func TestExecute_RowReturning(t *testing.T) {
	repo := &mockQueryRepository{
		executeQueryFunc: func(_ context.Context, database, query string) (*repositories.QueryResult, error) {
			assert.Equal(t, "main", database)
			return &repositories.QueryResult{
				Columns:   []string{"id", "name"},
				Rows:      [][]interface{}{{int32(1), "ada"}},
				Truncated: true,
			}, nil
		},
	}
	all := NewAll(repo, nil)

	for _, kind := range []models.QueryKind{models.ReadSimple, models.SelectAdvanced} {
		result, err := all[kind].Execute(context.Background(), "SELECT id, name FROM users", models.ExecutionContext{Database: "main"})
		require.NoError(t, err)
		assert.Equal(t, kind.HandlerName(), result.Handler)
		assert.Equal(t, "main", result.Database)
		assert.Equal(t, []string{"id", "name"}, result.Columns)
		assert.Len(t, result.Rows, 1)
		assert.True(t, result.Truncated)
	}
	assert.Len(t, repo.queries, 2)
	assert.Empty(t, repo.updates)
}

func TestExecute_Mutating(t *testing.T) {
	repo := &mockQueryRepository{
		executeUpdateFunc: func(context.Context, string, string) (int64, error) { return 3, nil },
	}
	all := NewAll(repo, nil)

	for _, kind := range []models.QueryKind{models.Create, models.Update, models.Delete} {
		result, err := all[kind].Execute(context.Background(), "DELETE FROM users", models.ExecutionContext{Database: "main"})
		require.NoError(t, err)
		assert.Equal(t, kind.HandlerName(), result.Handler)
		assert.Equal(t, int64(3), result.RowsAffected)
	}
	assert.Len(t, repo.updates, 3)
	assert.Empty(t, repo.queries)
}

func TestExecute_RepositoryError(t *testing.T) {
	repo := &mockQueryRepository{
		executeQueryFunc: func(context.Context, string, string) (*repositories.QueryResult, error) {
			return nil, errors.New(errors.CodeQueryFailed, "boom")
		},
		executeUpdateFunc: func(context.Context, string, string) (int64, error) {
			return 0, errors.New(errors.CodeQueryFailed, "boom")
		},
	}
	all := NewAll(repo, nil)

	_, err := all[models.ReadSimple].Execute(context.Background(), "SELECT 1", models.ExecutionContext{})
	assert.Equal(t, errors.CodeQueryFailed, errors.GetCode(err))

	_, err = all[models.Update].Execute(context.Background(), "UPDATE t SET a = 1", models.ExecutionContext{})
	assert.Equal(t, errors.CodeQueryFailed, errors.GetCode(err))
}

func TestExamples(t *testing.T) {
	all := NewAll(&mockQueryRepository{}, nil)

	t.Run("filtered by permissions", func(t *testing.T) {
		perms := models.DefaultPermissions()
		assert.NotEmpty(t, all[models.ReadSimple].Examples(perms, ""))
		assert.NotEmpty(t, all[models.SelectAdvanced].Examples(perms, ""))
		assert.Empty(t, all[models.Create].Examples(perms, ""))
		assert.Empty(t, all[models.Update].Examples(perms, ""))
		assert.Empty(t, all[models.Delete].Examples(perms, ""))
	})

	t.Run("partial grants", func(t *testing.T) {
		perms := models.NewPermissionSet(models.PermissionInsert, models.PermissionDropTable)
		assert.Equal(t, []string{"INSERT INTO users (name, status) VALUES ('example', 'active');"},
			all[models.Create].Examples(perms, ""))
		assert.Equal(t, []string{"DROP TABLE users_archive;"},
			all[models.Delete].Examples(perms, ""))
		assert.Empty(t, all[models.ReadSimple].Examples(perms, ""))
	})

	t.Run("table substitution", func(t *testing.T) {
		perms := models.NewPermissionSet(models.PermissionUpdate)
		assert.Equal(t, []string{"UPDATE projects SET status = 'inactive' WHERE id = 1;"},
			all[models.Update].Examples(perms, "projects"))
	})

	t.Run("examples classify to their own kind", func(t *testing.T) {
		c := services.NewClassifier()
		perms := models.NewPermissionSet(models.KnownPermissions...)
		for kind, h := range all {
			for _, ex := range h.Examples(perms, "") {
				assert.Equal(t, kind, c.Classify(ex), ex)
			}
		}
	})
}
