// Package handlers implements the per-kind query handlers the dispatcher
// routes to. Each handler owns its permission rule, its execution path and
// the example statements it can offer.
package handlers

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/TFMV/sqlgate/pkg/errors"
	"github.com/TFMV/sqlgate/pkg/models"
	"github.com/TFMV/sqlgate/pkg/repositories"
	"github.com/TFMV/sqlgate/pkg/services"
)

// DefaultExampleTable is used by Examples when no table is given.
const DefaultExampleTable = "users"

var (
	_ services.Handler = (*readHandler)(nil)
	_ services.Handler = (*selectHandler)(nil)
	_ services.Handler = (*createHandler)(nil)
	_ services.Handler = (*updateHandler)(nil)
	_ services.Handler = (*deleteHandler)(nil)
)

// NewAll builds one handler per query kind over repo, ready for
// services.NewRegistry.
func NewAll(repo repositories.QueryRepository, logger services.Logger) map[models.QueryKind]services.Handler {
	b := base{repo: repo, logger: logger}
	return map[models.QueryKind]services.Handler{
		models.ReadSimple:     &readHandler{base: b.named(models.ReadSimple)},
		models.SelectAdvanced: &selectHandler{base: b.named(models.SelectAdvanced)},
		models.Create:         &createHandler{base: b.named(models.Create)},
		models.Update:         &updateHandler{base: b.named(models.Update)},
		models.Delete:         &deleteHandler{base: b.named(models.Delete)},
	}
}

type base struct {
	name   string
	repo   repositories.QueryRepository
	logger services.Logger
}

func (b base) named(kind models.QueryKind) base {
	b.name = kind.HandlerName()
	return b
}

// Name returns the handler name.
func (b *base) Name() string {
	return b.name
}

func (b *base) require(perms models.PermissionSet, permission string) error {
	if !perms.Has(permission) {
		return errors.PermissionDenied(permission)
	}
	return nil
}

// statementPermissions maps a statement keyword to the capability it needs.
// Statements missing from the table are never executed.
var statementPermissions = map[string]string{
	"SELECT":    models.PermissionSelect,
	"WITH":      models.PermissionSelect,
	"VALUES":    models.PermissionSelect,
	"TABLE":     models.PermissionSelect,
	"FROM":      models.PermissionSelect,
	"SHOW":      models.PermissionSelect,
	"DESCRIBE":  models.PermissionSelect,
	"SUMMARIZE": models.PermissionSelect,
	"EXPLAIN":   models.PermissionSelect,
	"INSERT":    models.PermissionInsert,
	"CREATE":    models.PermissionCreateTable,
	"UPDATE":    models.PermissionUpdate,
	"DELETE":    models.PermissionDelete,
	"TRUNCATE":  models.PermissionDelete,
	"DROP":      models.PermissionDropTable,
}

// requireStatements checks every statement in query: its capability must be
// granted and must be one this handler serves. Text without statements needs
// the first served capability.
func (b *base) requireStatements(perms models.PermissionSet, query string, serves ...string) error {
	keywords := services.StatementKeywords(query)
	if len(keywords) == 0 {
		return b.require(perms, serves[0])
	}
	for _, keyword := range keywords {
		permission, ok := statementPermissions[keyword]
		if !ok {
			if keyword == "" {
				return errors.New(errors.CodePermissionDenied, "statements must start with a keyword")
			}
			return errors.Newf(errors.CodePermissionDenied, "%s statements are not permitted", keyword)
		}
		if err := b.require(perms, permission); err != nil {
			return err
		}
		if !slices.Contains(serves, permission) {
			return errors.Newf(errors.CodePermissionDenied, "%s statements are not served by the %s handler", keyword, b.name)
		}
	}
	return nil
}

func (b *base) query(ctx context.Context, query string, execCtx models.ExecutionContext) (*models.ExecutionResult, error) {
	res, err := b.repo.ExecuteQuery(ctx, execCtx.Database, query)
	if err != nil {
		return nil, err
	}
	if b.logger != nil {
		b.logger.Debug("Query returned rows", "handler", b.name, "rows", len(res.Rows), "truncated", res.Truncated)
	}
	return &models.ExecutionResult{
		Handler:   b.name,
		Database:  execCtx.Database,
		Columns:   res.Columns,
		Rows:      res.Rows,
		Truncated: res.Truncated,
	}, nil
}

func (b *base) update(ctx context.Context, query string, execCtx models.ExecutionContext) (*models.ExecutionResult, error) {
	affected, err := b.repo.ExecuteUpdate(ctx, execCtx.Database, query)
	if err != nil {
		return nil, err
	}
	if b.logger != nil {
		b.logger.Debug("Statement applied", "handler", b.name, "rows_affected", affected)
	}
	return &models.ExecutionResult{
		Handler:      b.name,
		Database:     execCtx.Database,
		RowsAffected: affected,
	}, nil
}

// readHandler serves plain selects and the other row-returning statements
// that fall back to it.
type readHandler struct{ base }

func (h *readHandler) ValidatePermissions(perms models.PermissionSet, query string) error {
	return h.requireStatements(perms, query, models.PermissionSelect)
}

func (h *readHandler) Execute(ctx context.Context, query string, execCtx models.ExecutionContext) (*models.ExecutionResult, error) {
	return h.query(ctx, query, execCtx)
}

func (h *readHandler) Examples(perms models.PermissionSet, table string) []string {
	if !perms.Has(models.PermissionSelect) {
		return nil
	}
	table = exampleTable(table)
	return []string{
		fmt.Sprintf("SELECT * FROM %s LIMIT 5;", table),
		fmt.Sprintf("SELECT * FROM %s WHERE status = 'active';", table),
	}
}

// selectHandler serves selects that use joins, grouping, ordering or set operations.
type selectHandler struct{ base }

func (h *selectHandler) ValidatePermissions(perms models.PermissionSet, query string) error {
	return h.requireStatements(perms, query, models.PermissionSelect)
}

func (h *selectHandler) Execute(ctx context.Context, query string, execCtx models.ExecutionContext) (*models.ExecutionResult, error) {
	return h.query(ctx, query, execCtx)
}

func (h *selectHandler) Examples(perms models.PermissionSet, table string) []string {
	if !perms.Has(models.PermissionSelect) {
		return nil
	}
	table = exampleTable(table)
	return []string{
		fmt.Sprintf("SELECT * FROM %s ORDER BY name ASC LIMIT 10;", table),
		fmt.Sprintf("SELECT name, status FROM %s ORDER BY status, name;", table),
		fmt.Sprintf("SELECT DISTINCT status FROM %s;", table),
		fmt.Sprintf("SELECT status, COUNT(*) AS total FROM %s GROUP BY status ORDER BY total DESC;", table),
		fmt.Sprintf("SELECT status, COUNT(*) FROM %s GROUP BY status HAVING COUNT(*) > 1;", table),
	}
}

// createHandler serves INSERT and CREATE statements.
type createHandler struct{ base }

func (h *createHandler) ValidatePermissions(perms models.PermissionSet, query string) error {
	return h.requireStatements(perms, query, models.PermissionInsert, models.PermissionCreateTable)
}

func (h *createHandler) Execute(ctx context.Context, query string, execCtx models.ExecutionContext) (*models.ExecutionResult, error) {
	return h.update(ctx, query, execCtx)
}

func (h *createHandler) Examples(perms models.PermissionSet, table string) []string {
	table = exampleTable(table)
	var out []string
	if perms.Has(models.PermissionInsert) {
		out = append(out, fmt.Sprintf("INSERT INTO %s (name, status) VALUES ('example', 'active');", table))
	}
	if perms.Has(models.PermissionCreateTable) {
		out = append(out, fmt.Sprintf("CREATE TABLE %s_archive AS SELECT * FROM %s;", table, table))
	}
	return out
}

// updateHandler serves UPDATE statements.
type updateHandler struct{ base }

func (h *updateHandler) ValidatePermissions(perms models.PermissionSet, query string) error {
	return h.requireStatements(perms, query, models.PermissionUpdate)
}

func (h *updateHandler) Execute(ctx context.Context, query string, execCtx models.ExecutionContext) (*models.ExecutionResult, error) {
	return h.update(ctx, query, execCtx)
}

func (h *updateHandler) Examples(perms models.PermissionSet, table string) []string {
	if !perms.Has(models.PermissionUpdate) {
		return nil
	}
	return []string{
		fmt.Sprintf("UPDATE %s SET status = 'inactive' WHERE id = 1;", exampleTable(table)),
	}
}

// deleteHandler serves DELETE, TRUNCATE and DROP statements.
type deleteHandler struct{ base }

func (h *deleteHandler) ValidatePermissions(perms models.PermissionSet, query string) error {
	return h.requireStatements(perms, query, models.PermissionDelete, models.PermissionDropTable)
}

func (h *deleteHandler) Execute(ctx context.Context, query string, execCtx models.ExecutionContext) (*models.ExecutionResult, error) {
	return h.update(ctx, query, execCtx)
}

func (h *deleteHandler) Examples(perms models.PermissionSet, table string) []string {
	table = exampleTable(table)
	var out []string
	if perms.Has(models.PermissionDelete) {
		out = append(out, fmt.Sprintf("DELETE FROM %s WHERE status = 'inactive';", table))
	}
	if perms.Has(models.PermissionDropTable) {
		out = append(out, fmt.Sprintf("DROP TABLE %s_archive;", table))
	}
	return out
}

func exampleTable(table string) string {
	if t := strings.TrimSpace(table); t != "" {
		return t
	}
	return DefaultExampleTable
}
