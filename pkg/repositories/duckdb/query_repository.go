// Package duckdb provides DuckDB-specific repository implementations.
package duckdb

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/TFMV/sqlgate/pkg/errors"
	"github.com/TFMV/sqlgate/pkg/infrastructure/pool"
	"github.com/TFMV/sqlgate/pkg/repositories"
)

// queryRepository implements repositories.QueryRepository for DuckDB.
type queryRepository struct {
	pools   *pool.Registry
	maxRows int
	logger  zerolog.Logger
}

// NewQueryRepository creates a repository over the named pools. maxRows caps
// the rows materialized per query; zero or less means unlimited.
func NewQueryRepository(pools *pool.Registry, maxRows int, logger zerolog.Logger) repositories.QueryRepository {
	return &queryRepository{
		pools:   pools,
		maxRows: maxRows,
		logger:  logger,
	}
}

// Databases lists the configured database names.
func (r *queryRepository) Databases() []string {
	return r.pools.Names()
}

// ExecuteQuery executes a query and materializes its rows.
func (r *queryRepository) ExecuteQuery(ctx context.Context, database, query string) (*repositories.QueryResult, error) {
	r.logger.Debug().
		Str("database", database).
		Str("query", truncateQuery(query)).
		Msg("Executing query")

	db, err := r.db(ctx, database)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeQueryFailed, "failed to execute query on %s", database)
	}
	defer rows.Close()

	result, err := scanRows(rows, r.maxRows)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeQueryFailed, "failed to read query results")
	}

	r.logger.Debug().
		Int("rows", len(result.Rows)).
		Bool("truncated", result.Truncated).
		Dur("execution_time", time.Since(start)).
		Msg("Query executed successfully")

	return result, nil
}

// ExecuteUpdate executes a statement and returns affected rows.
func (r *queryRepository) ExecuteUpdate(ctx context.Context, database, statement string) (int64, error) {
	r.logger.Debug().
		Str("database", database).
		Str("statement", truncateQuery(statement)).
		Msg("Executing update")

	db, err := r.db(ctx, database)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	result, err := db.ExecContext(ctx, statement)
	if err != nil {
		return 0, errors.Wrapf(err, errors.CodeQueryFailed, "failed to execute update on %s", database)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeQueryFailed, "failed to get rows affected")
	}

	r.logger.Debug().
		Int64("rows_affected", rowsAffected).
		Dur("execution_time", time.Since(start)).
		Msg("Update executed successfully")

	return rowsAffected, nil
}

func (r *queryRepository) db(ctx context.Context, database string) (*sql.DB, error) {
	p, err := r.pools.Get(database)
	if err != nil {
		return nil, err
	}
	db, err := p.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to get connection from pool")
	}
	return db, nil
}

func scanRows(rows *sql.Rows, maxRows int) (*repositories.QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &repositories.QueryResult{Columns: columns}
	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}

		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}

	return result, rows.Err()
}

// truncateQuery truncates long queries for logging.
func truncateQuery(query string) string {
	const maxLen = 100
	if len(query) <= maxLen {
		return query
	}
	return query[:maxLen] + "..."
}
