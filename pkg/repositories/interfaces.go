// Package repositories defines interfaces for data access operations.
package repositories

import (
	"context"

	"github.com/TFMV/sqlgate/pkg/models"
)

// QueryResult is a materialized row set.
type QueryResult struct {
	Columns   []string
	Rows      [][]interface{}
	Truncated bool
}

// QueryRepository executes statements against a named database.
type QueryRepository interface {
	// ExecuteQuery runs a row-returning statement.
	ExecuteQuery(ctx context.Context, database, query string) (*QueryResult, error)
	// ExecuteUpdate runs a statement and returns the affected row count.
	ExecuteUpdate(ctx context.Context, database, query string) (int64, error)
	// Databases lists the database names that can be targeted.
	Databases() []string
}

// HistoryRepository persists the history log as one snapshot under
// models.HistoryKey. Save overwrites the previous snapshot.
type HistoryRepository interface {
	Load(ctx context.Context) ([]models.HistoryEntry, error)
	Save(ctx context.Context, entries []models.HistoryEntry) error
}
