package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/rs/zerolog"

	"github.com/TFMV/sqlgate/pkg/errors"
	"github.com/TFMV/sqlgate/pkg/infrastructure/pool"
	"github.com/TFMV/sqlgate/pkg/models"
	"github.com/TFMV/sqlgate/pkg/repositories"
)

const createKVTable = `CREATE TABLE IF NOT EXISTS sqlgate_kv (
	key VARCHAR PRIMARY KEY,
	value VARCHAR NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT current_timestamp
)`

// historyRepository stores the history snapshot as JSON in a key/value table.
type historyRepository struct {
	pool   pool.ConnectionPool
	logger zerolog.Logger
}

// NewHistoryRepository creates the key/value table if needed.
func NewHistoryRepository(ctx context.Context, p pool.ConnectionPool, logger zerolog.Logger) (repositories.HistoryRepository, error) {
	db, err := p.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to get connection from pool")
	}
	if _, err := db.ExecContext(ctx, createKVTable); err != nil {
		return nil, errors.Wrap(err, errors.CodePersistenceFailed, "failed to create history table")
	}
	return &historyRepository{pool: p, logger: logger}, nil
}

// Load returns the stored snapshot, or an empty log if none exists.
func (r *historyRepository) Load(ctx context.Context) ([]models.HistoryEntry, error) {
	db, err := r.pool.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to get connection from pool")
	}

	var raw string
	err = db.QueryRowContext(ctx, "SELECT value FROM sqlgate_kv WHERE key = ?", models.HistoryKey).Scan(&raw)
	if stderrors.Is(err, sql.ErrNoRows) {
		return []models.HistoryEntry{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodePersistenceFailed, "failed to read history")
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, errors.Wrap(err, errors.CodePersistenceFailed, "stored history is not valid JSON")
	}

	r.logger.Debug().Int("entries", len(entries)).Msg("Loaded query history")
	return entries, nil
}

// Save overwrites the stored snapshot.
func (r *historyRepository) Save(ctx context.Context, entries []models.HistoryEntry) error {
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, errors.CodePersistenceFailed, "failed to encode history")
	}

	db, err := r.pool.Get(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeConnectionFailed, "failed to get connection from pool")
	}

	if _, err := db.ExecContext(ctx,
		"INSERT OR REPLACE INTO sqlgate_kv (key, value, updated_at) VALUES (?, ?, current_timestamp)",
		models.HistoryKey, string(raw)); err != nil {
		return errors.Wrap(err, errors.CodePersistenceFailed, "failed to write history")
	}
	return nil
}
