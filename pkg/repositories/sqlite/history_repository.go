// Package sqlite stores query history in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/TFMV/sqlgate/pkg/errors"
	"github.com/TFMV/sqlgate/pkg/models"
)

// HistoryRepository implements repositories.HistoryRepository on SQLite.
type HistoryRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (or creates) the SQLite file at path and migrates it.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*HistoryRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, errors.CodePersistenceFailed, "failed to create history directory")
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodePersistenceFailed, "failed to open sqlite")
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	r := &HistoryRepository{db: db, logger: logger}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug().Str("path", path).Msg("Opened sqlite history store")
	return r, nil
}

func (r *HistoryRepository) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return errors.Wrap(err, errors.CodePersistenceFailed, "failed to migrate history store")
	}
	return nil
}

// Load returns the stored snapshot, or an empty log if none exists.
func (r *HistoryRepository) Load(ctx context.Context) ([]models.HistoryEntry, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", models.HistoryKey).Scan(&raw)
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
	return entries, nil
}

// Save overwrites the stored snapshot.
func (r *HistoryRepository) Save(ctx context.Context, entries []models.HistoryEntry) error {
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, errors.CodePersistenceFailed, "failed to encode history")
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		models.HistoryKey, string(raw))
	if err != nil {
		return errors.Wrap(err, errors.CodePersistenceFailed, "failed to write history")
	}
	return nil
}

// Close closes the database.
func (r *HistoryRepository) Close() error {
	return r.db.Close()
}
