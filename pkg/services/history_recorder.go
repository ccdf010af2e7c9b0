package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TFMV/sqlgate/pkg/models"
	"github.com/TFMV/sqlgate/pkg/repositories"
)

// HistoryRecorder keeps the bounded, most-recent-first log of query attempts.
// Persistence failures are logged and counted but never returned.
type HistoryRecorder struct {
	mu         sync.Mutex
	entries    []models.HistoryEntry
	repo       repositories.HistoryRepository
	classifier *Classifier
	logger     Logger
	metrics    MetricsCollector
	now        func() time.Time
}

// NewHistoryRecorder loads the persisted log. A load failure starts from an
// empty log.
func NewHistoryRecorder(
	ctx context.Context,
	repo repositories.HistoryRepository,
	classifier *Classifier,
	logger Logger,
	metrics MetricsCollector,
) *HistoryRecorder {
	if logger == nil {
		logger = noopLogger{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	r := &HistoryRecorder{
		repo:       repo,
		classifier: classifier,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}

	entries, err := repo.Load(ctx)
	if err != nil {
		logger.Warn("Failed to load query history, starting empty", "error", err)
		metrics.IncrementCounter("history_load_failed")
		entries = nil
	}
	if len(entries) > models.MaxHistoryEntries {
		entries = entries[:models.MaxHistoryEntries]
	}
	r.entries = entries

	logger.Debug("Query history loaded", "entries", len(r.entries))
	return r
}

// Record prepends an entry for query and persists the truncated log.
func (r *HistoryRecorder) Record(ctx context.Context, query string, kind models.QueryKind, database string, succeeded bool) models.HistoryEntry {
	entry := models.HistoryEntry{
		ID:        newHistoryID(),
		Query:     query,
		Database:  database,
		Timestamp: r.now().UTC(),
		Success:   succeeded,
		Type:      kind,
		Features:  models.HistoryFeaturesOf(r.classifier.ExtractFeatures(query)),
	}

	r.mu.Lock()
	next := make([]models.HistoryEntry, 0, models.MaxHistoryEntries)
	next = append(next, entry)
	next = append(next, r.entries...)
	if len(next) > models.MaxHistoryEntries {
		next = next[:models.MaxHistoryEntries]
	}
	r.entries = next
	snapshot := r.copyLocked()
	r.mu.Unlock()

	r.metrics.IncrementCounter("history_recorded", "success", boolLabel(succeeded))
	r.persist(ctx, snapshot)
	return entry
}

// Entries returns a copy of the log, most recent first.
func (r *HistoryRecorder) Entries() []models.HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyLocked()
}

// Len returns the number of retained entries.
func (r *HistoryRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear empties the log and persists the empty snapshot.
func (r *HistoryRecorder) Clear(ctx context.Context) {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()

	r.persist(ctx, []models.HistoryEntry{})
}

func (r *HistoryRecorder) copyLocked() []models.HistoryEntry {
	out := make([]models.HistoryEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *HistoryRecorder) persist(ctx context.Context, snapshot []models.HistoryEntry) {
	if err := r.repo.Save(ctx, snapshot); err != nil {
		r.metrics.IncrementCounter("history_persist_failed")
		r.logger.Error("Failed to persist query history", "error", err, "entries", len(snapshot))
	}
}

func newHistoryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
