// Package memory provides in-process repository implementations.
package memory

import (
	"context"
	"sync"

	"github.com/TFMV/sqlgate/pkg/models"
)

// HistoryRepository keeps the history snapshot in memory. It is used when
// persistence is disabled and in tests.
type HistoryRepository struct {
	mu      sync.Mutex
	entries []models.HistoryEntry
	saves   int
}

// NewHistoryRepository creates a repository seeded with entries.
func NewHistoryRepository(entries ...models.HistoryEntry) *HistoryRepository {
	return &HistoryRepository{entries: append([]models.HistoryEntry(nil), entries...)}
}

// Load returns a copy of the stored snapshot.
func (r *HistoryRepository) Load(_ context.Context) ([]models.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.HistoryEntry{}, r.entries...), nil
}

// Save replaces the stored snapshot with a copy of entries.
func (r *HistoryRepository) Save(_ context.Context, entries []models.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append([]models.HistoryEntry{}, entries...)
	r.saves++
	return nil
}

// Saves returns how many times Save was called.
func (r *HistoryRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}
