package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TFMV/sqlgate/pkg/errors"
	"github.com/TFMV/sqlgate/pkg/models"
)

// stubHandler requires one capability and delegates Execute to executeFunc.
type stubHandler struct {
	name         string
	permission   string
	validateFunc func(perms models.PermissionSet, query string) error
	executeFunc  func(ctx context.Context, query string, execCtx models.ExecutionContext) (*models.ExecutionResult, error)
	examples     []string
	executed     atomic.Int32
}

func (h *stubHandler) Name() string { return h.name }

func (h *stubHandler) ValidatePermissions(perms models.PermissionSet, query string) error {
	if h.validateFunc != nil {
		return h.validateFunc(perms, query)
	}
	if !perms.Has(h.permission) {
		return errors.PermissionDenied(h.permission)
	}
	return nil
}

func (h *stubHandler) Execute(ctx context.Context, query string, execCtx models.ExecutionContext) (*models.ExecutionResult, error) {
	h.executed.Add(1)
	if h.executeFunc != nil {
		return h.executeFunc(ctx, query, execCtx)
	}
	return &models.ExecutionResult{Columns: []string{"ok"}, Rows: [][]interface{}{{true}}}, nil
}

func (h *stubHandler) Examples(perms models.PermissionSet, _ string) []string {
	if !perms.Has(h.permission) {
		return nil
	}
	return h.examples
}

func stubHandlers() map[models.QueryKind]*stubHandler {
	return map[models.QueryKind]*stubHandler{
		models.ReadSimple:     {name: "read", permission: models.PermissionSelect},
		models.SelectAdvanced: {name: "select", permission: models.PermissionSelect},
		models.Create:         {name: "create", permission: models.PermissionInsert},
		models.Update:         {name: "update", permission: models.PermissionUpdate},
		models.Delete:         {name: "delete", permission: models.PermissionDelete},
	}
}

func asHandlers(stubs map[models.QueryKind]*stubHandler) map[models.QueryKind]Handler {
	out := make(map[models.QueryKind]Handler, len(stubs))
	for kind, h := range stubs {
		out[kind] = h
	}
	return out
}

// countingMetrics records counter increments by name.
type countingMetrics struct {
	mu       sync.Mutex
	counters map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counters: make(map[string]int)}
}

func (m *countingMetrics) IncrementCounter(name string, _ ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
}

func (m *countingMetrics) RecordHistogram(string, float64, ...string) {}
func (m *countingMetrics) RecordGauge(string, float64, ...string)     {}
func (m *countingMetrics) StartTimer(string) Timer                    { return &stubTimer{start: time.Now()} }

func (m *countingMetrics) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

type stubTimer struct{ start time.Time }

func (t *stubTimer) Stop() time.Duration { return time.Since(t.start) }

// failingHistoryRepository fails Load and/or Save.
type failingHistoryRepository struct {
	loadErr error
	saveErr error
	saves   atomic.Int32
}

func (r *failingHistoryRepository) Load(context.Context) ([]models.HistoryEntry, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return nil, nil
}

func (r *failingHistoryRepository) Save(context.Context, []models.HistoryEntry) error {
	r.saves.Add(1)
	return r.saveErr
}

// mapCache is an unbounded AnalysisCache.
type mapCache struct {
	mu      sync.Mutex
	entries map[string]*models.Analysis
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]*models.Analysis)}
}

func (c *mapCache) Get(_ context.Context, query string) (*models.Analysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[query]
	return a, ok
}

func (c *mapCache) Put(_ context.Context, query string, a *models.Analysis) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[query] = a
}
