package services

import (
	"context"
	"time"

	"github.com/TFMV/sqlgate/pkg/models"
)

// Handler validates, executes and illustrates one QueryKind.
type Handler interface {
	// Name is the handler name the kind maps to.
	Name() string
	// ValidatePermissions returns a PERMISSION_DENIED error naming the
	// missing capability when perms cannot run query.
	ValidatePermissions(perms models.PermissionSet, query string) error
	// Execute runs query against the backend described by execCtx.
	Execute(ctx context.Context, query string, execCtx models.ExecutionContext) (*models.ExecutionResult, error)
	// Examples returns sample statements for table that perms allow.
	Examples(perms models.PermissionSet, table string) []string
}

// AnalysisCache stores analyses keyed by query text.
type AnalysisCache interface {
	Get(ctx context.Context, query string) (*models.Analysis, bool)
	Put(ctx context.Context, query string, analysis *models.Analysis)
}

// Logger defines logging interface.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// MetricsCollector defines metrics collection interface.
type MetricsCollector interface {
	IncrementCounter(name string, labels ...string)
	RecordHistogram(name string, value float64, labels ...string)
	RecordGauge(name string, value float64, labels ...string)
	StartTimer(name string) Timer
}

// Timer represents a timing measurement.
type Timer interface {
	Stop() time.Duration
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

type noopMetrics struct{}

func (noopMetrics) IncrementCounter(string, ...string)         {}
func (noopMetrics) RecordHistogram(string, float64, ...string) {}
func (noopMetrics) RecordGauge(string, float64, ...string)     {}
func (noopMetrics) StartTimer(string) Timer                    { return noopTimer{} }

type noopTimer struct{}

func (noopTimer) Stop() time.Duration { return 0 }
