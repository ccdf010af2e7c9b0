package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/TFMV/sqlgate/pkg/errors"
	"github.com/TFMV/sqlgate/pkg/models"
)

// Registry is the closed mapping from QueryKind to Handler. It is fixed at
// construction and read-only afterwards.
type Registry struct {
	handlers map[models.QueryKind]Handler
}

// NewRegistry builds a registry that covers every declared kind. A missing
// kind, a nil handler or a handler whose name does not match its kind is a
// construction error.
func NewRegistry(handlers map[models.QueryKind]Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[models.QueryKind]Handler, len(models.AllQueryKinds))}

	for _, kind := range models.AllQueryKinds {
		h, ok := handlers[kind]
		if !ok || h == nil {
			return nil, errors.Newf(errors.CodeInternal, "no handler registered for kind %s", kind)
		}
		if h.Name() != kind.HandlerName() {
			return nil, errors.Newf(errors.CodeInternal,
				"handler %q registered for kind %s, want %q", h.Name(), kind, kind.HandlerName())
		}
		r.handlers[kind] = h
	}

	for kind := range handlers {
		if !kind.Valid() {
			return nil, errors.Newf(errors.CodeInternal, "handler registered for undeclared kind %s", kind)
		}
	}

	return r, nil
}

// Lookup resolves kind to its handler.
func (r *Registry) Lookup(kind models.QueryKind) (Handler, error) {
	h, ok := r.handlers[kind]
	if !ok {
		return nil, errors.Newf(errors.CodeUnsupportedKind, "no handler for query kind %s", kind)
	}
	return h, nil
}

// Handlers returns the registered handlers in kind order.
func (r *Registry) Handlers() []Handler {
	out := make([]Handler, 0, len(r.handlers))
	for _, kind := range models.AllQueryKinds {
		out = append(out, r.handlers[kind])
	}
	return out
}

// Dispatcher routes classified queries to their handler.
type Dispatcher struct {
	registry *Registry
	logger   Logger
	metrics  MetricsCollector
}

// NewDispatcher creates a dispatcher over registry. Nil logger or metrics fall
// back to no-ops.
func NewDispatcher(registry *Registry, logger Logger, metrics MetricsCollector) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Dispatcher{registry: registry, logger: logger, metrics: metrics}
}

// Dispatch resolves kind, checks perms and executes query exactly once.
// A permission failure returns before the handler's Execute is reached.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	kind models.QueryKind,
	query string,
	perms models.PermissionSet,
	execCtx models.ExecutionContext,
) (*models.ExecutionResult, error) {
	handler, err := d.registry.Lookup(kind)
	if err != nil {
		d.metrics.IncrementCounter("dispatch_unsupported_kind")
		return nil, err
	}

	name := handler.Name()
	if err := handler.ValidatePermissions(perms, query); err != nil {
		d.metrics.IncrementCounter("dispatch_permission_denied", "handler", name)
		perm, _ := errors.MissingPermission(err)
		d.logger.Warn("Permission denied", "handler", name, "permission", perm)
		if !errors.IsPermissionDenied(err) {
			return nil, errors.Wrap(err, errors.CodePermissionDenied, "permission check failed")
		}
		return nil, err
	}

	timer := d.metrics.StartTimer("dispatch_duration")
	start := time.Now()
	result, err := handler.Execute(ctx, query, execCtx)
	elapsed := time.Since(start)
	timer.Stop()

	if err != nil {
		d.metrics.IncrementCounter("dispatch_execution_failed", "handler", name)
		d.logger.Error("Handler execution failed",
			"handler", name,
			"database", execCtx.Database,
			"error", err,
			"execution_time", elapsed)
		return nil, errors.Wrap(err, errors.CodeExecutionFailed, fmt.Sprintf("%s handler failed", name))
	}

	if result == nil {
		result = &models.ExecutionResult{}
	}
	if result.Handler == "" {
		result.Handler = name
	}
	if result.Database == "" {
		result.Database = execCtx.Database
	}
	if result.ExecutionTime == 0 {
		result.ExecutionTime = elapsed
	}

	d.metrics.IncrementCounter("dispatch_succeeded", "handler", name)
	d.logger.Debug("Handler executed",
		"handler", name,
		"database", execCtx.Database,
		"rows", len(result.Rows),
		"rows_affected", result.RowsAffected,
		"execution_time", elapsed)

	return result, nil
}

// Session serializes submissions from one client. While a dispatch is in
// flight, further submissions fail with DISPATCH_IN_FLIGHT.
type Session struct {
	busy atomic.Bool
}

// NewSession creates an idle session.
func NewSession() *Session {
	return &Session{}
}

// TryAcquire marks the session busy. It reports false if already busy.
func (s *Session) TryAcquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

// Release marks the session idle.
func (s *Session) Release() {
	s.busy.Store(false)
}

// Busy reports whether a dispatch is in flight.
func (s *Session) Busy() bool {
	return s.busy.Load()
}
