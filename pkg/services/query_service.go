package services

import (
	"context"
	"strings"
	"time"

	"github.com/TFMV/sqlgate/pkg/errors"
	"github.com/TFMV/sqlgate/pkg/models"
)

// QueryService is the entry point for query submissions.
type QueryService interface {
	// Execute analyzes, dispatches and records one submission. A non-nil
	// session serializes submissions from the same client. The returned
	// outcome carries the analysis whenever the query got that far, even
	// when err is non-nil.
	Execute(ctx context.Context, session *Session, req *models.QueryRequest) (*models.QueryOutcome, error)
	// Analyze classifies and scores query without executing it.
	Analyze(ctx context.Context, query string) *models.Analysis
	// Examples returns example statements perms allow, across all handlers.
	Examples(perms models.PermissionSet, table string) []string
	// History returns the recorded attempts, most recent first.
	History() []models.HistoryEntry
	// ClearHistory empties the history log.
	ClearHistory(ctx context.Context)
}

// QueryServiceConfig holds execution limits.
type QueryServiceConfig struct {
	// Timeout bounds a single execution. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// queryService implements QueryService interface.
type queryService struct {
	classifier *Classifier
	dispatcher *Dispatcher
	registry   *Registry
	recorder   *HistoryRecorder
	cache      AnalysisCache
	logger     Logger
	metrics    MetricsCollector
	config     QueryServiceConfig
}

// NewQueryService creates a new query service. cache may be nil.
func NewQueryService(
	classifier *Classifier,
	registry *Registry,
	recorder *HistoryRecorder,
	cache AnalysisCache,
	logger Logger,
	metrics MetricsCollector,
	config QueryServiceConfig,
) QueryService {
	if logger == nil {
		logger = noopLogger{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &queryService{
		classifier: classifier,
		dispatcher: NewDispatcher(registry, logger, metrics),
		registry:   registry,
		recorder:   recorder,
		cache:      cache,
		logger:     logger,
		metrics:    metrics,
		config:     config,
	}
}

// Execute runs one submission end to end.
func (s *queryService) Execute(ctx context.Context, session *Session, req *models.QueryRequest) (*models.QueryOutcome, error) {
	timer := s.metrics.StartTimer("query_execution")
	defer timer.Stop()

	if err := s.validateQueryRequest(req); err != nil {
		s.metrics.IncrementCounter("query_validation_errors")
		return nil, err
	}

	if session != nil {
		if !session.TryAcquire() {
			s.metrics.IncrementCounter("query_rejected_in_flight")
			return nil, errors.ErrDispatchInFlight
		}
		defer session.Release()
	}

	analysis := s.Analyze(ctx, req.Query)
	outcome := &models.QueryOutcome{Analysis: analysis}

	if len(analysis.Findings) > 0 {
		s.metrics.IncrementCounter("injection_findings")
		s.logger.Warn("Literal resembles SQL injection",
			"query", truncateQuery(req.Query),
			"findings", len(analysis.Findings),
			"fingerprint", analysis.Findings[0].Fingerprint)
	}

	perms := req.Permissions
	if perms == nil {
		perms = models.DefaultPermissions()
	}

	execCtx := ctx
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	s.logger.Debug("Dispatching query",
		"query", truncateQuery(req.Query),
		"kind", analysis.Kind.String(),
		"database", req.ExecutionContext.Database)

	result, err := s.dispatcher.Dispatch(execCtx, analysis.Kind, req.Query, perms, req.ExecutionContext)
	if err != nil {
		if errors.IsPermissionDenied(err) || errors.IsUnsupportedKind(err) {
			return outcome, err
		}
		s.recorder.Record(ctx, req.Query, analysis.Kind, req.ExecutionContext.Database, false)
		return outcome, err
	}

	s.recorder.Record(ctx, req.Query, analysis.Kind, req.ExecutionContext.Database, true)
	outcome.Result = result

	s.logger.Info("Query executed successfully",
		"handler", result.Handler,
		"database", result.Database,
		"rows", len(result.Rows),
		"rows_affected", result.RowsAffected,
		"execution_time", result.ExecutionTime)

	return outcome, nil
}

// Analyze returns the analysis of query, served from the cache when possible.
func (s *queryService) Analyze(ctx context.Context, query string) *models.Analysis {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, query); ok {
			s.metrics.IncrementCounter("analysis_cache_hits")
			a := *cached
			return &a
		}
		s.metrics.IncrementCounter("analysis_cache_misses")
	}

	analysis := s.classifier.Analyze(query)
	s.metrics.IncrementCounter("queries_analyzed",
		"kind", analysis.Kind.String(),
		"complexity", analysis.Complexity.String())

	if s.cache != nil {
		stored := *analysis
		s.cache.Put(ctx, query, &stored)
	}
	return analysis
}

// Examples collects examples from every handler, dropping blanks and duplicates.
func (s *queryService) Examples(perms models.PermissionSet, table string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, h := range s.registry.Handlers() {
		for _, ex := range h.Examples(perms, table) {
			if strings.TrimSpace(ex) == "" {
				continue
			}
			if _, dup := seen[ex]; dup {
				continue
			}
			seen[ex] = struct{}{}
			out = append(out, ex)
		}
	}
	return out
}

// History returns the recorded attempts.
func (s *queryService) History() []models.HistoryEntry {
	return s.recorder.Entries()
}

// ClearHistory empties the history log.
func (s *queryService) ClearHistory(ctx context.Context) {
	s.recorder.Clear(ctx)
	s.logger.Info("Query history cleared")
}

func (s *queryService) validateQueryRequest(req *models.QueryRequest) error {
	if req == nil {
		return errors.New(errors.CodeInvalidRequest, "request is required")
	}
	if strings.TrimSpace(req.Query) == "" {
		return errors.New(errors.CodeInvalidRequest, "query cannot be empty")
	}
	if strings.TrimSpace(req.ExecutionContext.Database) == "" {
		return errors.New(errors.CodeInvalidRequest, "database is required")
	}
	return nil
}

func truncateQuery(query string) string {
	const maxLen = 100
	if len(query) <= maxLen {
		return query
	}
	return query[:maxLen] + "..."
}
