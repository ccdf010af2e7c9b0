package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TFMV/sqlgate/cmd/sqlgate/config"
	"github.com/TFMV/sqlgate/pkg/auth"
	"github.com/TFMV/sqlgate/pkg/cache"
	"github.com/TFMV/sqlgate/pkg/errors"
	"github.com/TFMV/sqlgate/pkg/handlers"
	"github.com/TFMV/sqlgate/pkg/infrastructure/metrics"
	"github.com/TFMV/sqlgate/pkg/infrastructure/pool"
	"github.com/TFMV/sqlgate/pkg/models"
	"github.com/TFMV/sqlgate/pkg/repositories"
	"github.com/TFMV/sqlgate/pkg/repositories/duckdb"
	"github.com/TFMV/sqlgate/pkg/repositories/memory"
	"github.com/TFMV/sqlgate/pkg/repositories/sqlite"
	"github.com/TFMV/sqlgate/pkg/services"
)

// app holds the wired components for one CLI invocation.
type app struct {
	cfg           *config.Config
	logger        zerolog.Logger
	metrics       metrics.Collector
	metricsServer *metrics.MetricsServer
	pools         *pool.Registry
	service       services.QueryService
	verifier      *auth.Verifier
	closers       []func() error
	closeOnce     sync.Once
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheusCollector("sqlgate")
		a.metrics = prom
		a.metricsServer = metrics.NewMetricsServer(cfg.Metrics.Address, cfg.Metrics.Path, prom.Registry())
		go func() {
			logger.Info().Str("address", cfg.Metrics.Address).Msg("Starting metrics server")
			if err := a.metricsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start metrics server")
			}
		}()
	} else {
		a.metrics = metrics.NewNoOpCollector()
	}
	metricsAdapter := &serviceMetricsAdapter{collector: a.metrics}

	pools, err := pool.NewRegistry(cfg.Databases, cfg.PoolConfig(), logger.With().Str("component", "pool").Logger())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open databases: %w", err)
	}
	a.pools = pools

	historyRepo, err := a.openHistory(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	queryRepo := duckdb.NewQueryRepository(pools, cfg.Query.MaxRows, logger.With().Str("component", "query_repository").Logger())
	classifier := services.NewClassifier()

	registry, err := services.NewRegistry(handlers.NewAll(queryRepo, a.componentLogger("handlers")))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build handler registry: %w", err)
	}

	recorder := services.NewHistoryRecorder(ctx, historyRepo, classifier, a.componentLogger("history"), metricsAdapter)

	var analysisCache services.AnalysisCache
	if cfg.Cache.Enabled {
		mc := cache.NewMemoryCache(cache.DefaultConfig().
			WithMaxEntries(cfg.Cache.MaxEntries).
			WithTTL(cfg.Cache.TTL))
		a.closers = append(a.closers, mc.Close)
		analysisCache = mc
	}

	a.service = services.NewQueryService(
		classifier,
		registry,
		recorder,
		analysisCache,
		a.componentLogger("query_service"),
		metricsAdapter,
		services.QueryServiceConfig{Timeout: cfg.Query.Timeout},
	)

	if cfg.Auth.Enabled {
		a.verifier, err = auth.NewVerifier(authConfig(cfg))
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

func (a *app) openHistory(ctx context.Context) (repositories.HistoryRepository, error) {
	logger := a.logger.With().Str("component", "history_repository").Str("driver", a.cfg.History.Driver).Logger()

	switch a.cfg.History.Driver {
	case config.HistoryDriverMemory:
		return memory.NewHistoryRepository(), nil
	case config.HistoryDriverSQLite:
		repo, err := sqlite.Open(ctx, a.cfg.History.Path, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, repo.Close)
		return repo, nil
	default:
		p, err := a.historyPool()
		if err != nil {
			return nil, err
		}
		return duckdb.NewHistoryRepository(ctx, p, logger)
	}
}

func (a *app) historyPool() (pool.ConnectionPool, error) {
	if a.cfg.History.Path == "" {
		return a.pools.Get(a.cfg.DefaultDatabase)
	}
	cfg := a.cfg.PoolConfig()
	cfg.DSN = a.cfg.History.Path
	cfg.MaxOpenConnections = 1
	cfg.MaxIdleConnections = 1
	p, err := pool.New(cfg, a.logger.With().Str("component", "history_pool").Logger())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, p.Close)
	return p, nil
}

// authorize resolves the capability set for a submission. With auth
// enabled the token decides and the verified principal is attached to the
// returned context; otherwise explicit grants win over config.
func (a *app) authorize(ctx context.Context, token string, grants []string) (context.Context, models.PermissionSet, error) {
	if a.verifier != nil {
		principal, err := a.verifier.Verify(token)
		if err != nil {
			return ctx, nil, err
		}
		a.logger.Debug().Str("subject", principal.Subject).Strs("permissions", principal.Permissions.Granted()).Msg("Token verified")
		return auth.WithPrincipal(ctx, principal), principal.Permissions, nil
	}

	if len(grants) == 0 {
		return ctx, a.cfg.PermissionSet(), nil
	}
	for _, g := range grants {
		if !models.IsKnownPermission(g) {
			return ctx, nil, errors.Newf(errors.CodeInvalidRequest, "unknown permission %q", g)
		}
	}
	return ctx, models.NewPermissionSet(grants...), nil
}

func authConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		Secret:   cfg.Auth.JWT.Secret,
		Issuer:   cfg.Auth.JWT.Issuer,
		Audience: cfg.Auth.JWT.Audience,
	}
}

func (a *app) componentLogger(component string) services.Logger {
	return &serviceLoggerAdapter{logger: a.logger.With().Str("component", component).Logger()}
}

// Close releases every resource opened by newApp. Later calls do nothing.
func (a *app) Close() {
	a.closeOnce.Do(a.close)
}

func (a *app) close() {
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metricsServer.Stop(ctx); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop metrics server")
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close resource")
		}
	}
	if a.pools != nil {
		if err := a.pools.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close databases")
		}
	}
}
