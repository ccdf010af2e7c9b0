package pool

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	pkgerrors "github.com/TFMV/sqlgate/pkg/errors"
)

// Registry owns one pool per named database.
type Registry struct {
	mu    sync.RWMutex
	pools map[string]ConnectionPool
}

// NewRegistry opens a pool for every name → DSN entry. MotherDuck DSNs are
// resolved with base.MotherDuckToken. If any pool fails to open, the ones
// already opened are closed.
func NewRegistry(databases map[string]string, base Config, logger zerolog.Logger) (*Registry, error) {
	r := &Registry{pools: make(map[string]ConnectionPool, len(databases))}

	for _, name := range sortedKeys(databases) {
		cfg := base
		cfg.DSN = ResolveDSN(databases[name], base.MotherDuckToken)

		p, err := New(cfg, logger.With().Str("database", name).Logger())
		if err != nil {
			_ = r.Close()
			return nil, pkgerrors.Wrapf(err, pkgerrors.CodeConnectionFailed, "failed to open database %q", name)
		}
		r.pools[name] = p
	}

	return r, nil
}

// NewRegistryFromPools wraps already opened pools.
func NewRegistryFromPools(pools map[string]ConnectionPool) *Registry {
	r := &Registry{pools: make(map[string]ConnectionPool, len(pools))}
	for name, p := range pools {
		r.pools[name] = p
	}
	return r
}

// Get returns the pool for database.
func (r *Registry) Get(database string) (ConnectionPool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pools[database]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeInvalidRequest, "unknown database %q", database)
	}
	return p, nil
}

// Names lists the registered database names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pools))
	for name := range r.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthCheck checks every pool and joins the failures.
func (r *Registry) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, p := range r.pools {
		if err := p.HealthCheck(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every pool.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, p := range r.pools {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.pools, name)
	}
	return errors.Join(errs...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
