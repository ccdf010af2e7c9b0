package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/sqlgate/pkg/models"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, map[string]string{"main": ":memory:"}, cfg.Databases)
	assert.Equal(t, "main", cfg.DefaultDatabase)
	assert.Equal(t, []string{models.PermissionSelect}, cfg.Permissions)
	assert.Equal(t, OutputText, cfg.Output)
	assert.Equal(t, HistoryDriverDuckDB, cfg.History.Driver)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, 1024, cfg.Cache.MaxEntries)
	assert.Equal(t, 1000, cfg.Query.MaxRows)
	assert.Equal(t, 8, cfg.ConnectionPool.MaxOpenConnections)
	assert.Equal(t, 5, cfg.ConnectionPool.CircuitBreakerThreshold)
	assert.False(t, cfg.ConnectionPool.EnableCircuitBreaker)
}

func TestValidate_DefaultDatabase(t *testing.T) {
	cfg := &Config{Databases: map[string]string{"warehouse": "w.db", "analytics": "a.db"}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "analytics", cfg.DefaultDatabase)
	assert.Equal(t, []string{"analytics", "warehouse"}, cfg.DatabaseNames())
}

func TestValidate_SQLiteHistoryPath(t *testing.T) {
	cfg := &Config{History: HistoryConfig{Driver: HistoryDriverSQLite}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlgate_history.db", cfg.History.Path)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "unsupported log level"},
		{"default database", func(c *Config) { c.DefaultDatabase = "missing" }, "not configured"},
		{"permission", func(c *Config) { c.Permissions = []string{"select", "admin"} }, "unknown permission"},
		{"output", func(c *Config) { c.Output = "csv" }, "unsupported output format"},
		{"history driver", func(c *Config) { c.History.Driver = "redis" }, "unsupported history driver"},
		{"jwt secret", func(c *Config) { c.Auth.Enabled = true }, "requires secret"},
		{"cache ttl", func(c *Config) { c.Cache.TTL = -time.Second }, "cache ttl"},
		{"query timeout", func(c *Config) { c.Query.Timeout = -time.Second }, "query timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPermissionSet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Permissions = []string{models.PermissionSelect, models.PermissionUpdate}

	perms := cfg.PermissionSet()
	assert.True(t, perms.Has(models.PermissionUpdate))
	assert.False(t, perms.Has(models.PermissionDelete))
}

func TestPoolConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectionPool.MotherDuckToken = "tok"
	cfg.ConnectionPool.EnableCircuitBreaker = true
	p := cfg.PoolConfig()
	assert.Equal(t, cfg.ConnectionPool.MaxOpenConnections, p.MaxOpenConnections)
	assert.Equal(t, cfg.ConnectionPool.ConnectionTimeout, p.ConnectionTimeout)
	assert.Equal(t, "tok", p.MotherDuckToken)
	assert.True(t, p.EnableCircuitBreaker)
	assert.Equal(t, 30*time.Second, p.CircuitBreakerTimeout)
	assert.Empty(t, p.DSN)
}
