// Package config provides configuration structures for the sqlgate CLI.
package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/TFMV/sqlgate/pkg/infrastructure/pool"
	"github.com/TFMV/sqlgate/pkg/models"
)

// History drivers.
const (
	HistoryDriverDuckDB = "duckdb"
	HistoryDriverSQLite = "sqlite"
	HistoryDriverMemory = "memory"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// Config represents the CLI configuration.
type Config struct {
	LogLevel        string            `yaml:"log_level" json:"log_level"`
	Databases       map[string]string `yaml:"databases" json:"databases"`
	DefaultDatabase string            `yaml:"default_database" json:"default_database"`
	Permissions     []string          `yaml:"permissions" json:"permissions"`
	Output          string            `yaml:"output" json:"output"`

	History        HistoryConfig        `yaml:"history" json:"history"`
	Auth           AuthConfig           `yaml:"auth" json:"auth"`
	Metrics        MetricsConfig        `yaml:"metrics" json:"metrics"`
	Cache          CacheConfig          `yaml:"cache" json:"cache"`
	Query          QueryConfig          `yaml:"query" json:"query"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool" json:"connection_pool"`
}

// HistoryConfig selects where query history is persisted.
type HistoryConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	// Path is the history file. For the duckdb driver an empty path stores
	// history in the default database.
	Path string `yaml:"path" json:"path"`
}

// AuthConfig represents authentication configuration.
type AuthConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	JWT      JWTConfig     `yaml:"jwt" json:"jwt"`
	TokenTTL time.Duration `yaml:"token_ttl" json:"token_ttl"`
}

// JWTConfig represents JWT authentication configuration.
type JWTConfig struct {
	Secret   string `yaml:"secret" json:"secret"`
	Issuer   string `yaml:"issuer" json:"issuer"`
	Audience string `yaml:"audience" json:"audience"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
	Path    string `yaml:"path" json:"path"`
}

// CacheConfig represents analysis cache configuration.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled" json:"enabled"`
	MaxEntries int           `yaml:"max_entries" json:"max_entries"`
	TTL        time.Duration `yaml:"ttl" json:"ttl"`
}

// QueryConfig represents execution limits.
type QueryConfig struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	MaxRows int           `yaml:"max_rows" json:"max_rows"`
}

// ConnectionPoolConfig represents connection pool configuration.
type ConnectionPoolConfig struct {
	MaxOpenConnections int           `yaml:"max_open_connections" json:"max_open_connections"`
	MaxIdleConnections int           `yaml:"max_idle_connections" json:"max_idle_connections"`
	ConnMaxLifetime    time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime    time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	HealthCheckPeriod  time.Duration `yaml:"health_check_period" json:"health_check_period"`
	ConnectionTimeout  time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
	// MotherDuckToken authenticates md: and motherduck:// databases.
	MotherDuckToken string `yaml:"motherduck_token" json:"-"`

	EnableCircuitBreaker    bool          `yaml:"enable_circuit_breaker" json:"enable_circuit_breaker"`
	CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold" json:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `yaml:"circuit_breaker_timeout" json:"circuit_breaker_timeout"`
}

// Validate validates the configuration and fills defaults.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "":
		c.LogLevel = "warn"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", c.LogLevel)
	}

	if len(c.Databases) == 0 {
		c.Databases = map[string]string{"main": ":memory:"}
	}
	if c.DefaultDatabase == "" {
		if _, ok := c.Databases["main"]; ok {
			c.DefaultDatabase = "main"
		} else {
			c.DefaultDatabase = c.DatabaseNames()[0]
		}
	}
	if _, ok := c.Databases[c.DefaultDatabase]; !ok {
		return fmt.Errorf("default database %q is not configured", c.DefaultDatabase)
	}

	if len(c.Permissions) == 0 {
		c.Permissions = []string{models.PermissionSelect}
	}
	for _, p := range c.Permissions {
		if !models.IsKnownPermission(p) {
			return fmt.Errorf("unknown permission: %s", p)
		}
	}

	switch c.Output {
	case "":
		c.Output = OutputText
	case OutputText, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("unsupported output format: %s", c.Output)
	}

	// Validate history
	switch c.History.Driver {
	case "":
		c.History.Driver = HistoryDriverDuckDB
	case HistoryDriverDuckDB, HistoryDriverMemory:
	case HistoryDriverSQLite:
		if c.History.Path == "" {
			c.History.Path = "sqlgate_history.db"
		}
	default:
		return fmt.Errorf("unsupported history driver: %s", c.History.Driver)
	}

	// Validate auth
	if c.Auth.Enabled && c.Auth.JWT.Secret == "" {
		return fmt.Errorf("JWT auth requires secret")
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = time.Hour
	}

	// Set defaults for metrics
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	// Set defaults for cache
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 1024
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative")
	}

	// Set defaults for queries
	if c.Query.Timeout < 0 {
		return fmt.Errorf("query timeout cannot be negative")
	}
	if c.Query.MaxRows <= 0 {
		c.Query.MaxRows = 1000
	}

	// Set defaults for connection pool
	if c.ConnectionPool.MaxOpenConnections <= 0 {
		c.ConnectionPool.MaxOpenConnections = 8
	}
	if c.ConnectionPool.MaxIdleConnections <= 0 {
		c.ConnectionPool.MaxIdleConnections = 2
	}
	if c.ConnectionPool.ConnMaxLifetime <= 0 {
		c.ConnectionPool.ConnMaxLifetime = 30 * time.Minute
	}
	if c.ConnectionPool.ConnMaxIdleTime <= 0 {
		c.ConnectionPool.ConnMaxIdleTime = 10 * time.Minute
	}
	if c.ConnectionPool.HealthCheckPeriod <= 0 {
		c.ConnectionPool.HealthCheckPeriod = time.Minute
	}
	if c.ConnectionPool.ConnectionTimeout <= 0 {
		c.ConnectionPool.ConnectionTimeout = 10 * time.Second
	}
	if c.ConnectionPool.CircuitBreakerThreshold <= 0 {
		c.ConnectionPool.CircuitBreakerThreshold = 5
	}
	if c.ConnectionPool.CircuitBreakerTimeout <= 0 {
		c.ConnectionPool.CircuitBreakerTimeout = 30 * time.Second
	}

	return nil
}

// DatabaseNames returns the configured database names, sorted.
func (c *Config) DatabaseNames() []string {
	names := make([]string, 0, len(c.Databases))
	for name := range c.Databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PermissionSet returns the configured grants as a PermissionSet.
func (c *Config) PermissionSet() models.PermissionSet {
	return models.NewPermissionSet(c.Permissions...)
}

// PoolConfig maps the connection pool settings onto pool.Config.
func (c *Config) PoolConfig() pool.Config {
	return pool.Config{
		MaxOpenConnections: c.ConnectionPool.MaxOpenConnections,
		MaxIdleConnections: c.ConnectionPool.MaxIdleConnections,
		ConnMaxLifetime:    c.ConnectionPool.ConnMaxLifetime,
		ConnMaxIdleTime:    c.ConnectionPool.ConnMaxIdleTime,
		HealthCheckPeriod:  c.ConnectionPool.HealthCheckPeriod,
		ConnectionTimeout:  c.ConnectionPool.ConnectionTimeout,
		MotherDuckToken:    c.ConnectionPool.MotherDuckToken,

		EnableCircuitBreaker:    c.ConnectionPool.EnableCircuitBreaker,
		CircuitBreakerThreshold: c.ConnectionPool.CircuitBreakerThreshold,
		CircuitBreakerTimeout:   c.ConnectionPool.CircuitBreakerTimeout,
	}
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:        "warn",
		Databases:       map[string]string{"main": ":memory:"},
		DefaultDatabase: "main",
		Permissions:     []string{models.PermissionSelect},
		Output:          OutputText,
		History: HistoryConfig{
			Driver: HistoryDriverDuckDB,
		},
		Auth: AuthConfig{
			Enabled:  false,
			TokenTTL: time.Hour,
			JWT: JWTConfig{
				Issuer:   "sqlgate",
				Audience: "sqlgate",
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
			Path:    "/metrics",
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 1024,
			TTL:        10 * time.Minute,
		},
		Query: QueryConfig{
			Timeout: 30 * time.Second,
			MaxRows: 1000,
		},
		ConnectionPool: ConnectionPoolConfig{
			MaxOpenConnections: 8,
			MaxIdleConnections: 2,
			ConnMaxLifetime:    30 * time.Minute,
			ConnMaxIdleTime:    10 * time.Minute,
			HealthCheckPeriod:  time.Minute,
			ConnectionTimeout:  10 * time.Second,

			CircuitBreakerThreshold: 5,
			CircuitBreakerTimeout:   30 * time.Second,
		},
	}
}
