// Package main provides the entry point for the sqlgate CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TFMV/sqlgate/cmd/sqlgate/config"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "sqlgate",
	Short: "Permission-gated SQL gateway",
	Long: `sqlgate classifies SQL statements, checks them against granted
permissions and executes the allowed ones against DuckDB.

Example:
  sqlgate classify "SELECT DISTINCT city FROM users ORDER BY city"
  sqlgate run --grant select,delete "DELETE FROM users WHERE id = 5"
  sqlgate shell --database warehouse`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file path")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.StringP("output", "o", config.OutputText, "output format (text, json, yaml)")
	flags.StringP("database", "d", "", "database to execute against (defaults to default_database)")
	flags.StringSlice("grant", nil, "permissions to grant when auth is disabled")
	flags.String("token", "", "bearer token when auth is enabled")

	// Bind flags to viper
	for key, flag := range map[string]string{
		"config":           "config",
		"log_level":        "log-level",
		"output":           "output",
		"default_database": "database",
		"token":            "token",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Errorf("failed to bind flags: %w", err))
		}
	}
	viper.SetEnvPrefix("SQLGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.BindEnv("connection_pool.motherduck_token", "SQLGATE_CONNECTION_POOL_MOTHERDUCK_TOKEN", "MOTHERDUCK_TOKEN"); err != nil {
		panic(fmt.Errorf("failed to bind env: %w", err))
	}
	setDefaults(config.DefaultConfig())

	rootCmd.AddCommand(
		newClassifyCmd(),
		newRunCmd(),
		newShellCmd(),
		newHistoryCmd(),
		newExamplesCmd(),
		newTokenCmd(),
		newVersionCmd(),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setDefaults(d *config.Config) {
	viper.SetDefault("databases", d.Databases)
	viper.SetDefault("permissions", d.Permissions)
	viper.SetDefault("history.driver", d.History.Driver)
	viper.SetDefault("auth.enabled", d.Auth.Enabled)
	viper.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	viper.SetDefault("auth.jwt.issuer", d.Auth.JWT.Issuer)
	viper.SetDefault("auth.jwt.audience", d.Auth.JWT.Audience)
	viper.SetDefault("metrics.enabled", d.Metrics.Enabled)
	viper.SetDefault("metrics.address", d.Metrics.Address)
	viper.SetDefault("metrics.path", d.Metrics.Path)
	viper.SetDefault("cache.enabled", d.Cache.Enabled)
	viper.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	viper.SetDefault("cache.ttl", d.Cache.TTL)
	viper.SetDefault("query.timeout", d.Query.Timeout)
	viper.SetDefault("query.max_rows", d.Query.MaxRows)
	viper.SetDefault("connection_pool.max_open_connections", d.ConnectionPool.MaxOpenConnections)
	viper.SetDefault("connection_pool.max_idle_connections", d.ConnectionPool.MaxIdleConnections)
	viper.SetDefault("connection_pool.conn_max_lifetime", d.ConnectionPool.ConnMaxLifetime)
	viper.SetDefault("connection_pool.conn_max_idle_time", d.ConnectionPool.ConnMaxIdleTime)
	viper.SetDefault("connection_pool.health_check_period", d.ConnectionPool.HealthCheckPeriod)
	viper.SetDefault("connection_pool.connection_timeout", d.ConnectionPool.ConnectionTimeout)
	viper.SetDefault("connection_pool.enable_circuit_breaker", d.ConnectionPool.EnableCircuitBreaker)
	viper.SetDefault("connection_pool.circuit_breaker_threshold", d.ConnectionPool.CircuitBreakerThreshold)
	viper.SetDefault("connection_pool.circuit_breaker_timeout", d.ConnectionPool.CircuitBreakerTimeout)
}

func loadConfig() (*config.Config, error) {
	// Load config file if specified
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Build configuration
	cfg := &config.Config{
		LogLevel:        viper.GetString("log_level"),
		Databases:       viper.GetStringMapString("databases"),
		DefaultDatabase: viper.GetString("default_database"),
		Permissions:     viper.GetStringSlice("permissions"),
		Output:          viper.GetString("output"),
		History: config.HistoryConfig{
			Driver: viper.GetString("history.driver"),
			Path:   viper.GetString("history.path"),
		},
		Auth: config.AuthConfig{
			Enabled:  viper.GetBool("auth.enabled"),
			TokenTTL: viper.GetDuration("auth.token_ttl"),
			JWT: config.JWTConfig{
				Secret:   viper.GetString("auth.jwt.secret"),
				Issuer:   viper.GetString("auth.jwt.issuer"),
				Audience: viper.GetString("auth.jwt.audience"),
			},
		},
		Metrics: config.MetricsConfig{
			Enabled: viper.GetBool("metrics.enabled"),
			Address: viper.GetString("metrics.address"),
			Path:    viper.GetString("metrics.path"),
		},
		Cache: config.CacheConfig{
			Enabled:    viper.GetBool("cache.enabled"),
			MaxEntries: viper.GetInt("cache.max_entries"),
			TTL:        viper.GetDuration("cache.ttl"),
		},
		Query: config.QueryConfig{
			Timeout: viper.GetDuration("query.timeout"),
			MaxRows: viper.GetInt("query.max_rows"),
		},
		ConnectionPool: config.ConnectionPoolConfig{
			MaxOpenConnections: viper.GetInt("connection_pool.max_open_connections"),
			MaxIdleConnections: viper.GetInt("connection_pool.max_idle_connections"),
			ConnMaxLifetime:    viper.GetDuration("connection_pool.conn_max_lifetime"),
			ConnMaxIdleTime:    viper.GetDuration("connection_pool.conn_max_idle_time"),
			HealthCheckPeriod:  viper.GetDuration("connection_pool.health_check_period"),
			ConnectionTimeout:  viper.GetDuration("connection_pool.connection_timeout"),
			MotherDuckToken:    viper.GetString("connection_pool.motherduck_token"),

			EnableCircuitBreaker:    viper.GetBool("connection_pool.enable_circuit_breaker"),
			CircuitBreakerThreshold: viper.GetInt("connection_pool.circuit_breaker_threshold"),
			CircuitBreakerTimeout:   viper.GetDuration("connection_pool.circuit_breaker_timeout"),
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupLogging builds the process logger. Logs go to stderr so command
// output on stdout stays machine readable.
func setupLogging(level string) zerolog.Logger {
	// Configure zerolog
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	// Set log level
	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
		// Enable caller info for debug level
		zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
			short := file
			for i := len(file) - 1; i > 0; i-- {
				if file[i] == '/' {
					short = file[i+1:]
					break
				}
			}
			return fmt.Sprintf("%s:%d", short, line)
		}
	case "info":
		logLevel = zerolog.InfoLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.WarnLevel
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(logLevel).
		With().
		Timestamp().
		Str("service", "sqlgate")

	if logLevel == zerolog.DebugLevel {
		logger = logger.Caller()
	}

	return logger.Logger()
}
