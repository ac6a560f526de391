// Package config provides centralized configuration management for the
// importer and the import server. It loads configuration from environment
// variables with sensible defaults and validates all settings on startup to
// fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Store    StoreConfig
	Import   ImportConfig
	Run      RunConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required for the postgres store.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// StoreConfig selects the entity store.
type StoreConfig struct {
	// Driver is postgres or memory (default: postgres)
	Driver string `env:"STORE_DRIVER" default:"postgres"`

	// EnsureSchema creates the store tables on startup (default: true)
	EnsureSchema bool `env:"STORE_ENSURE_SCHEMA" default:"true"`
}

// ImportConfig holds the per-run pipeline settings.
type ImportConfig struct {
	// FilePath is the input file for the one-shot importer
	FilePath string `env:"IMPORT_FILE_PATH"`

	// Delimiter is the single-byte field separator (default: ;)
	Delimiter string `env:"IMPORT_DELIMITER" default:";"`

	// DefaultLocale is the locale used for identity lookups (default: en_US)
	DefaultLocale string `env:"IMPORT_DEFAULT_LOCALE" default:"en_US"`

	// DefaultScope is the scope used for identity lookups (default: ecommerce)
	DefaultScope string `env:"IMPORT_DEFAULT_SCOPE" default:"ecommerce"`

	// Strict decodes composite column names and validates them (default: true)
	Strict bool `env:"IMPORT_STRICT" default:"true"`

	// RecordTimeout bounds the processing of one record (default: 30s)
	RecordTimeout time.Duration `env:"IMPORT_RECORD_TIMEOUT" default:"30s"`

	// FlushTimeout bounds the final flush (default: 2m)
	FlushTimeout time.Duration `env:"IMPORT_FLUSH_TIMEOUT" default:"2m"`

	// ProgressInterval is the number of records between progress logs (default: 100)
	ProgressInterval int `env:"IMPORT_PROGRESS_INTERVAL" default:"100"`

	// IdentifierAttribute is the attribute entities are matched on (default: sku)
	IdentifierAttribute string `env:"IMPORT_IDENTIFIER_ATTRIBUTE" default:"sku"`

	// CatalogPath is an optional YAML attribute catalog; the built-in one is used when empty
	CatalogPath string `env:"IMPORT_CATALOG_PATH"`

	// AllowedDir restricts server-started runs to files below this directory
	AllowedDir string `env:"IMPORT_ALLOWED_DIR"`
}

// RunConfig holds background run settings.
type RunConfig struct {
	// MaxConcurrent is the maximum number of parallel runs (default: 2)
	MaxConcurrent int `env:"RUN_MAX_CONCURRENT" default:"2"`

	// MaxWait is how long to wait for a run slot (default: 30s)
	MaxWait time.Duration `env:"RUN_MAX_WAIT" default:"30s"`

	// RetainFor is how long a finished run stays queryable (default: 5m)
	RetainFor time.Duration `env:"RUN_RETAIN_FOR" default:"5m"`

	// Timeout bounds a whole run; 0 disables (default: 1h)
	Timeout time.Duration `env:"RUN_TIMEOUT" default:"1h"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// StartLimit is requests per minute for the start-import endpoint (default: 10)
	StartLimit int `env:"RATE_LIMIT_START" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects /api requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
