// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Task store backends.
const (
	TaskStoreMemory   = "memory"
	TaskStoreRedis    = "redis"
	TaskStorePostgres = "postgres"
)

// Archive store backends.
const (
	ArchiveLocal = "local"
	ArchiveS3    = "s3"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Upload    UploadConfig
	Split     SplitConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	TaskStore TaskStoreConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Archive   ArchiveConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing response (default: 0, archives stream)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// UploadConfig holds upload intake settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of split jobs running at once (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for a job slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds archive publishing for a single job (default: 10m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`
}

// SplitConfig holds pipeline settings.
type SplitConfig struct {
	// ScratchDir is the root for per-job scratch directories (default: OS temp dir)
	ScratchDir string `env:"SPLIT_SCRATCH_DIR"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey rejects API requests without a valid X-API-Key (default: false)
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

// TaskStoreConfig selects where task status and results are kept.
type TaskStoreConfig struct {
	// Backend is memory, redis or postgres (default: memory)
	Backend string `env:"TASK_STORE" default:"memory"`

	// Retention is how long a task stays queryable (default: 1h)
	Retention time.Duration `env:"TASK_RETENTION" default:"1h"`
}

// RedisConfig holds Redis connection settings for the redis task store.
type RedisConfig struct {
	// URL is a redis:// connection string
	URL string `env:"REDIS_URL" default:"redis://localhost:6379/0"`

	// KeyPrefix namespaces every key written (default: colsplit)
	KeyPrefix string `env:"REDIS_KEY_PREFIX" default:"colsplit"`
}

// DatabaseConfig holds database connection settings for the postgres task store.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ArchiveConfig selects where finished archives are published.
type ArchiveConfig struct {
	// Backend is local or s3 (default: local)
	Backend string `env:"ARCHIVE_BACKEND" default:"local"`

	// ResultsDir is where the local backend keeps archives (default: ./storage/outputs)
	ResultsDir string `env:"ARCHIVE_RESULTS_DIR" default:"storage/outputs"`

	// Bucket is the S3 bucket for the s3 backend
	Bucket string `env:"ARCHIVE_S3_BUCKET"`

	// Prefix is prepended to every S3 object key
	Prefix string `env:"ARCHIVE_S3_PREFIX" default:"split-results"`

	// Region is the S3 region (default: us-east-1)
	Region string `env:"ARCHIVE_S3_REGION" default:"us-east-1"`

	// Endpoint overrides the S3 endpoint (MinIO, LocalStack)
	Endpoint string `env:"ARCHIVE_S3_ENDPOINT"`

	// AccessKey and SecretKey select static credentials when both are set
	AccessKey string `env:"ARCHIVE_S3_ACCESS_KEY"`
	SecretKey string `env:"ARCHIVE_S3_SECRET_KEY"`

	// UsePathStyle forces path-style addressing (default: false)
	UsePathStyle bool `env:"ARCHIVE_S3_PATH_STYLE" default:"false"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
