package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/docvault/pkg/blob"
	"github.com/platinummonkey/docvault/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Blob          BlobConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// BlobConfig selects and configures the binary storage backend
type BlobConfig struct {
	// Backend is "filesystem" or "s3"
	Backend string

	// Filesystem backend
	FilesystemRoot string

	// S3 backend
	S3 blob.S3Config
}

// AuthConfig holds token issuance settings
type AuthConfig struct {
	TokenTTL time.Duration
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from DOCVAULT_* environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("DOCVAULT_HOST", "0.0.0.0"),
			Port:            getEnv("DOCVAULT_PORT", "8080"),
			ReadTimeout:     getEnvDuration("DOCVAULT_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("DOCVAULT_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvDuration("DOCVAULT_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("DOCVAULT_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxUploadBytes:  getEnvInt64("DOCVAULT_MAX_UPLOAD_BYTES", 50<<20),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DOCVAULT_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("DOCVAULT_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("DOCVAULT_POSTGRES_IDLE_CONNS", 5),
		},
		Blob: BlobConfig{
			Backend:        getEnv("DOCVAULT_BLOB_BACKEND", "filesystem"),
			FilesystemRoot: getEnv("DOCVAULT_BLOB_ROOT", "/var/lib/docvault/blobs"),
			S3: blob.S3Config{
				Endpoint:     getEnv("DOCVAULT_S3_ENDPOINT", ""),
				Region:       getEnv("DOCVAULT_S3_REGION", "us-east-1"),
				Bucket:       getEnv("DOCVAULT_S3_BUCKET", ""),
				AccessKey:    getEnv("DOCVAULT_S3_ACCESS_KEY", ""),
				SecretKey:    getEnv("DOCVAULT_S3_SECRET_KEY", ""),
				UsePathStyle: getEnvBool("DOCVAULT_S3_USE_PATH_STYLE", false),
			},
		},
		Auth: AuthConfig{
			TokenTTL: getEnvDuration("DOCVAULT_TOKEN_TTL", 30*24*time.Hour),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("DOCVAULT_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("DOCVAULT_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	switch c.Blob.Backend {
	case "filesystem":
		if c.Blob.FilesystemRoot == "" {
			return fmt.Errorf("blob root is required for filesystem backend")
		}
	case "s3":
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 backend")
		}
	default:
		return fmt.Errorf("invalid blob backend: %s (must be filesystem or s3)", c.Blob.Backend)
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
