package config

import (
	"testing"
	"time"

	"github.com/platinummonkey/docvault/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "custom")

	if got := getEnv("TEST_VAR", "default"); got != "custom" {
		t.Errorf("getEnv() = %v, want custom", got)
	}
	if got := getEnv("TEST_VAR_NOT_SET", "default"); got != "default" {
		t.Errorf("getEnv() = %v, want default", got)
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{name: "true string", envValue: "true", want: true},
		{name: "one string", envValue: "1", want: true},
		{name: "false string", envValue: "false", defaultValue: true, want: false},
		{name: "unset uses default", envValue: "", defaultValue: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_BOOL", tt.envValue)
			}
			if got := getEnvBool("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "90s")

	if got := getEnvDuration("TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration() = %v, want 90s", got)
	}
	if got := getEnvDuration("TEST_DUR_UNSET", time.Second); got != time.Second {
		t.Errorf("getEnvDuration() default = %v, want 1s", got)
	}

	t.Setenv("TEST_DUR_BAD", "not-a-duration")
	if got := getEnvDuration("TEST_DUR_BAD", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration() bad value = %v, want fallback", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DOCVAULT_POSTGRES_URL", "postgres://localhost/docvault?sslmode=disable")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %s, want 8080", cfg.Server.Port)
	}
	if cfg.Blob.Backend != "filesystem" {
		t.Errorf("default blob backend = %s, want filesystem", cfg.Blob.Backend)
	}
	if cfg.Auth.TokenTTL != 30*24*time.Hour {
		t.Errorf("default token TTL = %v", cfg.Auth.TokenTTL)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("default log level = %v, want info", cfg.Observability.LogLevel)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DOCVAULT_POSTGRES_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error without postgres URL")
	}
}

func TestValidateBlobBackend(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: "8080"},
			Database: DatabaseConfig{URL: "postgres://localhost/docvault"},
			Blob:     BlobConfig{Backend: "filesystem", FilesystemRoot: "/tmp/blobs"},
			Auth:     AuthConfig{TokenTTL: time.Hour},
		}
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cfg = base()
	cfg.Blob.Backend = "s3"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for s3 backend without bucket")
	}

	cfg = base()
	cfg.Blob.Backend = "tape"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown backend")
	}
}
