package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// helper to build a minimal valid config that can be tweaked in tests.
func validBaseConfig() *Config {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 10
	cfg.RateLimiting.HTTP.Burst = 20
	cfg.RateLimiting.HTTP.MaxConcurrent = 5
	cfg.RateLimiting.Stream.ConnectionsPerMinute = 60
	cfg.RateLimiting.Stream.Burst = 10
	cfg.RateLimiting.Stream.MaxConcurrent = 10
	return cfg
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got: %v", err)
	}
	if cfg.Stream.HeartbeatInterval != 30*time.Second {
		t.Fatalf("expected 30s heartbeat by default, got %v", cfg.Stream.HeartbeatInterval)
	}
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.Stream.ConnectionsPerMinute = 0
	cfg.RateLimiting.Stream.Burst = 0
	cfg.RateLimiting.Stream.MaxConcurrent = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to be valid when rate limiting disabled, got error: %v", err)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name: "http rps must be > 0",
			mutate: func(c *Config) {
				c.RateLimiting.HTTP.RequestsPerSecond = 0
			},
		},
		{
			name: "http burst must be > 0",
			mutate: func(c *Config) {
				c.RateLimiting.HTTP.Burst = 0
			},
		},
		{
			name: "stream connections per minute must be > 0",
			mutate: func(c *Config) {
				c.RateLimiting.Stream.ConnectionsPerMinute = 0
			},
		},
		{
			name: "stream max concurrent must be >= 0",
			mutate: func(c *Config) {
				c.RateLimiting.Stream.MaxConcurrent = -1
			},
		},
		{
			name: "heartbeat must be > 0",
			mutate: func(c *Config) {
				c.Stream.HeartbeatInterval = 0
			},
		},
		{
			name: "pong timeout must exceed heartbeat",
			mutate: func(c *Config) {
				c.Stream.PongTimeout = c.Stream.HeartbeatInterval
			},
		},
		{
			name: "unknown storage driver",
			mutate: func(c *Config) {
				c.Storage.Driver = "mongo"
			},
		},
		{
			name: "sql driver needs dsn",
			mutate: func(c *Config) {
				c.Storage.Driver = "postgres"
				c.Storage.SQL.DSN = ""
			},
		},
		{
			name: "redis driver needs redis",
			mutate: func(c *Config) {
				c.Storage.Driver = "redis"
				c.Redis.Enabled = false
			},
		},
		{
			name: "cluster needs redis",
			mutate: func(c *Config) {
				c.Cluster.Enabled = true
				c.Redis.Enabled = false
			},
		},
		{
			name: "auth needs secret",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.JWTSecret = ""
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tc.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("expected default address, got %q", cfg.Server.Address)
	}
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlData := []byte(`
server:
  address: ":9000"
stream:
  heartbeat_interval: 15s
storage:
  driver: file
  file:
    dir: /tmp/sprinta
`)
	if err := os.WriteFile(path, yamlData, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SPRINTA_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":9000" {
		t.Errorf("address = %q, want :9000", cfg.Server.Address)
	}
	if cfg.Stream.HeartbeatInterval != 15*time.Second {
		t.Errorf("heartbeat = %v, want 15s", cfg.Stream.HeartbeatInterval)
	}
	if cfg.Storage.Driver != "file" || cfg.Storage.File.Dir != "/tmp/sprinta" {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
