package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		InstanceID      string        `yaml:"instance_id"`
	} `yaml:"server"`

	Stream struct {
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
		WriteTimeout      time.Duration `yaml:"write_timeout"`
		RetryHint         time.Duration `yaml:"retry_hint"`
		WebSocketEnabled  bool          `yaml:"websocket_enabled"`
		PongTimeout       time.Duration `yaml:"pong_timeout"`
	} `yaml:"stream"`

	Storage struct {
		Driver string `yaml:"driver"` // memory, file, redis, postgres, sqlite

		File struct {
			Dir           string        `yaml:"dir"`
			Watch         bool          `yaml:"watch"`
			WatchDebounce time.Duration `yaml:"watch_debounce"`
		} `yaml:"file"`

		SQL struct {
			DSN         string `yaml:"dsn"`
			AutoMigrate bool   `yaml:"auto_migrate"`
		} `yaml:"sql"`
	} `yaml:"storage"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Cluster struct {
		Enabled bool   `yaml:"enabled"`
		Channel string `yaml:"channel"`
	} `yaml:"cluster"`

	Monitoring struct {
		PrometheusEnabled bool          `yaml:"prometheus_enabled"`
		HealthInterval    time.Duration `yaml:"health_interval"`
		HealthTimeout     time.Duration `yaml:"health_timeout"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Auth struct {
		Enabled        bool          `yaml:"enabled"`
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	} `yaml:"auth"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	Cache struct {
		PreferencesTTL time.Duration `yaml:"preferences_ttl"`
	} `yaml:"cache"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		Stream struct {
			ConnectionsPerMinute int `yaml:"connections_per_minute"`
			Burst                int `yaml:"burst"`
			MaxConcurrent        int `yaml:"max_concurrent_connections"`
		} `yaml:"stream"`
	} `yaml:"rate_limiting"`
}

var storageDrivers = map[string]bool{
	"memory":   true,
	"file":     true,
	"redis":    true,
	"postgres": true,
	"sqlite":   true,
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server.write_timeout must be >= 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Stream
	if c.Stream.HeartbeatInterval <= 0 {
		return fmt.Errorf("stream.heartbeat_interval must be > 0")
	}
	if c.Stream.WriteTimeout < 0 {
		return fmt.Errorf("stream.write_timeout must be >= 0")
	}
	if c.Stream.RetryHint < 0 {
		return fmt.Errorf("stream.retry_hint must be >= 0")
	}
	if c.Stream.WebSocketEnabled && c.Stream.PongTimeout <= c.Stream.HeartbeatInterval {
		return fmt.Errorf("stream.pong_timeout must be greater than stream.heartbeat_interval")
	}

	// Storage
	if !storageDrivers[c.Storage.Driver] {
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	if c.Storage.Driver == "file" && c.Storage.File.Dir == "" {
		return fmt.Errorf("storage.file.dir must not be empty when storage.driver=file")
	}
	if (c.Storage.Driver == "postgres" || c.Storage.Driver == "sqlite") && c.Storage.SQL.DSN == "" {
		return fmt.Errorf("storage.sql.dsn must not be empty when storage.driver=%s", c.Storage.Driver)
	}
	if c.Storage.Driver == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("redis.enabled must be true when storage.driver=redis")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	// Cluster
	if c.Cluster.Enabled {
		if !c.Redis.Enabled {
			return fmt.Errorf("redis.enabled must be true when cluster.enabled=true")
		}
		if c.Cluster.Channel == "" {
			return fmt.Errorf("cluster.channel must not be empty when cluster.enabled=true")
		}
	}

	// Monitoring
	if c.Monitoring.HealthInterval <= 0 {
		return fmt.Errorf("monitoring.health_interval must be > 0")
	}
	if c.Monitoring.HealthTimeout <= 0 {
		return fmt.Errorf("monitoring.health_timeout must be > 0")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Auth
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret must not be empty when auth.enabled=true")
		}
		if c.Auth.AccessTokenTTL <= 0 {
			return fmt.Errorf("auth.access_token_ttl must be > 0")
		}
	}

	// Cache
	if c.Cache.PreferencesTTL < 0 {
		return fmt.Errorf("cache.preferences_ttl must be >= 0")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Stream.ConnectionsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.stream.connections_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Stream.Burst <= 0 {
			return fmt.Errorf("rate_limiting.stream.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Stream.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.stream.max_concurrent_connections must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	// Streams are long-lived; a server-wide write timeout would cut them off.
	cfg.Server.WriteTimeout = 0
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Stream.HeartbeatInterval = 30 * time.Second
	cfg.Stream.WriteTimeout = 10 * time.Second
	cfg.Stream.RetryHint = 0
	cfg.Stream.WebSocketEnabled = true
	cfg.Stream.PongTimeout = 60 * time.Second

	cfg.Storage.Driver = "memory"
	cfg.Storage.File.Dir = "data"
	cfg.Storage.File.Watch = true
	cfg.Storage.File.WatchDebounce = 500 * time.Millisecond
	cfg.Storage.SQL.AutoMigrate = true

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Cluster.Enabled = false
	cfg.Cluster.Channel = "sprinta:notifications"

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.HealthInterval = 30 * time.Second
	cfg.Monitoring.HealthTimeout = 2 * time.Second

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Auth.Enabled = false
	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 24 * time.Hour

	cfg.CORS.AllowedOrigins = []string{"*"}

	cfg.Cache.PreferencesTTL = time.Minute

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "sprinta-notify"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.Stream.ConnectionsPerMinute = 30
	cfg.RateLimiting.Stream.Burst = 10
	cfg.RateLimiting.Stream.MaxConcurrent = 0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("SPRINTA_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if id := os.Getenv("SPRINTA_INSTANCE_ID"); id != "" {
		c.Server.InstanceID = id
	}
	if level := os.Getenv("SPRINTA_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("SPRINTA_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if driver := os.Getenv("SPRINTA_STORAGE_DRIVER"); driver != "" {
		c.Storage.Driver = strings.ToLower(driver)
	}
	if dir := os.Getenv("SPRINTA_DATA_DIR"); dir != "" {
		c.Storage.File.Dir = dir
	}
	if dsn := os.Getenv("SPRINTA_SQL_DSN"); dsn != "" {
		c.Storage.SQL.DSN = dsn
	}
	if addr := os.Getenv("SPRINTA_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
}
