package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"fleetpulse/internal/core/domain"
	"fleetpulse/pkg/validation"

	"gopkg.in/yaml.v2"
)

const defaultSocketURL = "ws://localhost:8081/ws"

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Realtime struct {
		SocketURL            string                    `yaml:"socket_url"`
		AutoConnect          bool                      `yaml:"auto_connect"`
		ReconnectInterval    time.Duration             `yaml:"reconnect_interval"`
		ReconnectMaxInterval time.Duration             `yaml:"reconnect_max_interval"`
		MaxReconnectAttempts int                       `yaml:"max_reconnect_attempts"`
		HeartbeatInterval    time.Duration             `yaml:"heartbeat_interval"`
		HeartbeatStaleAfter  time.Duration             `yaml:"heartbeat_stale_after"`
		StatsInterval        time.Duration             `yaml:"stats_interval"`
		DialTimeout          time.Duration             `yaml:"dial_timeout"`
		WriteTimeout         time.Duration             `yaml:"write_timeout"`
		LogEvents            bool                      `yaml:"log_events"`
		Channels             []string                  `yaml:"channels"`
		Filters              domain.SubscriptionFilter `yaml:"filters"`
	} `yaml:"realtime"`

	Auth struct {
		TokenSource string `yaml:"token_source"` // file | redis
		TokenFile   string `yaml:"token_file"`
		TokenKey    string `yaml:"token_key"`
	} `yaml:"auth"`

	Notifications struct {
		Enabled      bool          `yaml:"enabled"`
		SoundEnabled bool          `yaml:"sound_enabled"`
		SoundDir     string        `yaml:"sound_dir"`
		SoundCommand string        `yaml:"sound_command"`
		AutoDismiss  time.Duration `yaml:"auto_dismiss"`
		DedupeWindow time.Duration `yaml:"dedupe_window"`
		Icon         string        `yaml:"icon"`
		Badge        string        `yaml:"badge"`
		// PublishChannel fans raised alerts out over redis when set.
		PublishChannel string `yaml:"publish_channel"`
	} `yaml:"notifications"`

	Alerts struct {
		MaxRetained int `yaml:"max_retained"`
		MaxVisible  int `yaml:"max_visible"`
	} `yaml:"alerts"`

	Locations struct {
		// StaleAfter of zero keeps entries until they are overwritten.
		StaleAfter time.Duration `yaml:"stale_after"`
		Store      string        `yaml:"store"` // memory | redis
	} `yaml:"locations"`

	Activity struct {
		MinInterval time.Duration `yaml:"min_interval"`
	} `yaml:"activity"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
		MaxConcurrent     int     `yaml:"max_concurrent"`
	} `yaml:"rate_limiting"`

	Simulator struct {
		Address      string        `yaml:"address"`
		JWTSecret    string        `yaml:"jwt_secret"`
		TokenTTL     time.Duration `yaml:"token_ttl"`
		EmitInterval time.Duration `yaml:"emit_interval"`
		Drivers      int           `yaml:"drivers"`
	} `yaml:"simulator"`
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
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Realtime
	if err := validation.ValidateSocketURL(c.Realtime.SocketURL); err != nil {
		return fmt.Errorf("realtime.socket_url %q: %w", c.Realtime.SocketURL, err)
	}
	if c.Realtime.ReconnectInterval <= 0 {
		return fmt.Errorf("realtime.reconnect_interval must be > 0")
	}
	if c.Realtime.ReconnectMaxInterval < c.Realtime.ReconnectInterval {
		return fmt.Errorf("realtime.reconnect_max_interval must be >= reconnect_interval")
	}
	if c.Realtime.MaxReconnectAttempts < 0 {
		return fmt.Errorf("realtime.max_reconnect_attempts must be >= 0")
	}
	if c.Realtime.HeartbeatInterval <= 0 {
		return fmt.Errorf("realtime.heartbeat_interval must be > 0")
	}
	if c.Realtime.HeartbeatStaleAfter <= c.Realtime.HeartbeatInterval {
		return fmt.Errorf("realtime.heartbeat_stale_after must be > heartbeat_interval")
	}
	if c.Realtime.StatsInterval <= 0 {
		return fmt.Errorf("realtime.stats_interval must be > 0")
	}
	if c.Realtime.DialTimeout <= 0 {
		return fmt.Errorf("realtime.dial_timeout must be > 0")
	}

	// Auth
	switch c.Auth.TokenSource {
	case "file":
		if c.Auth.TokenFile == "" {
			return fmt.Errorf("auth.token_file must not be empty when token_source=file")
		}
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("auth.token_source=redis requires redis.enabled=true")
		}
	default:
		return fmt.Errorf("auth.token_source must be file or redis, got %q", c.Auth.TokenSource)
	}
	if c.Auth.TokenKey == "" {
		return fmt.Errorf("auth.token_key must not be empty")
	}

	// Notifications
	if c.Notifications.AutoDismiss <= 0 {
		return fmt.Errorf("notifications.auto_dismiss must be > 0")
	}
	if c.Notifications.DedupeWindow < 0 {
		return fmt.Errorf("notifications.dedupe_window must be >= 0")
	}

	// Alerts
	if c.Alerts.MaxRetained <= 0 {
		return fmt.Errorf("alerts.max_retained must be > 0")
	}
	if c.Alerts.MaxVisible <= 0 || c.Alerts.MaxVisible > c.Alerts.MaxRetained {
		return fmt.Errorf("alerts.max_visible must be in (0, max_retained]")
	}

	// Locations
	if c.Locations.StaleAfter < 0 {
		return fmt.Errorf("locations.stale_after must be >= 0")
	}
	if c.Locations.Store != "memory" && c.Locations.Store != "redis" {
		return fmt.Errorf("locations.store must be memory or redis, got %q", c.Locations.Store)
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
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

	// Tracing
	if c.Tracing.Enabled && (c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1) {
		return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.max_concurrent must be >= 0 when rate limiting is enabled")
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

// LoadFirst loads the first path that exists. An existing file that fails
// to load is an error; defaults apply only when none of the paths exist.
func LoadFirst(paths []string) (*Config, string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := Load(path)
		return cfg, path, err
	}
	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	return cfg, "", nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8090"
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.ShutdownTimeout = 10 * time.Second

	cfg.Realtime.SocketURL = DefaultSocketURL()
	cfg.Realtime.AutoConnect = true
	cfg.Realtime.ReconnectInterval = time.Second
	cfg.Realtime.ReconnectMaxInterval = 30 * time.Second
	cfg.Realtime.MaxReconnectAttempts = 10
	cfg.Realtime.HeartbeatInterval = 30 * time.Second
	cfg.Realtime.HeartbeatStaleAfter = 60 * time.Second
	cfg.Realtime.StatsInterval = 5 * time.Second
	cfg.Realtime.DialTimeout = 10 * time.Second
	cfg.Realtime.WriteTimeout = 5 * time.Second
	cfg.Realtime.Channels = []string{"drivers", "bookings", "incidents", "system"}

	cfg.Auth.TokenSource = "file"
	cfg.Auth.TokenFile = "data/storage.json"
	cfg.Auth.TokenKey = "auth_token"

	cfg.Notifications.Enabled = true
	cfg.Notifications.SoundEnabled = true
	cfg.Notifications.SoundDir = "/sounds"
	cfg.Notifications.AutoDismiss = 5 * time.Second
	cfg.Notifications.DedupeWindow = 30 * time.Second
	cfg.Notifications.Icon = "/icons/alert.png"
	cfg.Notifications.Badge = "/icons/badge.png"

	cfg.Alerts.MaxRetained = 50
	cfg.Alerts.MaxVisible = 20

	cfg.Locations.StaleAfter = 0
	cfg.Locations.Store = "memory"

	cfg.Activity.MinInterval = 30 * time.Second

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 20
	cfg.RateLimiting.Burst = 40
	cfg.RateLimiting.MaxConcurrent = 0

	cfg.Simulator.Address = ":8081"
	cfg.Simulator.JWTSecret = "change-me-in-production"
	cfg.Simulator.TokenTTL = 24 * time.Hour
	cfg.Simulator.EmitInterval = 2 * time.Second
	cfg.Simulator.Drivers = 25

	return cfg
}

// DefaultSocketURL derives the socket URL from the environment, falling back
// to the local simulator.
func DefaultSocketURL() string {
	if u := os.Getenv("FLEETPULSE_SOCKET_URL"); u != "" {
		return u
	}
	if api := os.Getenv("FLEETPULSE_API_URL"); api != "" {
		if u, err := socketURLFromAPI(api); err == nil {
			return u
		}
	}
	return defaultSocketURL
}

func socketURLFromAPI(api string) (string, error) {
	u, err := url.Parse(api)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported api scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("FLEETPULSE_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if u := os.Getenv("FLEETPULSE_SOCKET_URL"); u != "" {
		c.Realtime.SocketURL = u
	}
	if level := os.Getenv("FLEETPULSE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if f := os.Getenv("FLEETPULSE_TOKEN_FILE"); f != "" {
		c.Auth.TokenFile = f
	}
	if addr := os.Getenv("FLEETPULSE_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
	if secret := os.Getenv("FLEETPULSE_SIMULATOR_SECRET"); secret != "" {
		c.Simulator.JWTSecret = secret
	}
}
