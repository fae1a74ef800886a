package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Signal struct {
		PingInterval   time.Duration `yaml:"ping_interval"`
		PongTimeout    time.Duration `yaml:"pong_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		SendBuffer     int           `yaml:"send_buffer"`
		MaxMessageSize int64         `yaml:"max_message_size_bytes"`
	} `yaml:"signal"`

	Rooms struct {
		Names          []string `yaml:"names"`
		DefaultAllowed []string `yaml:"default_allowed"`
		HistoryWindow  int      `yaml:"history_window"`
	} `yaml:"rooms"`

	Storage struct {
		Backend        string        `yaml:"backend"` // memory | redis | badger
		AdapterTimeout time.Duration `yaml:"adapter_timeout"`

		Redis struct {
			Address  string `yaml:"address"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size"`
		} `yaml:"redis"`

		Badger struct {
			Path string `yaml:"path"`
		} `yaml:"badger"`
	} `yaml:"storage"`

	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`

		RootAdmin struct {
			Username string `yaml:"username"`
			Password string `yaml:"password"`
		} `yaml:"root_admin"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"http"`

		WebSocket struct {
			MessagesPerSecond float64 `yaml:"messages_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`

	Monitoring struct {
		PrometheusEnabled bool   `yaml:"prometheus_enabled"`
		MetricsPath       string `yaml:"metrics_path"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
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

	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.PongTimeout <= c.Signal.PingInterval {
		return fmt.Errorf("signal.pong_timeout must be greater than signal.ping_interval")
	}
	if c.Signal.SendBuffer <= 0 {
		return fmt.Errorf("signal.send_buffer must be > 0")
	}

	if len(c.Rooms.Names) == 0 {
		return fmt.Errorf("rooms.names must not be empty")
	}
	seen := make(map[string]bool, len(c.Rooms.Names))
	for _, name := range c.Rooms.Names {
		if name == "" {
			return fmt.Errorf("rooms.names must not contain empty names")
		}
		if seen[name] {
			return fmt.Errorf("rooms.names contains duplicate room %q", name)
		}
		seen[name] = true
	}
	for _, name := range c.Rooms.DefaultAllowed {
		if !seen[name] {
			return fmt.Errorf("rooms.default_allowed contains unknown room %q", name)
		}
	}
	if c.Rooms.HistoryWindow <= 0 {
		return fmt.Errorf("rooms.history_window must be > 0")
	}

	switch c.Storage.Backend {
	case "memory", "redis", "badger":
	default:
		return fmt.Errorf("storage.backend must be one of memory, redis, badger")
	}
	if c.Storage.AdapterTimeout <= 0 {
		return fmt.Errorf("storage.adapter_timeout must be > 0")
	}
	if c.Storage.Backend == "redis" && c.Storage.Redis.Address == "" {
		return fmt.Errorf("storage.redis.address must not be empty")
	}
	if c.Storage.Backend == "badger" && c.Storage.Badger.Path == "" {
		return fmt.Errorf("storage.badger.path must not be empty")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be > 0")
	}
	if c.Auth.RootAdmin.Username == "" || c.Auth.RootAdmin.Password == "" {
		return fmt.Errorf("auth.root_admin username and password must not be empty")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.websocket.messages_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket.burst must be > 0 when rate limiting is enabled")
		}
	}

	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing is enabled")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file yields the defaults.
func Load(configPath string) (*Config, error) {
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

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":3001"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Signal.PingInterval = 30 * time.Second
	cfg.Signal.PongTimeout = 60 * time.Second
	cfg.Signal.WriteTimeout = 10 * time.Second
	cfg.Signal.SendBuffer = 64
	cfg.Signal.MaxMessageSize = 4 * 1024 * 1024 // attachments travel base64-encoded

	cfg.Rooms.Names = []string{"Geral", "Dúvidas", "Projetos"}
	cfg.Rooms.DefaultAllowed = []string{"Geral"}
	cfg.Rooms.HistoryWindow = 50

	cfg.Storage.Backend = "memory"
	cfg.Storage.AdapterTimeout = 3 * time.Second
	cfg.Storage.Redis.Address = "localhost:6379"
	cfg.Storage.Redis.PoolSize = 10
	cfg.Storage.Badger.Path = "data/colab"

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.TokenTTL = 24 * time.Hour
	cfg.Auth.RootAdmin.Username = "admin"
	cfg.Auth.RootAdmin.Password = "admin"

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 50
	cfg.RateLimiting.WebSocket.Burst = 100

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.MetricsPath = "/metrics"

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "colab-broker"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("COLAB_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("COLAB_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("COLAB_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if backend := os.Getenv("COLAB_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if addr := os.Getenv("COLAB_REDIS_ADDRESS"); addr != "" {
		c.Storage.Redis.Address = addr
	}
	if pw := os.Getenv("COLAB_ROOT_ADMIN_PASSWORD"); pw != "" {
		c.Auth.RootAdmin.Password = pw
	}
}
