// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Identity      IdentityConfig      `yaml:"identity"`
	GraphQL       GraphQLConfig       `yaml:"graphql"`
	Session       SessionConfig       `yaml:"session"`
	Pages         PagesConfig         `yaml:"pages"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// IdentityConfig describes where the console finds the user's name and
// authorities in the bearer token. The backend verifies the token; the
// console only reads it.
type IdentityConfig struct {
	UsernameClaim    string `yaml:"username_claim"`
	AuthoritiesClaim string `yaml:"authorities_claim"`
	// RequireToken rejects API requests without a bearer token.
	RequireToken bool `yaml:"require_token"`
}

// GraphQLConfig describes the evidence engine's GraphQL endpoint.
type GraphQLConfig struct {
	Endpoint       string               `yaml:"endpoint"`
	Timeout        time.Duration        `yaml:"timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry          RetryConfig          `yaml:"retry"`
}

// CircuitBreakerConfig describes circuit breaker settings.
type CircuitBreakerConfig struct {
	FailureThreshold   int           `yaml:"failure_threshold"`
	SuccessThreshold   int           `yaml:"success_threshold"`
	Timeout            time.Duration `yaml:"timeout"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold"`
	ErrorRateWindow    time.Duration `yaml:"error_rate_window"`
}

// RetryConfig describes retry settings.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffInitial    time.Duration `yaml:"backoff_initial"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
	// QueriesOnly restricts retries to read queries. Mutations are never
	// retried when set.
	QueriesOnly bool `yaml:"queries_only"`
}

// SessionConfig describes per-browser-session state.
type SessionConfig struct {
	Store  string        `yaml:"store"`
	Header string        `yaml:"header"`
	TTL    time.Duration `yaml:"ttl"`
	// Idle is how long a session's listings stay in process memory after its
	// last request. Durable state survives eviction in the store.
	Idle          time.Duration      `yaml:"idle"`
	SweepInterval time.Duration      `yaml:"sweep_interval"`
	Redis         RedisSessionConfig `yaml:"redis"`
}

// RedisSessionConfig describes the Redis session store.
type RedisSessionConfig struct {
	Addr    string `yaml:"addr"`
	AddrEnv string `yaml:"addr_env"`
	DB      int    `yaml:"db"`
}

// PagesConfig describes listing page defaults.
type PagesConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Session store drivers.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type", "X-Session-Id", "X-Request-Id"},
				MaxAge:         86400,
			},
		},
		Identity: IdentityConfig{
			UsernameClaim:    "sub",
			AuthoritiesClaim: "authorities",
		},
		GraphQL: GraphQLConfig{
			Timeout: 10 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
			Retry: RetryConfig{
				MaxAttempts:       3,
				BackoffInitial:    100 * time.Millisecond,
				BackoffMultiplier: 2,
				BackoffMax:        2 * time.Second,
				QueriesOnly:       true,
			},
		},
		Session: SessionConfig{
			Store:         SessionStoreMemory,
			Header:        "X-Session-Id",
			TTL:           12 * time.Hour,
			Idle:          30 * time.Minute,
			SweepInterval: time.Minute,
		},
		Pages: PagesConfig{
			DefaultPageSize: 10,
			MaxPageSize:     100,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.GraphQL.Endpoint == "" {
		errs = append(errs, "graphql.endpoint is required")
	}
	switch c.Session.Store {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.Session.Redis.Addr == "" {
			errs = append(errs, "session.redis.addr is required for the redis store")
		}
	default:
		errs = append(errs, fmt.Sprintf("session.store %q must be %q or %q", c.Session.Store, SessionStoreMemory, SessionStoreRedis))
	}
	if c.Session.Header == "" {
		errs = append(errs, "session.header is required")
	}
	if c.Session.Idle > 0 && c.Session.SweepInterval <= 0 {
		errs = append(errs, "session.sweep_interval must be positive when session.idle is set")
	}
	if c.Pages.DefaultPageSize < 1 {
		errs = append(errs, "pages.default_page_size must be positive")
	}
	if c.Pages.MaxPageSize < c.Pages.DefaultPageSize {
		errs = append(errs, "pages.max_page_size must not be less than pages.default_page_size")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads EVIDENCE_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EVIDENCE_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("EVIDENCE_GRAPHQL_ENDPOINT"); v != "" {
		cfg.GraphQL.Endpoint = v
	}
	if v := os.Getenv("EVIDENCE_SESSION_STORE"); v != "" {
		cfg.Session.Store = v
	}
	if env := cfg.Session.Redis.AddrEnv; env != "" {
		if v := os.Getenv(env); v != "" {
			cfg.Session.Redis.Addr = v
		}
	}
	if v := os.Getenv("EVIDENCE_SESSION_REDIS_ADDR"); v != "" {
		cfg.Session.Redis.Addr = v
	}
	if v := os.Getenv("EVIDENCE_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}
