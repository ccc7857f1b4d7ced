package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oriys/airgate/internal/observability"
)

// ErrMissingAPIKey is returned by Validate when no provider key is configured.
var ErrMissingAPIKey = errors.New("upstream API key is not configured: set API_NINJAS_KEY")

// UpstreamConfig holds air-quality provider settings
type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig holds payload cache settings
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// CORSConfig holds cross-origin settings for browser clients
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// DaemonConfig holds daemon-specific settings
type DaemonConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	LookupLogFile   string        `yaml:"lookup_log_file"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Config is the central configuration struct embedding all component configs
type Config struct {
	Daemon   DaemonConfig         `yaml:"daemon"`
	Upstream UpstreamConfig       `yaml:"upstream"`
	Cache    CacheConfig          `yaml:"cache"`
	CORS     CORSConfig           `yaml:"cors"`
	Metrics  MetricsConfig        `yaml:"metrics"`
	Tracing  observability.Config `yaml:"tracing"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{
			HTTPAddr:        ":5000",
			LogLevel:        "info",
			LogFormat:       "text",
			ShutdownTimeout: 5 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL: "https://api.api-ninjas.com",
			Timeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 3600 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Metrics: MetricsConfig{
			Namespace: "airgate",
		},
		Tracing: observability.Config{
			Enabled:     false,
			Exporter:    "otlp-http",
			Endpoint:    "localhost:4318",
			ServiceName: "airgate",
			SampleRate:  1.0,
		},
	}
}

// LoadFromFile loads configuration from a YAML (or JSON) file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv("API_NINJAS_KEY"); v != "" {
		cfg.Upstream.APIKey = v
	}
	if v := os.Getenv("AIRGATE_HTTP_ADDR"); v != "" {
		cfg.Daemon.HTTPAddr = v
	}
	if v := os.Getenv("AIRGATE_LOG_LEVEL"); v != "" {
		cfg.Daemon.LogLevel = v
	}
	if v := os.Getenv("AIRGATE_LOG_FORMAT"); v != "" {
		cfg.Daemon.LogFormat = v
	}
	if v := os.Getenv("AIRGATE_LOOKUP_LOG"); v != "" {
		cfg.Daemon.LookupLogFile = v
	}
	if v := os.Getenv("AIRGATE_UPSTREAM_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("AIRGATE_UPSTREAM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AIRGATE_UPSTREAM_TIMEOUT: %w", err)
		}
		cfg.Upstream.Timeout = d
	}
	if v := os.Getenv("AIRGATE_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AIRGATE_CACHE_TTL: %w", err)
		}
		cfg.Cache.TTL = d
	}
	if v := os.Getenv("AIRGATE_CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORS.AllowedOrigins = origins
	}
	if v := os.Getenv("AIRGATE_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Endpoint = v
	}
	return nil
}

// Validate reports configuration that must stop the daemon from starting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Upstream.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", c.Cache.TTL)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive, got %s", c.Upstream.Timeout)
	}
	if c.Daemon.HTTPAddr == "" {
		return errors.New("http address is required")
	}
	return nil
}
