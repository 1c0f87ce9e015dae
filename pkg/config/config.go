package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level docstream configuration
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Queue   QueueConfig   `yaml:"queue"`
	Gateway GatewayConfig `yaml:"gateway"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StoreConfig selects and configures the document store backend
type StoreConfig struct {
	Type     string `yaml:"type"` // "filesystem" or "redis"
	DataDir  string `yaml:"data_dir"`
	RedisURL string `yaml:"redis_url"`
}

// QueueConfig configures the processing queue and worker pool
type QueueConfig struct {
	Backend               string        `yaml:"backend"` // "redis" or "memory"
	RedisURL              string        `yaml:"redis_url"`
	MaxConcurrentWorkers  int           `yaml:"max_concurrent_workers"`
	ProcessingTimeout     time.Duration `yaml:"processing_timeout"`
	RetryMaxAttempts      int           `yaml:"retry_max_attempts"`
	StaleJobCheckInterval time.Duration `yaml:"stale_job_check_interval"`
}

// ProviderConfig describes one AI provider entry
type ProviderConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ModelID      string   `yaml:"model_id"`
	APIKey       string   `yaml:"api_key"`
	CostPer1KIn  float64  `yaml:"cost_per_1k_input"`
	CostPer1KOut float64  `yaml:"cost_per_1k_output"`
	CostTier     string   `yaml:"cost_tier"`
	AvgLatencyMS int      `yaml:"avg_latency_ms"`
	MaxContext   int      `yaml:"max_context"`
	QualityScore float64  `yaml:"quality_score"`
	Capabilities []string `yaml:"capabilities"`
	PreferredFor []string `yaml:"preferred_for"`
}

// GatewayConfig configures the model gateway
type GatewayConfig struct {
	DefaultProvider    string                    `yaml:"default_provider"`
	SelectionStrategy  string                    `yaml:"selection_strategy"`
	Providers          map[string]ProviderConfig `yaml:"providers"`
	TaskModelOverrides map[string]string         `yaml:"task_model_overrides"`
	FallbackChain      []string                  `yaml:"fallback_chain"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Type:    "filesystem",
			DataDir: "/var/lib/docstream",
		},
		Queue: QueueConfig{
			Backend:               "memory",
			MaxConcurrentWorkers:  3,
			ProcessingTimeout:     300 * time.Second,
			RetryMaxAttempts:      3,
			StaleJobCheckInterval: 60 * time.Second,
		},
		Gateway: GatewayConfig{
			DefaultProvider:   "local",
			SelectionStrategy: "balanced",
		},
		Log: LogConfig{
			Level: "info",
			JSON:  true,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load reads a YAML config file, applying defaults for unset fields
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "filesystem", "redis":
	default:
		return fmt.Errorf("invalid store type %q", c.Store.Type)
	}

	switch c.Queue.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("invalid queue backend %q", c.Queue.Backend)
	}

	if c.Queue.MaxConcurrentWorkers < 1 {
		return fmt.Errorf("max_concurrent_workers must be >= 1, got %d", c.Queue.MaxConcurrentWorkers)
	}

	if c.Queue.RetryMaxAttempts < 0 {
		return fmt.Errorf("retry_max_attempts must be >= 0, got %d", c.Queue.RetryMaxAttempts)
	}

	if c.Queue.ProcessingTimeout <= 0 {
		return fmt.Errorf("processing_timeout must be positive, got %v", c.Queue.ProcessingTimeout)
	}

	if c.Queue.StaleJobCheckInterval <= 0 {
		return fmt.Errorf("stale_job_check_interval must be positive, got %v", c.Queue.StaleJobCheckInterval)
	}

	switch c.Gateway.SelectionStrategy {
	case "", "cost", "quality", "latency", "balanced", "manual":
	default:
		return fmt.Errorf("invalid selection_strategy %q", c.Gateway.SelectionStrategy)
	}

	return nil
}
