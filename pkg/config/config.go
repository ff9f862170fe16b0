package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/heysubinoy/dollarkv/internal/logger"
)

// DefaultAddr is the address the server binds when none is configured.
const DefaultAddr = ":5555"

type Config struct {
	Addr     string        `yaml:"addr"`
	HTTPAddr string        `yaml:"http_addr"`
	GRPCAddr string        `yaml:"grpc_addr"`
	Store    StoreConfig   `yaml:"store"`
	Limits   LimitsConfig  `yaml:"limits"`
	Log      logger.Config `yaml:"log"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"data_dir"`
}

// LimitsConfig bounds what a single client can consume. Zero values disable
// the corresponding limit, except MaxRequestSize which falls back to the
// protocol default.
type LimitsConfig struct {
	MaxConns       int           `yaml:"max_conns"`
	MaxRequestSize int           `yaml:"max_request_size"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	ConnRate       float64       `yaml:"conn_rate"`
	ConnBurst      int           `yaml:"conn_burst"`
}

// Default returns the configuration used when neither a file nor the
// environment sets anything.
func Default() *Config {
	return &Config{
		Addr:  DefaultAddr,
		Store: StoreConfig{Backend: "memory"},
		Log:   logger.DefaultConfig(),
	}
}

// LoadConfig loads configuration from a YAML file if path is provided,
// then applies environment variable overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	// Set defaults if not provided
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.DataDir == "" && cfg.Store.Backend != "memory" {
		cfg.Store.DataDir = "./data"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "bolt", "badger":
	default:
		return fmt.Errorf("store.backend must be memory, bolt or badger, got %q", c.Store.Backend)
	}
	if c.Limits.MaxConns < 0 {
		return fmt.Errorf("limits.max_conns must be non-negative")
	}
	if c.Limits.MaxRequestSize < 0 {
		return fmt.Errorf("limits.max_request_size must be non-negative")
	}
	if c.Limits.IdleTimeout < 0 {
		return fmt.Errorf("limits.idle_timeout must be non-negative")
	}
	if c.Limits.ConnRate < 0 || c.Limits.ConnBurst < 0 {
		return fmt.Errorf("limits.conn_rate and limits.conn_burst must be non-negative")
	}
	return nil
}

// applyEnvOverrides allows environment variables to override YAML config values
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("KV_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("KV_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("KV_GRPC_ADDR"); v != "" {
		cfg.GRPCAddr = v
	}
	if v := os.Getenv("KV_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("KV_DATA_DIR"); v != "" {
		cfg.Store.DataDir = v
	}
	if v := os.Getenv("KV_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("KV_LOG_FILE"); v != "" {
		cfg.Log.FileName = v
	}

	if v := os.Getenv("KV_MAX_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid KV_MAX_CONNS value: %w", err)
		}
		cfg.Limits.MaxConns = n
	}
	if v := os.Getenv("KV_MAX_REQUEST_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid KV_MAX_REQUEST_SIZE value: %w", err)
		}
		cfg.Limits.MaxRequestSize = n
	}
	if v := os.Getenv("KV_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid KV_IDLE_TIMEOUT value: %w", err)
		}
		cfg.Limits.IdleTimeout = d
	}
	if v := os.Getenv("KV_CONN_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid KV_CONN_RATE value: %w", err)
		}
		cfg.Limits.ConnRate = r
	}
	if v := os.Getenv("KV_CONN_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid KV_CONN_BURST value: %w", err)
		}
		cfg.Limits.ConnBurst = n
	}
	return nil
}
