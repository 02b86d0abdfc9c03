package infra

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the whole service configuration. LoadConfig reads the
// YAML file and then applies environment overrides for host values.
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Env  string `yaml:"env"`
	} `yaml:"app"`

	Service struct {
		Addr string `yaml:"addr"`
	} `yaml:"service"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	API struct {
		Gds struct {
			BaseURL    string `yaml:"base_url"`
			TimeoutSec int    `yaml:"timeout_sec"`
		} `yaml:"gds"`
		Price struct {
			BaseURL    string `yaml:"base_url"`
			UserAgent  string `yaml:"user_agent"`
			TimeoutSec int    `yaml:"timeout_sec"`
		} `yaml:"price"`
	} `yaml:"api"`

	Quota struct {
		WindowHours int `yaml:"window_hours"`
	} `yaml:"quota"`

	SoftLock struct {
		MaxAttempts  int `yaml:"max_attempts"`
		RetryWaitSec int `yaml:"retry_wait_sec"`
	} `yaml:"soft_lock"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig reads and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Service.Addr == "" {
		return fmt.Errorf("service listen address is required")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	if c.API.Gds.BaseURL == "" {
		return fmt.Errorf("gds base URL is required")
	}
	if c.API.Price.BaseURL == "" {
		return fmt.Errorf("price base URL is required")
	}
	if c.Quota.WindowHours < 0 {
		return fmt.Errorf("quota window must not be negative")
	}
	return nil
}

// QuotaWindow returns the configured reset window; zero means the
// engine default applies.
func (c *Config) QuotaWindow() time.Duration {
	return time.Duration(c.Quota.WindowHours) * time.Hour
}

// LockWait returns the soft-lock retry interval; zero means the
// service default applies.
func (c *Config) LockWait() time.Duration {
	return time.Duration(c.SoftLock.RetryWaitSec) * time.Second
}

// overrideWithEnv applies environment variables over the file values.
func overrideWithEnv(cfg *Config) {
	if addr := os.Getenv("TDP_SERVICE_ADDR"); addr != "" {
		cfg.Service.Addr = addr
	}
	if path := os.Getenv("TDP_STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if url := os.Getenv("TDP_GDS_URL"); url != "" {
		cfg.API.Gds.BaseURL = url
	}
	if url := os.Getenv("TDP_PRICE_URL"); url != "" {
		cfg.API.Price.BaseURL = url
	}
}
