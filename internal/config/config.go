// Package config provides configuration management for itchdesk
//
// Priority: CLI flags > environment variables > config file > defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alexbotov/itchdesk/internal/diag"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for itchdesk
type Config struct {
	API         APIConfig      `yaml:"api"`
	Credentials KeyConfig      `yaml:"credentials"`
	Database    DatabaseConfig `yaml:"database"`
	Redis       RedisConfig    `yaml:"redis"`
	MetricsAddr string         `yaml:"metrics_addr,omitempty"`
	Debug       bool           `yaml:"debug,omitempty"`
}

// APIConfig holds itch.io API client configuration
type APIConfig struct {
	Root     string        `yaml:"root"`
	Cooldown time.Duration `yaml:"cooldown"`
	Timeout  time.Duration `yaml:"timeout"`
}

// KeyConfig controls where the API key is saved between runs
type KeyConfig struct {
	File   string `yaml:"file"`
	Secret string `yaml:"-"`
}

// DatabaseConfig holds the library cache database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn,omitempty"`
}

// RedisConfig holds the response cache configuration
type RedisConfig struct {
	Addr string        `yaml:"addr,omitempty"`
	TTL  time.Duration `yaml:"ttl"`
}

// Load reads the config file, then applies environment overrides
func Load() (*Config, error) {
	cfg := Defaults()

	path := FilePath()
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		API: APIConfig{
			Root:     "https://itch.io",
			Cooldown: 130 * time.Millisecond,
			Timeout:  30 * time.Second,
		},
		Credentials: KeyConfig{
			File: filepath.Join(configDir(), "key"),
		},
		Database: DatabaseConfig{
			Driver: "postgres",
		},
		Redis: RedisConfig{
			TTL: 10 * time.Minute,
		},
	}
}

func applyEnv(cfg *Config) error {
	cfg.API.Root = getEnv("ITCHDESK_API_ROOT", cfg.API.Root)
	cfg.Credentials.File = getEnv("ITCHDESK_KEY_FILE", cfg.Credentials.File)
	cfg.Credentials.Secret = getEnv("ITCHDESK_KEY_SECRET", cfg.Credentials.Secret)
	cfg.Database.Driver = getEnv("ITCHDESK_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnv("ITCHDESK_DB_DSN", cfg.Database.DSN)
	cfg.Redis.Addr = getEnv("ITCHDESK_REDIS_ADDR", cfg.Redis.Addr)
	cfg.MetricsAddr = getEnv("ITCHDESK_METRICS_ADDR", cfg.MetricsAddr)

	var err error
	if cfg.API.Cooldown, err = getDuration("ITCHDESK_COOLDOWN", cfg.API.Cooldown); err != nil {
		return err
	}
	if cfg.API.Timeout, err = getDuration("ITCHDESK_TIMEOUT", cfg.API.Timeout); err != nil {
		return err
	}
	if cfg.Redis.TTL, err = getDuration("ITCHDESK_REDIS_TTL", cfg.Redis.TTL); err != nil {
		return err
	}

	if diag.Enabled() {
		cfg.Debug = true
	}
	return nil
}

// RegisterFlags binds command line flags to cfg. Values already in cfg are
// the flag defaults, so flags win only when given.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.API.Root, "api-root", c.API.Root, "itch.io API host")
	fs.DurationVar(&c.API.Cooldown, "cooldown", c.API.Cooldown, "Minimum delay between API requests")
	fs.DurationVar(&c.API.Timeout, "timeout", c.API.Timeout, "HTTP timeout per request")
	fs.StringVar(&c.Credentials.File, "key-file", c.Credentials.File, "Where the API key is saved")
	fs.StringVar(&c.Database.DSN, "db", c.Database.DSN, "PostgreSQL DSN for the library cache (empty disables)")
	fs.StringVar(&c.Redis.Addr, "redis", c.Redis.Addr, "Redis address for the response cache (empty uses memory)")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Serve Prometheus metrics on this address")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Log every API request to stderr")
}

// Validate returns an error if the configuration cannot work
func (c *Config) Validate() error {
	if c.API.Root == "" {
		return errors.New("api root is required (--api-root or ITCHDESK_API_ROOT)")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.API.Timeout)
	}
	if c.Credentials.File == "" {
		return errors.New("key file path is required (--key-file or ITCHDESK_KEY_FILE)")
	}
	if c.Database.DSN != "" && c.Database.Driver == "" {
		return errors.New("database driver is required when a DSN is set")
	}
	return nil
}

// Save writes the config to the default config file path
func (c *Config) Save() error {
	path := FilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// FilePath returns the path to the config file
func FilePath() string {
	if v := os.Getenv("ITCHDESK_CONFIG"); v != "" {
		return v
	}
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "itchdesk")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
