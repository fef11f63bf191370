package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Sync     SyncConfig     `yaml:"sync"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds Redis configuration for sync progress reporting.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TagMode controls what a bulk sync does to a subscriber's existing tags.
type TagMode string

const (
	// TagModePreserve leaves tag memberships untouched; the engine writes
	// only subscriber rows.
	TagModePreserve TagMode = "preserve"
	// TagModeReplace makes the API layer sync submitted tag ids per
	// subscriber after reconciliation.
	TagModeReplace TagMode = "replace"
)

// SyncConfig tunes the bulk reconciliation engine.
type SyncConfig struct {
	// ChunkSize bounds rows per write round trip. Large meta payloads may
	// warrant a smaller value since they inflate statement size
	// independently of row count.
	ChunkSize int `yaml:"chunk_size"`
	// Workers is the number of chunks written concurrently.
	Workers int `yaml:"workers"`
	// TagMode is "preserve" (default) or "replace".
	TagMode TagMode `yaml:"tag_mode"`
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads the YAML file (if present) and applies environment
// overrides. A .env file is honored when one exists.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("SYNC_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.ChunkSize = n
		}
	}
	if v := os.Getenv("SYNC_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.Workers = n
		}
	}
	if v := os.Getenv("SYNC_TAG_MODE"); v != "" {
		cfg.Sync.TagMode = TagMode(v)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Sync.ChunkSize == 0 {
		c.Sync.ChunkSize = 50
	}
	if c.Sync.Workers == 0 {
		c.Sync.Workers = 1
	}
	if c.Sync.TagMode == "" {
		c.Sync.TagMode = TagModePreserve
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
}
