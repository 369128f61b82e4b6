// Package config loads the reflectd configuration from YAML with
// environment fallbacks.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	// Server
	ListenAddr string `yaml:"listen_addr"`

	// Auth
	AuthSecret string   `yaml:"auth_secret"`
	TokenTTL   Duration `yaml:"token_ttl"`

	// Generator
	OpenAIKey     string  `yaml:"openai_key"`
	OpenAIBaseURL string  `yaml:"openai_base_url"`
	Model         string  `yaml:"model"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`

	// Session pacing
	MaxQuestions   int      `yaml:"max_questions"`
	SessionTimeout Duration `yaml:"session_timeout"`

	// Storage
	Storage StorageConfig `yaml:"storage"`

	// Weekly summaries
	Summary SummaryConfig `yaml:"summary"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // redis, file

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`

	FilePath string `yaml:"file_path"`
}

// SummaryConfig controls the weekly insight scheduler.
type SummaryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Schedule    string `yaml:"schedule"`
	Concurrency int    `yaml:"concurrency"`
}

// Load reads the YAML file at path. An empty path yields the defaults
// plus environment values.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := parseYAML(data, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes the configuration to a YAML file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if c.OpenAIKey == "" {
		c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.OpenAIBaseURL == "" {
		c.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if c.AuthSecret == "" {
		c.AuthSecret = os.Getenv("REFLECTD_AUTH_SECRET")
	}
	if c.Storage.RedisAddr == "" {
		c.Storage.RedisAddr = os.Getenv("REDIS_ADDR")
	}
	if c.Storage.RedisPassword == "" {
		c.Storage.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = Duration(30 * 24 * time.Hour)
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.RatePerSecond == 0 {
		c.RatePerSecond = 2
	}
	if c.RateBurst == 0 {
		c.RateBurst = 4
	}
	if c.MaxQuestions == 0 {
		c.MaxQuestions = 5
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = Duration(20 * time.Minute)
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.RedisAddr == "" {
		c.Storage.RedisAddr = "localhost:6379"
	}
	if c.Summary.Schedule == "" {
		c.Summary.Schedule = "0 6 * * MON"
	}
	if c.Summary.Concurrency == 0 {
		c.Summary.Concurrency = 4
	}
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	if c.AuthSecret == "" {
		return fmt.Errorf("auth_secret is required (or set REFLECTD_AUTH_SECRET)")
	}
	switch c.Storage.Backend {
	case "redis", "file":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.MaxQuestions < 1 {
		return fmt.Errorf("max_questions must be at least 1")
	}
	if c.SessionTimeout.Duration() < time.Minute {
		return fmt.Errorf("session_timeout must be at least one minute")
	}
	return nil
}
