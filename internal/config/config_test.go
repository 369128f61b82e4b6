package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("REFLECTD_AUTH_SECRET", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("listenAddr = %s, want :8080", cfg.ListenAddr)
	}
	if cfg.MaxQuestions != 5 {
		t.Errorf("maxQuestions = %d, want 5", cfg.MaxQuestions)
	}
	if cfg.SessionTimeout.Duration() != 20*time.Minute {
		t.Errorf("sessionTimeout = %v, want 20m", cfg.SessionTimeout)
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("backend = %s, want file", cfg.Storage.Backend)
	}
	if cfg.Summary.Schedule != "0 6 * * MON" {
		t.Errorf("schedule = %s", cfg.Summary.Schedule)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
listen_addr: ":9090"
auth_secret: file-secret
model: gpt-4o
max_questions: 3
session_timeout: 10m
storage:
  backend: redis
  redis_addr: redis:6379
  key_prefix: "test:"
summary:
  enabled: true
  concurrency: 2
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("listenAddr = %s", cfg.ListenAddr)
	}
	if cfg.AuthSecret != "file-secret" {
		t.Errorf("authSecret = %s", cfg.AuthSecret)
	}
	if cfg.MaxQuestions != 3 {
		t.Errorf("maxQuestions = %d", cfg.MaxQuestions)
	}
	if cfg.SessionTimeout.Duration() != 10*time.Minute {
		t.Errorf("sessionTimeout = %v", cfg.SessionTimeout)
	}
	if cfg.Storage.Backend != "redis" || cfg.Storage.RedisAddr != "redis:6379" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if !cfg.Summary.Enabled || cfg.Summary.Concurrency != 2 {
		t.Errorf("summary = %+v", cfg.Summary)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadRejectsHostileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	var deep strings.Builder
	for i := 0; i < 40; i++ {
		deep.WriteString(strings.Repeat("  ", i) + "a:\n")
	}
	if err := os.WriteFile(path, []byte(deep.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Load() must reject deeply nested config")
	}
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("REFLECTD_AUTH_SECRET", "env-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OpenAIKey != "sk-env" {
		t.Errorf("openAIKey = %s, want sk-env", cfg.OpenAIKey)
	}
	if cfg.AuthSecret != "env-secret" {
		t.Errorf("authSecret = %s, want env-secret", cfg.AuthSecret)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing secret", func(c *Config) { c.AuthSecret = "" }, true},
		{"bad backend", func(c *Config) { c.Storage.Backend = "dynamo" }, true},
		{"zero questions", func(c *Config) { c.MaxQuestions = 0 }, true},
		{"tiny timeout", func(c *Config) { c.SessionTimeout = Duration(time.Second) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			cfg.AuthSecret = "secret"
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
