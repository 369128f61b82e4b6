package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/reflectd-dev/reflectd/internal/config"
	"github.com/reflectd-dev/reflectd/internal/generator"
	"github.com/reflectd-dev/reflectd/internal/store"
)

// buildStore creates the configured persistence backend.
func buildStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "redis":
		return store.NewRedisStore(store.RedisConfig{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
			Prefix:   cfg.Storage.KeyPrefix,
		})
	case "file":
		return store.NewFileStore(cfg.Storage.FilePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// buildGenerator creates the language generator stack: OpenAI when a key
// is configured, the scripted mock otherwise, wrapped with rate limiting
// and instrumentation.
func buildGenerator(cfg *config.Config, logger *zap.Logger) generator.Generator {
	var gen generator.Generator
	if cfg.OpenAIKey != "" {
		openAI, err := generator.NewOpenAI(generator.OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.Model,
		})
		if err != nil {
			logger.Warn("openai init failed, falling back to scripted responses", zap.Error(err))
			gen = generator.NewMock()
		} else {
			gen = openAI
		}
	} else {
		logger.Warn("no OpenAI key configured, using scripted responses")
		gen = generator.NewMock()
	}

	gen = generator.NewLimited(gen, cfg.RatePerSecond, cfg.RateBurst)
	return generator.NewInstrumented(gen)
}
