package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reflectd-dev/reflectd/internal/auth"
	"github.com/reflectd-dev/reflectd/internal/engine"
	"github.com/reflectd-dev/reflectd/internal/server"
	"github.com/reflectd-dev/reflectd/internal/summary"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reflection HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	st, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer func() { _ = st.Close() }()

	gen := buildGenerator(cfg, logger)

	authenticator, err := auth.New(cfg.AuthSecret, auth.WithTTL(cfg.TokenTTL.Duration()))
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	eng := engine.New(gen, st, logger,
		engine.WithMaxQuestions(cfg.MaxQuestions),
		engine.WithMaxDuration(cfg.SessionTimeout.Duration()))

	summarizer := summary.New(gen, st, logger,
		summary.WithConcurrency(cfg.Summary.Concurrency))

	var scheduler *summary.Scheduler
	if cfg.Summary.Enabled {
		scheduler, err = summary.NewScheduler(summarizer, logger, cfg.Summary.Schedule)
		if err != nil {
			return fmt.Errorf("init summary scheduler: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	srv := server.New(eng, st, authenticator, summarizer, logger, cfg.ListenAddr)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
