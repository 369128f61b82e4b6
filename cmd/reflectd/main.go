// Command reflectd runs the daily reflection service: an HTTP API, an
// interactive chat client, and a weekly summary runner.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reflectd-dev/reflectd/internal/config"
)

// Version is set via ldflags.
var Version = "dev"

var (
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
)

func main() {
	root := &cobra.Command{
		Use:           "reflectd",
		Short:         "Daily reflection coach for founders",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}

			logger, err = zap.NewProduction()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("REFLECTD_CONFIG"), "path to config file")

	root.AddCommand(newServeCmd(), newChatCmd(), newSummarizeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
