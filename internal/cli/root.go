// Package cli is the chatmate command line: the HTTP server plus one-shot
// commands over the same services.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"chatmate.app/chatmate/internal/config"
	"chatmate.app/chatmate/internal/logger"
)

var version = "dev"

var (
	configPath string
	verbose    bool

	// current is built before any command that needs services runs.
	current *app
)

// skipApp marks commands that run without opening the store and backends.
const skipApp = "skip-app"

var rootCmd = &cobra.Command{
	Use:           "chatmate",
	Short:         "Room-scoped question answering over your documents",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.LoadConfig(configPath); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger.SetLevel(config.AppConfig.LogLevel)
		if verbose {
			logger.SetLevel("DEBUG")
		}
		if _, ok := cmd.Annotations[skipApp]; ok {
			return nil
		}
		a, err := newApp(cmd.Context(), &config.AppConfig)
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return closeApp()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default $CHATMATE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func closeApp() error {
	if current == nil {
		return nil
	}
	err := current.Close()
	current = nil
	return err
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		// PersistentPostRunE does not run when a command fails.
		closeApp()
	}
	return err
}
