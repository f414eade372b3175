package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
)

// app carries what every subcommand needs once the root has loaded it.
type app struct {
	cfg    *config.Config
	logger *log.Logger

	jsonOutput bool
	logLevel   string
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "fintrackctl",
		Short: "Administer a fintrack ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cli.LoadEnvFile()
			cfg, err := cli.LoadConfig()
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if a.logLevel != "" {
				level = a.logLevel
			}
			a.cfg = cfg
			a.logger = cli.SetupLogger(level, cfg.LogFormat, log.ComponentCLI)
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "print JSON instead of tables")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newMigrateCommand(a),
		newSeedCommand(a),
		newEntitiesCommand(a),
		newListCommand(a),
		newReportCommand(a),
		newEventsCommand(a),
	)
	return root
}

// withBackend opens the configured store for the duration of fn.
func (a *app) withBackend(ctx context.Context, fn func(*backend.BackendResult) error) error {
	result, err := cli.OpenBackend(ctx, a.logger, a.cfg, false)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	runErr := fn(result)
	if err := cli.RunCleanup(a.logger, a.cfg.ShutdownTimeout, result.Cleanup); err != nil && runErr == nil {
		return err
	}
	return runErr
}
