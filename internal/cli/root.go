// Package cli defines the eventreg command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Shivanand-hulikatti/eventreg/internal/config"
	"github.com/spf13/cobra"
)

// RootOptions holds state shared by all commands. Config and Log are filled
// in before any subcommand runs.
type RootOptions struct {
	LogLevel  string
	LogFormat string

	Config *config.Config
	Log    *slog.Logger
}

// NewRootCommand creates the root command for the eventreg CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "eventreg",
		Short: "Event registration with capacity and waitlist management",
		Long: `eventreg serves the registration API: events, participants, RSVP links,
waitlist promotion and bulk CSV import.

Configuration is read from the environment (PORT, DB_DRIVER, DB_HOST, ...).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.LogLevel != "" {
				cfg.Log.Level = opts.LogLevel
			}
			if opts.LogFormat != "" {
				cfg.Log.Format = opts.LogFormat
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			opts.Config = cfg
			opts.Log = newLogger(cfg.Log, cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override LOG_LEVEL (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "override LOG_FORMAT (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))

	return cmd
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(w, handlerOpts))
}
