// Package cli implements the oned command line.
package cli

import (
	"fmt"
	"io"

	"github.com/deno-lib/oned/application/config"
	"github.com/deno-lib/oned/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Format     string // "json" | "text"
	Verbose    bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the oned CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "oned",
		Short: "oned - run a script against native ops",
		Long: `oned hosts a WebAssembly script and dispatches the ops it calls
to native handlers, running until the script and every async op it
issued have finished.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging with a console encoder")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewOpsCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig reads --config, or the defaults, and applies the global flags.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(o.ConfigPath); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}

	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
		cfg.Development = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*zap.Logger, error) {
	logger, err := log.New(w, cfg.LogLevel, cfg.Development)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	return logger, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
