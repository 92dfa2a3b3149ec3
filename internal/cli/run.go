package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/deno-lib/oned/driver"
	"github.com/deno-lib/oned/host"
	"github.com/deno-lib/oned/infrastructure/process"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	Script        string
	InheritOutput bool
	MaxLifetime   time.Duration
	Timeout       time.Duration
}

// RunResult is the JSON output of the run command.
type RunResult struct {
	RunID  string `json:"run_id"`
	Script string `json:"script"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the startup script to completion",
		Long: `Run the embedded startup script, or the .wat/.wasm file given with
--script, until it returns and every async op it issued has resolved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Script, "script", "", "script file (.wat or .wasm) replacing the embedded one")
	cmd.Flags().BoolVar(&opts.InheritOutput, "inherit-output", false, "forward process stdout and stderr")
	cmd.Flags().DurationVar(&opts.MaxLifetime, "max-lifetime", 0, "kill processes running longer than this")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "abort the run after this long")

	return cmd
}

func runRun(cmd *cobra.Command, rootOpts *RootOptions, opts *RunOptions) error {
	cfg, err := rootOpts.loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("script") {
		cfg.Script = opts.Script
	}
	if cmd.Flags().Changed("inherit-output") {
		cfg.Process.InheritOutput = opts.InheritOutput
	}
	if cmd.Flags().Changed("max-lifetime") {
		cfg.Process.MaxLifetime = opts.MaxLifetime
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	procOpts := []process.Option{
		process.WithMaxLifetime(cfg.Process.MaxLifetime),
		process.WithAllowedCommands(cfg.Process.AllowedCommands...),
	}
	if cfg.Process.InheritOutput {
		procOpts = append(procOpts, process.WithStdout(cmd.OutOrStdout()), process.WithStderr(cmd.ErrOrStderr()))
	}

	driverOpts := []driver.Option{
		driver.WithLogger(logger),
		driver.WithPollInterval(cfg.PollInterval),
		driver.WithModuleName(cfg.ModuleName),
		driver.WithMaxPayloadSize(cfg.MaxPayloadSize),
		driver.WithProcessOptions(procOpts...),
	}

	scriptName := host.DefaultScriptName
	if cfg.Script != "" {
		wasm, err := host.LoadScript(cfg.Script)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load script", err)
		}
		scriptName = filepath.Base(cfg.Script)
		driverOpts = append(driverOpts, driver.WithScript(wasm, scriptName))
	}

	ctx := cmd.Context()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	d, err := driver.New(ctx, driverOpts...)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to start driver", err)
	}
	defer func() {
		if err := d.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("driver close failed", zap.Error(err))
		}
	}()

	if err := d.Run(ctx); err != nil {
		logger.Error("run failed", zap.Error(err))
		return WrapExitError(ExitFailure, "run failed", err)
	}

	return rootOpts.formatter(cmd).Success(RunResult{RunID: d.ID(), Script: scriptName}, "")
}
