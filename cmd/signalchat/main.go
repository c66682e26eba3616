package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"signalchat/internal/app"
	"signalchat/internal/worker"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var logged *loggedError
		if !errors.As(err, &logged) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loggedError marks a failure already written to the zap logger.
type loggedError struct {
	err error
}

func (e *loggedError) Error() string { return e.err.Error() }
func (e *loggedError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	var p app.Params

	cmd := &cobra.Command{
		Use:   "signalchat",
		Short: "Forward Signal threat-intelligence updates to Google Chat",
		Long: `signalchat fetches messages or threads updated on a Signal platform
since the last run and posts them to a Google Chat incoming webhook.

Run it from cron, or set run.interval in the config to keep it polling.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), p)
		},
	}

	cmd.Flags().StringVarP(&p.ConfigPath, "config", "c", "config.yaml", "path to configuration file")
	cmd.Flags().StringVar(&p.LogLevel, "log", "", "log level: debug, info, warning, error, critical")
	cmd.Flags().BoolVar(&p.Once, "once", false, "run a single fetch even if run.interval is set")

	return cmd
}

func run(parent context.Context, p app.Params) error {
	if parent == nil {
		parent = context.Background()
	}

	var (
		runner *worker.Runner
		logger *zap.Logger
	)
	a := app.New(p, fx.Populate(&runner, &logger))
	if err := a.Err(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}

	runErr := runner.Start(ctx)
	if runErr != nil {
		logger.Error("run failed", zap.Error(runErr))
	}

	if err := a.Stop(context.Background()); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	_ = logger.Sync()

	if runErr != nil {
		return &loggedError{err: runErr}
	}
	return nil
}
