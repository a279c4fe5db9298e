package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kitchen-sync/internal/app"
	"kitchen-sync/internal/common/config"
	"kitchen-sync/internal/common/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.New("bootstrap").Error("fatal", err, nil)
		os.Exit(1)
	}
}

type rootOptions struct {
	ConfigPath string
	cfg        config.App
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "kitchen-sync",
		Short:         "Real-time order fulfillment sync for kitchen boards and customer trackers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
			opts.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config.yaml (default: search config.yaml, deploy/config.example.yaml)")

	cmd.AddCommand(
		serviceCommand(opts, "sync-service", "Serve the kitchen, tracking and order APIs", app.RunSyncService),
		serviceCommand(opts, "feed-relay", "Relay Postgres change notifications to RabbitMQ", app.RunRelay),
		serviceCommand(opts, "notification-subscriber", "Consume ready alerts from RabbitMQ", app.RunNotifier),
		boardCommand(opts),
	)
	return cmd
}

func serviceCommand(opts *rootOptions, use, short string, run func(context.Context, config.App) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, opts.cfg)
		},
	}
}

func boardCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Show a live kitchen board in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout belongs to the board
			logger.SetOutput(os.Stderr)
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return app.RunBoard(ctx, opts.cfg, cmd.OutOrStdout())
		},
	}
}

func loadConfig(path string) (config.App, error) {
	if path == "" {
		found, err := config.FindConfig()
		if err != nil {
			return config.App{}, fmt.Errorf("no config file found, pass --config: %w", err)
		}
		path = found
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.App{}, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}
