package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-relay/internal/app"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	applog "github.com/vovakirdan/wirechat-relay/internal/log"
)

var version = "dev"

type flags struct {
	configPath string
	overrides  config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:          "wirechat-relay",
		Short:        "Chat relay with long-poll and websocket delivery",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "path to config.yaml")
	pf.StringVar(&f.overrides.Addr, "addr", "", "HTTP listen address")
	pf.DurationVar(&f.overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	pf.DurationVar(&f.overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	pf.StringVar(&f.overrides.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	pf.StringVar(&f.overrides.LogFormat, "log-format", "", "log format (console, json)")
	pf.StringSliceVar(&f.overrides.AllowedOrigins, "allowed-origin", nil, "allowed origin, repeatable")
	pf.DurationVar(&f.overrides.Chat.LongPollTimeout, "poll-timeout", 0, "long-poll wait before an empty reply")
	pf.StringVar(&f.overrides.Store.Driver, "store", "", "message log driver (memory, sqlite)")
	pf.StringVar(&f.overrides.Store.DSN, "dsn", "", "sqlite database path")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the relay server (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), f)
			},
		},
		&cobra.Command{
			Use:   "config",
			Short: "Print the resolved configuration as yaml",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, _, err := resolve(f)
				if err != nil {
					return err
				}
				data, err := config.Marshal(cfg)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)

	return root
}

func resolve(f *flags) (config.Config, string, error) {
	// stderr keeps `config` output clean
	bootLogger := applog.NewWithWriter(os.Stderr, "info", "console")
	cfg, path, err := config.Load(bootLogger, f.configPath)
	if err != nil {
		return cfg, path, err
	}
	cfg.UpdateFrom(f.overrides)
	return cfg, path, nil
}

func serve(parent context.Context, f *flags) error {
	cfg, path, err := resolve(f)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := applog.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("config", path).Msg("config loaded")

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}

	if err := config.Watch(logger, path, application.ApplyConfig); err != nil {
		logger.Warn().Err(err).Str("config", path).Msg("config watch disabled")
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("addr", cfg.Addr).Str("version", version).Msg("starting wirechat relay")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
