package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/wirehttp/core/config"
	"github.com/dmitrymomot/wirehttp/core/logger"
	"github.com/dmitrymomot/wirehttp/core/relay"
)

func serveCmd() *cobra.Command {
	var (
		addr      string
		staticDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		Long: `Start the demo application and serve until interrupted.

Settings come from SERVER_*, WS_*, REDIS_* and APP_* environment variables.
Flags override the environment.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg appConfig
			if err := config.Load(&cfg); err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if staticDir != "" {
				cfg.StaticDir = staticDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides SERVER_ADDR)")
	cmd.Flags().StringVar(&staticDir, "static", "", "Directory served under /files (overrides STATIC_DIR)")

	return cmd
}

func run(ctx context.Context, cfg appConfig) error {
	log := newLogger(cfg)

	a, err := newApp(cfg, log, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.RelayEnabled {
		client, err := relay.Connect(ctx, cfg.Relay)
		if err != nil {
			return err
		}
		defer client.Close()

		r := relay.New(client, a.srv,
			relay.WithChannel(cfg.Relay.Channel),
			relay.WithLogger(log),
		)
		a.withRelay(ctx, r, relay.Healthcheck(client))
		g.Go(r.Run(ctx))
		log.Info("relay enabled", logger.Component("relay"), "origin", r.Origin())
	}

	g.Go(a.srv.Run(ctx))
	log.Info("server starting", "addr", cfg.Server.Addr, logger.Version(version))

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", logger.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}
