package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/wirehttp/core/config"
	"github.com/dmitrymomot/wirehttp/core/logger"
)

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List registered routes",
		Long:  `Print the HTTP routes in match order, followed by the WebSocket endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg appConfig
			if err := config.Load(&cfg); err != nil {
				return err
			}
			return printRoutes(cmd, cfg, logger.Nop())
		},
	}
}

func printRoutes(cmd *cobra.Command, cfg appConfig, log *slog.Logger) error {
	a, err := newApp(cfg, log, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATTERN")
	for _, r := range a.srv.Router().Routes() {
		fmt.Fprintf(w, "%s\t%s\n", r.Method, r.Pattern)
	}
	for _, path := range a.srv.WebSocket().Paths() {
		fmt.Fprintf(w, "WS\t%s\n", path)
	}
	return w.Flush()
}
