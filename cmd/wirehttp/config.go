package main

import (
	"log/slog"

	"github.com/dmitrymomot/wirehttp/core/logger"
	"github.com/dmitrymomot/wirehttp/core/relay"
	"github.com/dmitrymomot/wirehttp/core/server"
	"github.com/dmitrymomot/wirehttp/middleware"
)

// appConfig is the full process configuration.
type appConfig struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL"`
	StaticDir string `env:"STATIC_DIR" envDefault:""`

	// RelayEnabled fans pushes out to other processes through Redis.
	RelayEnabled bool `env:"RELAY_ENABLED" envDefault:"false"`

	Server server.Config
	Relay  relay.Config
}

func newLogger(cfg appConfig) *slog.Logger {
	opts := []logger.Option{
		logger.WithContextExtractors(middleware.RequestIDExtractor),
	}
	if cfg.Env == "production" {
		opts = append(opts, logger.WithProduction("wirehttp"))
	} else {
		opts = append(opts, logger.WithDevelopment("wirehttp"))
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	}
	return logger.New(opts...)
}
