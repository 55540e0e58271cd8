// Package logger provides structured logging utilities built on log/slog.
//
// New builds a *slog.Logger from functional options; the attribute helpers
// give every component the same keys for the same facts:
//
//	log := logger.New(logger.WithProduction("wirehttp"))
//	log.Info("session opened",
//		logger.Component("ws"),
//		logger.SessionID(id),
//		logger.Path("/chat"),
//	)
//
// Helpers return an empty slog.Attr for zero values, so logger.Error(nil)
// is safe to pass unconditionally.
//
// Context extractors inject request-scoped attributes automatically:
//
//	log := logger.New(logger.WithContextValue("request_id", requestIDKey{}))
//	log.InfoContext(ctx, "handled")
package logger
