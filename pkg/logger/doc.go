// Package logger builds configured *slog.Logger instances for the kit.
//
// The factory covers the two deployment shapes the kit targets: JSON output
// for production log aggregation and text output for development. Components
// accept the resulting logger through their WithLogger options.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithFormat(logger.FormatJSON),
//	    logger.WithLevel(slog.LevelInfo),
//	    logger.WithAttr(slog.String("service", "tracker")),
//	)
package logger
