package experiment

import (
	"log/slog"

	"github.com/benbjohnson/clock"
)

// Option configures the engine at construction.
type Option func(*Engine)

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.config = cfg }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock injects a clock, used by tests to control time.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}
