package session

import (
	"context"
	"log/slog"

	"github.com/benbjohnson/clock"
)

// EndHook is invoked after a session reaches its terminal state, outside the
// session's lock. Used to archive ended sessions to the columnar store.
type EndHook func(ctx context.Context, sess *Session)

// Option configures the Manager.
type Option func(*Manager)

// WithConfig replaces the default lifecycle configuration.
func WithConfig(cfg Config) Option {
	return func(m *Manager) { m.config = cfg }
}

// WithLogger sets the logger used by the sweep and failure paths.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.logger = log
		}
	}
}

// WithClock injects a clock, letting tests drive the idle sweep.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithEndHook registers a callback fired for every ended session.
func WithEndHook(hook EndHook) Option {
	return func(m *Manager) { m.endHook = hook }
}
