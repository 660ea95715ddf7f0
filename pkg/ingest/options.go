package ingest

import (
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/trackkit/trackkit/pkg/privacy"
	"github.com/trackkit/trackkit/pkg/useragent"
)

// Option configures the Pipeline.
type Option func(*Pipeline)

// WithConfig replaces the default pipeline configuration.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) { p.config = cfg }
}

// WithLogger sets the logger used by the flusher and failure paths.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.logger = log
		}
	}
}

// WithClock injects a clock, letting tests drive the flush ticker.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithConsent wires the externally owned consent workflow. Defaults to
// allowing everything.
func WithConsent(checker privacy.ConsentChecker) Option {
	return func(p *Pipeline) {
		if checker != nil {
			p.consent = checker
		}
	}
}

// WithBotDetector replaces the default bot pattern set used in enrichment.
func WithBotDetector(d *useragent.BotDetector) Option {
	return func(p *Pipeline) {
		if d != nil {
			p.botDetector = d
		}
	}
}

// WithSampler replaces the uniform random draw used for sampling. Tests use
// it to make sampling deterministic.
func WithSampler(draw func() float64) Option {
	return func(p *Pipeline) {
		if draw != nil {
			p.sample = draw
		}
	}
}
