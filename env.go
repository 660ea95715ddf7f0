package trackkit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trackkit/trackkit/pkg/columnar"
	"github.com/trackkit/trackkit/pkg/config"
	"github.com/trackkit/trackkit/pkg/experiment"
	"github.com/trackkit/trackkit/pkg/funnel"
	"github.com/trackkit/trackkit/pkg/ingest"
	"github.com/trackkit/trackkit/pkg/kv"
	"github.com/trackkit/trackkit/pkg/logger"
	"github.com/trackkit/trackkit/pkg/session"
)

// Config aggregates every component's environment configuration.
type Config struct {
	Redis      kv.Config
	Columnar   columnar.Config
	Session    session.Config
	Ingest     ingest.Config
	Experiment experiment.Config
	Funnel     funnel.Config

	LogLevel  slog.Level    `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat logger.Format `env:"LOG_FORMAT" envDefault:"json"`
}

// NewFromEnv loads configuration from the environment, connects the Redis
// and Postgres stores, ensures the columnar schema and assembles a Kit.
// Explicit options take precedence over environment-derived ones.
func NewFromEnv(ctx context.Context, opts ...Option) (*Kit, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	log := logger.New(
		logger.WithLevel(cfg.LogLevel),
		logger.WithFormat(cfg.LogFormat),
	)

	client, err := kv.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect key-value store: %w", err)
	}
	pool, err := columnar.Connect(ctx, cfg.Columnar)
	if err != nil {
		return nil, fmt.Errorf("connect columnar store: %w", err)
	}
	events := columnar.NewPostgres(pool)
	if err := columnar.EnsureSchema(ctx, events, cfg.Columnar.RetentionTTL); err != nil {
		return nil, fmt.Errorf("ensure columnar schema: %w", err)
	}

	base := []Option{
		WithLogger(log),
		WithSessionOptions(session.WithConfig(cfg.Session)),
		WithIngestOptions(ingest.WithConfig(cfg.Ingest)),
		WithExperimentOptions(experiment.WithConfig(cfg.Experiment)),
		WithFunnelOptions(funnel.WithConfig(cfg.Funnel)),
	}
	return New(events, kv.NewRedis(client), append(base, opts...)...)
}
