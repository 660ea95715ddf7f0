package trackkit

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/trackkit/trackkit/pkg/columnar"
	"github.com/trackkit/trackkit/pkg/experiment"
	"github.com/trackkit/trackkit/pkg/funnel"
	"github.com/trackkit/trackkit/pkg/ingest"
	"github.com/trackkit/trackkit/pkg/kv"
	"github.com/trackkit/trackkit/pkg/privacy"
	"github.com/trackkit/trackkit/pkg/session"
)

// Kit bundles the four engines over a shared pair of stores. Fields are
// exported so callers reach each engine directly; New only wires them
// together.
type Kit struct {
	Sessions    *session.Manager
	Pipeline    *ingest.Pipeline
	Experiments *experiment.Engine
	Funnels     *funnel.Engine
	Eraser      *privacy.Eraser
}

type kitOptions struct {
	logger     *slog.Logger
	sessions   []session.Option
	ingest     []ingest.Option
	experiment []experiment.Option
	funnel     []funnel.Option
}

// Option configures the kit at construction.
type Option func(*kitOptions)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *kitOptions) { o.logger = logger }
}

// WithSessionOptions forwards options to the session manager.
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *kitOptions) { o.sessions = append(o.sessions, opts...) }
}

// WithIngestOptions forwards options to the ingest pipeline.
func WithIngestOptions(opts ...ingest.Option) Option {
	return func(o *kitOptions) { o.ingest = append(o.ingest, opts...) }
}

// WithExperimentOptions forwards options to the experiment engine.
func WithExperimentOptions(opts ...experiment.Option) Option {
	return func(o *kitOptions) { o.experiment = append(o.experiment, opts...) }
}

// WithFunnelOptions forwards options to the funnel engine.
func WithFunnelOptions(opts ...funnel.Option) Option {
	return func(o *kitOptions) { o.funnel = append(o.funnel, opts...) }
}

// New assembles a Kit over the given stores. Ended sessions are archived to
// the columnar sessions table automatically.
func New(events columnar.Store, store kv.Store, opts ...Option) (*Kit, error) {
	o := kitOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	sessionOpts := append([]session.Option{
		session.WithLogger(o.logger),
		session.WithEndHook(ingest.SessionArchiver(events, o.logger)),
	}, o.sessions...)
	sessions, err := session.NewManager(store, sessionOpts...)
	if err != nil {
		return nil, err
	}

	ingestOpts := append([]ingest.Option{ingest.WithLogger(o.logger)}, o.ingest...)
	pipeline, err := ingest.NewPipeline(events, sessions, ingestOpts...)
	if err != nil {
		return nil, err
	}

	experimentOpts := append([]experiment.Option{experiment.WithLogger(o.logger)}, o.experiment...)
	experiments, err := experiment.NewEngine(store, events, experimentOpts...)
	if err != nil {
		return nil, err
	}

	funnelOpts := append([]funnel.Option{funnel.WithLogger(o.logger)}, o.funnel...)
	funnels, err := funnel.NewEngine(events, store, funnelOpts...)
	if err != nil {
		return nil, err
	}

	return &Kit{
		Sessions:    sessions,
		Pipeline:    pipeline,
		Experiments: experiments,
		Funnels:     funnels,
		Eraser:      privacy.NewEraser(events, store, o.logger),
	}, nil
}

// Run starts the background workers, the session sweep and the ingest
// flusher, and blocks until ctx is canceled and both have drained.
func (k *Kit) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(k.Sessions.Run(ctx))
	g.Go(k.Pipeline.Run(ctx))
	return g.Wait()
}
