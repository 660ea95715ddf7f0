package ingest

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/trackkit/trackkit/pkg/columnar"
	"github.com/trackkit/trackkit/pkg/privacy"
	"github.com/trackkit/trackkit/pkg/session"
	"github.com/trackkit/trackkit/pkg/useragent"
)

// Pipeline buffers enriched events and flushes them to the columnar store.
type Pipeline struct {
	events      columnar.Store
	sessions    *session.Manager
	config      Config
	logger      *slog.Logger
	clock       clock.Clock
	consent     privacy.ConsentChecker
	botDetector *useragent.BotDetector
	sample      func() float64

	mu        sync.Mutex
	queue     []*Event
	convQueue []columnar.Record

	notify  chan struct{}
	done    chan struct{}
	ticker  *clock.Ticker
	wg      sync.WaitGroup
	stopped sync.Once

	dropped     atomic.Int64
	droppedConv atomic.Int64
	flushed     atomic.Int64
}

// NewPipeline wires a pipeline against the columnar store and session
// manager.
func NewPipeline(events columnar.Store, sessions *session.Manager, opts ...Option) (*Pipeline, error) {
	if events == nil {
		return nil, ErrNilStore
	}
	if sessions == nil {
		return nil, ErrNilSessions
	}

	p := &Pipeline{
		events:      events,
		sessions:    sessions,
		config:      DefaultConfig(),
		logger:      slog.Default(),
		clock:       clock.New(),
		consent:     privacy.AllowAll{},
		botDetector: useragent.NewBotDetector(),
		sample:      rand.Float64,
		notify:      make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Track validates, enriches and enqueues one event, returning its id. The
// caller never waits on store I/O: flushing happens in the background, and
// transient store failures are recovered internally.
func (p *Pipeline) Track(ctx context.Context, raw RawEvent, reqCtx RequestContext) (string, error) {
	if raw.Type == "" {
		return "", ErrInvalidEvent
	}
	if !raw.Type.Valid() {
		return "", ErrUnknownEventType
	}
	props, err := raw.Properties.Normalize()
	if err != nil {
		return "", err
	}

	eventID := uuid.NewString()
	now := p.clock.Now()

	ua := useragent.Parse(reqCtx.UserAgent, useragent.WithBotDetector(p.botDetector))
	traffic := attribute(raw.PageURL, raw.Referrer)

	sess := p.resolveSession(ctx, raw, reqCtx, ua, traffic)

	// Consent gates non-essential data only. A skipped event is
	// acknowledged, not an error: the caller cannot act on it anyway.
	if category := categoryOf(raw.Type); category != privacy.CategoryEssential {
		if !p.consent.HasConsent(ctx, sess.ID, category) {
			return eventID, nil
		}
	}

	if _, err := p.sessions.RecordActivity(ctx, sess.ID, string(raw.Type)); err != nil {
		p.logger.Debug("session activity update failed",
			slog.String("session_id", sess.ID),
			slog.Any("error", err))
	}

	event := &Event{
		EventID:    eventID,
		Timestamp:  now,
		Type:       raw.Type,
		SessionID:  sess.ID,
		UserID:     raw.UserID,
		PageURL:    raw.PageURL,
		Referrer:   raw.Referrer,
		DeviceType: ua.DeviceType(),
		Browser:    ua.Browser(),
		OS:         ua.OS(),
		Country:    reqCtx.Country,
		IPHash:     p.storedIP(reqCtx.IP),
		Properties: props,
	}

	if raw.Type == EventConversion {
		value, _ := props.Float("value")
		if _, err := p.sessions.RecordConversion(ctx, sess.ID, value); err != nil {
			p.logger.Debug("session conversion update failed",
				slog.String("session_id", sess.ID),
				slog.Any("error", err))
		}
	}

	// Sampling happens after session bookkeeping so session aggregates stay
	// exact even at partial event retention. Conversions are exempt: the
	// denormalized conversions table must agree with the session aggregates
	// recorded above.
	if raw.Type != EventConversion && p.config.SampleRate < 1.0 && p.sample() > p.config.SampleRate {
		return eventID, nil
	}

	p.enqueue(event)
	return eventID, nil
}

// resolveSession binds the event to a session, minting an ephemeral one when
// the store is unavailable so the event is never rejected for a transient
// backend failure.
func (p *Pipeline) resolveSession(ctx context.Context, raw RawEvent, reqCtx RequestContext, ua useragent.UserAgent, traffic trafficAttribution) *session.Session {
	sess, err := p.sessions.ResolveOrCreate(ctx, reqCtx.SessionToken, session.Context{
		UserID:          raw.UserID,
		TrafficSource:   traffic.source,
		TrafficMedium:   traffic.medium,
		TrafficCampaign: traffic.campaign,
		DeviceType:      ua.DeviceType(),
		Country:         reqCtx.Country,
		IsBot:           ua.IsBot(),
	})
	if err != nil {
		p.logger.Warn("session resolution failed, using ephemeral session",
			slog.Any("error", err))
		return &session.Session{ID: uuid.NewString()}
	}
	return sess
}

func (p *Pipeline) storedIP(ip string) string {
	if p.config.AnonymizeIP {
		return hashIP(ip, p.config.IPHashSalt)
	}
	return ip
}

// enqueue appends the event, shedding the oldest buffered events beyond the
// configured depth. Both queues honor the same depth bound. Signals the
// flusher when a full batch is buffered.
func (p *Pipeline) enqueue(event *Event) {
	p.mu.Lock()
	p.queue = append(p.queue, event)
	if event.Type == EventConversion {
		p.convQueue = append(p.convQueue, event.conversionRecord())
		p.shedConversionsLocked()
	}

	if over := len(p.queue) - p.config.MaxQueueDepth; over > 0 {
		p.queue = p.queue[over:]
		p.dropped.Add(int64(over))
		p.logger.Warn("queue over depth, oldest events shed",
			slog.Int("shed", over))
	}
	size := len(p.queue)
	p.mu.Unlock()

	if size >= p.config.FlushBatchSize {
		select {
		case p.notify <- struct{}{}:
		default:
		}
	}
}

// Start launches the background flusher.
func (p *Pipeline) Start(ctx context.Context) {
	p.ticker = p.clock.Ticker(p.config.FlushInterval)
	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Info("ingest pipeline started",
		slog.Int("flush_batch_size", p.config.FlushBatchSize),
		slog.Duration("flush_interval", p.config.FlushInterval),
		slog.Int("max_queue_depth", p.config.MaxQueueDepth))
}

// Stop halts the flusher after a final drain. Idempotent.
func (p *Pipeline) Stop() {
	p.stopped.Do(func() { close(p.done) })
	p.wg.Wait()
}

// Run starts the pipeline and blocks until ctx is canceled; suitable for
// errgroup.Group.Go.
func (p *Pipeline) Run(ctx context.Context) func() error {
	return func() error {
		p.Start(ctx)
		<-ctx.Done()
		p.Stop()
		return nil
	}
}

// Pending returns the number of buffered events.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// PendingConversions returns the number of buffered denormalized
// conversion records.
func (p *Pipeline) PendingConversions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.convQueue)
}

// Dropped returns the count of events shed under sustained backpressure or
// discarded after a permanent write failure.
func (p *Pipeline) Dropped() int64 { return p.dropped.Load() }

// DroppedConversions is the same metric for the conversion queue.
func (p *Pipeline) DroppedConversions() int64 { return p.droppedConv.Load() }

// Flushed returns the count of events written to the store.
func (p *Pipeline) Flushed() int64 { return p.flushed.Load() }

func (p *Pipeline) run(ctx context.Context) {
	defer p.wg.Done()
	defer p.ticker.Stop()

	for {
		select {
		case <-p.ticker.C:
			p.flush(ctx, false)
		case <-p.notify:
			p.flush(ctx, false)
		case <-p.done:
			// Final drain: everything still buffered goes out now.
			p.flush(context.WithoutCancel(ctx), true)
			return
		case <-ctx.Done():
			p.flush(context.WithoutCancel(ctx), true)
			return
		}
	}
}

// flush writes buffered batches until the queue is below one batch (or, when
// draining, empty). A transiently failed write re-queues the batch at the
// front so event order within it is preserved and the next tick retries; a
// permanent failure drops the batch, counted, since retrying cannot help.
func (p *Pipeline) flush(ctx context.Context, drain bool) {
	for {
		batch := p.takeBatch()
		if len(batch) == 0 {
			break
		}

		if err := p.writeBatch(ctx, batch); err != nil {
			if !columnar.IsRetryable(err) {
				p.dropped.Add(int64(len(batch)))
				p.logger.Error("flush failed permanently, batch dropped",
					slog.Int("batch", len(batch)),
					slog.Any("error", err))
				continue
			}
			p.requeue(batch)
			p.logger.Warn("flush failed, batch re-queued",
				slog.Int("batch", len(batch)),
				slog.Any("error", err))
			return
		}
		p.flushed.Add(int64(len(batch)))

		if !drain && p.Pending() < p.config.FlushBatchSize {
			break
		}
	}

	p.flushConversions(ctx)
}

func (p *Pipeline) takeBatch() []*Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := min(len(p.queue), p.config.FlushBatchSize)
	if n == 0 {
		return nil
	}
	batch := make([]*Event, n)
	copy(batch, p.queue[:n])
	p.queue = append(p.queue[:0:0], p.queue[n:]...)
	return batch
}

func (p *Pipeline) requeue(batch []*Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queue = append(batch, p.queue...)
	if over := len(p.queue) - p.config.MaxQueueDepth; over > 0 {
		p.queue = p.queue[over:]
		p.dropped.Add(int64(over))
	}
}

func (p *Pipeline) writeBatch(ctx context.Context, batch []*Event) error {
	records := make([]columnar.Record, len(batch))
	for i, event := range batch {
		records[i] = event.record()
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.StoreTimeout)
	defer cancel()
	return p.events.Insert(ctx, columnar.TableEvents, records)
}

// flushConversions writes the denormalized conversion records. Conversions
// ride their own queue so a failure here never duplicates already-written
// event rows.
func (p *Pipeline) flushConversions(ctx context.Context) {
	p.mu.Lock()
	pending := p.convQueue
	p.convQueue = nil
	p.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.config.StoreTimeout)
	defer cancel()

	if err := p.events.Insert(writeCtx, columnar.TableConversions, pending); err != nil {
		if !columnar.IsRetryable(err) {
			p.droppedConv.Add(int64(len(pending)))
			p.logger.Error("conversion flush failed permanently, batch dropped",
				slog.Int("batch", len(pending)),
				slog.Any("error", err))
			return
		}
		p.mu.Lock()
		p.convQueue = append(pending, p.convQueue...)
		p.shedConversionsLocked()
		p.mu.Unlock()
		p.logger.Warn("conversion flush failed, re-queued",
			slog.Int("batch", len(pending)),
			slog.Any("error", err))
	}
}

// shedConversionsLocked drops the oldest conversion records beyond the
// queue depth. Caller holds p.mu.
func (p *Pipeline) shedConversionsLocked() {
	if over := len(p.convQueue) - p.config.MaxQueueDepth; over > 0 {
		p.convQueue = p.convQueue[over:]
		p.droppedConv.Add(int64(over))
		p.logger.Warn("conversion queue over depth, oldest records shed",
			slog.Int("shed", over))
	}
}
