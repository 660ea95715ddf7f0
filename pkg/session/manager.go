package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/trackkit/trackkit/pkg/kv"
)

// Manager owns the visitor session lifecycle against a key-value store.
type Manager struct {
	store   kv.Store
	config  Config
	logger  *slog.Logger
	clock   clock.Clock
	locks   shardedLocks
	endHook EndHook

	// active is the in-process working set driving the idle sweep:
	// session id -> last activity. The store remains the source of truth.
	activeMu sync.Mutex
	active   map[string]time.Time

	ticker  *clock.Ticker
	done    chan struct{}
	stopped sync.Once
}

// NewManager creates a session manager backed by the given store.
func NewManager(store kv.Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	m := &Manager{
		store:  store,
		config: DefaultConfig(),
		logger: slog.Default(),
		clock:  clock.New(),
		active: make(map[string]time.Time),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// ResolveOrCreate returns the active session identified by token, or mints a
// new one when the token is empty, unknown, expired or ended.
func (m *Manager) ResolveOrCreate(ctx context.Context, token string, sctx Context) (*Session, error) {
	if token != "" {
		mu := m.locks.lock(token)
		mu.Lock()
		sess, err := m.load(ctx, token)
		mu.Unlock()

		if err == nil && !sess.Ended() {
			return sess, nil
		}
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		// Unknown or ended token: fall through to a fresh session.
	}

	now := m.clock.Now()
	sess := newSession(sctx, now)

	mu := m.locks.lock(sess.ID)
	mu.Lock()
	defer mu.Unlock()

	if err := m.save(ctx, sess, m.config.IdleTimeout); err != nil {
		return nil, err
	}
	m.trackActive(sess.ID, now)

	return sess, nil
}

// Get returns the session for id without mutating it.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	mu := m.locks.lock(id)
	mu.Lock()
	defer mu.Unlock()
	return m.load(ctx, id)
}

// RecordActivity applies an event to the session: page views, the bounce
// flag and the running duration are updated and the idle TTL is extended.
// Returns ErrSessionEnded for sessions in their terminal state.
func (m *Manager) RecordActivity(ctx context.Context, id, eventType string) (*Session, error) {
	mu := m.locks.lock(id)
	mu.Lock()
	defer mu.Unlock()

	sess, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Ended() {
		return nil, ErrSessionEnded
	}

	now := m.clock.Now()
	sess.touch(eventType, now)

	if err := m.save(ctx, sess, m.config.IdleTimeout); err != nil {
		return nil, err
	}
	m.trackActive(id, now)

	return sess, nil
}

// RecordConversion marks the session converted and accumulates the value.
func (m *Manager) RecordConversion(ctx context.Context, id string, value float64) (*Session, error) {
	mu := m.locks.lock(id)
	mu.Lock()
	defer mu.Unlock()

	sess, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Ended() {
		return nil, ErrSessionEnded
	}

	sess.Conversion = true
	sess.ConversionValue += value

	if err := m.save(ctx, sess, m.config.IdleTimeout); err != nil {
		return nil, err
	}
	return sess, nil
}

// End moves the session to its terminal state. Ending an already-ended
// session is a no-op returning the stored session, not an error.
func (m *Manager) End(ctx context.Context, id, reason string) (*Session, error) {
	mu := m.locks.lock(id)
	mu.Lock()

	sess, err := m.load(ctx, id)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	if sess.Ended() {
		mu.Unlock()
		return sess, nil
	}

	now := m.clock.Now()
	endTime := now
	if endTime.Before(sess.LastActivityAt) {
		endTime = sess.LastActivityAt
	}
	sess.EndTime = &endTime
	sess.EndReason = reason
	if d := endTime.Sub(sess.StartTime).Seconds(); d > sess.Duration {
		sess.Duration = d
	}

	err = m.save(ctx, sess, m.config.EndedRetention)
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	m.untrackActive(id)
	if m.endHook != nil {
		m.endHook(ctx, sess)
	}

	return sess, nil
}

// Start launches the idle sweep ticker. Safe to skip when CleanupInterval
// is zero.
func (m *Manager) Start(ctx context.Context) {
	if m.config.CleanupInterval <= 0 {
		return
	}

	m.ticker = m.clock.Ticker(m.config.CleanupInterval)
	go func() {
		for {
			select {
			case <-m.ticker.C:
				m.sweep(ctx)
			case <-m.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	m.logger.Info("session sweep started",
		slog.Duration("interval", m.config.CleanupInterval),
		slog.Duration("idle_timeout", m.config.IdleTimeout))
}

// Stop halts the idle sweep. Idempotent.
func (m *Manager) Stop() {
	m.stopped.Do(func() {
		if m.ticker != nil {
			m.ticker.Stop()
		}
		close(m.done)
	})
}

// Run starts the sweep and blocks until ctx is canceled; suitable for
// errgroup.Group.Go.
func (m *Manager) Run(ctx context.Context) func() error {
	return func() error {
		m.Start(ctx)
		<-ctx.Done()
		m.Stop()
		return nil
	}
}

// ActiveCount returns the size of the in-process working set.
func (m *Manager) ActiveCount() int {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()
	return len(m.active)
}

// sweep ends every tracked session whose last activity is older than the
// idle timeout. Ending is idempotent, so racing an explicit End is harmless.
func (m *Manager) sweep(ctx context.Context) {
	cutoff := m.clock.Now().Add(-m.config.IdleTimeout)

	m.activeMu.Lock()
	var idle []string
	for id, last := range m.active {
		if last.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.activeMu.Unlock()

	for _, id := range idle {
		if _, err := m.End(ctx, id, "timeout"); err != nil && !errors.Is(err, ErrSessionNotFound) {
			m.logger.Error("failed to end idle session",
				slog.String("session_id", id),
				slog.Any("error", err))
			continue
		}
		m.untrackActive(id)
	}

	if len(idle) > 0 {
		m.logger.Debug("idle sessions swept", slog.Int("count", len(idle)))
	}
}

func (m *Manager) trackActive(id string, at time.Time) {
	m.activeMu.Lock()
	m.active[id] = at
	m.activeMu.Unlock()
}

func (m *Manager) untrackActive(id string) {
	m.activeMu.Lock()
	delete(m.active, id)
	m.activeMu.Unlock()
}

func (m *Manager) load(ctx context.Context, id string) (*Session, error) {
	data, err := m.store.Get(ctx, sessionKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: corrupt document for %s: %w", id, err)
	}
	return &sess, nil
}

func (m *Manager) save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, sessionKey(sess.ID), data, ttl)
}

func sessionKey(id string) string {
	return "session:" + id
}
