package funnel

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/trackkit/trackkit/pkg/columnar"
	"github.com/trackkit/trackkit/pkg/kv"
)

// Engine analyzes funnels against the columnar event store and tracks live
// per-session progress in the key-value store.
type Engine struct {
	events   columnar.Store
	progress kv.Store

	mu   sync.RWMutex
	defs map[string]Definition

	locks  shardedLocks
	config Config
	logger *slog.Logger
	clock  clock.Clock
}

// NewEngine creates a funnel engine. The key-value store may be nil when
// live progress tracking is not needed; analysis only requires the columnar
// store.
func NewEngine(events columnar.Store, progress kv.Store, opts ...Option) (*Engine, error) {
	if events == nil {
		return nil, ErrNilStore
	}

	e := &Engine{
		events:   events,
		progress: progress,
		defs:     make(map[string]Definition),
		config:   DefaultConfig(),
		logger:   slog.Default(),
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Register validates a definition and makes it available for live progress
// tracking and lookup by id. Re-registering an id replaces it.
func (e *Engine) Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.defs[def.ID] = def.normalized()
	return nil
}

// Definition returns a registered definition by id.
func (e *Engine) Definition(funnelID string) (Definition, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	def, ok := e.defs[funnelID]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrNotFound, funnelID)
	}
	return def, nil
}

const shardCount = 64

// shardedLocks serializes progress updates per (funnel, session) pair
// without a global lock.
type shardedLocks struct {
	shards [shardCount]sync.Mutex
}

func (l *shardedLocks) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.shards[h.Sum32()%shardCount]
}
