package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cespare/xxhash/v2"

	"github.com/trackkit/trackkit/pkg/cache"
	"github.com/trackkit/trackkit/pkg/columnar"
	"github.com/trackkit/trackkit/pkg/kv"
)

// Assignment records which variant a visitor was bucketed into. Once written
// it is authoritative: later weight changes never move an assigned visitor.
type Assignment struct {
	ExperimentID string    `json:"experiment_id"`
	UserID       string    `json:"user_id"`
	VariantID    string    `json:"variant_id"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// Engine assigns visitors to experiment variants and tracks outcomes.
// Definitions and sticky assignments live in the key-value store; an
// append-only trail of assignments and conversions goes to the columnar
// store for offline recounts.
type Engine struct {
	store  kv.Store
	events columnar.Store
	config Config
	logger *slog.Logger
	clock  clock.Clock
	defs   *cache.LRU[string, *Experiment]
}

// NewEngine creates an experiment engine on top of the given stores. The
// columnar store may be nil, in which case the append-only trail is skipped
// and RecountFromStore is unavailable.
func NewEngine(store kv.Store, events columnar.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	e := &Engine{
		store:  store,
		events: events,
		config: DefaultConfig(),
		logger: slog.Default(),
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.defs = cache.NewLRU[string, *Experiment](e.config.DefinitionCacheSize)
	return e, nil
}

func configKey(experimentID string) string {
	return "experiment:config:" + experimentID
}

func assignmentKey(experimentID, userID string) string {
	return "experiment:" + experimentID + ":" + userID
}

func conversionKey(experimentID, userID string) string {
	return "experiment:conversion:" + experimentID + ":" + userID
}

func statsKey(experimentID, variantID, counter string) string {
	return "experiment:stats:" + experimentID + ":" + variantID + ":" + counter
}

// Define validates and persists a new experiment. Experiments start in draft
// unless the definition says otherwise.
func (e *Engine) Define(ctx context.Context, exp Experiment) error {
	if exp.Status == "" {
		exp.Status = StatusDraft
	}
	if err := exp.Validate(); err != nil {
		return err
	}
	if _, ok := allowedTransitions[exp.Status]; !ok && exp.Status != StatusCompleted {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidDefinition, exp.Status)
	}

	raw, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("marshal experiment %q: %w", exp.ID, err)
	}
	created, err := e.store.SetNX(ctx, configKey(exp.ID), raw, 0)
	if err != nil {
		return fmt.Errorf("persist experiment %q: %w", exp.ID, err)
	}
	if !created {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, exp.ID)
	}

	e.defs.Set(exp.ID, &exp)
	e.logger.InfoContext(ctx, "experiment defined",
		slog.String("experiment_id", exp.ID),
		slog.String("status", string(exp.Status)),
		slog.Int("variants", len(exp.Variants)))
	return nil
}

// Update validates and persists a changed definition. Status changes must
// follow the lifecycle; everything else overwrites freely. Visitors already
// assigned keep their variant regardless of weight changes.
func (e *Engine) Update(ctx context.Context, exp Experiment) error {
	if err := exp.Validate(); err != nil {
		return err
	}

	current, err := e.Get(ctx, exp.ID)
	if err != nil {
		return err
	}
	if exp.Status == "" {
		exp.Status = current.Status
	}
	if exp.Status != current.Status && !transitionAllowed(current.Status, exp.Status) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, exp.Status)
	}

	return e.save(ctx, &exp)
}

// SetStatus moves an experiment through its lifecycle.
func (e *Engine) SetStatus(ctx context.Context, experimentID string, status Status) error {
	exp, err := e.Get(ctx, experimentID)
	if err != nil {
		return err
	}
	if exp.Status == status {
		return nil
	}
	if !transitionAllowed(exp.Status, status) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, exp.Status, status)
	}

	updated := *exp
	updated.Status = status
	return e.save(ctx, &updated)
}

// Get returns the experiment definition, consulting the in-process cache
// before the key-value store.
func (e *Engine) Get(ctx context.Context, experimentID string) (*Experiment, error) {
	if exp, ok := e.defs.Get(experimentID); ok {
		return exp, nil
	}

	raw, err := e.store.Get(ctx, configKey(experimentID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, experimentID)
	}
	if err != nil {
		return nil, fmt.Errorf("load experiment %q: %w", experimentID, err)
	}

	var exp Experiment
	if err := json.Unmarshal(raw, &exp); err != nil {
		return nil, fmt.Errorf("decode experiment %q: %w", experimentID, err)
	}
	e.defs.Set(experimentID, &exp)
	return &exp, nil
}

func (e *Engine) save(ctx context.Context, exp *Experiment) error {
	raw, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("marshal experiment %q: %w", exp.ID, err)
	}
	if err := e.store.Set(ctx, configKey(exp.ID), raw, 0); err != nil {
		return fmt.Errorf("persist experiment %q: %w", exp.ID, err)
	}
	e.defs.Set(exp.ID, exp)
	return nil
}

// bucket maps a (user, experiment) pair onto [0, 1). The divisor is 2^64 as
// a float, so the result never reaches 1.0 exactly.
func bucket(userID, experimentID string) float64 {
	h := xxhash.Sum64String(userID + ":" + experimentID)
	return float64(h) / float64(1<<63) / 2
}

// trafficDraw is a second independent uniform draw for the allocation gate.
// Reusing the bucket draw would skew variants: only visitors in the low end
// of [0, 1) would pass the gate, and those all land in the early variants.
func trafficDraw(userID, experimentID string) float64 {
	h := xxhash.Sum64String(userID + ":" + experimentID + ":traffic")
	return float64(h) / float64(1<<63) / 2
}

// pickVariant walks the variants in declared order accumulating weight and
// returns the first whose cumulative weight reaches the bucket, boundary
// included. Falls back to the first variant when accumulated float error
// leaves the bucket uncovered.
func pickVariant(variants []Variant, b float64) Variant {
	cumulative := 0.0
	for _, v := range variants {
		cumulative += v.Weight
		if cumulative >= b {
			return v
		}
	}
	return variants[0]
}

// Assign returns the variant for the given user, creating a sticky
// assignment on first contact. An existing assignment is returned
// unconditionally, even when the experiment has since been paused, completed
// or reweighted. attrs are matched against the experiment's targeting
// predicates and may be nil.
func (e *Engine) Assign(ctx context.Context, experimentID, userID string, attrs map[string]string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	key := assignmentKey(experimentID, userID)
	if raw, err := e.store.Get(ctx, key); err == nil {
		var existing Assignment
		if err := json.Unmarshal(raw, &existing); err != nil {
			return "", fmt.Errorf("decode assignment %q: %w", key, err)
		}
		return existing.VariantID, nil
	} else if !errors.Is(err, kv.ErrNotFound) {
		return "", fmt.Errorf("load assignment %q: %w", key, err)
	}

	exp, err := e.Get(ctx, experimentID)
	if err != nil {
		return "", err
	}

	now := e.clock.Now()
	if exp.Expired(now) {
		e.complete(ctx, exp)
		return "", fmt.Errorf("%w: %q ended %s", ErrNotActive, experimentID, exp.EndDate.Format(time.RFC3339))
	}
	if exp.Status != StatusActive {
		return "", fmt.Errorf("%w: %q is %s", ErrNotActive, experimentID, exp.Status)
	}
	if now.Before(exp.StartDate) {
		return "", fmt.Errorf("%w: %q starts %s", ErrNotActive, experimentID, exp.StartDate.Format(time.RFC3339))
	}
	if !exp.targeted(attrs) {
		return "", fmt.Errorf("%w: %q", ErrNotTargeted, userID)
	}
	if trafficDraw(userID, experimentID) > exp.TrafficAllocation {
		return "", fmt.Errorf("%w: %q", ErrNotInTraffic, userID)
	}

	variant := pickVariant(exp.Variants, bucket(userID, experimentID))
	assignment := Assignment{
		ExperimentID: experimentID,
		UserID:       userID,
		VariantID:    variant.ID,
		AssignedAt:   now,
	}
	raw, err := json.Marshal(assignment)
	if err != nil {
		return "", fmt.Errorf("marshal assignment: %w", err)
	}

	created, err := e.store.SetNX(ctx, key, raw, e.config.AssignmentTTL)
	if err != nil {
		return "", fmt.Errorf("persist assignment %q: %w", key, err)
	}
	if !created {
		// Lost a concurrent race for the same pair. The winner's
		// assignment is authoritative.
		winner, err := e.store.Get(ctx, key)
		if err != nil {
			return "", fmt.Errorf("load assignment %q: %w", key, err)
		}
		var existing Assignment
		if err := json.Unmarshal(winner, &existing); err != nil {
			return "", fmt.Errorf("decode assignment %q: %w", key, err)
		}
		return existing.VariantID, nil
	}

	if _, err := e.store.Incr(ctx, statsKey(experimentID, variant.ID, "users")); err != nil {
		e.logger.WarnContext(ctx, "failed to count assignment",
			slog.String("experiment_id", experimentID),
			slog.String("variant_id", variant.ID),
			slog.Any("error", err))
	}
	e.record(ctx, columnar.Record{
		"experiment_id": experimentID,
		"user_id":       userID,
		"variant_id":    variant.ID,
		"record_type":   "assignment",
		"value":         0.0,
		"timestamp":     now,
	})

	return variant.ID, nil
}

// TrackConversion records a conversion for the given user. Users without a
// prior assignment are ignored, and repeat conversions for the same pair
// count once. value accumulates into the variant's total on the first call.
func (e *Engine) TrackConversion(ctx context.Context, experimentID, userID string, value float64) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	raw, err := e.store.Get(ctx, assignmentKey(experimentID, userID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load assignment: %w", err)
	}
	var assignment Assignment
	if err := json.Unmarshal(raw, &assignment); err != nil {
		return fmt.Errorf("decode assignment: %w", err)
	}

	first, err := e.store.SetNX(ctx, conversionKey(experimentID, userID), []byte("1"), e.config.AssignmentTTL)
	if err != nil {
		return fmt.Errorf("mark conversion: %w", err)
	}
	if !first {
		return nil
	}

	// Keep the assignment alive as long as the conversion marker, so a
	// late repeat conversion still finds its pair.
	if err := e.store.Expire(ctx, assignmentKey(experimentID, userID), e.config.AssignmentTTL); err != nil {
		e.logger.Warn("refresh assignment ttl",
			slog.String("experiment_id", experimentID),
			slog.Any("error", err))
	}

	if _, err := e.store.Incr(ctx, statsKey(experimentID, assignment.VariantID, "conversions")); err != nil {
		return fmt.Errorf("count conversion: %w", err)
	}
	if value != 0 {
		if _, err := e.store.IncrByFloat(ctx, statsKey(experimentID, assignment.VariantID, "value"), value); err != nil {
			return fmt.Errorf("accumulate conversion value: %w", err)
		}
	}
	e.record(ctx, columnar.Record{
		"experiment_id": experimentID,
		"user_id":       userID,
		"variant_id":    assignment.VariantID,
		"record_type":   "conversion",
		"value":         value,
		"timestamp":     e.clock.Now(),
	})

	return nil
}

// Stats returns the live counters for every variant, in declared order.
func (e *Engine) Stats(ctx context.Context, experimentID string) ([]VariantStats, error) {
	exp, err := e.Get(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	stats := make([]VariantStats, 0, len(exp.Variants))
	for _, v := range exp.Variants {
		vs := VariantStats{VariantID: v.ID}
		vs.UsersAssigned, err = e.counterInt(ctx, statsKey(experimentID, v.ID, "users"))
		if err != nil {
			return nil, err
		}
		vs.Conversions, err = e.counterInt(ctx, statsKey(experimentID, v.ID, "conversions"))
		if err != nil {
			return nil, err
		}
		vs.TotalValue, err = e.counterFloat(ctx, statsKey(experimentID, v.ID, "value"))
		if err != nil {
			return nil, err
		}
		if vs.UsersAssigned > 0 {
			vs.ConversionRate = float64(vs.Conversions) / float64(vs.UsersAssigned)
		}
		stats = append(stats, vs)
	}
	return stats, nil
}

// Analyze evaluates every non-control variant against the control, which is
// always the first declared variant. Small samples yield a structured
// insufficient-data verdict, never an error.
func (e *Engine) Analyze(ctx context.Context, experimentID string) (*Result, error) {
	stats, err := e.Stats(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	return analyze(experimentID, stats, e.config, e.clock.Now()), nil
}

// RecountFromStore recomputes the per-variant counters from the columnar
// trail and overwrites the live counters with that ground truth. Useful
// after a key-value store loss or when drift is suspected.
func (e *Engine) RecountFromStore(ctx context.Context, experimentID string) error {
	if e.events == nil {
		return fmt.Errorf("experiment %q: no columnar store configured", experimentID)
	}
	exp, err := e.Get(ctx, experimentID)
	if err != nil {
		return err
	}

	rows, err := e.events.Query(ctx,
		"SELECT variant_id, record_type, count(*) AS n, sum(value) AS total FROM "+
			columnar.TableExperiments+
			" WHERE experiment_id = $1 GROUP BY variant_id, record_type",
		experimentID)
	if err != nil {
		return fmt.Errorf("recount experiment %q: %w", experimentID, err)
	}

	type truth struct {
		users, conversions int64
		value              float64
	}
	byVariant := make(map[string]*truth, len(exp.Variants))
	for _, v := range exp.Variants {
		byVariant[v.ID] = &truth{}
	}
	for _, row := range rows {
		t, ok := byVariant[asString(row["variant_id"])]
		if !ok {
			continue // variant removed from the definition
		}
		n := asInt64(row["n"])
		if n < 0 {
			n = 0
		}
		switch asString(row["record_type"]) {
		case "assignment":
			t.users = n
		case "conversion":
			t.conversions = n
			if total := asFloat64(row["total"]); total > 0 {
				t.value = total
			}
		}
	}

	for id, t := range byVariant {
		if t.conversions > t.users && t.users > 0 {
			t.conversions = t.users
		}
		if err := e.setCounter(ctx, statsKey(experimentID, id, "users"), strconv.FormatInt(t.users, 10)); err != nil {
			return err
		}
		if err := e.setCounter(ctx, statsKey(experimentID, id, "conversions"), strconv.FormatInt(t.conversions, 10)); err != nil {
			return err
		}
		if err := e.setCounter(ctx, statsKey(experimentID, id, "value"), strconv.FormatFloat(t.value, 'f', -1, 64)); err != nil {
			return err
		}
	}

	e.logger.InfoContext(ctx, "experiment counters recounted",
		slog.String("experiment_id", experimentID),
		slog.Int("variants", len(byVariant)))
	return nil
}

// complete flips an expired experiment to completed. Failures only log: the
// caller already treats the experiment as over.
func (e *Engine) complete(ctx context.Context, exp *Experiment) {
	updated := *exp
	updated.Status = StatusCompleted
	if err := e.save(ctx, &updated); err != nil {
		e.logger.WarnContext(ctx, "failed to auto-complete experiment",
			slog.String("experiment_id", exp.ID),
			slog.Any("error", err))
	}
}

func (e *Engine) record(ctx context.Context, rec columnar.Record) {
	if e.events == nil {
		return
	}
	if err := e.events.Insert(ctx, columnar.TableExperiments, []columnar.Record{rec}); err != nil {
		e.logger.WarnContext(ctx, "failed to append experiment record",
			slog.String("experiment_id", asString(rec["experiment_id"])),
			slog.String("record_type", asString(rec["record_type"])),
			slog.Any("error", err))
	}
}

func (e *Engine) counterInt(ctx context.Context, key string) (int64, error) {
	raw, err := e.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load counter %q: %w", key, err)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %q: %w", key, err)
	}
	return n, nil
}

func (e *Engine) counterFloat(ctx context.Context, key string) (float64, error) {
	raw, err := e.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load counter %q: %w", key, err)
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %q: %w", key, err)
	}
	return f, nil
}

func (e *Engine) setCounter(ctx context.Context, key, value string) error {
	if err := e.store.Set(ctx, key, []byte(value), 0); err != nil {
		return fmt.Errorf("set counter %q: %w", key, err)
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}
