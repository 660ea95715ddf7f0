package experiment_test

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackkit/trackkit/pkg/columnar"
	"github.com/trackkit/trackkit/pkg/experiment"
	"github.com/trackkit/trackkit/pkg/kv"
)

func setupEngine(t *testing.T, opts ...experiment.Option) (*experiment.Engine, kv.Store, *columnar.Memory) {
	t.Helper()

	store := kv.NewMemory(0)
	t.Cleanup(func() { _ = store.Close() })
	events := columnar.NewMemory()

	engine, err := experiment.NewEngine(store, events, opts...)
	require.NoError(t, err)
	return engine, store, events
}

func activeExperiment(id string) experiment.Experiment {
	return experiment.Experiment{
		ID:     id,
		Status: experiment.StatusActive,
		Variants: []experiment.Variant{
			{ID: "control", Weight: 0.5},
			{ID: "treatment", Weight: 0.5},
		},
		TrafficAllocation: 1.0,
		StartDate:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// expireRecorder notes every Expire call passing through to the wrapped store.
type expireRecorder struct {
	kv.Store
	expired []string
}

func (r *expireRecorder) Expire(ctx context.Context, key string, ttl time.Duration) error {
	r.expired = append(r.expired, key)
	return r.Store.Expire(ctx, key, ttl)
}

func TestNewEngine_NilStore(t *testing.T) {
	t.Parallel()

	_, err := experiment.NewEngine(nil, nil)
	assert.ErrorIs(t, err, experiment.ErrNilStore)
}

func TestEngine_Define(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rejects weights summing below one", func(t *testing.T) {
		t.Parallel()
		engine, _, _ := setupEngine(t)

		exp := activeExperiment("exp_low")
		exp.Variants = []experiment.Variant{
			{ID: "a", Weight: 0.2},
			{ID: "b", Weight: 0.3},
		}
		assert.ErrorIs(t, engine.Define(ctx, exp), experiment.ErrInvalidWeights)
	})

	t.Run("rejects weights summing above one", func(t *testing.T) {
		t.Parallel()
		engine, _, _ := setupEngine(t)

		exp := activeExperiment("exp_high")
		exp.Variants = []experiment.Variant{
			{ID: "a", Weight: 0.75},
			{ID: "b", Weight: 0.75},
		}
		assert.ErrorIs(t, engine.Define(ctx, exp), experiment.ErrInvalidWeights)
	})

	t.Run("accepts weights within tolerance", func(t *testing.T) {
		t.Parallel()
		engine, _, _ := setupEngine(t)

		exp := activeExperiment("exp_tol")
		exp.Variants = []experiment.Variant{
			{ID: "a", Weight: 0.499},
			{ID: "b", Weight: 0.496},
		}
		assert.NoError(t, engine.Define(ctx, exp))
	})

	t.Run("rejects a single variant", func(t *testing.T) {
		t.Parallel()
		engine, _, _ := setupEngine(t)

		exp := activeExperiment("exp_single")
		exp.Variants = exp.Variants[:1]
		exp.Variants[0].Weight = 1.0
		assert.ErrorIs(t, engine.Define(ctx, exp), experiment.ErrTooFewVariants)
	})

	t.Run("rejects allocation outside unit interval", func(t *testing.T) {
		t.Parallel()
		engine, _, _ := setupEngine(t)

		exp := activeExperiment("exp_alloc")
		exp.TrafficAllocation = 1.5
		assert.ErrorIs(t, engine.Define(ctx, exp), experiment.ErrInvalidAllocation)
	})

	t.Run("rejects end date before start date", func(t *testing.T) {
		t.Parallel()
		engine, _, _ := setupEngine(t)

		exp := activeExperiment("exp_dates")
		exp.EndDate = exp.StartDate.Add(-time.Hour)
		assert.ErrorIs(t, engine.Define(ctx, exp), experiment.ErrInvalidDates)
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		t.Parallel()
		engine, _, _ := setupEngine(t)

		require.NoError(t, engine.Define(ctx, activeExperiment("exp_dup")))
		assert.ErrorIs(t, engine.Define(ctx, activeExperiment("exp_dup")), experiment.ErrAlreadyExists)
	})
}

func TestEngine_StatusTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine, _, _ := setupEngine(t)

	exp := activeExperiment("exp_status")
	exp.Status = experiment.StatusDraft
	require.NoError(t, engine.Define(ctx, exp))

	// draft cannot complete directly
	err := engine.SetStatus(ctx, "exp_status", experiment.StatusCompleted)
	assert.ErrorIs(t, err, experiment.ErrInvalidTransition)

	require.NoError(t, engine.SetStatus(ctx, "exp_status", experiment.StatusActive))
	require.NoError(t, engine.SetStatus(ctx, "exp_status", experiment.StatusPaused))
	require.NoError(t, engine.SetStatus(ctx, "exp_status", experiment.StatusActive))
	require.NoError(t, engine.SetStatus(ctx, "exp_status", experiment.StatusCompleted))

	// completed is terminal
	err = engine.SetStatus(ctx, "exp_status", experiment.StatusActive)
	assert.ErrorIs(t, err, experiment.ErrInvalidTransition)

	got, err := engine.Get(ctx, "exp_status")
	require.NoError(t, err)
	assert.Equal(t, experiment.StatusCompleted, got.Status)
}

func TestEngine_Assign(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("deterministic across engine instances", func(t *testing.T) {
		t.Parallel()
		engine, _, _ := setupEngine(t)
		other, _, _ := setupEngine(t)
		require.NoError(t, engine.Define(ctx, activeExperiment("exp_det")))
		require.NoError(t, other.Define(ctx, activeExperiment("exp_det")))

		first, err := engine.Assign(ctx, "exp_det", "user_42", nil)
		require.NoError(t, err)
		second, err := other.Assign(ctx, "exp_det", "user_42", nil)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("sticky under concurrent calls", func(t *testing.T) {
		t.Parallel()
		engine, store, _ := setupEngine(t)
		require.NoError(t, engine.Define(ctx, activeExperiment("exp_race")))

		const callers = 20
		variants := make([]string, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			i := i
			go func() {
				defer wg.Done()
				variant, err := engine.Assign(ctx, "exp_race", "user_7", nil)
				assert.NoError(t, err)
				variants[i] = variant
			}()
		}
		wg.Wait()

		for _, v := range variants[1:] {
			assert.Equal(t, variants[0], v)
		}

		// exactly one assignment was counted
		raw, err := store.Get(ctx, "experiment:stats:exp_race:"+variants[0]+":users")
		require.NoError(t, err)
		assert.Equal(t, "1", string(raw))
	})

	t.Run("sticky across weight changes", func(t *testing.T) {
		t.Parallel()
		engine, _, _ := setupEngine(t)
		require.NoError(t, engine.Define(ctx, activeExperiment("exp_weights")))

		before, err := engine.Assign(ctx, "exp_weights", "user_9", nil)
		require.NoError(t, err)

		updated := activeExperiment("exp_weights")
		updated.Variants = []experiment.Variant{
			{ID: "control", Weight: 0.01},
			{ID: "treatment", Weight: 0.99},
		}
		require.NoError(t, engine.Update(ctx, updated))

		after, err := engine.Assign(ctx, "exp_weights", "user_9", nil)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("rejects draft experiments", func(t *testing.T) {
		t.Parallel()
		engine, _, _ := setupEngine(t)
		exp := activeExperiment("exp_draft")
		exp.Status = experiment.StatusDraft
		require.NoError(t, engine.Define(ctx, exp))

		_, err := engine.Assign(ctx, "exp_draft", "user_1", nil)
		assert.ErrorIs(t, err, experiment.ErrNotActive)
	})

	t.Run("auto-completes past end date", func(t *testing.T) {
		t.Parallel()
		mock := clock.NewMock()
		mock.Set(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
		engine, _, _ := setupEngine(t, experiment.WithClock(mock))

		exp := activeExperiment("exp_over")
		exp.EndDate = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, engine.Define(ctx, exp))

		_, err := engine.Assign(ctx, "exp_over", "user_1", nil)
		assert.ErrorIs(t, err, experiment.ErrNotActive)

		got, err := engine.Get(ctx, "exp_over")
		require.NoError(t, err)
		assert.Equal(t, experiment.StatusCompleted, got.Status)
	})

	t.Run("rejects visitors outside targeting", func(t *testing.T) {
		t.Parallel()
		engine, _, _ := setupEngine(t)
		exp := activeExperiment("exp_target")
		exp.Targeting = map[string]string{"country": "DE"}
		require.NoError(t, engine.Define(ctx, exp))

		_, err := engine.Assign(ctx, "exp_target", "user_1", map[string]string{"country": "US"})
		assert.ErrorIs(t, err, experiment.ErrNotTargeted)

		variant, err := engine.Assign(ctx, "exp_target", "user_1", map[string]string{"country": "DE"})
		require.NoError(t, err)
		assert.NotEmpty(t, variant)
	})

	t.Run("rejects visitors outside traffic allocation", func(t *testing.T) {
		t.Parallel()
		engine, _, _ := setupEngine(t)
		exp := activeExperiment("exp_traffic")
		exp.TrafficAllocation = 0
		require.NoError(t, engine.Define(ctx, exp))

		_, err := engine.Assign(ctx, "exp_traffic", "user_1", nil)
		assert.ErrorIs(t, err, experiment.ErrNotInTraffic)
	})

	t.Run("appends an assignment record", func(t *testing.T) {
		t.Parallel()
		engine, _, events := setupEngine(t)
		require.NoError(t, engine.Define(ctx, activeExperiment("exp_trail")))

		variant, err := engine.Assign(ctx, "exp_trail", "user_1", nil)
		require.NoError(t, err)

		rows := events.Rows(columnar.TableExperiments)
		require.Len(t, rows, 1)
		assert.Equal(t, "exp_trail", rows[0]["experiment_id"])
		assert.Equal(t, "user_1", rows[0]["user_id"])
		assert.Equal(t, variant, rows[0]["variant_id"])
		assert.Equal(t, "assignment", rows[0]["record_type"])
	})
}

func TestEngine_TrackConversion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("idempotent per user", func(t *testing.T) {
		t.Parallel()
		engine, _, _ := setupEngine(t)
		require.NoError(t, engine.Define(ctx, activeExperiment("exp_conv")))

		variant, err := engine.Assign(ctx, "exp_conv", "user_1", nil)
		require.NoError(t, err)

		require.NoError(t, engine.TrackConversion(ctx, "exp_conv", "user_1", 25.0))
		require.NoError(t, engine.TrackConversion(ctx, "exp_conv", "user_1", 25.0))

		stats, err := engine.Stats(ctx, "exp_conv")
		require.NoError(t, err)
		for _, vs := range stats {
			if vs.VariantID != variant {
				continue
			}
			assert.Equal(t, int64(1), vs.Conversions)
			assert.InDelta(t, 25.0, vs.TotalValue, 1e-9)
			assert.InDelta(t, 1.0, vs.ConversionRate, 1e-9)
		}
	})

	t.Run("ignores users without an assignment", func(t *testing.T) {
		t.Parallel()
		engine, _, events := setupEngine(t)
		require.NoError(t, engine.Define(ctx, activeExperiment("exp_noassign")))

		require.NoError(t, engine.TrackConversion(ctx, "exp_noassign", "stranger", 10.0))

		stats, err := engine.Stats(ctx, "exp_noassign")
		require.NoError(t, err)
		for _, vs := range stats {
			assert.Zero(t, vs.Conversions)
		}
		assert.Empty(t, events.Rows(columnar.TableExperiments))
	})

	t.Run("refreshes the assignment ttl", func(t *testing.T) {
		t.Parallel()
		base := kv.NewMemory(0)
		t.Cleanup(func() { _ = base.Close() })
		store := &expireRecorder{Store: base}

		engine, err := experiment.NewEngine(store, columnar.NewMemory())
		require.NoError(t, err)
		require.NoError(t, engine.Define(ctx, activeExperiment("exp_ttl")))

		_, err = engine.Assign(ctx, "exp_ttl", "user_1", nil)
		require.NoError(t, err)

		require.NoError(t, engine.TrackConversion(ctx, "exp_ttl", "user_1", 5.0))
		assert.Equal(t, []string{"experiment:exp_ttl:user_1"}, store.expired,
			"the first conversion keeps the assignment alive alongside its marker")

		// a repeat conversion is a no-op, ttl included
		require.NoError(t, engine.TrackConversion(ctx, "exp_ttl", "user_1", 5.0))
		assert.Len(t, store.expired, 1)
	})

	t.Run("appends an outcome record once", func(t *testing.T) {
		t.Parallel()
		engine, _, events := setupEngine(t)
		require.NoError(t, engine.Define(ctx, activeExperiment("exp_outcome")))

		_, err := engine.Assign(ctx, "exp_outcome", "user_1", nil)
		require.NoError(t, err)
		require.NoError(t, engine.TrackConversion(ctx, "exp_outcome", "user_1", 12.5))
		require.NoError(t, engine.TrackConversion(ctx, "exp_outcome", "user_1", 12.5))

		var outcomes int
		for _, row := range events.Rows(columnar.TableExperiments) {
			if row["record_type"] == "conversion" {
				outcomes++
				assert.Equal(t, 12.5, row["value"])
			}
		}
		assert.Equal(t, 1, outcomes)
	})
}

func TestEngine_Analyze(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	seed := func(t *testing.T, store kv.Store, experimentID, variantID string, users, conversions int64) {
		t.Helper()
		prefix := "experiment:stats:" + experimentID + ":" + variantID
		require.NoError(t, store.Set(ctx, prefix+":users", []byte(itoa(users)), 0))
		require.NoError(t, store.Set(ctx, prefix+":conversions", []byte(itoa(conversions)), 0))
	}

	t.Run("small samples never significant", func(t *testing.T) {
		t.Parallel()
		engine, store, _ := setupEngine(t)
		require.NoError(t, engine.Define(ctx, activeExperiment("exp_small")))

		// extreme observed difference, but n below the minimum sample size
		seed(t, store, "exp_small", "control", 20, 1)
		seed(t, store, "exp_small", "treatment", 25, 20)

		result, err := engine.Analyze(ctx, "exp_small")
		require.NoError(t, err)
		require.Len(t, result.Comparisons, 1)
		assert.True(t, result.Comparisons[0].InsufficientData)
		assert.False(t, result.Comparisons[0].Significant)
		assert.Contains(t, result.Comparisons[0].Recommendation, "collect at least 30")
	})

	t.Run("clear winner is significant", func(t *testing.T) {
		t.Parallel()
		engine, store, _ := setupEngine(t)
		require.NoError(t, engine.Define(ctx, activeExperiment("exp_winner")))

		seed(t, store, "exp_winner", "control", 1000, 100)
		seed(t, store, "exp_winner", "treatment", 1000, 150)

		result, err := engine.Analyze(ctx, "exp_winner")
		require.NoError(t, err)
		assert.Equal(t, "control", result.ControlID)
		require.Len(t, result.Comparisons, 1)

		c := result.Comparisons[0]
		assert.True(t, c.Significant)
		assert.False(t, c.InsufficientData)
		assert.Greater(t, c.Z, 3.0)
		assert.Less(t, c.PValue, 0.05)
		assert.InDelta(t, 0.05, c.Lift, 1e-9)
		assert.Greater(t, c.ConfidenceInterval[0], 0.0)
		assert.Contains(t, c.Recommendation, `variant "treatment" outperforms`)
	})

	t.Run("noise is not significant", func(t *testing.T) {
		t.Parallel()
		engine, store, _ := setupEngine(t)
		require.NoError(t, engine.Define(ctx, activeExperiment("exp_noise")))

		seed(t, store, "exp_noise", "control", 1000, 100)
		seed(t, store, "exp_noise", "treatment", 1000, 105)

		result, err := engine.Analyze(ctx, "exp_noise")
		require.NoError(t, err)
		require.Len(t, result.Comparisons, 1)
		assert.False(t, result.Comparisons[0].Significant)
		assert.Contains(t, result.Comparisons[0].Recommendation, "no statistically detectable difference")
	})
}

func TestEngine_RecountFromStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine, store, events := setupEngine(t)
	require.NoError(t, engine.Define(ctx, activeExperiment("exp_recount")))

	// drifted live counters
	require.NoError(t, store.Set(ctx, "experiment:stats:exp_recount:control:users", []byte("999"), 0))
	require.NoError(t, store.Set(ctx, "experiment:stats:exp_recount:control:conversions", []byte("500"), 0))

	query := "SELECT variant_id, record_type, count(*) AS n, sum(value) AS total FROM " +
		columnar.TableExperiments +
		" WHERE experiment_id = $1 GROUP BY variant_id, record_type"
	events.StubQuery(query, []columnar.Row{
		{"variant_id": "control", "record_type": "assignment", "n": int64(40), "total": 0.0},
		{"variant_id": "control", "record_type": "conversion", "n": int64(8), "total": 200.0},
		{"variant_id": "treatment", "record_type": "assignment", "n": int64(38), "total": 0.0},
	})

	require.NoError(t, engine.RecountFromStore(ctx, "exp_recount"))

	stats, err := engine.Stats(ctx, "exp_recount")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, int64(40), stats[0].UsersAssigned)
	assert.Equal(t, int64(8), stats[0].Conversions)
	assert.InDelta(t, 200.0, stats[0].TotalValue, 1e-9)
	assert.Equal(t, int64(38), stats[1].UsersAssigned)
	assert.Zero(t, stats[1].Conversions)
}

// TestEngine_EndToEnd walks the full life of one experiment: define, assign,
// convert twice, analyze.
func TestEngine_EndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine, _, events := setupEngine(t)

	require.NoError(t, engine.Define(ctx, activeExperiment("exp_1")))

	variant, err := engine.Assign(ctx, "exp_1", "visitor_1", nil)
	require.NoError(t, err)
	require.Contains(t, []string{"control", "treatment"}, variant)

	again, err := engine.Assign(ctx, "exp_1", "visitor_1", nil)
	require.NoError(t, err)
	assert.Equal(t, variant, again)

	require.NoError(t, engine.TrackConversion(ctx, "exp_1", "visitor_1", 25.0))
	require.NoError(t, engine.TrackConversion(ctx, "exp_1", "visitor_1", 25.0))

	stats, err := engine.Stats(ctx, "exp_1")
	require.NoError(t, err)
	var total, converted int64
	for _, vs := range stats {
		total += vs.UsersAssigned
		converted += vs.Conversions
	}
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(1), converted)

	result, err := engine.Analyze(ctx, "exp_1")
	require.NoError(t, err)
	require.Len(t, result.Comparisons, 1)
	assert.True(t, result.Comparisons[0].InsufficientData)

	assert.Len(t, events.Rows(columnar.TableExperiments), 2)
}

func TestParseDefinitions(t *testing.T) {
	t.Parallel()

	t.Run("valid file", func(t *testing.T) {
		t.Parallel()
		src := `
experiments:
  - id: exp_1
    status: active
    traffic_allocation: 1.0
    variants:
      - {id: control, weight: 0.5}
      - {id: treatment, weight: 0.5}
  - id: exp_2
    traffic_allocation: 0.25
    variants:
      - {id: a, weight: 0.34}
      - {id: b, weight: 0.33}
      - {id: c, weight: 0.33}
`
		exps, err := experiment.ParseDefinitions(strings.NewReader(src))
		require.NoError(t, err)
		require.Len(t, exps, 2)
		assert.Equal(t, experiment.StatusActive, exps[0].Status)
		assert.Equal(t, experiment.StatusDraft, exps[1].Status)
		assert.Len(t, exps[1].Variants, 3)
	})

	t.Run("rejects invalid weights", func(t *testing.T) {
		t.Parallel()
		src := `
experiments:
  - id: exp_bad
    variants:
      - {id: a, weight: 0.2}
      - {id: b, weight: 0.2}
`
		_, err := experiment.ParseDefinitions(strings.NewReader(src))
		assert.ErrorIs(t, err, experiment.ErrInvalidWeights)
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		t.Parallel()
		src := `
experiments:
  - id: exp_dup
    variants:
      - {id: a, weight: 0.5}
      - {id: b, weight: 0.5}
  - id: exp_dup
    variants:
      - {id: a, weight: 0.5}
      - {id: b, weight: 0.5}
`
		_, err := experiment.ParseDefinitions(strings.NewReader(src))
		assert.ErrorIs(t, err, experiment.ErrInvalidDefinition)
	})
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
