package trackkit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackkit/trackkit"
	"github.com/trackkit/trackkit/pkg/columnar"
	"github.com/trackkit/trackkit/pkg/experiment"
	"github.com/trackkit/trackkit/pkg/funnel"
	"github.com/trackkit/trackkit/pkg/ingest"
	"github.com/trackkit/trackkit/pkg/kv"
)

func TestKit(t *testing.T) {
	t.Parallel()

	store := kv.NewMemory(0)
	t.Cleanup(func() { _ = store.Close() })
	events := columnar.NewMemory()

	kit, err := trackkit.New(events, store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- kit.Run(ctx) }()

	// ingest an event end to end
	token, err := kit.Pipeline.Track(ctx, ingest.RawEvent{
		Type:    ingest.EventPageView,
		PageURL: "https://example.com/",
	}, ingest.RequestContext{
		IP:        "203.0.113.7",
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// run one experiment round trip through the same stores
	require.NoError(t, kit.Experiments.Define(ctx, experiment.Experiment{
		ID:     "exp_kit",
		Status: experiment.StatusActive,
		Variants: []experiment.Variant{
			{ID: "control", Weight: 0.5},
			{ID: "treatment", Weight: 0.5},
		},
		TrafficAllocation: 1.0,
	}))
	variant, err := kit.Experiments.Assign(ctx, "exp_kit", "user_1", nil)
	require.NoError(t, err)
	assert.Contains(t, []string{"control", "treatment"}, variant)

	// register a funnel and track live progress against the same KV store
	require.NoError(t, kit.Funnels.Register(funnel.Definition{
		ID: "signup",
		Steps: []funnel.Step{
			{Name: "landing", Match: funnel.Predicate{EventType: "page_view"}},
			{Name: "done", Match: funnel.Predicate{EventType: "conversion"}},
		},
	}))
	require.NoError(t, kit.Funnels.TrackStep(ctx, "signup", "sess_1", "landing"))

	// shutdown drains the pipeline
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("kit did not shut down")
	}

	rows := events.Rows(columnar.TableEvents)
	require.Len(t, rows, 1)
	assert.Equal(t, "page_view", rows[0]["event_type"])
}
