package columnar_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackkit/trackkit/pkg/columnar"
)

func TestMemory_Insert(t *testing.T) {
	t.Parallel()

	store := columnar.NewMemory()
	ctx := context.Background()

	t.Run("empty batch rejected", func(t *testing.T) {
		err := store.Insert(ctx, columnar.TableEvents, nil)
		assert.ErrorIs(t, err, columnar.ErrEmptyBatch)
	})

	t.Run("preserves insertion order", func(t *testing.T) {
		records := []columnar.Record{
			{"event_id": "e1"},
			{"event_id": "e2"},
			{"event_id": "e3"},
		}
		require.NoError(t, store.Insert(ctx, columnar.TableEvents, records))

		rows := store.Rows(columnar.TableEvents)
		require.Len(t, rows, 3)
		assert.Equal(t, "e1", rows[0]["event_id"])
		assert.Equal(t, "e3", rows[2]["event_id"])
	})

	t.Run("injected failure surfaces once", func(t *testing.T) {
		boom := errors.New("connection reset")
		store.FailNext(boom)

		err := store.Insert(ctx, columnar.TableEvents, []columnar.Record{{"event_id": "e4"}})
		assert.ErrorIs(t, err, boom)

		require.NoError(t, store.Insert(ctx, columnar.TableEvents, []columnar.Record{{"event_id": "e4"}}))
	})
}

func TestMemory_StubQuery(t *testing.T) {
	t.Parallel()

	store := columnar.NewMemory()
	ctx := context.Background()

	store.StubQuery("SELECT 1", []columnar.Row{{"n": int64(1)}})

	rows, err := store.Query(ctx, "SELECT 1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["n"])

	rows, err = store.Query(ctx, "SELECT 2")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	store := columnar.NewMemory()
	require.NoError(t, columnar.EnsureSchema(context.Background(), store, 0))
	assert.NotEmpty(t, store.Commands())
}
