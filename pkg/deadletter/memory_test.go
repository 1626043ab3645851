package deadletter

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
)

func entry(id string) models.DeadLetterEntry {
	return models.DeadLetterEntry{RunID: id, Event: models.UploadEvent{EventID: "evt-" + id}}
}

func TestMemoryQueue_DrainIsOldestFirstAndNonDestructive(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Push(ctx, entry(id)))
	}

	got, err := q.Drain(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].RunID)
	assert.Equal(t, "b", got[1].RunID)

	n, _ := q.Len(ctx)
	assert.EqualValues(t, 3, n)
}

func TestMemoryQueue_Ack(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	require.NoError(t, q.Push(ctx, entry("a")))
	require.NoError(t, q.Push(ctx, entry("b")))

	got1, err := q.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "evt-a", got1.Event.EventID)

	require.NoError(t, q.Ack(ctx, "a"))
	require.NoError(t, q.Ack(ctx, "missing"))

	_, err = q.Get(ctx, "a")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := q.Drain(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].RunID)
}

func TestMemoryQueue_PushSameRunKeepsOneEntry(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	require.NoError(t, q.Push(ctx, entry("a")))
	require.NoError(t, q.Push(ctx, entry("b")))
	require.NoError(t, q.Push(ctx, entry("a")))

	got, _ := q.Drain(ctx, 10)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].RunID)
	assert.Equal(t, "a", got[1].RunID)
}

func TestClampMax(t *testing.T) {
	assert.Equal(t, DefaultDrainMax, ClampMax(0))
	assert.Equal(t, DefaultDrainMax, ClampMax(500))
	assert.Equal(t, 7, ClampMax(7))

	ctx := context.Background()
	q := NewMemoryQueue()
	for i := 0; i < 60; i++ {
		require.NoError(t, q.Push(ctx, entry(fmt.Sprint(i))))
	}
	got, _ := q.Drain(ctx, 100)
	assert.Len(t, got, DefaultDrainMax)
}
