package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/bookmeta/internal/models"
)

func TestExtractTaskRoundTrip(t *testing.T) {
	ev := models.UploadEvent{
		EventID:    "evt-1",
		Bucket:     "uploads",
		Key:        "u1/cover.jpg",
		OwnerID:    "u1",
		BookID:     "b1",
		Strategy:   models.StrategyCostOptimized,
		Source:     models.EventObjectCreated,
		OccurredAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	task, err := NewExtractTask(ev)
	require.NoError(t, err)
	assert.Equal(t, TaskTypeExtract, task.Type())

	got, err := ParseExtractTask(task)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestQueueFor(t *testing.T) {
	assert.Equal(t, QueueCritical, queueFor(models.EventManualRetry))
	assert.Equal(t, QueueDefault, queueFor(models.EventObjectCreated))
	assert.Equal(t, QueueLow, queueFor(models.EventReplay))
}
