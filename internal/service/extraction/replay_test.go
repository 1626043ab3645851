package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/internal/service/book"
	"github.com/feichai0017/bookmeta/pkg/deadletter"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

type recordingPublisher struct {
	events []models.UploadEvent
	failOn string
}

func (p *recordingPublisher) PublishEvent(_ context.Context, ev models.UploadEvent) error {
	if ev.EventID == p.failOn {
		return errors.New("redis unavailable")
	}
	p.events = append(p.events, ev)
	return nil
}

func deadEntry(runID, bookID string) models.DeadLetterEntry {
	ev := models.UploadEvent{
		EventID:  "evt-" + runID,
		Bucket:   "uploads",
		Key:      "u1/" + runID + ".jpg",
		OwnerID:  "u1",
		BookID:   bookID,
		Strategy: models.StrategyAccuracyFirst,
		Source:   models.EventObjectCreated,
	}
	return models.DeadLetterEntry{RunID: runID, Event: ev, Run: models.OrchestrationRun{RunID: runID, Event: ev, State: models.RunFailed}}
}

func TestReplayer_ReplayPublishesVerbatimAndAcks(t *testing.T) {
	ctx := context.Background()
	q := deadletter.NewMemoryQueue()
	require.NoError(t, q.Push(ctx, deadEntry("r1", "b1")))
	require.NoError(t, q.Push(ctx, deadEntry("r2", "b2")))
	require.NoError(t, q.Push(ctx, deadEntry("r3", "b3")))

	pub := &recordingPublisher{failOn: "evt-r2"}
	r := NewReplayer(q, pub, book.NewMemoryStore(), logger.NewTestLogger())

	report, err := r.Replay(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Drained)
	assert.Equal(t, []string{"r1", "r3"}, report.Replayed)
	assert.Equal(t, []string{"r2"}, report.Failed)

	require.Len(t, pub.events, 2)
	assert.Equal(t, deadEntry("r1", "b1").Event, pub.events[0])

	left, _ := q.Drain(ctx, 10)
	require.Len(t, left, 1)
	assert.Equal(t, "r2", left[0].RunID)
}

func TestReplayer_ReplayRespectsMax(t *testing.T) {
	ctx := context.Background()
	q := deadletter.NewMemoryQueue()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Push(ctx, deadEntry(id, "book-"+id)))
	}
	pub := &recordingPublisher{}
	r := NewReplayer(q, pub, book.NewMemoryStore(), logger.NewTestLogger())

	report, err := r.Replay(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, report.Replayed)
	n, _ := q.Len(ctx)
	assert.EqualValues(t, 1, n)
}

func TestReplayer_DiscardMarksBookFailed(t *testing.T) {
	ctx := context.Background()
	books := book.NewMemoryStore()
	rec, err := books.CreatePlaceholder(ctx, "u1", models.ImageRef{Bucket: "uploads", Key: "u1/x.jpg"})
	require.NoError(t, err)

	q := deadletter.NewMemoryQueue()
	require.NoError(t, q.Push(ctx, deadEntry("r1", rec.ID)))
	r := NewReplayer(q, &recordingPublisher{}, books, logger.NewTestLogger())

	require.NoError(t, r.Discard(ctx, "r1"))

	got, _ := books.Get(ctx, rec.ID)
	assert.Equal(t, models.SourceFailed, got.MetadataSource)
	assert.Empty(t, got.Title)
	n, _ := q.Len(ctx)
	assert.EqualValues(t, 0, n)

	assert.ErrorIs(t, r.Discard(ctx, "r1"), apperr.ErrNotFound)
	assert.ErrorIs(t, r.Ack(ctx, "r1"), apperr.ErrNotFound)
}

func TestReplayer_DiscardToleratesDeletedBook(t *testing.T) {
	ctx := context.Background()
	q := deadletter.NewMemoryQueue()
	require.NoError(t, q.Push(ctx, deadEntry("r1", "gone")))
	r := NewReplayer(q, &recordingPublisher{}, book.NewMemoryStore(), logger.NewTestLogger())

	require.NoError(t, r.Discard(ctx, "r1"))
	n, _ := q.Len(ctx)
	assert.EqualValues(t, 0, n)
}
