package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/internal/service/book"
	"github.com/feichai0017/bookmeta/pkg/deadletter"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

// EventPublisher hands an upload event to the queue.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev models.UploadEvent) error
}

// ReplayReport summarises one replay pass.
type ReplayReport struct {
	Drained  int      `json:"drained"`
	Replayed []string `json:"replayed"`
	Failed   []string `json:"failed"`
}

// Replayer moves dead-lettered runs back onto the queue.
type Replayer struct {
	queue     deadletter.Queue
	publisher EventPublisher
	books     book.Store
	logger    logger.Logger
}

func NewReplayer(q deadletter.Queue, pub EventPublisher, books book.Store, log logger.Logger) *Replayer {
	return &Replayer{queue: q, publisher: pub, books: books, logger: log.Named("replay")}
}

// Replay re-publishes up to max entries, oldest first, each with its original
// event unchanged. An entry is acked only after its publish succeeded.
func (r *Replayer) Replay(ctx context.Context, max int) (*ReplayReport, error) {
	entries, err := r.queue.Drain(ctx, deadletter.ClampMax(max))
	if err != nil {
		return nil, err
	}
	report := &ReplayReport{Drained: len(entries), Replayed: []string{}, Failed: []string{}}
	for _, e := range entries {
		if err := r.publisher.PublishEvent(ctx, e.Event); err != nil {
			r.logger.Error("Failed to replay dead-letter entry",
				logger.String("runId", e.RunID),
				logger.String("eventId", e.Event.EventID),
				logger.Error(err),
			)
			report.Failed = append(report.Failed, e.RunID)
			continue
		}
		if err := r.queue.Ack(ctx, e.RunID); err != nil {
			r.logger.Error("Failed to ack replayed entry", logger.String("runId", e.RunID), logger.Error(err))
			report.Failed = append(report.Failed, e.RunID)
			continue
		}
		report.Replayed = append(report.Replayed, e.RunID)
	}
	r.logger.Info("Dead-letter replay finished",
		logger.Int("drained", report.Drained),
		logger.Int("replayed", len(report.Replayed)),
		logger.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// Discard gives up on a run: the book is marked failed, which the user sees,
// and the entry is acked. User-entered fields are left alone.
func (r *Replayer) Discard(ctx context.Context, runID string) error {
	e, err := r.queue.Get(ctx, runID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	err = r.books.Patch(ctx, e.Event.BookID, e.Event.OwnerID, models.BookPatch{
		MetadataSource:   models.SourceFailed,
		LastExtractionAt: &now,
	})
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("failed to mark book %s failed: %w", e.Event.BookID, err)
	}
	if err := r.queue.Ack(ctx, runID); err != nil {
		return err
	}
	r.logger.Info("Discarded dead-letter entry",
		logger.String("runId", runID),
		logger.String("bookId", e.Event.BookID),
	)
	return nil
}

// Ack drops an entry without touching the book.
func (r *Replayer) Ack(ctx context.Context, runID string) error {
	if _, err := r.queue.Get(ctx, runID); err != nil {
		return err
	}
	return r.queue.Ack(ctx, runID)
}

// List returns up to max entries without removing them.
func (r *Replayer) List(ctx context.Context, max int) ([]models.DeadLetterEntry, error) {
	return r.queue.Drain(ctx, max)
}
