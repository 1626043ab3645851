// Package deadletter holds orchestration runs that produced nothing usable so
// an operator or the periodic replay task can re-publish them.
package deadletter

import (
	"context"

	"github.com/feichai0017/bookmeta/internal/models"
)

// DefaultDrainMax bounds a single drain when the caller passes no limit.
const DefaultDrainMax = 50

// Queue is the dead-letter channel. Drain is non-destructive; entries leave
// the queue only through Ack.
type Queue interface {
	Push(ctx context.Context, entry models.DeadLetterEntry) error
	Drain(ctx context.Context, max int) ([]models.DeadLetterEntry, error)
	Get(ctx context.Context, runID string) (*models.DeadLetterEntry, error)
	Ack(ctx context.Context, runID string) error
	Len(ctx context.Context) (int64, error)
}

// ClampMax applies the default and the cap to a caller supplied limit.
func ClampMax(max int) int {
	if max <= 0 || max > DefaultDrainMax {
		return DefaultDrainMax
	}
	return max
}
