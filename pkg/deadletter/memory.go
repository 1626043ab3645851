package deadletter

import (
	"context"
	"sync"

	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
)

type MemoryQueue struct {
	mu      sync.Mutex
	order   []string
	entries map[string]models.DeadLetterEntry
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{entries: make(map[string]models.DeadLetterEntry)}
}

func (q *MemoryQueue) Push(ctx context.Context, entry models.DeadLetterEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remove(entry.RunID)
	q.order = append(q.order, entry.RunID)
	q.entries[entry.RunID] = entry
	return nil
}

func (q *MemoryQueue) Drain(ctx context.Context, max int) ([]models.DeadLetterEntry, error) {
	max = ClampMax(max)
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.DeadLetterEntry, 0, min(max, len(q.order)))
	for _, id := range q.order {
		if len(out) == max {
			break
		}
		out = append(out, q.entries[id])
	}
	return out, nil
}

func (q *MemoryQueue) Get(ctx context.Context, runID string) (*models.DeadLetterEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.entries[runID]
	if !ok {
		return nil, apperr.NotFound("dead-letter entry", runID)
	}
	return &entry, nil
}

func (q *MemoryQueue) Ack(ctx context.Context, runID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remove(runID)
	return nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.order)), nil
}

func (q *MemoryQueue) remove(runID string) {
	if _, ok := q.entries[runID]; !ok {
		return
	}
	delete(q.entries, runID)
	for i, id := range q.order {
		if id == runID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}
