package notify

import (
	"context"
	"sync"

	"github.com/feichai0017/bookmeta/internal/models"
)

// MemoryStatus is the in-process StatusStore. It also records every event it
// sees, which tests use to assert on publication.
type MemoryStatus struct {
	mu       sync.Mutex
	statuses map[string]Status
	events   []models.MetadataExtracted
}

func NewMemoryStatus() *MemoryStatus {
	return &MemoryStatus{statuses: make(map[string]Status)}
}

func (s *MemoryStatus) Name() string { return "memory-status" }

func (s *MemoryStatus) OnExtracted(_ context.Context, ev models.MetadataExtracted, run *models.OrchestrationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[ev.BookID] = statusFrom(ev, run)
	s.events = append(s.events, ev)
	return nil
}

func (s *MemoryStatus) Status(_ context.Context, bookID string) (*Status, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[bookID]
	if !ok {
		return nil, false, nil
	}
	return &st, true, nil
}

func (s *MemoryStatus) Events() []models.MetadataExtracted {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MetadataExtracted(nil), s.events...)
}
