package book

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
)

type MemoryStore struct {
	mu      sync.Mutex
	records map[string]models.BookRecord
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.BookRecord), now: time.Now}
}

func (s *MemoryStore) CreatePlaceholder(_ context.Context, ownerID string, ref models.ImageRef) (*models.BookRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	rec := models.BookRecord{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		Status:         models.StatusAvailable,
		MetadataSource: models.SourcePending,
		SourceImageRef: ref,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.records[rec.ID] = rec
	out := rec
	return &out, nil
}

// Put inserts or replaces a record as-is.
func (s *MemoryStore) Put(rec models.BookRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
}

func (s *MemoryStore) Get(_ context.Context, bookID string) (*models.BookRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[bookID]
	if !ok {
		return nil, apperr.NotFound("book", bookID)
	}
	return &rec, nil
}

func (s *MemoryStore) Patch(_ context.Context, bookID, ownerID string, patch models.BookPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[bookID]
	if !ok {
		return apperr.NotFound("book", bookID)
	}
	if rec.OwnerID != ownerID {
		return apperr.ConcurrentModification(bookID)
	}
	patch.Apply(&rec)
	rec.UpdatedAt = s.now().UTC()
	s.records[bookID] = rec
	return nil
}
