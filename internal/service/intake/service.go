// Package intake turns uploads and retry requests into queued extraction runs
// and serves the polling read-model.
package intake

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/internal/service/book"
	"github.com/feichai0017/bookmeta/internal/utils/validator"
	"github.com/feichai0017/bookmeta/pkg/converters"
	"github.com/feichai0017/bookmeta/pkg/logger"
	"github.com/feichai0017/bookmeta/pkg/notify"
	"github.com/feichai0017/bookmeta/pkg/storage"
)

// StatusProcessing is reported for every accepted request; the run itself
// completes asynchronously.
const StatusProcessing = "processing"

// EventPublisher hands an event to the queue.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev models.UploadEvent) error
}

type ServiceConfig struct {
	Bucket          string
	DefaultStrategy models.Strategy
	MaxConcurrent   int
}

// Accepted acknowledges a queued run.
type Accepted struct {
	BookID  string `json:"bookId"`
	EventID string `json:"eventId"`
	Status  string `json:"status"`
}

// MetadataView is what a client polls while a run is in flight.
type MetadataView struct {
	Book             *models.BookRecord       `json:"book"`
	AdvancedMetadata *models.AdvancedMetadata `json:"advancedMetadata"`
	Legacy           *converters.LegacyBook   `json:"legacy"`
	LastRun          *notify.Status           `json:"lastRun,omitempty"`
}

type Service struct {
	books     book.Store
	storage   storage.Storage
	publisher EventPublisher
	status    notify.StatusStore
	validator *validator.UploadValidator
	converter *converters.LegacyConverter
	logger    logger.Logger
	config    *ServiceConfig
	now       func() time.Time
}

// NewService wires the intake service. status may be nil, in which case the
// read-model carries no run status.
func NewService(
	books book.Store,
	store storage.Storage,
	publisher EventPublisher,
	status notify.StatusStore,
	v *validator.UploadValidator,
	log logger.Logger,
	cfg *ServiceConfig,
) *Service {
	if cfg == nil {
		cfg = &ServiceConfig{}
	}
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = models.StrategyBestEffort
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if v == nil {
		v = validator.NewUploadValidator(log, nil)
	}
	return &Service{
		books:     books,
		storage:   store,
		publisher: publisher,
		status:    status,
		validator: v,
		converter: converters.NewLegacyConverter(),
		logger:    log,
		config:    cfg,
		now:       time.Now,
	}
}

// ObjectCreated handles a storage notification. Without a bookId a placeholder
// record is created first so the user sees the book immediately.
func (s *Service) ObjectCreated(ctx context.Context, ev models.UploadEvent) (*Accepted, error) {
	result := s.validator.ValidateEvent(ev)
	if err := result.Err(); err != nil {
		return nil, err
	}
	if _, ok := models.ParseStrategy(string(ev.Strategy)); !ok {
		return nil, apperr.InvalidQuery("object-created", fmt.Sprintf("unknown strategy %q", ev.Strategy))
	}

	ev.ContentType = result.FileInfo.MimeType
	ev.Source = models.EventObjectCreated
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now().UTC()
	}
	if ev.Bucket == "" {
		ev.Bucket = s.config.Bucket
	}

	if ev.BookID == "" {
		rec, err := s.books.CreatePlaceholder(ctx, ev.OwnerID, ev.ImageRef())
		if err != nil {
			return nil, fmt.Errorf("failed to create placeholder: %w", err)
		}
		ev.BookID = rec.ID
		s.logger.Info("Created placeholder record",
			logger.String("bookId", rec.ID),
			logger.String("ownerId", ev.OwnerID),
		)
	} else if _, err := s.ownedBook(ctx, ev.BookID, ev.OwnerID); err != nil {
		return nil, err
	}

	if err := s.publisher.PublishEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to publish event: %w", err)
	}
	return &Accepted{BookID: ev.BookID, EventID: ev.EventID, Status: StatusProcessing}, nil
}

// Upload stores the cover itself and then behaves like ObjectCreated.
func (s *Service) Upload(ctx context.Context, ownerID string, file multipart.File, header *multipart.FileHeader, strategy models.Strategy) (*Accepted, error) {
	s.logger.Info("Starting cover upload",
		logger.String("filename", header.Filename),
		logger.Int64("size", header.Size),
	)

	result, data, err := s.validator.ValidateFile(file, header.Filename)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s%s", ownerID, uuid.NewString(), strings.ToLower(filepath.Ext(header.Filename)))
	if _, err := s.storage.Store(ctx, bytes.NewReader(data), key, result.FileInfo.MimeType); err != nil {
		s.logger.Error("Failed to store cover",
			logger.String("filename", header.Filename),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to store cover: %w", err)
	}

	return s.ObjectCreated(ctx, models.UploadEvent{
		Key:         key,
		ContentType: result.FileInfo.MimeType,
		Size:        result.FileInfo.Size,
		OwnerID:     ownerID,
		Strategy:    strategy,
	})
}

// UploadBatch uploads every file concurrently. It returns what was accepted
// along with the first error.
func (s *Service) UploadBatch(ctx context.Context, ownerID string, files []*multipart.FileHeader, strategy models.Strategy) ([]*Accepted, error) {
	accepted := make([]*Accepted, 0, len(files))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrent)
	for _, header := range files {
		header := header
		g.Go(func() error {
			file, err := header.Open()
			if err != nil {
				return fmt.Errorf("failed to open file %s: %w", header.Filename, err)
			}
			defer file.Close()

			a, err := s.Upload(gctx, ownerID, file, header, strategy)
			if err != nil {
				return fmt.Errorf("failed to upload %s: %w", header.Filename, err)
			}
			mu.Lock()
			accepted = append(accepted, a)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return accepted, err
}

// RequestExtraction queues a manual retry for a book the caller owns.
func (s *Service) RequestExtraction(ctx context.Context, bookID, callerID, strategy string) (*Accepted, error) {
	strat, ok := models.ParseStrategy(strategy)
	if !ok {
		return nil, apperr.InvalidQuery("extract", fmt.Sprintf("unknown strategy %q", strategy))
	}
	if strategy == "" {
		strat = s.config.DefaultStrategy
	}

	rec, err := s.ownedBook(ctx, bookID, callerID)
	if err != nil {
		return nil, err
	}
	if rec.SourceImageRef.Key == "" {
		return nil, apperr.InvalidQuery("extract", "book has no cover image")
	}

	ref := rec.SourceImageRef
	ev := models.UploadEvent{
		EventID:     uuid.NewString(),
		Bucket:      ref.Bucket,
		Key:         ref.Key,
		ContentType: ref.ContentType,
		Size:        ref.Size,
		OwnerID:     rec.OwnerID,
		BookID:      rec.ID,
		Strategy:    strat,
		Source:      models.EventManualRetry,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.publisher.PublishEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to publish event: %w", err)
	}

	s.logger.Info("Manual extraction requested",
		logger.String("bookId", rec.ID),
		logger.String("eventId", ev.EventID),
		logger.String("strategy", string(strat)),
	)
	return &Accepted{BookID: rec.ID, EventID: ev.EventID, Status: StatusProcessing}, nil
}

// Metadata returns the read-model for a book the caller owns.
func (s *Service) Metadata(ctx context.Context, bookID, callerID string) (*MetadataView, error) {
	rec, err := s.ownedBook(ctx, bookID, callerID)
	if err != nil {
		return nil, err
	}
	view := &MetadataView{
		Book:             rec,
		AdvancedMetadata: rec.AdvancedMetadata,
		Legacy:           s.converter.Convert(rec),
	}
	if s.status == nil {
		return view, nil
	}

	st, ok, err := s.status.Status(ctx, bookID)
	if err != nil {
		s.logger.Warn("Failed to read run status",
			logger.String("bookId", bookID),
			logger.Error(err),
		)
	} else if ok {
		view.LastRun = st
	}
	return view, nil
}

func (s *Service) ownedBook(ctx context.Context, bookID, callerID string) (*models.BookRecord, error) {
	rec, err := s.books.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != callerID {
		return nil, apperr.Forbidden("book", bookID)
	}
	return rec, nil
}
