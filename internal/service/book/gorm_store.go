package book

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

// bookRow is the books table. advanced_metadata is the authoritative
// extraction result; the flat legacy fields are projected from it on read.
type bookRow struct {
	ID               string         `gorm:"column:book_id;type:uuid;primaryKey"`
	OwnerID          string         `gorm:"column:owner_id;type:varchar(64);not null;index"`
	Title            string         `gorm:"column:title;type:text;not null;default:''"`
	Author           string         `gorm:"column:author;type:text;not null;default:''"`
	Description      string         `gorm:"column:description;type:text;not null;default:''"`
	Status           string         `gorm:"column:status;type:varchar(16);not null;default:'available'"`
	MetadataSource   string         `gorm:"column:metadata_source;type:varchar(16);not null;default:'pending'"`
	SourceImageRef   datatypes.JSON `gorm:"column:source_image_ref;type:jsonb;not null"`
	AdvancedMetadata datatypes.JSON `gorm:"column:advanced_metadata;type:jsonb"`
	LastExtractionAt *time.Time     `gorm:"column:last_extraction_at"`
	CreatedAt        time.Time      `gorm:"column:created_at"`
	UpdatedAt        time.Time      `gorm:"column:updated_at"`
}

func (bookRow) TableName() string { return "books" }

func (r *bookRow) toRecord() (*models.BookRecord, error) {
	rec := &models.BookRecord{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		Title:            r.Title,
		Author:           r.Author,
		Description:      r.Description,
		Status:           models.BookStatus(r.Status),
		MetadataSource:   models.MetadataSource(r.MetadataSource),
		LastExtractionAt: r.LastExtractionAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if len(r.SourceImageRef) > 0 {
		if err := json.Unmarshal(r.SourceImageRef, &rec.SourceImageRef); err != nil {
			return nil, fmt.Errorf("failed to decode source image ref of %s: %w", r.ID, err)
		}
	}
	if len(r.AdvancedMetadata) > 0 && string(r.AdvancedMetadata) != "null" {
		var am models.AdvancedMetadata
		if err := json.Unmarshal(r.AdvancedMetadata, &am); err != nil {
			return nil, fmt.Errorf("failed to decode advanced metadata of %s: %w", r.ID, err)
		}
		am.Normalize()
		rec.AdvancedMetadata = &am
	}
	return rec, nil
}

type GormStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// OpenPostgres connects with the given DSN and migrates the books table.
func OpenPostgres(dsn string, log logger.Logger) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return NewGormStore(db, log)
}

func NewGormStore(db *gorm.DB, log logger.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&bookRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate books: %w", err)
	}
	return &GormStore{db: db, logger: log}, nil
}

func (s *GormStore) CreatePlaceholder(ctx context.Context, ownerID string, ref models.ImageRef) (*models.BookRecord, error) {
	refJSON, err := json.Marshal(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image ref: %w", err)
	}
	now := time.Now().UTC()
	row := bookRow{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		Status:         string(models.StatusAvailable),
		MetadataSource: string(models.SourcePending),
		SourceImageRef: datatypes.JSON(refJSON),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create placeholder: %w", err)
	}
	s.logger.Info("Created placeholder book",
		logger.String("bookId", row.ID),
		logger.String("ownerId", ownerID),
		logger.String("image", ref.String()),
	)
	return row.toRecord()
}

func (s *GormStore) Get(ctx context.Context, bookID string) (*models.BookRecord, error) {
	var row bookRow
	err := s.db.WithContext(ctx).Where("book_id = ?", bookID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("book", bookID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book %s: %w", bookID, err)
	}
	return row.toRecord()
}

// Patch runs as one UPDATE guarded on book_id and owner_id. User-owned
// fields are only filled when blank, evaluated by the database so a user
// edit that lands first always wins.
func (s *GormStore) Patch(ctx context.Context, bookID, ownerID string, patch models.BookPatch) error {
	updates, err := patchUpdates(patch, time.Now().UTC())
	if err != nil {
		return err
	}

	res := s.patchQuery(ctx, bookID, ownerID, updates)
	if res.Error != nil {
		return fmt.Errorf("failed to patch book %s: %w", bookID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// nothing matched: tell a missing record apart from an owner mismatch
	var count int64
	if err := s.db.WithContext(ctx).Model(&bookRow{}).Where("book_id = ?", bookID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check book %s: %w", bookID, err)
	}
	if count == 0 {
		return apperr.NotFound("book", bookID)
	}
	return apperr.ConcurrentModification(bookID)
}

func (s *GormStore) patchQuery(ctx context.Context, bookID, ownerID string, updates map[string]interface{}) *gorm.DB {
	return s.db.WithContext(ctx).Model(&bookRow{}).
		Where("book_id = ? AND owner_id = ?", bookID, ownerID).
		Updates(updates)
}

func patchUpdates(patch models.BookPatch, now time.Time) (map[string]interface{}, error) {
	updates := map[string]interface{}{
		"updated_at": now,
	}
	fill := func(column string, v *string) {
		if v != nil {
			updates[column] = gorm.Expr("COALESCE(NULLIF("+column+", ''), ?)", *v)
		}
	}
	fill("title", patch.FillTitle)
	fill("author", patch.FillAuthor)
	fill("description", patch.FillDescription)

	if patch.AdvancedMetadata != nil {
		patch.AdvancedMetadata.Normalize()
		data, err := json.Marshal(patch.AdvancedMetadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode advanced metadata: %w", err)
		}
		updates["advanced_metadata"] = datatypes.JSON(data)
	}
	if patch.MetadataSource != "" {
		updates["metadata_source"] = string(patch.MetadataSource)
	}
	if patch.LastExtractionAt != nil {
		updates["last_extraction_at"] = *patch.LastExtractionAt
	}
	return updates, nil
}
