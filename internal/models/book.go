package models

import (
	"fmt"
	"time"
)

// MetadataSource tracks where a record's enrichment stands.
type MetadataSource string

const (
	SourcePending       MetadataSource = "pending"
	SourceAutoProcessed MetadataSource = "auto-processed"
	SourceFailed        MetadataSource = "failed"
)

// BookStatus is the user-managed availability of a book.
type BookStatus string

const (
	StatusAvailable BookStatus = "available"
	StatusBorrowed  BookStatus = "borrowed"
	StatusReading   BookStatus = "reading"
)

// ImageRef points at an uploaded object.
type ImageRef struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

func (r ImageRef) String() string {
	return fmt.Sprintf("%s/%s", r.Bucket, r.Key)
}

// BookRecord is the record a user sees. Title, Author and Description are
// user-owned: extraction only fills them while they are empty.
type BookRecord struct {
	ID               string            `json:"bookId"`
	OwnerID          string            `json:"ownerId"`
	Title            string            `json:"title"`
	Author           string            `json:"author"`
	Description      string            `json:"description"`
	Status           BookStatus        `json:"status"`
	MetadataSource   MetadataSource    `json:"metadataSource"`
	SourceImageRef   ImageRef          `json:"sourceImageRef"`
	AdvancedMetadata *AdvancedMetadata `json:"advancedMetadata"`
	LastExtractionAt *time.Time        `json:"lastExtractionAt,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// BookPatch is the single conditional update an orchestration run applies.
// Fill* values are written only where the stored field is empty.
type BookPatch struct {
	FillTitle        *string
	FillAuthor       *string
	FillDescription  *string
	AdvancedMetadata *AdvancedMetadata
	MetadataSource   MetadataSource
	LastExtractionAt *time.Time
}

// Apply mutates rec the same way the stores do.
func (p BookPatch) Apply(rec *BookRecord) {
	fill := func(dst *string, v *string) {
		if *dst == "" && v != nil {
			*dst = *v
		}
	}
	fill(&rec.Title, p.FillTitle)
	fill(&rec.Author, p.FillAuthor)
	fill(&rec.Description, p.FillDescription)
	if p.AdvancedMetadata != nil {
		rec.AdvancedMetadata = p.AdvancedMetadata
	}
	if p.MetadataSource != "" {
		rec.MetadataSource = p.MetadataSource
	}
	if p.LastExtractionAt != nil {
		t := *p.LastExtractionAt
		rec.LastExtractionAt = &t
	}
}
