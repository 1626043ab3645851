package converters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/bookmeta/internal/models"
)

func str(s string) *string { return &s }

func TestConvert_ProjectsAdvancedMetadata(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := &models.BookRecord{
		ID:             "b1",
		OwnerID:        "u1",
		Title:          "My Own Title",
		Status:         models.StatusReading,
		MetadataSource: models.SourceAutoProcessed,
		SourceImageRef: models.ImageRef{Bucket: "uploads", Key: "u1/cover.jpg"},
		AdvancedMetadata: models.NewAdvancedMetadata(at, models.ImageRef{}, models.Metadata{
			Title:     str("Clean Code"),
			Author:    str("Robert C. Martin"),
			ISBN13:    str("9780132350884"),
			Publisher: str("Prentice Hall"),
		}, models.Confidence{Overall: 81.5}, nil),
		LastExtractionAt: &at,
	}

	got := NewLegacyConverter().Convert(rec)
	require.NotNil(t, got)
	assert.Equal(t, "My Own Title", got.Title)
	assert.Equal(t, "Robert C. Martin", got.Author)
	assert.Equal(t, "9780132350884", got.ISBN13)
	assert.Equal(t, "9780132350884", got.ISBN)
	assert.Empty(t, got.ISBN10)
	assert.Equal(t, "Prentice Hall", got.Publisher)
	assert.Equal(t, "reading", got.Status)
	assert.Equal(t, "auto-processed", got.MetadataSource)
	assert.Equal(t, 81.5, got.Confidence)
	assert.Equal(t, "u1/cover.jpg", got.CoverKey)
}

func TestConvert_PendingRecord(t *testing.T) {
	got := NewLegacyConverter().Convert(&models.BookRecord{ID: "b1", MetadataSource: models.SourcePending})
	assert.Equal(t, "pending", got.MetadataSource)
	assert.Zero(t, got.Confidence)
	assert.Empty(t, got.ISBN)

	assert.Nil(t, NewLegacyConverter().Convert(nil))
}

func TestConvert_FallsBackToISBN10(t *testing.T) {
	rec := &models.BookRecord{
		AdvancedMetadata: models.NewAdvancedMetadata(time.Time{}, models.ImageRef{}, models.Metadata{ISBN10: str("0132350882")}, models.Confidence{}, nil),
	}
	assert.Equal(t, "0132350882", NewLegacyConverter().Convert(rec).ISBN)
}
