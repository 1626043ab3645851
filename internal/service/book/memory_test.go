package book

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
)

func strptr(s string) *string { return &s }

func TestMemoryStore_PlaceholderIsPendingAndEmpty(t *testing.T) {
	s := NewMemoryStore()
	ref := models.ImageRef{Bucket: "uploads", Key: "u1/cover.jpg"}

	rec, err := s.CreatePlaceholder(context.Background(), "u1", ref)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, models.SourcePending, rec.MetadataSource)
	assert.Empty(t, rec.Title)
	assert.Empty(t, rec.Author)
	assert.Nil(t, rec.AdvancedMetadata)
	assert.Equal(t, ref, rec.SourceImageRef)
}

func TestMemoryStore_TwoUploadsAreIndependent(t *testing.T) {
	s := NewMemoryStore()
	ref := models.ImageRef{Bucket: "uploads", Key: "same.jpg"}
	a, _ := s.CreatePlaceholder(context.Background(), "u1", ref)
	b, _ := s.CreatePlaceholder(context.Background(), "u1", ref)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestMemoryStore_PatchFillsOnlyEmptyFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rec, _ := s.CreatePlaceholder(ctx, "u1", models.ImageRef{Key: "c.jpg"})

	// user edits the title while extraction is in flight
	s.Put(func() models.BookRecord { r := *rec; r.Title = "My Title"; return r }())

	now := time.Now()
	am := models.NewAdvancedMetadata(now, rec.SourceImageRef, models.Metadata{}, models.Confidence{}, nil)
	err := s.Patch(ctx, rec.ID, "u1", models.BookPatch{
		FillTitle:        strptr("Extracted Title"),
		FillAuthor:       strptr("Jane Doe"),
		AdvancedMetadata: am,
		MetadataSource:   models.SourceAutoProcessed,
		LastExtractionAt: &now,
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "My Title", got.Title)
	assert.Equal(t, "Jane Doe", got.Author)
	assert.Equal(t, models.SourceAutoProcessed, got.MetadataSource)
	require.NotNil(t, got.AdvancedMetadata)
	require.NotNil(t, got.LastExtractionAt)
}

func TestMemoryStore_PatchGuards(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rec, _ := s.CreatePlaceholder(ctx, "u1", models.ImageRef{Key: "c.jpg"})

	err := s.Patch(ctx, rec.ID, "someone-else", models.BookPatch{FillTitle: strptr("x")})
	assert.ErrorIs(t, err, apperr.ErrConcurrentModification)

	err = s.Patch(ctx, "missing", "u1", models.BookPatch{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
