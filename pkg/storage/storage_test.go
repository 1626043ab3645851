package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
)

func TestReadImage(t *testing.T) {
	s := NewMemoryStorage("covers")
	s.Put("uploads", "u1/cover.jpg", []byte("jpegbytes"), "image/jpeg")

	data, err := ReadImage(context.Background(), s, models.ImageRef{Bucket: "uploads", Key: "u1/cover.jpg"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "jpegbytes", string(data))
}

func TestReadImage_MissingAndOversized(t *testing.T) {
	s := NewMemoryStorage("covers")
	_, err := ReadImage(context.Background(), s, models.ImageRef{Key: "nope.jpg"}, 0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.Store(context.Background(), strings.NewReader("0123456789"), "big.jpg", "image/jpeg")
	require.NoError(t, err)
	_, err = ReadImage(context.Background(), s, models.ImageRef{Key: "big.jpg"}, 5)
	assert.Error(t, err)
}

func TestMemoryStorage_CleanupBefore(t *testing.T) {
	s := NewMemoryStorage("covers")
	s.Put("", "old.jpg", []byte("x"), "image/jpeg")

	require.NoError(t, s.CleanupBefore(context.Background(), time.Now().Add(time.Minute)))

	_, err := s.Get(context.Background(), "", "old.jpg")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
