package validator

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/pkg/logger"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestValidateEvent(t *testing.T) {
	v := NewUploadValidator(logger.NewTestLogger(), nil)

	ok := v.ValidateEvent(models.UploadEvent{Key: "u1/cover.JPG", OwnerID: "u1", Size: 1024})
	assert.True(t, ok.IsValid)
	assert.Equal(t, "image/jpeg", ok.FileInfo.MimeType)
	assert.NoError(t, ok.Err())

	declared := v.ValidateEvent(models.UploadEvent{Key: "u1/blob", ContentType: "image/png", OwnerID: "u1"})
	assert.True(t, declared.IsValid)

	tests := []struct {
		name string
		ev   models.UploadEvent
		code string
	}{
		{"missing key", models.UploadEvent{OwnerID: "u1"}, "MISSING_KEY"},
		{"missing owner", models.UploadEvent{Key: "a.jpg"}, "MISSING_OWNER"},
		{"not an image", models.UploadEvent{Key: "a.pdf", ContentType: "application/pdf", OwnerID: "u1"}, "INVALID_FILE_TYPE"},
		{"too large", models.UploadEvent{Key: "a.jpg", OwnerID: "u1", Size: 21 * 1024 * 1024}, "FILE_TOO_LARGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateEvent(tt.ev)
			require.False(t, res.IsValid)
			assert.Equal(t, tt.code, res.Errors[0].Code)
			assert.ErrorIs(t, res.Err(), apperr.ErrInvalidQuery)
		})
	}
}

func TestValidateFile(t *testing.T) {
	v := NewUploadValidator(logger.NewTestLogger(), nil)

	res, data, err := v.ValidateFile(bytes.NewReader(pngOf(t, 300, 450)), "cover.png")
	require.NoError(t, err)
	assert.True(t, res.IsValid, "%v", res.Errors)
	assert.Equal(t, "image/png", res.FileInfo.MimeType)
	assert.Equal(t, 300, res.FileInfo.Width)
	assert.Equal(t, 450, res.FileInfo.Height)
	assert.Len(t, res.FileInfo.Hash, 64)
	assert.Equal(t, int64(len(data)), res.FileInfo.Size)
}

func TestValidateFile_Rejections(t *testing.T) {
	v := NewUploadValidator(logger.NewTestLogger(), nil)

	res, _, err := v.ValidateFile(bytes.NewReader(pngOf(t, 300, 450)), "cover.jpg")
	require.NoError(t, err)
	require.False(t, res.IsValid)
	assert.Equal(t, "INVALID_MIME_TYPE", res.Errors[0].Code)

	res, _, err = v.ValidateFile(bytes.NewReader(pngOf(t, 40, 40)), "cover.png")
	require.NoError(t, err)
	require.False(t, res.IsValid)
	assert.Equal(t, "IMAGE_TOO_SMALL", res.Errors[0].Code)

	res, _, err = v.ValidateFile(bytes.NewReader([]byte("%PDF-1.4")), "cover.pdf")
	require.NoError(t, err)
	require.False(t, res.IsValid)
	assert.Equal(t, "INVALID_FILE_TYPE", res.Errors[0].Code)

	res, _, err = v.ValidateFile(bytes.NewReader(nil), "cover.png")
	require.NoError(t, err)
	require.False(t, res.IsValid)
	assert.Equal(t, "EMPTY_FILE", res.Errors[0].Code)
}
