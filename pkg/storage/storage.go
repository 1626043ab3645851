package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/feichai0017/bookmeta/internal/apperr"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/pkg/logger"
	"github.com/feichai0017/bookmeta/pkg/storage/minio"
	"github.com/feichai0017/bookmeta/pkg/storage/s3"
)

// StorageType selects the object store backend at startup.
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

// DefaultMaxImageBytes caps how much of an object is read into memory.
const DefaultMaxImageBytes = 20 << 20

// Storage is the object store holding uploaded covers. An empty bucket
// means the backend's configured bucket.
type Storage interface {
	Store(ctx context.Context, reader io.Reader, key, contentType string) (string, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, bucket, key string) error
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// NewStorage returns the backend named by storageType.
func NewStorage(ctx context.Context, storageType StorageType, log logger.Logger) (Storage, error) {
	switch storageType {
	case StorageTypeS3:
		return s3.NewS3Storage(ctx, log)
	case StorageTypeMinio:
		return minio.NewMinioStorage(ctx, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// ReadImage loads the object behind ref, refusing anything above maxBytes.
func ReadImage(ctx context.Context, s Storage, ref models.ImageRef, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	rc, err := s.Get(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(rc, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref.String(), err)
	}
	if n > maxBytes {
		return nil, fmt.Errorf("object %s exceeds %d bytes", ref.String(), maxBytes)
	}
	if n == 0 {
		return nil, apperr.NotFound("object", ref.String())
	}
	return buf.Bytes(), nil
}
