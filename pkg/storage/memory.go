package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/feichai0017/bookmeta/internal/apperr"
)

type memoryObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// MemoryStorage keeps objects in process, keyed by bucket and key. Used by
// tests and local runs without an object store.
type MemoryStorage struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]memoryObject
	now     func() time.Time
}

func NewMemoryStorage(bucket string) *MemoryStorage {
	return &MemoryStorage{bucket: bucket, objects: make(map[string]memoryObject), now: time.Now}
}

func (m *MemoryStorage) path(bucket, key string) string {
	if bucket == "" {
		bucket = m.bucket
	}
	return bucket + "/" + key
}

// Put seeds an object into any bucket.
func (m *MemoryStorage) Put(bucket, key string, data []byte, contentType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[m.path(bucket, key)] = memoryObject{data: append([]byte(nil), data...), contentType: contentType, modified: m.now()}
}

func (m *MemoryStorage) Store(ctx context.Context, reader io.Reader, key, contentType string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.Put("", key, data, contentType)
	return key, nil
}

func (m *MemoryStorage) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[m.path(bucket, key)]
	if !ok {
		return nil, apperr.NotFound("object", m.path(bucket, key))
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemoryStorage) Delete(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, m.path(bucket, key))
	return nil
}

func (m *MemoryStorage) CleanupBefore(ctx context.Context, threshold time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, obj := range m.objects {
		if obj.modified.Before(threshold) {
			delete(m.objects, k)
		}
	}
	return nil
}
