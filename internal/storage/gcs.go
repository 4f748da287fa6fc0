// Package storage moves statement inputs and BAI2 outputs in and out of Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectStore reads and writes whole objects addressed by gs:// URIs.
type ObjectStore interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
	Put(ctx context.Context, uri string, data []byte, contentType string) error
}

// GCSStore is an ObjectStore backed by Google Cloud Storage.
// It relies on Application Default Credentials.
type GCSStore struct {
	client *storage.Client
}

func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, uri)
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

func (s *GCSStore) Put(ctx context.Context, uri string, data []byte, contentType string) error {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write GCS object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// ParseURI splits gs://bucket/path/to/object.
func ParseURI(uri string) (bucket, object string, err error) {
	if !IsGCSURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

func IsGCSURI(uri string) bool {
	return strings.HasPrefix(uri, "gs://")
}

// FilenameFromURI returns the last path element of a gs:// URI.
func FilenameFromURI(uri string) string {
	_, object, err := ParseURI(uri)
	if err != nil {
		return ""
	}
	return path.Base(object)
}

// OutputURI places filename under a destination. A destination ending in "/" is a prefix;
// otherwise it names the object itself.
func OutputURI(dest, filename string) string {
	if strings.HasSuffix(dest, "/") {
		return dest + filename
	}
	return dest
}

// MemoryStore is an in-process ObjectStore.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Fetch(_ context.Context, uri string) ([]byte, error) {
	if _, _, err := ParseURI(uri); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, uri)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Put(_ context.Context, uri string, data []byte, _ string) error {
	if _, _, err := ParseURI(uri); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[uri] = append([]byte(nil), data...)
	return nil
}
