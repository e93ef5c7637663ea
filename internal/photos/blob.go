package photos

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

var ErrBlobNotFound = errors.New("blob not found")

// BlobStore keeps photo bytes and hands out the public URL for them.
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	URL(path string) string
	Delete(ctx context.Context, path string) error
}

// Routes under which the server exposes stored blobs.
const (
	UploadsRoute = "/uploads/"
	FilesRoute   = "/files/"
)

func publicURL(baseURL, route, path string) string {
	return strings.TrimRight(baseURL, "/") + route + strings.TrimLeft(path, "/")
}

// MemoryStore keeps blobs in a map.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	blobs   map[string][]byte
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: baseURL, blobs: map[string][]byte{}}
}

func (s *MemoryStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[path] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[path]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) URL(path string) string {
	return publicURL(s.baseURL, FilesRoute, path)
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, path)
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
