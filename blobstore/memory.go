package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-memory Store, primarily for testing.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

// Open opens the named blob for reading.
func (s *Memory) Open(_ context.Context, name string) (io.ReadCloser, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[name]
	if !ok {
		return nil, 0, fmt.Errorf("blob %q: %w", name, ErrNotFound)
	}

	// Copy so later writes cannot mutate an open reader.
	buf := make([]byte, len(data))
	copy(buf, data)

	return io.NopCloser(bytes.NewReader(buf)), int64(len(buf)), nil
}

// Put creates or replaces the named blob.
func (s *Memory) Put(_ context.Context, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading blob %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[name] = data

	return nil
}

// Delete removes the named blob.
func (s *Memory) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, name)

	return nil
}

// List returns the names of all blobs with the given prefix.
func (s *Memory) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name := range s.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names, nil
}
