package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"collab-go/internal/collab"
)

// MemoryArchive keeps blobs in memory. It is safe for concurrent use.
type MemoryArchive struct {
	mu    sync.RWMutex
	blobs map[string][]byte // checksum -> blob
	puts  int
}

// NewMemoryArchive creates an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{blobs: make(map[string][]byte)}
}

func (m *MemoryArchive) Put(_ context.Context, checksum string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read blob: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[checksum]; !ok {
		m.blobs[checksum] = data
		m.puts++
	}
	return nil
}

func (m *MemoryArchive) Get(_ context.Context, checksum string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.blobs[checksum]
	m.mu.RUnlock()
	if !ok {
		return notFound(checksum)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	return nil
}

// ValidateSetup always succeeds for the in-memory archive.
func (m *MemoryArchive) ValidateSetup(context.Context) error {
	return nil
}

// Len returns the number of distinct blobs stored.
func (m *MemoryArchive) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

var _ collab.Archive = (*MemoryArchive)(nil)
