// Package archive stores version snapshot blobs. Blobs are addressed by the
// SHA-256 checksum of their plaintext, so identical snapshots are stored
// once.
package archive

import (
	"errors"
	"fmt"
	"io"
)

// ErrBlobNotFound is returned by Get when no blob exists for a checksum.
var ErrBlobNotFound = errors.New("snapshot blob not found")

func notFound(checksum string) error {
	return fmt.Errorf("%w: %s", ErrBlobNotFound, checksum)
}

// drain consumes r and checks that it held exactly size bytes. Puts of a
// blob that already exists still read their input.
func drain(r io.Reader, size int64) error {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return fmt.Errorf("failed to read blob: %w", err)
	}
	if n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, n)
	}
	return nil
}
