package collab

import (
	"context"
	"io"
)

// Archive stores version snapshot blobs, addressed by the SHA-256 checksum
// of their plaintext.
type Archive interface {
	// Put stores a blob. Storing the same checksum twice is safe.
	// size is the number of bytes that will be read from r.
	Put(ctx context.Context, checksum string, r io.Reader, size int64) error

	// Get writes the blob stored under checksum to w.
	Get(ctx context.Context, checksum string, w io.Writer) error

	// ValidateSetup verifies that the archive is reachable and writable.
	ValidateSetup(ctx context.Context) error
}
