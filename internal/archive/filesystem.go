package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"collab-go/internal/collab"
)

// FileSystemArchive stores blobs as files fanned out by checksum prefix:
//
//	<root>/
//	  blobs/
//	    ab/
//	      abcdef...   (blob named by its SHA-256)
type FileSystemArchive struct {
	root    string
	blobDir string
}

// NewFileSystemArchive creates an archive rooted at root, creating the
// directory layout if needed.
func NewFileSystemArchive(root string) (*FileSystemArchive, error) {
	blobDir := filepath.Join(root, "blobs")
	if err := os.MkdirAll(blobDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FileSystemArchive{root: root, blobDir: blobDir}, nil
}

func (a *FileSystemArchive) path(checksum string) string {
	if len(checksum) < 2 {
		return filepath.Join(a.blobDir, "_", checksum)
	}
	return filepath.Join(a.blobDir, checksum[:2], checksum)
}

// Put stores a blob. Storing an existing checksum again only drains r.
func (a *FileSystemArchive) Put(_ context.Context, checksum string, r io.Reader, size int64) error {
	if checksum == "" || filepath.Base(checksum) != checksum {
		return fmt.Errorf("invalid checksum %q", checksum)
	}

	dest := a.path(checksum)
	if _, err := os.Stat(dest); err == nil {
		return drain(r, size)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	return writeAtomic(dest, r, size)
}

func (a *FileSystemArchive) Get(_ context.Context, checksum string, w io.Writer) error {
	f, err := os.Open(a.path(checksum))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFound(checksum)
		}
		return fmt.Errorf("failed to open blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read blob: %w", err)
	}
	return nil
}

// ValidateSetup checks that the blob directory exists and is writable.
func (a *FileSystemArchive) ValidateSetup(context.Context) error {
	info, err := os.Stat(a.blobDir)
	if err != nil {
		return fmt.Errorf("archive root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive path is not a directory: %s", a.blobDir)
	}

	probe, err := os.CreateTemp(a.blobDir, ".probe-*")
	if err != nil {
		return fmt.Errorf("archive is not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// writeAtomic writes r to dest through a temp file in the same directory
// and renames it into place once the size checks out.
func writeAtomic(dest string, r io.Reader, size int64) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, n)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

var _ collab.Archive = (*FileSystemArchive)(nil)
