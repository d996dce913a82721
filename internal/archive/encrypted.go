package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"collab-go/internal/collab"
)

// ErrLocked is returned when reading from an encrypted archive whose
// private key has not been unlocked.
var ErrLocked = errors.New("archive is locked")

// EncryptedArchive seals blobs with an Encryptor before handing them to the
// wrapped archive. Blobs keep their plaintext checksum as the key. Reading
// requires a DecryptionContext from Unlock.
type EncryptedArchive struct {
	inner collab.Archive
	enc   collab.Encryptor
	dec   collab.DecryptionContext
}

// NewEncryptedArchive wraps inner. dec may be nil, in which case the archive
// is write-only until Unlock is called.
func NewEncryptedArchive(inner collab.Archive, enc collab.Encryptor, dec collab.DecryptionContext) *EncryptedArchive {
	return &EncryptedArchive{inner: inner, enc: enc, dec: dec}
}

// Unlock opens the private key so snapshots can be read back.
func (a *EncryptedArchive) Unlock(passphrase string) error {
	dec, err := a.enc.Unlock(passphrase)
	if err != nil {
		return err
	}
	a.dec = dec
	return nil
}

// Locked reports whether Unlock has not succeeded yet.
func (a *EncryptedArchive) Locked() bool {
	return a.dec == nil
}

func (a *EncryptedArchive) Put(ctx context.Context, checksum string, r io.Reader, size int64) error {
	var sealed bytes.Buffer
	counted := &countingReader{r: r}
	if err := a.enc.Encrypt(counted, &sealed); err != nil {
		return fmt.Errorf("encrypting blob: %w", err)
	}
	if counted.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counted.n)
	}
	return a.inner.Put(ctx, checksum, &sealed, int64(sealed.Len()))
}

func (a *EncryptedArchive) Get(ctx context.Context, checksum string, w io.Writer) error {
	if a.dec == nil {
		return ErrLocked
	}

	var sealed bytes.Buffer
	if err := a.inner.Get(ctx, checksum, &sealed); err != nil {
		return err
	}
	if err := a.dec.Decrypt(&sealed, w); err != nil {
		return fmt.Errorf("decrypting blob %s: %w", checksum, err)
	}
	return nil
}

// ValidateSetup checks the wrapped archive and that encryption keys exist.
func (a *EncryptedArchive) ValidateSetup(ctx context.Context) error {
	if !a.enc.IsConfigured() {
		return fmt.Errorf("encryption keys not found (run `collab keys init`)")
	}
	return a.inner.ValidateSetup(ctx)
}

var _ collab.Archive = (*EncryptedArchive)(nil)
