package testutil

import (
	"testing"

	"collab-go/internal/archive"
	"collab-go/internal/encryption"
)

// TestPassphrase unlocks encryptors created by this package.
const TestPassphrase = "correct horse battery staple"

// NewTestEncryptor creates a test encryptor already set up with
// TestPassphrase.
func NewTestEncryptor(t *testing.T) *encryption.TestEncryptor {
	t.Helper()
	enc := encryption.NewTestEncryptor()
	if err := enc.Setup(TestPassphrase); err != nil {
		t.Fatalf("setting up test encryptor: %v", err)
	}
	return enc
}

// NewEncryptedTestArchive wraps a memory archive with the test encryptor.
// The archive is unlocked when unlocked is true; otherwise reads fail until
// Unlock is called. The inner archive is returned to inspect ciphertext.
func NewEncryptedTestArchive(t *testing.T, unlocked bool) (*archive.EncryptedArchive, *archive.MemoryArchive) {
	t.Helper()
	inner := archive.NewMemoryArchive()
	enc := NewTestEncryptor(t)
	a := archive.NewEncryptedArchive(inner, enc, nil)
	if unlocked {
		if err := a.Unlock(TestPassphrase); err != nil {
			t.Fatalf("unlocking archive: %v", err)
		}
	}
	return a, inner
}
