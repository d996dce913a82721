package collab

import "io"

// Encryptor handles encryption of archived snapshots and unlocking for
// decryption. Encryption uses the public key only. Decryption requires a
// passphrase to unlock the private key, producing a DecryptionContext that
// lives for the duration of the server process.
type Encryptor interface {
	// Setup performs one-time key generation. Called by `collab keys init`.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase.
	// Returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
