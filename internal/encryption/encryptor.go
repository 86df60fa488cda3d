package encryption

import "io"

// Encryptor handles at-rest encryption of credential secrets.
// Encryption uses the public key only; decryption uses the private key.
// Both keys live on the server: the service must be able to read secrets
// without human intervention, so file permissions, not a passphrase, guard
// the private key.
type Encryptor interface {
	// Setup performs one-time key generation. Called during `dashkeep config init`.
	Setup() error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Decrypt decrypts data read from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}
