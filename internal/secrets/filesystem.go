package secrets

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"dashkeep/internal/core"
	"dashkeep/internal/encryption"
)

// FileSystemStore keeps secrets as individual encrypted files under a
// directory. Each secret is encrypted at rest with the configured Encryptor;
// the file name is the path-escaped secret ID plus the .age suffix.
type FileSystemStore struct {
	dir       string
	encryptor encryption.Encryptor
}

var _ core.SecretStore = (*FileSystemStore)(nil)

// NewFileSystemStore creates a FileSystemStore rooted at dir. The directory
// is created if it does not exist.
func NewFileSystemStore(dir string, encryptor encryption.Encryptor) (*FileSystemStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating secrets directory: %w", err)
	}
	return &FileSystemStore{dir: dir, encryptor: encryptor}, nil
}

func (s *FileSystemStore) Get(ctx context.Context, secretID string) (string, error) {
	path, err := s.secretPath(secretID)
	if err != nil {
		return "", err
	}

	ciphertext, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret %q: %w", secretID, core.ErrSecretNotFound)
		}
		return "", fmt.Errorf("reading secret file: %w", err)
	}

	var plaintext bytes.Buffer
	if err := s.encryptor.Decrypt(bytes.NewReader(ciphertext), &plaintext); err != nil {
		return "", fmt.Errorf("decrypting secret %q: %w", secretID, err)
	}

	return plaintext.String(), nil
}

func (s *FileSystemStore) Put(ctx context.Context, secretID, value string) error {
	path, err := s.secretPath(secretID)
	if err != nil {
		return err
	}

	var ciphertext bytes.Buffer
	if err := s.encryptor.Encrypt(strings.NewReader(value), &ciphertext); err != nil {
		return fmt.Errorf("encrypting secret %q: %w", secretID, err)
	}

	// Write via a temp file and rename so a crash never leaves a partial
	// secret in place.
	tmp, err := os.CreateTemp(s.dir, ".secret-*")
	if err != nil {
		return fmt.Errorf("creating temp secret file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(ciphertext.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing secret file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("setting secret file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing secret file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming secret file: %w", err)
	}

	return nil
}

func (s *FileSystemStore) Delete(ctx context.Context, secretID string) error {
	path, err := s.secretPath(secretID)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting secret file: %w", err)
	}
	return nil
}

// secretPath maps a secret ID to its on-disk file, rejecting IDs that would
// escape the secrets directory.
func (s *FileSystemStore) secretPath(secretID string) (string, error) {
	if secretID == "" {
		return "", fmt.Errorf("secret ID must not be empty")
	}

	name := url.PathEscape(secretID) + ".age"
	path := filepath.Join(s.dir, name)
	if filepath.Dir(path) != filepath.Clean(s.dir) {
		return "", fmt.Errorf("invalid secret ID: %q", secretID)
	}
	return path, nil
}
