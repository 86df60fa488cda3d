package secrets

import (
	"context"
	"fmt"
	"sync"

	"dashkeep/internal/core"
)

// MemoryStore is an in-memory SecretStore for testing.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ core.SecretStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, secretID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[secretID]
	if !ok {
		return "", fmt.Errorf("secret %q: %w", secretID, core.ErrSecretNotFound)
	}
	return value, nil
}

func (s *MemoryStore) Put(ctx context.Context, secretID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[secretID] = value
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, secretID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, secretID)
	return nil
}

// Len returns the number of stored secrets. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
