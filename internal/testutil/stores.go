package testutil

import (
	"dashkeep/internal/blob"
	"dashkeep/internal/core"
	"dashkeep/internal/secrets"
	"dashkeep/internal/table"
)

// NewTestStore creates a new in-memory table store for testing.
func NewTestStore() table.Store {
	return table.NewMemoryStore()
}

// NewTestBlobStore creates a new in-memory blob store for testing.
func NewTestBlobStore() *blob.MemoryStore {
	return blob.NewMemoryStore()
}

// NewTestSecretStore creates a new in-memory secret store for testing.
func NewTestSecretStore() core.SecretStore {
	return secrets.NewMemoryStore()
}
