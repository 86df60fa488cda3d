package core

import (
	"context"
	"errors"
)

// ErrSecretNotFound is returned by SecretStore.Get when no secret exists
// under the given identifier.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore holds secret strings (third-party API keys) by identifier.
// The snapshot repository never sees these values; only the orchestrators
// read them, and only to construct API clients.
type SecretStore interface {
	// Get returns the secret value, or ErrSecretNotFound (wrapped).
	Get(ctx context.Context, secretID string) (string, error)

	// Put creates or replaces the secret value.
	Put(ctx context.Context, secretID, value string) error

	// Delete removes the secret. Deleting a missing secret is not an error.
	Delete(ctx context.Context, secretID string) error
}
