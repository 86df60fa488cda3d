package core

import (
	"context"
	"errors"
	"io"
)

// ErrContentNotFound is returned by BlobStore.Get when no object exists at
// the given key. Implementations wrap their backend's missing-object error
// with this sentinel.
var ErrContentNotFound = errors.New("content not found")

// BlobStore holds immutable byte payloads keyed by opaque object keys.
// All operations stream through io.Reader/io.Writer so large payloads never
// need to be held in memory by the store.
type BlobStore interface {
	// Put stores the bytes read from r under key. size is the number of
	// bytes that will be read from r.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Get retrieves the object at key and writes it to w.
	// Returns ErrContentNotFound (wrapped) when no object exists at key.
	Get(ctx context.Context, key string, w io.Writer) error

	// ValidateSetup verifies the store is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}
