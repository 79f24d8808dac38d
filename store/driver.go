package store

import (
	"context"

	"github.com/pkg/errors"
)

// Driver is the key-value port behind the identity store. Implementations
// report their failure modes explicitly; the Store façade decides how to
// degrade. Keys and values are opaque strings.
type Driver interface {
	// Get returns the stored value, ErrNotFound when the key is absent, or
	// ErrUnavailable (possibly wrapped) when the backend cannot be read.
	Get(ctx context.Context, key string) (string, error)

	// Set stores or overwrites the value.
	Set(ctx context.Context, key, value string) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// ErrNotFound reports an absent key.
var ErrNotFound = errors.New("key not found")

// ErrUnavailable reports a storage backend that cannot currently serve
// reads or writes (missing file permissions, corrupt database, ...).
var ErrUnavailable = errors.New("storage unavailable")
