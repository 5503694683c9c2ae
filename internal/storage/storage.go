package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no object exists at the key.
var ErrNotFound = errors.New("storage: key not found")

// Store is the minimal blob-store surface the assignment core depends on.
// Implementations must treat keys as opaque strings; "/" is only meaningful
// to List callers. None of the operations are atomic with respect to each
// other and existence checks are best-effort.
type Store interface {
	// Get returns the object at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put writes the object at key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns all keys beginning with prefix, in unspecified order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// IsNotFound reports whether err indicates a missing object.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
