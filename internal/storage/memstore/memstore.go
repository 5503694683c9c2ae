// Package memstore implements the storage.Store contract in process memory.
// It exists for unit tests and for exercising the assignment core under
// -race without touching disk or a broker.
package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/rzbill/worksets/internal/storage"
)

// Store is an in-memory Store backed by a concurrent map.
type Store struct {
	objects *xsync.Map[string, []byte]
}

var _ storage.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{objects: xsync.NewMap[string, []byte]()}
}

// Get returns a copy of the object at key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.objects.Load(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put stores a copy of value at key.
func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.objects.Store(key, append([]byte(nil), value...))
	return nil
}

// Delete removes the object at key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.objects.Delete(key)
	return nil
}

// List returns all keys with the given prefix in ascending order.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	s.objects.Range(func(k string, _ []byte) bool {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
		return true
	})
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	return s.objects.Size()
}
