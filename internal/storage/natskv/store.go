// Package natskv implements the storage.Store contract over a NATS JetStream
// KeyValue bucket.
//
// This is the shared backend: independent worker processes on different
// hosts coordinate through one bucket. The bucket offers no cross-key
// atomicity to callers of this interface, which is exactly the collaborator
// contract the assignment core is designed for.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/rzbill/worksets/internal/storage"
)

// Options configures the NATS-backed store.
type Options struct {
	// URL is the NATS server URL. Defaults to nats.DefaultURL.
	URL string
	// Bucket is the KV bucket name. Required.
	Bucket string
	// Conn reuses an existing connection instead of dialing URL. Optional.
	Conn *nats.Conn
	// EnsureRetries bounds bucket create/open retries. Defaults to 3.
	EnsureRetries int
}

// Store is a storage.Store over a JetStream KV bucket.
type Store struct {
	nc    *nats.Conn
	kv    jetstream.KeyValue
	owned bool
}

var _ storage.Store = (*Store)(nil)

// Open connects (unless Options.Conn is supplied) and ensures the bucket
// exists, retrying on transient failures since multiple workers may race to
// create the same bucket.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("natskv: Options.Bucket is required")
	}

	nc := opts.Conn
	owned := false
	if nc == nil {
		url := opts.URL
		if url == "" {
			url = nats.DefaultURL
		}
		var err error
		nc, err = nats.Connect(url, nats.Timeout(5*time.Second), nats.MaxReconnects(-1))
		if err != nil {
			return nil, fmt.Errorf("natskv: connect %s: %w", url, err)
		}
		owned = true
	}

	js, err := jetstream.New(nc)
	if err != nil {
		if owned {
			nc.Close()
		}
		return nil, fmt.Errorf("natskv: jetstream: %w", err)
	}

	kv, err := ensureBucket(ctx, js, opts.Bucket, opts.EnsureRetries)
	if err != nil {
		if owned {
			nc.Close()
		}
		return nil, err
	}

	return &Store{nc: nc, kv: kv, owned: owned}, nil
}

// ensureBucket creates or opens the bucket with retry. Concurrent workers can
// race the create; ErrBucketExists falls through to a plain open.
func ensureBucket(ctx context.Context, js jetstream.JetStream, bucket string, retries int) (jetstream.KeyValue, error) {
	if retries <= 0 {
		retries = 3
	}
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		kv, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
		if err == nil {
			return kv, nil
		}
		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err = js.KeyValue(ctx, bucket)
			if err == nil {
				return kv, nil
			}
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("natskv: ensure bucket %s: %w", bucket, lastErr)
}

// Close closes the connection if this store opened it.
func (s *Store) Close() error {
	if s.owned && s.nc != nil {
		s.nc.Close()
	}
	return nil
}

// Get returns the object at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.kv.Get(ctx, encodeKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("natskv: get %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Put writes the object at key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.kv.Put(ctx, encodeKey(key), value); err != nil {
		return fmt.Errorf("natskv: put %s: %w", key, err)
	}
	return nil
}

// Delete purges the object at key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.kv.Purge(ctx, encodeKey(key))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("natskv: delete %s: %w", key, err)
	}
	return nil
}

// List returns all keys with the given prefix. JetStream KV has no prefix
// scan over arbitrary strings, so this lists the bucket and filters.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("natskv: list keys: %w", err)
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for k := range lister.Keys() {
		decoded := decodeKey(k)
		if strings.HasPrefix(decoded, prefix) {
			keys = append(keys, decoded)
		}
	}
	return keys, nil
}

// KV key charset forbids a handful of characters object keys may carry.
// Keys used by this repo are path-like ASCII, so only spaces need mapping;
// everything else in the layout (letters, digits, "/", "_", "-", ".", "=")
// is valid as-is.
func encodeKey(key string) string { return strings.ReplaceAll(key, " ", "=20") }

func decodeKey(key string) string { return strings.ReplaceAll(key, "=20", " ") }
