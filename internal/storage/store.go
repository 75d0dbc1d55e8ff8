// Package storage provides the persistent key-value boundary shared by the
// public key cache and the decryption signature manager.
//
// A Store exposes only Get and Set. Writing an empty value is a tombstone: a
// subsequent Get reports the key as absent. Records are self-describing JSON
// with an explicit expiry, so several processes may share one store with
// last-write-wins semantics.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mrz1836/fhekit/internal/errors"
)

// Store is a string key-value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key. An empty value removes the key.
	Set(ctx context.Context, key, value string) error
}

// Remove writes a tombstone for key.
func Remove(ctx context.Context, s Store, key string) error {
	return s.Set(ctx, key, "")
}

// GetJSON reads and decodes a JSON record. A record that fails to decode
// is reported as ErrCorruptRecord.
func GetJSON[T any](ctx context.Context, s Store, key string) (*T, bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", errors.ErrCorruptRecord, key, err)
	}
	return &v, true, nil
}

// SetJSON encodes v as JSON and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}

// Close releases the resources of stores that hold any.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
