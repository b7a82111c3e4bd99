// Package kv defines the persistent key-value store that every stash
// component reads and writes through.
//
// A Store holds one string value per key. Values are JSON documents written
// whole on every mutation; there is no partial update. Backends live in the
// sub-packages:
//
//   - kvbadger: embedded BadgerDB, on disk or in memory
//   - kvsqlite: a single SQLite table
//   - kvddb: one DynamoDB item per key
//
// Optional capabilities (ConditionalSetter, Lister) are discovered with type
// assertions so that callers can degrade gracefully on simpler backends.
package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("kv: store closed")

// Store is the minimal persistent key-value interface.
//
// GetItem reports ok == false with a nil error for a missing key.
// RemoveItem of a missing key is not an error.
type Store interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// ConditionalSetter is implemented by stores that can write a key only when
// it does not exist yet, atomically.
type ConditionalSetter interface {
	// SetItemIfAbsent reports whether the value was written.
	SetItemIfAbsent(ctx context.Context, key, value string) (bool, error)
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	// Keys returns all keys starting with prefix, sorted ascending.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// SetIfAbsent writes value under key only when the key is missing. Stores
// implementing ConditionalSetter do this atomically; for the rest it is a
// plain check-then-write and two concurrent callers may both write.
func SetIfAbsent(ctx context.Context, s Store, key, value string) (bool, error) {
	if cs, ok := s.(ConditionalSetter); ok {
		return cs.SetItemIfAbsent(ctx, key, value)
	}
	_, exists, err := s.GetItem(ctx, key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := s.SetItem(ctx, key, value); err != nil {
		return false, err
	}
	return true, nil
}
