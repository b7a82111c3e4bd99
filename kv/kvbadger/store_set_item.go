package kvbadger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// SetItem creates or replaces the value stored under key.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	k, err := encodeKey(key)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(s.newEntry(k, []byte(value)))
	})
	if err != nil {
		return fmt.Errorf("set item %q: %w", key, err)
	}
	s.log.Debug("set item", zap.String("key", key), zap.Int("bytes", len(value)))
	return nil
}

// SetItemIfAbsent writes value only when key does not exist. The existence
// check and the write share one transaction; a concurrent writer makes the
// commit fail with a conflict, reported here as "not written".
func (s *Store) SetItemIfAbsent(ctx context.Context, key, value string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	k, err := encodeKey(key)
	if err != nil {
		return false, err
	}

	written := false
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(k)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.SetEntry(s.newEntry(k, []byte(value))); err != nil {
			return err
		}
		written = true
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		s.log.Debug("conditional set lost race", zap.String("key", key))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("set item if absent %q: %w", key, err)
	}
	return written, nil
}
