package kvbadger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// GetItem retrieves the value stored under key.
func (s *Store) GetItem(ctx context.Context, key string) (string, bool, error) {
	if err := s.checkOpen(); err != nil {
		return "", false, err
	}
	k, err := encodeKey(key)
	if err != nil {
		return "", false, err
	}

	var value string
	found := true
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}
