package kvbadger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// RemoveItem deletes key. Deleting a missing key is a no-op.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	k, err := encodeKey(key)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
	if err != nil {
		return fmt.Errorf("remove item %q: %w", key, err)
	}
	return nil
}
