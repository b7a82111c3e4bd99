package kvbadger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Keys lists the keys starting with prefix. Badger iterates in byte order,
// so the result is already sorted.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	seek := []byte(keyPrefix + prefix)
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = seek
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(seek); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if key, ok := decodeKey(it.Item().KeyCopy(nil)); ok {
				keys = append(keys, key)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}
