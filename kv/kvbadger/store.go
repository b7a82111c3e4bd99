// Package kvbadger implements kv.Store on top of BadgerDB.
package kvbadger

import (
	"fmt"
	"time"

	"github.com/acksell/stash/kv"
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Store is a kv.Store backed by BadgerDB. Every operation runs in its own
// badger transaction, so single-key reads and writes are serializable.
type Store struct {
	db  *badger.DB
	ttl time.Duration
	log *zap.Logger
}

var (
	_ kv.Store             = &Store{}
	_ kv.ConditionalSetter = &Store{}
	_ kv.Lister            = &Store{}
)

// StoreOptions configures the BadgerDB store.
type StoreOptions struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// TTL, when positive, expires every written value after the duration.
	TTL time.Duration
	// Logger receives store and BadgerDB logs. If nil, logging is disabled.
	Logger *zap.Logger
}

// New opens a BadgerDB-backed store.
func New(opts StoreOptions) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)

	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}

	log := opts.Logger
	if log != nil {
		badgerOpts = badgerOpts.WithLogger(ZapLogger(log))
	} else {
		log = zap.NewNop()
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	log.Debug("opened badger store",
		zap.String("path", opts.Path),
		zap.Bool("inMemory", badgerOpts.InMemory))

	return &Store{
		db:  db,
		ttl: opts.TTL,
		log: log,
	}, nil
}

// Close closes the BadgerDB database.
func (s *Store) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	if s.db.IsClosed() {
		return kv.ErrClosed
	}
	return nil
}

func (s *Store) newEntry(key, value []byte) *badger.Entry {
	e := badger.NewEntry(key, value)
	if s.ttl > 0 {
		e = e.WithTTL(s.ttl)
	}
	return e
}
