package kvddb

import (
	"fmt"
	"time"

	"github.com/acksell/stash/kv"
	"go.uber.org/zap"
)

// Store is a kv.Store backed by a DynamoDB table.
type Store struct {
	awsddb AWSDynamoClientV2
	table  TableDefinition
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

var (
	_ kv.Store             = &Store{}
	_ kv.ConditionalSetter = &Store{}
	_ kv.Lister            = &Store{}
)

// Options configures the DynamoDB store.
type Options struct {
	Table TableDefinition
	// TTL, when positive, stamps Table.TimeToLiveKey on every write.
	TTL    time.Duration
	Logger *zap.Logger
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// New wraps a DynamoDB client. The table must already exist.
func New(awsddb AWSDynamoClientV2, opts Options) (*Store, error) {
	if awsddb == nil {
		return nil, fmt.Errorf("dynamodb client is required")
	}
	if err := opts.Table.validate(); err != nil {
		return nil, err
	}
	if opts.TTL > 0 && opts.Table.TimeToLiveKey == "" {
		return nil, fmt.Errorf("table %q: TTL requires a TimeToLiveKey", opts.Table.Name)
	}
	s := &Store{
		awsddb: awsddb,
		table:  opts.Table,
		ttl:    opts.TTL,
		now:    opts.Now,
		log:    opts.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s, nil
}

func ptr[T any](v T) *T {
	return &v
}
