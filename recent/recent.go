// Package recent keeps a bounded most-recently-used list of ids in a kv.Store.
package recent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/acksell/stash/kv"
)

// DefaultLimit is the list length used when Options.Limit is not set.
const DefaultLimit = 10

// ErrEmptyID is returned by Touch for an empty id.
var ErrEmptyID = errors.New("recent: empty id")

// Options configures a List.
type Options struct {
	// Limit caps the list length. Defaults to DefaultLimit.
	Limit  int
	Logger *zap.Logger
}

// List is a most-recently-used list stored as a JSON array under one key.
type List struct {
	store kv.Store
	key   string
	limit int
	log   *zap.Logger

	mu sync.Mutex
}

// New returns the list stored under key. Nothing is read until first use.
func New(store kv.Store, key string, opts Options) *List {
	l := &List{
		store: store,
		key:   key,
		limit: opts.Limit,
		log:   opts.Logger,
	}
	if l.limit <= 0 {
		l.limit = DefaultLimit
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	return l
}

// Touch moves id to the front, inserting it if needed, and trims the list.
func (l *List) Touch(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	ids, err := l.load(ctx)
	if err != nil {
		return err
	}
	ids = slices.DeleteFunc(ids, func(s string) bool { return s == id })
	ids = append([]string{id}, ids...)
	if len(ids) > l.limit {
		l.log.Debug("trimming recent list", zap.String("key", l.key), zap.Int("dropped", len(ids)-l.limit))
		ids = ids[:l.limit]
	}
	return l.save(ctx, ids)
}

// Items returns the ids, most recent first.
func (l *List) Items(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

// Remove drops id from the list. Removing an absent id writes nothing.
func (l *List) Remove(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids, err := l.load(ctx)
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(slices.Clone(ids), func(s string) bool { return s == id })
	if len(kept) == len(ids) {
		return nil
	}
	return l.save(ctx, kept)
}

// Clear removes the list from the store.
func (l *List) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.RemoveItem(ctx, l.key); err != nil {
		return fmt.Errorf("clear recent list %q: %w", l.key, err)
	}
	return nil
}

func (l *List) load(ctx context.Context) ([]string, error) {
	raw, ok, err := l.store.GetItem(ctx, l.key)
	if err != nil {
		return nil, fmt.Errorf("read recent list %q: %w", l.key, err)
	}
	if !ok || raw == "" {
		return []string{}, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode recent list %q: %w", l.key, err)
	}
	// Older writers did not deduplicate.
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func (l *List) save(ctx context.Context, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode recent list: %w", err)
	}
	if err := l.store.SetItem(ctx, l.key, string(data)); err != nil {
		return fmt.Errorf("write recent list %q: %w", l.key, err)
	}
	return nil
}
