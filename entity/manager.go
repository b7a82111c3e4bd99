package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/acksell/stash"
	"github.com/acksell/stash/kv"
)

// Options configures a Manager.
type Options[F any] struct {
	// Key is the storage key holding the whole collection. Required.
	Key string
	// BuiltIns are default records. They are seeded into an empty collection,
	// always returned by List, and can be neither updated nor deleted.
	BuiltIns []Entity[F]
	// NewID generates ids for added records. Defaults to UUIDGenerator.
	NewID IDGenerator
	// Now defaults to time.Now.
	Now func() time.Time
	// SchemaVersion is the version written to storage. Defaults to
	// DefaultSchemaVersion.
	SchemaVersion int
	Migrations    []Migration
	Logger        *zap.Logger
	// OnChange is called after every successful write, outside the lock.
	OnChange func(stash.ChangeEvent)
}

// Manager is the typed CRUD surface of one collection. It is safe for
// concurrent use within a process; writers in other processes are not
// coordinated beyond the atomic seeding done by New.
type Manager[F any] struct {
	store    kv.Store
	key      string
	builtIns []Entity[F]
	builtIDs map[string]struct{}
	newID    IDGenerator
	clock    func() time.Time
	version  int
	migs     []Migration
	onChange func(stash.ChangeEvent)
	log      *zap.Logger

	mu sync.Mutex
}

const maxIDAttempts = 3

// New creates a Manager and seeds the built-ins when the persisted collection
// is empty or missing. Seeding of a missing key is atomic when the store
// implements kv.ConditionalSetter, so concurrent first runs write it once.
func New[F any](ctx context.Context, store kv.Store, opts Options[F]) (*Manager[F], error) {
	if store == nil {
		return nil, fmt.Errorf("entity: store is required")
	}
	if opts.Key == "" {
		return nil, fmt.Errorf("entity: collection key is required")
	}

	m := &Manager[F]{
		store:    store,
		key:      opts.Key,
		builtIDs: make(map[string]struct{}, len(opts.BuiltIns)),
		newID:    opts.NewID,
		clock:    opts.Now,
		version:  opts.SchemaVersion,
		migs:     opts.Migrations,
		onChange: opts.OnChange,
		log:      opts.Logger,
	}
	if m.newID == nil {
		m.newID = UUIDGenerator()
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	if m.version == 0 {
		m.version = DefaultSchemaVersion
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	m.log = m.log.With(zap.String("collection", opts.Key))

	for _, b := range opts.BuiltIns {
		if b.ID == "" {
			return nil, fmt.Errorf("entity: built-in without id in %q", opts.Key)
		}
		if _, dup := m.builtIDs[b.ID]; dup {
			return nil, fmt.Errorf("%w: built-in %q", ErrDuplicateID, b.ID)
		}
		b.IsBuiltIn = true
		m.builtIDs[b.ID] = struct{}{}
		m.builtIns = append(m.builtIns, b)
	}

	if err := m.bootstrap(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Key returns the storage key of the collection.
func (m *Manager[F]) Key() string {
	return m.key
}

// BuiltIns returns a copy of the configured built-in records.
func (m *Manager[F]) BuiltIns() []Entity[F] {
	return slices.Clone(m.builtIns)
}

func (m *Manager[F]) bootstrap(ctx context.Context) error {
	if len(m.builtIns) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	raw, exists, err := m.store.GetItem(ctx, m.key)
	if err != nil {
		return fmt.Errorf("read collection %q: %w", m.key, err)
	}
	if exists {
		stored, err := m.decode(raw)
		if err != nil {
			return err
		}
		if len(stored) > 0 {
			return nil
		}
	}

	seeded := m.initializeBuiltIns()
	blob, err := encodeBlob(m.version, seeded)
	if err != nil {
		return err
	}

	written := true
	if exists {
		err = m.store.SetItem(ctx, m.key, blob)
	} else {
		written, err = kv.SetIfAbsent(ctx, m.store, m.key, blob)
	}
	if err != nil {
		return fmt.Errorf("seed collection %q: %w", m.key, err)
	}
	if !written {
		m.log.Debug("collection seeded concurrently, skipping")
		return nil
	}

	m.log.Info("seeded built-in entities", zap.Int("count", len(seeded)))
	m.notify(stash.EventCollectionSeeded, "")
	return nil
}

// initializeBuiltIns returns fresh copies of the built-ins stamped with one
// shared timestamp.
func (m *Manager[F]) initializeBuiltIns() []Entity[F] {
	now := m.now()
	out := make([]Entity[F], len(m.builtIns))
	for i, b := range m.builtIns {
		b.IsBuiltIn = true
		b.CreatedAt = now
		b.UpdatedAt = now
		out[i] = b
	}
	return out
}

// List returns the persisted records followed by every built-in whose id is
// not persisted. A persisted record wins over a built-in with the same id.
func (m *Manager[F]) List(ctx context.Context) ([]Entity[F], error) {
	stored, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return m.merge(stored), nil
}

// GetByID looks a record up in the merged view.
func (m *Manager[F]) GetByID(ctx context.Context, id string) (Entity[F], bool, error) {
	all, err := m.List(ctx)
	if err != nil {
		return Entity[F]{}, false, err
	}
	for _, e := range all {
		if e.ID == id {
			return e, true, nil
		}
	}
	return Entity[F]{}, false, nil
}

// Add stores a new user record with a generated id.
func (m *Manager[F]) Add(ctx context.Context, fields F) (Entity[F], error) {
	if err := validate(fields); err != nil {
		return Entity[F]{}, err
	}

	m.mu.Lock()
	stored, err := m.load(ctx)
	if err != nil {
		m.mu.Unlock()
		return Entity[F]{}, err
	}

	id, err := m.generateID(stored)
	if err != nil {
		m.mu.Unlock()
		return Entity[F]{}, err
	}

	now := m.now()
	e := Entity[F]{
		EntityMeta: stash.EntityMeta{ID: id, CreatedAt: now, UpdatedAt: now},
		Fields:     fields,
	}
	if err := m.save(ctx, append(stored, e)); err != nil {
		m.mu.Unlock()
		return Entity[F]{}, err
	}
	m.mu.Unlock()

	m.log.Debug("entity added", zap.String("id", id))
	m.notify(stash.EventEntityAdded, id)
	return e, nil
}

func (m *Manager[F]) generateID(stored []Entity[F]) (string, error) {
	var id string
	for range maxIDAttempts {
		id = m.newID()
		if id != "" && !m.exists(stored, id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrDuplicateID, id)
}

func (m *Manager[F]) exists(stored []Entity[F], id string) bool {
	if _, ok := m.builtIDs[id]; ok {
		return true
	}
	return indexOf(stored, id) >= 0
}

// Update applies patch to a user record. The id and createdAt are preserved
// and updatedAt moves forward.
func (m *Manager[F]) Update(ctx context.Context, id string, patch Patch[F]) (Entity[F], error) {
	if patch == nil {
		return Entity[F]{}, fmt.Errorf("%w: nil patch", ErrInvalidPatch)
	}
	if err := patch.Validate(); err != nil {
		return Entity[F]{}, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}

	m.mu.Lock()
	stored, err := m.load(ctx)
	if err != nil {
		m.mu.Unlock()
		return Entity[F]{}, err
	}

	i := indexOf(stored, id)
	if i < 0 {
		m.mu.Unlock()
		if _, ok := m.builtIDs[id]; ok {
			return Entity[F]{}, fmt.Errorf("%w: %q", ErrBuiltIn, id)
		}
		return Entity[F]{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if m.protected(stored[i]) {
		m.mu.Unlock()
		return Entity[F]{}, fmt.Errorf("%w: %q", ErrBuiltIn, id)
	}

	e := stored[i]
	fields := patch.Apply(e.Fields)
	if err := validate(fields); err != nil {
		m.mu.Unlock()
		return Entity[F]{}, err
	}
	e.Fields = fields
	e.UpdatedAt = m.advance(e.UpdatedAt)

	updated := slices.Clone(stored)
	updated[i] = e
	if err := m.save(ctx, updated); err != nil {
		m.mu.Unlock()
		return Entity[F]{}, err
	}
	m.mu.Unlock()

	m.log.Debug("entity updated", zap.String("id", id))
	m.notify(stash.EventEntityUpdated, id)
	return e, nil
}

// Delete removes a user record. Deleting a built-in or an unknown id is a
// no-op and writes nothing.
func (m *Manager[F]) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	stored, err := m.load(ctx)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	i := indexOf(stored, id)
	if i < 0 || m.protected(stored[i]) {
		m.mu.Unlock()
		m.log.Debug("delete skipped", zap.String("id", id), zap.Bool("found", i >= 0))
		return nil
	}

	if err := m.save(ctx, slices.Delete(slices.Clone(stored), i, i+1)); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	m.log.Debug("entity deleted", zap.String("id", id))
	m.notify(stash.EventEntityDeleted, id)
	return nil
}

// Reset removes the persisted collection. The next New call seeds the
// built-ins again.
func (m *Manager[F]) Reset(ctx context.Context) error {
	m.mu.Lock()
	err := m.store.RemoveItem(ctx, m.key)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("reset collection %q: %w", m.key, err)
	}

	m.log.Info("collection reset")
	m.notify(stash.EventCollectionReset, "")
	return nil
}

func (m *Manager[F]) protected(e Entity[F]) bool {
	if e.IsBuiltIn {
		return true
	}
	_, ok := m.builtIDs[e.ID]
	return ok
}

func (m *Manager[F]) merge(stored []Entity[F]) []Entity[F] {
	out := make([]Entity[F], 0, len(stored)+len(m.builtIns))
	out = append(out, stored...)
	for _, b := range m.builtIns {
		if indexOf(stored, b.ID) < 0 {
			out = append(out, b)
		}
	}
	return out
}

func (m *Manager[F]) load(ctx context.Context) ([]Entity[F], error) {
	raw, ok, err := m.store.GetItem(ctx, m.key)
	if err != nil {
		return nil, fmt.Errorf("read collection %q: %w", m.key, err)
	}
	if !ok {
		return nil, nil
	}
	return m.decode(raw)
}

func (m *Manager[F]) decode(raw string) ([]Entity[F], error) {
	items, stored, err := decodeBlob(raw, m.version, m.migs)
	if err != nil {
		return nil, fmt.Errorf("decode collection %q: %w", m.key, err)
	}
	if stored < m.version {
		m.log.Debug("migrated collection on read", zap.Int("from", stored), zap.Int("to", m.version))
	}
	if len(items) == 0 {
		return nil, nil
	}

	var out []Entity[F]
	if err := json.Unmarshal(items, &out); err != nil {
		return nil, fmt.Errorf("decode collection %q: %w", m.key, err)
	}
	return out, nil
}

func (m *Manager[F]) save(ctx context.Context, items []Entity[F]) error {
	if items == nil {
		items = []Entity[F]{}
	}
	blob, err := encodeBlob(m.version, items)
	if err != nil {
		return fmt.Errorf("encode collection %q: %w", m.key, err)
	}
	if err := m.store.SetItem(ctx, m.key, blob); err != nil {
		return fmt.Errorf("write collection %q: %w", m.key, err)
	}
	return nil
}

func (m *Manager[F]) notify(t stash.EventType, id string) {
	if m.onChange == nil {
		return
	}
	m.onChange(stash.ChangeEvent{
		Type:       t,
		Collection: m.key,
		EntityID:   id,
		At:         m.now(),
	})
}

func (m *Manager[F]) now() time.Time {
	return m.clock().UTC().Truncate(time.Millisecond)
}

// advance returns the current time, or prev+1ms when the clock has not moved
// past prev.
func (m *Manager[F]) advance(prev time.Time) time.Time {
	now := m.now()
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}

func indexOf[F any](list []Entity[F], id string) int {
	return slices.IndexFunc(list, func(e Entity[F]) bool { return e.ID == id })
}
