package entity

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/acksell/stash"
	"github.com/acksell/stash/kv"
	"github.com/acksell/stash/kv/kvbadger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func (n note) IsValid() error {
	if n.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type notePatch struct {
	Name  *string
	Value *int
}

func (p notePatch) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return errors.New("name cannot be empty")
	}
	return nil
}

func (p notePatch) Apply(n note) note {
	if p.Name != nil {
		n.Name = *p.Name
	}
	if p.Value != nil {
		n.Value = *p.Value
	}
	return n
}

func ptr[T any](v T) *T { return &v }

// memStore is a minimal kv.Store that counts writes.
type memStore struct {
	items  map[string]string
	writes int
	err    error
}

func newMemStore() *memStore {
	return &memStore{items: map[string]string{}}
}

func (m *memStore) GetItem(_ context.Context, key string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *memStore) SetItem(_ context.Context, key, value string) error {
	if m.err != nil {
		return m.err
	}
	m.writes++
	m.items[key] = value
	return nil
}

func (m *memStore) RemoveItem(_ context.Context, key string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.items, key)
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var (
	t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(90 * time.Second)
)

func newTestManager(t *testing.T, store kv.Store, opts Options[note]) *Manager[note] {
	t.Helper()
	if opts.Key == "" {
		opts.Key = "notes"
	}
	if opts.NewID == nil {
		opts.NewID = SequenceGenerator("id")
	}
	m, err := New(context.Background(), store, opts)
	require.NoError(t, err)
	return m
}

func storedItems(t *testing.T, store *memStore, key string) string {
	t.Helper()
	var env struct {
		Version int             `json:"version"`
		Items   json.RawMessage `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(store.items[key]), &env))
	assert.Equal(t, DefaultSchemaVersion, env.Version)
	return string(env.Items)
}

// =============================================================================
// Add / Update / Delete
// =============================================================================

func TestManager_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("writes the new entity into an empty collection", func(t *testing.T) {
		store := newMemStore()
		clock := &fakeClock{t: t0}
		m := newTestManager(t, store, Options[note]{Now: clock.Now})

		e, err := m.Add(ctx, note{Name: "X", Value: 1})
		require.NoError(t, err)
		assert.Equal(t, "id-1", e.ID)
		assert.False(t, e.IsBuiltIn)
		assert.Equal(t, t0, e.CreatedAt)
		assert.Equal(t, e.CreatedAt, e.UpdatedAt)

		assert.JSONEq(t, `[{
			"id": "id-1",
			"name": "X",
			"value": 1,
			"isBuiltIn": false,
			"createdAt": "2024-01-01T00:00:00.000Z",
			"updatedAt": "2024-01-01T00:00:00.000Z"
		}]`, storedItems(t, store, "notes"))
	})

	t.Run("ids are unique", func(t *testing.T) {
		m := newTestManager(t, newMemStore(), Options[note]{NewID: UUIDGenerator()})

		seen := map[string]bool{}
		for i := range 20 {
			e, err := m.Add(ctx, note{Name: "n", Value: i})
			require.NoError(t, err)
			assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
			seen[e.ID] = true
		}
	})

	t.Run("invalid fields are rejected without a write", func(t *testing.T) {
		store := newMemStore()
		m := newTestManager(t, store, Options[note]{})

		_, err := m.Add(ctx, note{})
		require.Error(t, err)
		assert.Zero(t, store.writes)
	})

	t.Run("colliding generator fails", func(t *testing.T) {
		m := newTestManager(t, newMemStore(), Options[note]{
			NewID: func() string { return "same" },
		})

		_, err := m.Add(ctx, note{Name: "a"})
		require.NoError(t, err)
		_, err = m.Add(ctx, note{Name: "b"})
		require.ErrorIs(t, err, ErrDuplicateID)
	})

	t.Run("generated id matching a built-in is a collision", func(t *testing.T) {
		m := newTestManager(t, newMemStore(), Options[note]{
			BuiltIns: []Entity[note]{BuiltIn("id-1", note{Name: "default"})},
			NewID:    func() string { return "id-1" },
		})

		_, err := m.Add(ctx, note{Name: "a"})
		require.ErrorIs(t, err, ErrDuplicateID)
	})
}

func TestManager_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("patches fields and advances updatedAt", func(t *testing.T) {
		store := newMemStore()
		store.items["notes"] = `[{"id":"a","name":"old","value":7,"isBuiltIn":false,` +
			`"createdAt":"2024-01-01T00:00:00.000Z","updatedAt":"2024-01-01T00:00:00.000Z"}]`
		clock := &fakeClock{t: t1}
		m := newTestManager(t, store, Options[note]{Now: clock.Now})

		e, err := m.Update(ctx, "a", notePatch{Name: ptr("new")})
		require.NoError(t, err)
		assert.Equal(t, "new", e.Fields.Name)
		assert.Equal(t, 7, e.Fields.Value)
		assert.Equal(t, t0, e.CreatedAt)
		assert.Equal(t, t1, e.UpdatedAt)

		assert.JSONEq(t, `[{
			"id": "a",
			"name": "new",
			"value": 7,
			"isBuiltIn": false,
			"createdAt": "2024-01-01T00:00:00.000Z",
			"updatedAt": "2024-01-01T00:01:30.000Z"
		}]`, storedItems(t, store, "notes"))
	})

	t.Run("updatedAt strictly increases with a frozen clock", func(t *testing.T) {
		clock := &fakeClock{t: t0}
		m := newTestManager(t, newMemStore(), Options[note]{Now: clock.Now})

		e, err := m.Add(ctx, note{Name: "a"})
		require.NoError(t, err)

		prev := e.UpdatedAt
		for range 3 {
			e, err = m.Update(ctx, e.ID, PatchFunc[note](func(n note) note {
				n.Value++
				return n
			}))
			require.NoError(t, err)
			assert.True(t, e.UpdatedAt.After(prev))
			prev = e.UpdatedAt
		}
		assert.Equal(t, t0, e.CreatedAt)
		assert.Equal(t, 3, e.Fields.Value)
	})

	t.Run("unknown id", func(t *testing.T) {
		m := newTestManager(t, newMemStore(), Options[note]{})
		_, err := m.Update(ctx, "missing", notePatch{Value: ptr(1)})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("built-in id", func(t *testing.T) {
		store := newMemStore()
		m := newTestManager(t, store, Options[note]{
			BuiltIns: []Entity[note]{BuiltIn("default", note{Name: "d"})},
		})
		writes := store.writes

		_, err := m.Update(ctx, "default", notePatch{Value: ptr(1)})
		require.ErrorIs(t, err, ErrBuiltIn)
		assert.Equal(t, writes, store.writes)
	})

	t.Run("invalid patch", func(t *testing.T) {
		m := newTestManager(t, newMemStore(), Options[note]{})
		e, err := m.Add(ctx, note{Name: "a"})
		require.NoError(t, err)

		_, err = m.Update(ctx, e.ID, notePatch{Name: ptr("")})
		require.ErrorIs(t, err, ErrInvalidPatch)

		_, err = m.Update(ctx, e.ID, nil)
		require.ErrorIs(t, err, ErrInvalidPatch)
	})
}

func TestManager_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes a user entity", func(t *testing.T) {
		m := newTestManager(t, newMemStore(), Options[note]{})
		a, err := m.Add(ctx, note{Name: "a"})
		require.NoError(t, err)
		b, err := m.Add(ctx, note{Name: "b"})
		require.NoError(t, err)

		require.NoError(t, m.Delete(ctx, a.ID))

		list, err := m.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, b.ID, list[0].ID)
	})

	t.Run("missing id is a no-op without a write", func(t *testing.T) {
		store := newMemStore()
		m := newTestManager(t, store, Options[note]{})

		require.NoError(t, m.Delete(ctx, "nope"))
		assert.Zero(t, store.writes)
	})

	t.Run("built-ins survive delete", func(t *testing.T) {
		store := newMemStore()
		m := newTestManager(t, store, Options[note]{
			BuiltIns: []Entity[note]{BuiltIn("default", note{Name: "d"})},
		})
		before, err := m.List(ctx)
		require.NoError(t, err)
		writes := store.writes

		require.NoError(t, m.Delete(ctx, "default"))
		assert.Equal(t, writes, store.writes)

		after, err := m.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

// =============================================================================
// List / GetByID
// =============================================================================

func TestManager_List(t *testing.T) {
	ctx := context.Background()

	t.Run("empty collection", func(t *testing.T) {
		m := newTestManager(t, newMemStore(), Options[note]{})
		list, err := m.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("stored entities come first and win over built-ins", func(t *testing.T) {
		store := newMemStore()
		store.items["notes"] = `{"version":1,"items":[` +
			`{"id":"user-1","name":"mine","isBuiltIn":false,"createdAt":"2024-01-01T00:00:00.000Z","updatedAt":"2024-01-01T00:00:00.000Z"},` +
			`{"id":"b","name":"override","isBuiltIn":false,"createdAt":"2024-01-01T00:00:00.000Z","updatedAt":"2024-01-01T00:00:00.000Z"}]}`
		m := newTestManager(t, store, Options[note]{
			BuiltIns: []Entity[note]{
				BuiltIn("a", note{Name: "builtin a"}),
				BuiltIn("b", note{Name: "builtin b"}),
			},
		})

		list, err := m.List(ctx)
		require.NoError(t, err)

		var ids, names []string
		for _, e := range list {
			ids = append(ids, e.ID)
			names = append(names, e.Fields.Name)
		}
		assert.Equal(t, []string{"user-1", "b", "a"}, ids)
		assert.Equal(t, []string{"mine", "override", "builtin a"}, names)
	})

	t.Run("read errors propagate", func(t *testing.T) {
		store := newMemStore()
		m := newTestManager(t, store, Options[note]{})
		boom := errors.New("boom")
		store.err = boom

		_, err := m.List(ctx)
		require.ErrorIs(t, err, boom)
	})

	t.Run("corrupt blob", func(t *testing.T) {
		store := newMemStore()
		store.items["notes"] = `{not json`
		m := newTestManager(t, store, Options[note]{})

		_, err := m.List(ctx)
		require.Error(t, err)
	})
}

func TestManager_GetByID(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newMemStore(), Options[note]{
		BuiltIns: []Entity[note]{BuiltIn("default", note{Name: "d"})},
	})
	added, err := m.Add(ctx, note{Name: "mine"})
	require.NoError(t, err)

	got, ok, err := m.GetByID(ctx, added.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, added, got)

	got, ok, err = m.GetByID(ctx, "default")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.IsBuiltIn)

	_, ok, err = m.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

// =============================================================================
// Bootstrap
// =============================================================================

func TestManager_Bootstrap(t *testing.T) {
	ctx := context.Background()
	builtIns := []Entity[note]{
		BuiltIn("one", note{Name: "first"}),
		BuiltIn("two", note{Name: "second"}),
	}

	t.Run("seeds once", func(t *testing.T) {
		store := newMemStore()
		clock := &fakeClock{t: t0}

		m := newTestManager(t, store, Options[note]{BuiltIns: builtIns, Now: clock.Now})
		assert.Equal(t, 1, store.writes)

		list, err := m.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		for _, e := range list {
			assert.True(t, e.IsBuiltIn)
			assert.Equal(t, t0, e.CreatedAt)
			assert.Equal(t, t0, e.UpdatedAt)
		}

		clock.Advance(time.Hour)
		newTestManager(t, store, Options[note]{BuiltIns: builtIns, Now: clock.Now})
		assert.Equal(t, 1, store.writes)
	})

	t.Run("does not mutate the configured built-ins", func(t *testing.T) {
		in := []Entity[note]{BuiltIn("one", note{Name: "first"})}
		m := newTestManager(t, newMemStore(), Options[note]{BuiltIns: in, Now: (&fakeClock{t: t0}).Now})

		assert.True(t, in[0].CreatedAt.IsZero())
		assert.True(t, m.BuiltIns()[0].CreatedAt.IsZero())
	})

	t.Run("reseeds an empty stored collection", func(t *testing.T) {
		store := newMemStore()
		store.items["notes"] = `{"version":1,"items":[]}`

		m := newTestManager(t, store, Options[note]{BuiltIns: builtIns})
		assert.Equal(t, 1, store.writes)
		list, err := m.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("no built-ins writes nothing", func(t *testing.T) {
		store := newMemStore()
		newTestManager(t, store, Options[note]{})
		assert.Zero(t, store.writes)
	})

	t.Run("duplicate built-in ids are rejected", func(t *testing.T) {
		_, err := New(ctx, newMemStore(), Options[note]{
			Key:      "notes",
			BuiltIns: []Entity[note]{BuiltIn("x", note{Name: "a"}), BuiltIn("x", note{Name: "b"})},
		})
		require.ErrorIs(t, err, ErrDuplicateID)
	})

	t.Run("concurrent managers seed exactly once", func(t *testing.T) {
		store, err := kvbadger.New(kvbadger.StoreOptions{InMemory: true})
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })

		var seeds atomic.Int32
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := New(ctx, store, Options[note]{
					Key:      "notes",
					BuiltIns: builtIns,
					OnChange: func(ev stash.ChangeEvent) {
						if ev.Type == stash.EventCollectionSeeded {
							seeds.Add(1)
						}
					},
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), seeds.Load())
	})
}

func TestManager_Reset(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	builtIns := []Entity[note]{BuiltIn("one", note{Name: "first"})}

	m := newTestManager(t, store, Options[note]{BuiltIns: builtIns})
	_, err := m.Add(ctx, note{Name: "mine"})
	require.NoError(t, err)

	require.NoError(t, m.Reset(ctx))
	_, ok := store.items["notes"]
	assert.False(t, ok)

	m = newTestManager(t, store, Options[note]{BuiltIns: builtIns})
	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "one", list[0].ID)
}

func TestManager_OnChange(t *testing.T) {
	ctx := context.Background()
	var events []stash.EventType
	m := newTestManager(t, newMemStore(), Options[note]{
		OnChange: func(ev stash.ChangeEvent) {
			assert.Equal(t, "notes", ev.Collection)
			events = append(events, ev.Type)
		},
	})

	e, err := m.Add(ctx, note{Name: "a"})
	require.NoError(t, err)
	_, err = m.Update(ctx, e.ID, notePatch{Value: ptr(2)})
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, e.ID))
	require.NoError(t, m.Delete(ctx, e.ID))

	assert.Equal(t, []stash.EventType{
		stash.EventEntityAdded,
		stash.EventEntityUpdated,
		stash.EventEntityDeleted,
	}, events)
}

func TestNew_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := New[note](ctx, nil, Options[note]{Key: "k"})
	require.Error(t, err)

	_, err = New(ctx, newMemStore(), Options[note]{})
	require.Error(t, err)

	_, err = New(ctx, newMemStore(), Options[note]{
		Key:      "k",
		BuiltIns: []Entity[note]{BuiltIn("", note{Name: "a"})},
	})
	require.Error(t, err)
}
