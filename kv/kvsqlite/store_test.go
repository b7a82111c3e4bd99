package kvsqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/acksell/stash/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestStore_CRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.GetItem(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetItem(ctx, "k", "v1"))
	require.NoError(t, store.SetItem(ctx, "k", "v2"))

	got, ok, err := store.GetItem(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", got)

	require.NoError(t, store.RemoveItem(ctx, "k"))
	require.NoError(t, store.RemoveItem(ctx, "k"), "removing twice is a no-op")

	_, ok, err = store.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SetItemIfAbsent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	written, err := store.SetItemIfAbsent(ctx, "seed", "first")
	require.NoError(t, err)
	assert.True(t, written)

	written, err = store.SetItemIfAbsent(ctx, "seed", "second")
	require.NoError(t, err)
	assert.False(t, written)

	got, _, err := store.GetItem(ctx, "seed")
	require.NoError(t, err)
	assert.Equal(t, "first", got)
}

func TestStore_Keys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"a:2", "a:1", "a_x", "b:1"} {
		require.NoError(t, store.SetItem(ctx, k, "v"))
	}

	keys, err := store.Keys(ctx, "a:")
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "a:2"}, keys)

	keys, err = store.Keys(ctx, "a_")
	require.NoError(t, err)
	assert.Equal(t, []string{"a_x"}, keys, "underscore is matched literally")
}

func TestStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stash.db")
	ctx := context.Background()

	store, err := Open(ctx, Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, store.SetItem(ctx, "k", "persisted"))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, Options{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.GetItem(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "persisted", got)
}

func TestStore_Closed(t *testing.T) {
	store, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, _, err = store.GetItem(context.Background(), "k")
	assert.ErrorIs(t, err, kv.ErrClosed)
}
