package kv

import (
	"context"
	"errors"
	"io"
	"strings"
)

const namespaceSeparator = ":"

// Namespace scopes a store to keys prefixed with "<prefix>:". Optional
// capabilities of the wrapped store are preserved. Keys returned by Keys
// have the prefix stripped.
func Namespace(s Store, prefix string) Store {
	if prefix == "" {
		return s
	}
	return &namespaced{inner: s, prefix: prefix + namespaceSeparator}
}

type namespaced struct {
	inner  Store
	prefix string
}

var (
	_ ConditionalSetter = &namespaced{}
	_ Lister            = &namespaced{}
	_ io.Closer         = &namespaced{}
)

func (n *namespaced) GetItem(ctx context.Context, key string) (string, bool, error) {
	return n.inner.GetItem(ctx, n.prefix+key)
}

func (n *namespaced) SetItem(ctx context.Context, key, value string) error {
	return n.inner.SetItem(ctx, n.prefix+key, value)
}

func (n *namespaced) RemoveItem(ctx context.Context, key string) error {
	return n.inner.RemoveItem(ctx, n.prefix+key)
}

func (n *namespaced) SetItemIfAbsent(ctx context.Context, key, value string) (bool, error) {
	return SetIfAbsent(ctx, n.inner, n.prefix+key, value)
}

func (n *namespaced) Keys(ctx context.Context, prefix string) ([]string, error) {
	l, ok := n.inner.(Lister)
	if !ok {
		return nil, errors.New("kv: wrapped store does not support listing")
	}
	keys, err := l.Keys(ctx, n.prefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, n.prefix))
	}
	return out, nil
}

// Close closes the wrapped store if it is closable.
func (n *namespaced) Close() error {
	if c, ok := n.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
