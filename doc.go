// Package stash stores small collections of records and cached API responses
// as JSON documents in a pluggable key-value store.
//
// The pieces, leaf first:
//
//   - kv: the Store interface plus BadgerDB, SQLite and DynamoDB backends
//   - entity: a collection manager with built-in defaults, generated ids,
//     timestamps and schema-versioned persistence
//   - fetchcache: a last-known-good cache for remote calls with background
//     revalidation, request cancellation and polling
//
// This package holds the types shared between them.
package stash
