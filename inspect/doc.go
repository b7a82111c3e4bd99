// Package inspect serves a local debugging API over a kv.Store.
//
// It lets users:
//   - List, read, write and delete raw keys
//   - Browse and edit the snippet collection
//
// # Usage
//
// Start it from the CLI:
//
//	stash serve --port 8080
//
// With the default badger backend the data lives under --data-dir; pass
// --backend memory for a throwaway store:
//
//	stash serve --backend memory
package inspect
