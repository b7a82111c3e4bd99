package kvbadger

import (
	"bytes"
	"fmt"
)

// Key encoding for BadgerDB.
// Key format: [keyPrefix][key]
//
// The fixed prefix keeps stash data apart from anything else sharing the
// database directory and lets Keys iterate only stash entries.
const keyPrefix = "stash/"

func encodeKey(key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}
	var buf bytes.Buffer
	buf.Grow(len(keyPrefix) + len(key))
	buf.WriteString(keyPrefix)
	buf.WriteString(key)
	return buf.Bytes(), nil
}

func decodeKey(raw []byte) (string, bool) {
	if !bytes.HasPrefix(raw, []byte(keyPrefix)) {
		return "", false
	}
	return string(raw[len(keyPrefix):]), true
}
