// Package entity manages a named collection of records inside a kv.Store.
//
// A Manager reads the whole collection from one key, merges it with a static
// list of built-in records, and writes the whole collection back on every
// mutation. Records carry a generated id and creation/update timestamps next
// to their domain fields F.
package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/acksell/stash"
)

var (
	// ErrNotFound is returned when updating an id that is not stored.
	ErrNotFound = errors.New("entity: not found")
	// ErrBuiltIn is returned when mutating a built-in record.
	ErrBuiltIn = errors.New("entity: built-in entities cannot be modified")
	// ErrInvalidPatch wraps the error of a patch that failed validation.
	ErrInvalidPatch = errors.New("entity: invalid patch")
	// ErrDuplicateID is returned for clashing built-in ids and when the id
	// generator keeps producing ids already in use.
	ErrDuplicateID = errors.New("entity: duplicate id")
	// ErrUnsupportedVersion is returned for blobs written by a newer schema.
	ErrUnsupportedVersion = errors.New("entity: unsupported schema version")
)

// TimeFormat is the persisted timestamp layout: ISO-8601 in UTC with
// millisecond precision, e.g. 2024-01-01T00:00:00.000Z.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Entity is one record of a collection. Its JSON form is a single flat object
// holding the metadata keys (id, isBuiltIn, createdAt, updatedAt) next to the
// keys of F, so F must encode as a JSON object.
type Entity[F any] struct {
	stash.EntityMeta
	Fields F
}

var _ stash.Entity = Entity[struct{}]{}

// BuiltIn declares a default record. Timestamps are assigned when the
// collection is seeded.
func BuiltIn[F any](id string, fields F) Entity[F] {
	return Entity[F]{
		EntityMeta: stash.EntityMeta{ID: id, IsBuiltIn: true},
		Fields:     fields,
	}
}

// Validator is implemented by field types that can check their own
// invariants. The manager calls IsValid before every write.
type Validator interface {
	IsValid() error
}

func validate(fields any) error {
	if v, ok := fields.(Validator); ok {
		return v.IsValid()
	}
	return nil
}

type wireMeta struct {
	ID        string `json:"id"`
	IsBuiltIn bool   `json:"isBuiltIn"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeFormat)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func (e Entity[F]) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(e.Fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	doc := map[string]json.RawMessage{}
	if string(raw) != "null" {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("fields of %q must encode as a JSON object: %w", e.ID, err)
		}
	}

	meta := map[string]any{
		"id":        e.ID,
		"isBuiltIn": e.IsBuiltIn,
		"createdAt": formatTime(e.CreatedAt),
		"updatedAt": formatTime(e.UpdatedAt),
	}
	for k, v := range meta {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		doc[k] = b
	}
	return json.Marshal(doc)
}

func (e *Entity[F]) UnmarshalJSON(data []byte) error {
	var meta wireMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("unmarshal entity metadata: %w", err)
	}
	created, err := parseTime(meta.CreatedAt)
	if err != nil {
		return fmt.Errorf("entity %q createdAt: %w", meta.ID, err)
	}
	updated, err := parseTime(meta.UpdatedAt)
	if err != nil {
		return fmt.Errorf("entity %q updatedAt: %w", meta.ID, err)
	}

	var fields F
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("unmarshal entity %q fields: %w", meta.ID, err)
	}

	*e = Entity[F]{
		EntityMeta: stash.EntityMeta{
			ID:        meta.ID,
			IsBuiltIn: meta.IsBuiltIn,
			CreatedAt: created,
			UpdatedAt: updated,
		},
		Fields: fields,
	}
	return nil
}
