package stash

import (
	"time"
)

// Entity is implemented by every record an entity collection manages.
type Entity interface {
	GetID() string
	GetMeta() EntityMeta
}

// EntityMeta is the bookkeeping every managed record carries next to its
// domain fields. The entity package owns its JSON encoding.
type EntityMeta struct {
	ID string
	// IsBuiltIn marks records shipped as defaults. They can never be deleted.
	IsBuiltIn bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m EntityMeta) GetID() string {
	return m.ID
}

func (m EntityMeta) GetMeta() EntityMeta {
	return m
}
