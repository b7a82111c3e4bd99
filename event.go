package stash

import "time"

// EventType names what happened to a collection.
type EventType string

const (
	EventEntityAdded      EventType = "entity.added"
	EventEntityUpdated    EventType = "entity.updated"
	EventEntityDeleted    EventType = "entity.deleted"
	EventCollectionSeeded EventType = "collection.seeded"
	EventCollectionReset  EventType = "collection.reset"
)

// ChangeEvent is emitted after a mutation has been written to the store.
// Subscribers typically use it to re-render whatever shows the collection.
type ChangeEvent struct {
	Type EventType
	// Collection is the store key of the collection.
	Collection string
	// EntityID is empty for collection-level events.
	EntityID string
	At       time.Time
}
