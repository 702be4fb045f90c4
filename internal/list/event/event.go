// Package event defines the domain events emitted by list operations.
//
// Events represent facts that have occurred, not commands/requests. They
// are consumed only by the federation publisher; repositioning emits no
// event because ordering is not part of the federated activity model.
package event

import "github.com/fedilist/fedilist/internal/list/domain"

// Type identifies the type of a list event.
type Type string

const (
	// TypeListCreated records the creation of a list.
	TypeListCreated Type = "list.created"
	// TypeListUpdated records updates to list metadata.
	TypeListUpdated Type = "list.updated"
	// TypeItemAdded records an item becoming visible on a list, either by
	// auto-approval at creation or by a moderation approval.
	TypeItemAdded Type = "item.added"
	// TypeItemRemoved records the removal of a previously visible item.
	TypeItemRemoved Type = "item.removed"
)

// Event is an in-process notification of a completed state transition.
type Event struct {
	// Type identifies the kind of event.
	Type Type
	// ActorID is the actor the outbound activity is attributed to: the
	// owner for list events, the contributor for item.added, and the
	// removing actor for item.removed.
	ActorID string
	// List is the list after the transition.
	List domain.List
	// Item is the affected item for item events; zero otherwise.
	Item domain.ListItem
}
