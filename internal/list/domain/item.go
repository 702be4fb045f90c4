package domain

import (
	"strings"
	"time"

	"github.com/fedilist/fedilist/internal/errors"
	"github.com/fedilist/fedilist/internal/platform/id"
)

// ListItem is a single contributed entry in a list, carrying approval
// state and a 1-based position that is unique and contiguous within the
// list across approved and pending items alike.
type ListItem struct {
	ID            string
	RemoteID      string
	ListID        string
	ResourceIRI   string
	ContributorID string
	Position      int
	Approved      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateItemInput describes a contribution attempt.
type CreateItemInput struct {
	ResourceIRI   string
	ContributorID string
	Position      int
	Approved      bool
}

// CreateItem creates a list item for the given list with a generated ID
// and a stable remote ID derived from the list's.
func (l List) CreateItem(input CreateItemInput, now func() time.Time, idGenerator func() (string, error)) (ListItem, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.ResourceIRI = strings.TrimSpace(input.ResourceIRI)
	input.ContributorID = strings.TrimSpace(input.ContributorID)
	if input.ResourceIRI == "" {
		return ListItem{}, errors.New(errors.CodeItemEmptyResource, "item resource is required")
	}
	if l.ID == "" {
		return ListItem{}, errors.New(errors.CodeItemEmptyListID, "item list is required")
	}

	itemID, err := idGenerator()
	if err != nil {
		return ListItem{}, errors.Wrap(errors.CodeUnknown, "generate item id", err)
	}

	createdAt := now().UTC()
	return ListItem{
		ID:            itemID,
		RemoteID:      l.RemoteID + "/item/" + itemID,
		ListID:        l.ID,
		ResourceIRI:   input.ResourceIRI,
		ContributorID: input.ContributorID,
		Position:      input.Position,
		Approved:      input.Approved,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}, nil
}
