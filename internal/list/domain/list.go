// Package domain holds the list aggregate's entities and pure rules:
// list and item metadata, the curation decision table, and the
// contiguous-ordering arithmetic.
package domain

import (
	"strings"
	"time"

	"github.com/fedilist/fedilist/internal/errors"
	"github.com/fedilist/fedilist/internal/platform/id"
)

// Privacy controls the federated audience of a list.
type Privacy string

const (
	// PrivacyPublic addresses the public collection plus the owner's followers.
	PrivacyPublic Privacy = "public"
	// PrivacyUnlisted delivers like public but is not discoverable.
	PrivacyUnlisted Privacy = "unlisted"
	// PrivacyFollowers addresses the owner's followers only.
	PrivacyFollowers Privacy = "followers"
	// PrivacyDirect disables broadcast entirely.
	PrivacyDirect Privacy = "direct"
)

// IsValid reports whether the privacy value is one of the known modes.
func (p Privacy) IsValid() bool {
	switch p {
	case PrivacyPublic, PrivacyUnlisted, PrivacyFollowers, PrivacyDirect:
		return true
	}
	return false
}

// Curation controls whether non-owner contributions are rejected, held
// for moderation, or auto-approved.
type Curation string

const (
	// CurationClosed rejects all non-owner contributions.
	CurationClosed Curation = "closed"
	// CurationCurated holds non-owner contributions for moderation.
	CurationCurated Curation = "curated"
	// CurationOpen auto-approves all contributions.
	CurationOpen Curation = "open"
)

// IsValid reports whether the curation value is one of the known modes.
func (c Curation) IsValid() bool {
	switch c {
	case CurationClosed, CurationCurated, CurationOpen:
		return true
	}
	return false
}

// List represents an owned, ordered collection of curated resource references.
type List struct {
	ID          string
	RemoteID    string
	Name        string
	Description string
	OwnerID     string
	Privacy     Privacy
	Curation    Curation
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateListInput describes the metadata needed to create a list.
type CreateListInput struct {
	Name        string
	Description string
	OwnerID     string
	Privacy     Privacy
	Curation    Curation
	// BaseIRI is the scheme+host prefix used to mint the list's stable
	// global identifier, e.g. "https://example.com".
	BaseIRI string
}

// CreateList creates a new list with a generated ID, stable remote ID,
// and timestamps.
func CreateList(input CreateListInput, now func() time.Time, idGenerator func() (string, error)) (List, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateListInput(input)
	if err != nil {
		return List{}, err
	}

	listID, err := idGenerator()
	if err != nil {
		return List{}, errors.Wrap(errors.CodeUnknown, "generate list id", err)
	}

	createdAt := now().UTC()
	return List{
		ID:          listID,
		RemoteID:    strings.TrimRight(normalized.BaseIRI, "/") + "/list/" + listID,
		Name:        normalized.Name,
		Description: normalized.Description,
		OwnerID:     normalized.OwnerID,
		Privacy:     normalized.Privacy,
		Curation:    normalized.Curation,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

// NormalizeCreateListInput trims and validates list input metadata.
func NormalizeCreateListInput(input CreateListInput) (CreateListInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.OwnerID = strings.TrimSpace(input.OwnerID)
	if input.Name == "" {
		return CreateListInput{}, errors.New(errors.CodeListNameEmpty, "list name is required")
	}
	if input.OwnerID == "" {
		return CreateListInput{}, errors.New(errors.CodeListEmptyOwnerID, "list owner is required")
	}
	if input.Privacy == "" {
		input.Privacy = PrivacyPublic
	}
	if !input.Privacy.IsValid() {
		return CreateListInput{}, errors.Newf(errors.CodeListInvalidPrivacy, "invalid privacy %q", input.Privacy)
	}
	if input.Curation == "" {
		input.Curation = CurationClosed
	}
	if !input.Curation.IsValid() {
		return CreateListInput{}, errors.Newf(errors.CodeListInvalidCuration, "invalid curation %q", input.Curation)
	}
	return input, nil
}

// UpdateListInput describes an owner's metadata edit.
type UpdateListInput struct {
	Name        string
	Description string
	Privacy     Privacy
	Curation    Curation
}

// ApplyUpdate validates the edit and returns the updated list. Privacy and
// curation are independently settable; identity fields never change.
func (l List) ApplyUpdate(input UpdateListInput, now func() time.Time) (List, error) {
	if now == nil {
		now = time.Now
	}
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return List{}, errors.New(errors.CodeListNameEmpty, "list name is required")
	}
	if !input.Privacy.IsValid() {
		return List{}, errors.Newf(errors.CodeListInvalidPrivacy, "invalid privacy %q", input.Privacy)
	}
	if !input.Curation.IsValid() {
		return List{}, errors.Newf(errors.CodeListInvalidCuration, "invalid curation %q", input.Curation)
	}
	l.Name = input.Name
	l.Description = strings.TrimSpace(input.Description)
	l.Privacy = input.Privacy
	l.Curation = input.Curation
	l.UpdatedAt = now().UTC()
	return l, nil
}
