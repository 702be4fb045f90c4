// Package service implements the list aggregate's operations:
// authorization, curation gating, ordering maintenance, persistence, and
// domain-event emission.
package service

import (
	"context"
	stderrors "errors"
	"log"
	"strings"
	"time"

	"github.com/fedilist/fedilist/internal/errors"
	"github.com/fedilist/fedilist/internal/list/domain"
	"github.com/fedilist/fedilist/internal/list/event"
	"github.com/fedilist/fedilist/internal/list/storage"
	"github.com/fedilist/fedilist/internal/platform/id"
)

// EventPublisher receives domain events after the mutation has committed.
// A publish failure is logged, never surfaced: federation must not fail or
// roll back a local mutation.
type EventPublisher interface {
	Publish(ctx context.Context, evt event.Event) error
}

// Config carries the service collaborators.
type Config struct {
	Lists     storage.ListStore
	Items     storage.ItemStore
	Publisher EventPublisher
	// BaseIRI is the scheme+host prefix for minted global identifiers.
	BaseIRI string
	// Now and IDGenerator default to the real clock and generator.
	Now         func() time.Time
	IDGenerator func() (string, error)
	Logf        func(format string, args ...any)
}

// Service is the list aggregate entry point. All mutations of one list
// are serialized on a per-list lock; reads take no lock.
type Service struct {
	lists       storage.ListStore
	items       storage.ItemStore
	publisher   EventPublisher
	locks       *listLocks
	baseIRI     string
	now         func() time.Time
	idGenerator func() (string, error)
	logf        func(format string, args ...any)
}

// New wires a list service.
func New(cfg Config) (*Service, error) {
	if cfg.Lists == nil {
		return nil, errors.New(errors.CodeUnknown, "list store is required")
	}
	if cfg.Items == nil {
		return nil, errors.New(errors.CodeUnknown, "item store is required")
	}
	if cfg.Publisher == nil {
		return nil, errors.New(errors.CodeUnknown, "event publisher is required")
	}
	if strings.TrimSpace(cfg.BaseIRI) == "" {
		return nil, errors.New(errors.CodeUnknown, "base iri is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = id.NewID
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	return &Service{
		lists:       cfg.Lists,
		items:       cfg.Items,
		publisher:   cfg.Publisher,
		locks:       newListLocks(),
		baseIRI:     strings.TrimSpace(cfg.BaseIRI),
		now:         cfg.Now,
		idGenerator: cfg.IDGenerator,
		logf:        cfg.Logf,
	}, nil
}

// CreateListInput is the collaborator-facing create request.
type CreateListInput struct {
	Name        string
	Description string
	Privacy     domain.Privacy
	Curation    domain.Curation
}

// CreateList creates a list owned by the acting user.
func (s *Service) CreateList(ctx context.Context, actorID string, input CreateListInput) (domain.List, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return domain.List{}, errors.New(errors.CodeUnauthorized, "an authenticated actor is required")
	}

	list, err := domain.CreateList(domain.CreateListInput{
		Name:        input.Name,
		Description: input.Description,
		OwnerID:     actorID,
		Privacy:     input.Privacy,
		Curation:    input.Curation,
		BaseIRI:     s.baseIRI,
	}, s.now, s.idGenerator)
	if err != nil {
		return domain.List{}, err
	}

	if err := s.lists.CreateList(ctx, list); err != nil {
		return domain.List{}, mapStorageError("create list", err)
	}

	s.publish(ctx, event.Event{Type: event.TypeListCreated, ActorID: actorID, List: list})
	return list, nil
}

// UpdateList edits list metadata. Only the owner may edit.
func (s *Service) UpdateList(ctx context.Context, actorID, listID string, input domain.UpdateListInput) (domain.List, error) {
	unlock := s.locks.acquire(listID)
	defer unlock()

	list, err := s.ownedList(ctx, actorID, listID)
	if err != nil {
		return domain.List{}, err
	}

	updated, err := list.ApplyUpdate(input, s.now)
	if err != nil {
		return domain.List{}, err
	}
	if err := s.lists.UpdateList(ctx, updated); err != nil {
		return domain.List{}, mapStorageError("update list", err)
	}

	s.publish(ctx, event.Event{Type: event.TypeListUpdated, ActorID: actorID, List: updated})
	return updated, nil
}

// AddItem appends a contribution to the list. The curation table decides
// whether the item is immediately approved, held pending, or rejected
// before any mutation.
func (s *Service) AddItem(ctx context.Context, actorID, listID, resourceIRI string) (domain.ListItem, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return domain.ListItem{}, errors.New(errors.CodeUnauthorized, "an authenticated actor is required")
	}

	unlock := s.locks.acquire(listID)
	defer unlock()

	list, err := s.getList(ctx, listID)
	if err != nil {
		return domain.ListItem{}, err
	}

	decision := domain.Decide(list.Curation, actorID == list.OwnerID)
	if decision == domain.DecisionReject {
		return domain.ListItem{}, errors.New(errors.CodeContributionNotPermitted, "list does not accept contributions from this actor")
	}

	items, err := s.items.ListItems(ctx, list.ID)
	if err != nil {
		return domain.ListItem{}, mapStorageError("list items", err)
	}

	item, err := list.CreateItem(domain.CreateItemInput{
		ResourceIRI:   resourceIRI,
		ContributorID: actorID,
		Position:      domain.NextPosition(items),
		Approved:      decision == domain.DecisionApprove,
	}, s.now, s.idGenerator)
	if err != nil {
		return domain.ListItem{}, err
	}
	if err := s.items.InsertItem(ctx, item); err != nil {
		return domain.ListItem{}, mapStorageError("insert item", err)
	}

	// A pending item is not announced; its Add federates at approval.
	if item.Approved {
		s.publish(ctx, event.Event{Type: event.TypeItemAdded, ActorID: actorID, List: list, Item: item})
	}
	return item, nil
}

// RemoveItem deletes an item and compacts the remaining positions. The
// owner may remove any item; a contributor may remove only their own.
func (s *Service) RemoveItem(ctx context.Context, actorID, listID, itemID string) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return errors.New(errors.CodeUnauthorized, "an authenticated actor is required")
	}

	unlock := s.locks.acquire(listID)
	defer unlock()

	list, err := s.getList(ctx, listID)
	if err != nil {
		return err
	}
	item, err := s.getItem(ctx, listID, itemID)
	if err != nil {
		return err
	}
	if actorID != list.OwnerID && actorID != item.ContributorID {
		return errors.New(errors.CodeUnauthorized, "only the owner or the contributor may remove an item")
	}

	items, err := s.items.ListItems(ctx, list.ID)
	if err != nil {
		return mapStorageError("list items", err)
	}
	positions, err := domain.CompactAfterRemove(items, item.ID)
	if err != nil {
		return err
	}
	if err := s.items.DeleteItem(ctx, list.ID, item.ID, positions); err != nil {
		return mapStorageError("delete item", err)
	}

	// Items that were never announced get no Remove.
	if item.Approved {
		s.publish(ctx, event.Event{Type: event.TypeItemRemoved, ActorID: actorID, List: list, Item: item})
	}
	return nil
}

// RepositionItem moves an item to a target position, shifting the
// intervening items by one. Ordering is local state; nothing federates.
func (s *Service) RepositionItem(ctx context.Context, actorID, listID, itemID string, target int) error {
	unlock := s.locks.acquire(listID)
	defer unlock()

	list, err := s.ownedList(ctx, actorID, listID)
	if err != nil {
		return err
	}
	items, err := s.items.ListItems(ctx, list.ID)
	if err != nil {
		return mapStorageError("list items", err)
	}
	positions, err := domain.Reposition(items, strings.TrimSpace(itemID), target)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return nil
	}
	if err := s.items.SetPositions(ctx, list.ID, positions); err != nil {
		return mapStorageError("set positions", err)
	}
	return nil
}

// ModerateItem resolves a pending contribution. Approval keeps the item's
// position and announces it; rejection deletes it silently. Approving an
// already-approved item is a no-op so the announcement happens exactly
// once.
func (s *Service) ModerateItem(ctx context.Context, actorID, listID, itemID string, approve bool) (domain.ListItem, error) {
	unlock := s.locks.acquire(listID)
	defer unlock()

	list, err := s.ownedList(ctx, actorID, listID)
	if err != nil {
		return domain.ListItem{}, err
	}
	item, err := s.getItem(ctx, listID, itemID)
	if err != nil {
		return domain.ListItem{}, err
	}

	if item.Approved {
		if approve {
			return item, nil
		}
		return domain.ListItem{}, errors.New(errors.CodeNotFound, "no pending contribution to reject")
	}

	if !approve {
		items, listErr := s.items.ListItems(ctx, list.ID)
		if listErr != nil {
			return domain.ListItem{}, mapStorageError("list items", listErr)
		}
		positions, compactErr := domain.CompactAfterRemove(items, item.ID)
		if compactErr != nil {
			return domain.ListItem{}, compactErr
		}
		if err := s.items.DeleteItem(ctx, list.ID, item.ID, positions); err != nil {
			return domain.ListItem{}, mapStorageError("delete item", err)
		}
		return domain.ListItem{}, nil
	}

	approvedAt := s.now().UTC()
	if err := s.items.ApproveItem(ctx, list.ID, item.ID, approvedAt); err != nil {
		return domain.ListItem{}, mapStorageError("approve item", err)
	}
	item.Approved = true
	item.UpdatedAt = approvedAt

	// The announcement is attributed to the contributor, not the moderator.
	s.publish(ctx, event.Event{Type: event.TypeItemAdded, ActorID: item.ContributorID, List: list, Item: item})
	return item, nil
}

// GetList returns the list and its ordered items. Pending items are
// visible only to the owner.
func (s *Service) GetList(ctx context.Context, actorID, listID string) (domain.List, []domain.ListItem, error) {
	list, err := s.getList(ctx, listID)
	if err != nil {
		return domain.List{}, nil, err
	}
	items, err := s.items.ListItems(ctx, list.ID)
	if err != nil {
		return domain.List{}, nil, mapStorageError("list items", err)
	}
	if strings.TrimSpace(actorID) == list.OwnerID {
		return list, items, nil
	}
	visible := make([]domain.ListItem, 0, len(items))
	for _, item := range items {
		if item.Approved {
			visible = append(visible, item)
		}
	}
	return list, visible, nil
}

// ListPending returns the pending contributions awaiting moderation.
// Owner only.
func (s *Service) ListPending(ctx context.Context, actorID, listID string) ([]domain.ListItem, error) {
	list, err := s.ownedList(ctx, actorID, listID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.ListItems(ctx, list.ID)
	if err != nil {
		return nil, mapStorageError("list items", err)
	}
	pending := make([]domain.ListItem, 0)
	for _, item := range items {
		if !item.Approved {
			pending = append(pending, item)
		}
	}
	return pending, nil
}

// ListLists returns one page of lists.
func (s *Service) ListLists(ctx context.Context, pageSize int, pageToken string) (storage.ListPage, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	page, err := s.lists.ListLists(ctx, pageSize, pageToken)
	if err != nil {
		return storage.ListPage{}, mapStorageError("list lists", err)
	}
	return page, nil
}

func (s *Service) getList(ctx context.Context, listID string) (domain.List, error) {
	list, err := s.lists.GetList(ctx, strings.TrimSpace(listID))
	if err != nil {
		return domain.List{}, mapStorageError("get list", err)
	}
	return list, nil
}

func (s *Service) getItem(ctx context.Context, listID, itemID string) (domain.ListItem, error) {
	item, err := s.items.GetItem(ctx, strings.TrimSpace(listID), strings.TrimSpace(itemID))
	if err != nil {
		return domain.ListItem{}, mapStorageError("get item", err)
	}
	return item, nil
}

// ownedList loads the list and requires the actor to be its owner.
func (s *Service) ownedList(ctx context.Context, actorID, listID string) (domain.List, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return domain.List{}, errors.New(errors.CodeUnauthorized, "an authenticated actor is required")
	}
	list, err := s.getList(ctx, listID)
	if err != nil {
		return domain.List{}, err
	}
	if list.OwnerID != actorID {
		return domain.List{}, errors.New(errors.CodeUnauthorized, "only the list owner may perform this operation")
	}
	return list, nil
}

func (s *Service) publish(ctx context.Context, evt event.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logf("publish %s event list=%s: %v", evt.Type, evt.List.ID, err)
	}
}

func mapStorageError(op string, err error) error {
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		return errors.Wrap(errors.CodeNotFound, op, err)
	case stderrors.Is(err, storage.ErrAlreadyExists):
		return errors.Wrap(errors.CodeAlreadyExists, op, err)
	case stderrors.Is(err, storage.ErrOrderConflict):
		return errors.Wrap(errors.CodeOrderingConflict, op, err)
	default:
		return errors.Wrap(errors.CodeUnknown, op, err)
	}
}
