package federation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fedilist/fedilist/internal/list/domain"
	"github.com/fedilist/fedilist/internal/list/event"
	"github.com/fedilist/fedilist/internal/list/storage"
)

// Publisher builds at most one activity per domain event and enqueues it
// for asynchronous delivery. Enqueueing happens after the mutation has
// committed, so a publish failure never rolls back list state.
type Publisher struct {
	outbox      storage.OutboxStore
	identity    IdentityProvider
	now         func() time.Time
	idGenerator func() (string, error)
}

// NewPublisher wires a publisher against an outbox and identity source.
func NewPublisher(outbox storage.OutboxStore, identity IdentityProvider, now func() time.Time, idGenerator func() (string, error)) (*Publisher, error) {
	if outbox == nil {
		return nil, fmt.Errorf("outbox store is required")
	}
	if identity == nil {
		return nil, fmt.Errorf("identity provider is required")
	}
	if now == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if idGenerator == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	return &Publisher{outbox: outbox, identity: identity, now: now, idGenerator: idGenerator}, nil
}

// Publish converts one domain event into an outbox activity. Direct lists
// federate nothing; the event is swallowed without an enqueue.
func (p *Publisher) Publish(ctx context.Context, evt event.Event) error {
	if p == nil {
		return fmt.Errorf("publisher is not configured")
	}
	if evt.List.Privacy == domain.PrivacyDirect {
		return nil
	}

	actorIRI, err := p.identity.ActorIRI(ctx, evt.ActorID)
	if err != nil {
		return fmt.Errorf("resolve actor iri: %w", err)
	}
	ownerIRI, err := p.identity.ActorIRI(ctx, evt.List.OwnerID)
	if err != nil {
		return fmt.Errorf("resolve owner iri: %w", err)
	}
	followersIRI, err := p.identity.FollowersIRI(ctx, evt.List.OwnerID)
	if err != nil {
		return fmt.Errorf("resolve followers iri: %w", err)
	}

	activity := Activity{Context: ActivityContext, Actor: actorIRI}
	activity.To, activity.CC = audience(evt.List.Privacy, followersIRI)

	var dedupeKey string
	switch evt.Type {
	case event.TypeListCreated:
		activity.Type = ActivityCreate
		activity.ID = evt.List.RemoteID + "#create"
		activity.Object = listObject(evt.List, ownerIRI)
		dedupeKey = "list.created:" + evt.List.ID
	case event.TypeListUpdated:
		millis := strconv.FormatInt(evt.List.UpdatedAt.UTC().UnixMilli(), 10)
		activity.Type = ActivityUpdate
		activity.ID = evt.List.RemoteID + "#update-" + millis
		activity.Object = listObject(evt.List, ownerIRI)
		dedupeKey = "list.updated:" + evt.List.ID + ":" + millis
	case event.TypeItemAdded:
		activity.Type = ActivityAdd
		activity.ID = evt.Item.RemoteID + "#add"
		activity.Target = evt.List.RemoteID
		activity.Object = ItemObject{
			ID:     evt.Item.RemoteID,
			Type:   "ListItem",
			Actor:  actorIRI,
			Object: evt.Item.ResourceIRI,
			Target: evt.List.RemoteID,
		}
		dedupeKey = "item.added:" + evt.Item.ID
	case event.TypeItemRemoved:
		activity.Type = ActivityRemove
		activity.ID = evt.Item.RemoteID + "#remove"
		activity.Target = evt.List.RemoteID
		activity.Object = ObjectRef{ID: evt.Item.RemoteID, Type: "ListItem"}
		dedupeKey = "item.removed:" + evt.Item.ID
	default:
		return fmt.Errorf("unsupported event type %q", evt.Type)
	}

	payload, err := activity.Marshal()
	if err != nil {
		return err
	}
	inboxes, err := p.identity.FollowerInboxes(ctx, evt.List.OwnerID)
	if err != nil {
		return fmt.Errorf("resolve follower inboxes: %w", err)
	}
	rowID, err := p.idGenerator()
	if err != nil {
		return fmt.Errorf("generate outbox id: %w", err)
	}

	now := p.now().UTC()
	if err := p.outbox.EnqueueActivity(ctx, storage.OutboxActivity{
		ID:            rowID,
		ActivityType:  activity.Type,
		ActivityJSON:  payload,
		Inboxes:       inboxes,
		DedupeKey:     dedupeKey,
		Status:        storage.OutboxStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}); err != nil {
		return fmt.Errorf("enqueue %s activity: %w", activity.Type, err)
	}
	return nil
}

// audience maps list privacy to ActivityStreams to/cc addressing.
func audience(privacy domain.Privacy, followersIRI string) (to []string, cc []string) {
	switch privacy {
	case domain.PrivacyPublic:
		return []string{PublicAudience}, []string{followersIRI}
	case domain.PrivacyUnlisted:
		return []string{followersIRI}, []string{PublicAudience}
	case domain.PrivacyFollowers:
		return []string{followersIRI}, nil
	default:
		return nil, nil
	}
}

func listObject(list domain.List, ownerIRI string) ListObject {
	return ListObject{
		ID:           list.RemoteID,
		Type:         "OrderedCollection",
		Name:         list.Name,
		Summary:      list.Description,
		AttributedTo: ownerIRI,
	}
}
