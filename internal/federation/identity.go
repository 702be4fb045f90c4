package federation

import (
	"context"
	"fmt"
	"strings"
)

// IdentityProvider resolves local actor identifiers to federation
// addressing material: the actor IRI the activity is attributed to, the
// followers collection IRI used for audience fields, and the remote
// inboxes the activity should be delivered to.
type IdentityProvider interface {
	ActorIRI(ctx context.Context, actorID string) (string, error)
	FollowersIRI(ctx context.Context, actorID string) (string, error)
	FollowerInboxes(ctx context.Context, actorID string) ([]string, error)
}

// Directory is an IdentityProvider that derives actor and followers IRIs
// from the instance base IRI and delivers to a fixed set of peer inboxes.
// A relay-style setup is enough here because follower state lives outside
// this service.
type Directory struct {
	baseIRI     string
	peerInboxes []string
}

// NewDirectory builds a Directory rooted at baseIRI.
func NewDirectory(baseIRI string, peerInboxes []string) (*Directory, error) {
	baseIRI = strings.TrimRight(strings.TrimSpace(baseIRI), "/")
	if baseIRI == "" {
		return nil, fmt.Errorf("base iri is required")
	}
	inboxes := make([]string, 0, len(peerInboxes))
	for _, inbox := range peerInboxes {
		inbox = strings.TrimSpace(inbox)
		if inbox == "" {
			continue
		}
		inboxes = append(inboxes, inbox)
	}
	return &Directory{baseIRI: baseIRI, peerInboxes: inboxes}, nil
}

func (d *Directory) ActorIRI(ctx context.Context, actorID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return "", fmt.Errorf("actor id is required")
	}
	return d.baseIRI + "/user/" + actorID, nil
}

func (d *Directory) FollowersIRI(ctx context.Context, actorID string) (string, error) {
	actorIRI, err := d.ActorIRI(ctx, actorID)
	if err != nil {
		return "", err
	}
	return actorIRI + "/followers", nil
}

func (d *Directory) FollowerInboxes(ctx context.Context, actorID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(actorID) == "" {
		return nil, fmt.Errorf("actor id is required")
	}
	inboxes := make([]string, len(d.peerInboxes))
	copy(inboxes, d.peerInboxes)
	return inboxes, nil
}

var _ IdentityProvider = (*Directory)(nil)
