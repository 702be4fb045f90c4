// Package federation turns list domain events into outbound
// ActivityStreams activities and delivers them to remote inboxes.
package federation

import (
	"encoding/json"
	"fmt"
)

// ActivityContext is the JSON-LD context of every outbound activity.
const ActivityContext = "https://www.w3.org/ns/activitystreams"

// PublicAudience is the well-known public collection IRI.
const PublicAudience = "https://www.w3.org/ns/activitystreams#Public"

// Activity types emitted by the publisher.
const (
	ActivityCreate = "Create"
	ActivityUpdate = "Update"
	ActivityAdd    = "Add"
	ActivityRemove = "Remove"
)

// Activity is one outbound ActivityStreams activity. Object is either an
// embedded object (list or item) or a bare IRI reference for removals.
type Activity struct {
	Context string   `json:"@context"`
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Actor   string   `json:"actor"`
	Object  any      `json:"object"`
	Target  string   `json:"target,omitempty"`
	To      []string `json:"to,omitempty"`
	CC      []string `json:"cc,omitempty"`
}

// ListObject is the serialized form of a list, used as the object of
// Create and Update activities and as the target reference for item
// activities.
type ListObject struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Name         string `json:"name"`
	Summary      string `json:"summary,omitempty"`
	AttributedTo string `json:"attributedTo"`
}

// ItemObject is the serialized form of a list entry, used as the object
// of Add activities.
type ItemObject struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Actor  string `json:"actor"`
	Object string `json:"object"`
	Target string `json:"target"`
}

// ObjectRef is a bare object reference, used by Remove activities where
// the full entry no longer exists locally.
type ObjectRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Marshal serializes the activity for the outbox.
func (a Activity) Marshal() ([]byte, error) {
	if a.Context == "" {
		a.Context = ActivityContext
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal %s activity: %w", a.Type, err)
	}
	return payload, nil
}
