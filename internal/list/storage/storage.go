// Package storage defines persistence contracts for list state and the
// federation activity outbox.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/fedilist/fedilist/internal/list/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// ErrOrderConflict indicates the unique (list, position) index rejected a
// write. The per-list serialization discipline makes this structurally
// impossible; seeing it means an internal consistency bug, so callers must
// abort rather than retry.
var ErrOrderConflict = errors.New("ordering conflict")

// ListPage stores a page of lists.
type ListPage struct {
	Lists         []domain.List
	NextPageToken string
}

// ListStore persists list metadata records.
type ListStore interface {
	CreateList(ctx context.Context, list domain.List) error
	GetList(ctx context.Context, listID string) (domain.List, error)
	UpdateList(ctx context.Context, list domain.List) error
	ListLists(ctx context.Context, pageSize int, pageToken string) (ListPage, error)
}

// ItemStore persists list items and applies ordering rewrites. The three
// mutators that touch positions run in a single transaction each; the
// position arithmetic itself lives in the domain package.
type ItemStore interface {
	InsertItem(ctx context.Context, item domain.ListItem) error
	GetItem(ctx context.Context, listID, itemID string) (domain.ListItem, error)
	// ListItems returns all items of a list ordered by position, pending
	// included.
	ListItems(ctx context.Context, listID string) ([]domain.ListItem, error)
	// ApproveItem flips the approved flag; position is untouched.
	ApproveItem(ctx context.Context, listID, itemID string, updatedAt time.Time) error
	// DeleteItem removes the item and applies the compacted positions
	// atomically.
	DeleteItem(ctx context.Context, listID, itemID string, positions map[string]int) error
	// SetPositions applies a reposition's position changes atomically.
	SetPositions(ctx context.Context, listID string, positions map[string]int) error
}

// OutboxStatus tracks the delivery lifecycle of an outbox activity.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusLeased    OutboxStatus = "leased"
	OutboxStatusSucceeded OutboxStatus = "succeeded"
	OutboxStatusDead      OutboxStatus = "dead"
)

// OutboxActivity stores one serialized outbound activity awaiting delivery.
type OutboxActivity struct {
	ID             string
	ActivityType   string
	ActivityJSON   []byte
	Inboxes        []string
	DedupeKey      string
	Status         OutboxStatus
	AttemptCount   int
	NextAttemptAt  time.Time
	LeaseOwner     string
	LeaseExpiresAt *time.Time
	LastError      string
	ProcessedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OutboxStore persists outbound activities between mutation commit and
// asynchronous delivery.
type OutboxStore interface {
	EnqueueActivity(ctx context.Context, activity OutboxActivity) error
	GetActivity(ctx context.Context, id string) (OutboxActivity, error)
	// LeaseActivities leases due activities for one worker; expired leases
	// are reclaimable.
	LeaseActivities(ctx context.Context, consumer string, limit int, now time.Time, leaseTTL time.Duration) ([]OutboxActivity, error)
	MarkActivitySucceeded(ctx context.Context, id string, consumer string, processedAt time.Time) error
	MarkActivityRetry(ctx context.Context, id string, consumer string, nextAttemptAt time.Time, lastError string) error
	MarkActivityDead(ctx context.Context, id string, consumer string, lastError string, processedAt time.Time) error
}
