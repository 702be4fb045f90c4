package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fedilist/fedilist/internal/list/storage"
)

func testActivity(id string, now time.Time) storage.OutboxActivity {
	return storage.OutboxActivity{
		ID:            id,
		ActivityType:  "Add",
		ActivityJSON:  []byte(`{"type":"Add"}`),
		Inboxes:       []string{"https://remote.example/inbox"},
		DedupeKey:     "item.added:" + id,
		Status:        storage.OutboxStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestOutboxEnqueueLeaseAndAckSucceeded(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)

	activity := testActivity("act-1", now)
	if err := store.EnqueueActivity(context.Background(), activity); err != nil {
		t.Fatalf("enqueue activity: %v", err)
	}

	leased, err := store.LeaseActivities(context.Background(), "worker-1", 10, now, 5*time.Minute)
	if err != nil {
		t.Fatalf("lease activities: %v", err)
	}
	if len(leased) != 1 {
		t.Fatalf("leased len = %d, want 1", len(leased))
	}
	if leased[0].ID != activity.ID {
		t.Fatalf("leased id = %q, want %q", leased[0].ID, activity.ID)
	}
	if leased[0].Status != storage.OutboxStatusLeased {
		t.Fatalf("leased status = %q, want %q", leased[0].Status, storage.OutboxStatusLeased)
	}
	if leased[0].LeaseOwner != "worker-1" {
		t.Fatalf("lease owner = %q, want %q", leased[0].LeaseOwner, "worker-1")
	}
	if leased[0].LeaseExpiresAt == nil {
		t.Fatal("expected lease expiry")
	}
	if len(leased[0].Inboxes) != 1 || leased[0].Inboxes[0] != "https://remote.example/inbox" {
		t.Fatalf("unexpected inboxes: %v", leased[0].Inboxes)
	}

	// Wrong owner cannot ack.
	if err := store.MarkActivitySucceeded(context.Background(), activity.ID, "worker-2", now.Add(time.Minute)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong owner ack, got %v", err)
	}

	if err := store.MarkActivitySucceeded(context.Background(), activity.ID, "worker-1", now.Add(time.Minute)); err != nil {
		t.Fatalf("ack succeeded: %v", err)
	}

	updated, err := store.GetActivity(context.Background(), activity.ID)
	if err != nil {
		t.Fatalf("get activity: %v", err)
	}
	if updated.Status != storage.OutboxStatusSucceeded {
		t.Fatalf("status = %q, want %q", updated.Status, storage.OutboxStatusSucceeded)
	}
	if updated.LeaseOwner != "" {
		t.Fatalf("lease owner = %q, want empty", updated.LeaseOwner)
	}
	if updated.LeaseExpiresAt != nil {
		t.Fatalf("lease expiry = %v, want nil", updated.LeaseExpiresAt)
	}
	if updated.ProcessedAt == nil {
		t.Fatal("expected processed_at")
	}
}

func TestOutboxDedupeKeyDropsDuplicate(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 3, 12, 5, 0, 0, time.UTC)

	first := testActivity("act-1", now)
	if err := store.EnqueueActivity(context.Background(), first); err != nil {
		t.Fatalf("enqueue first: %v", err)
	}

	duplicate := testActivity("act-2", now)
	duplicate.DedupeKey = first.DedupeKey
	if err := store.EnqueueActivity(context.Background(), duplicate); err != nil {
		t.Fatalf("enqueue duplicate: %v", err)
	}

	if _, err := store.GetActivity(context.Background(), "act-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected duplicate to be dropped, got %v", err)
	}

	leased, err := store.LeaseActivities(context.Background(), "worker-1", 10, now, time.Minute)
	if err != nil {
		t.Fatalf("lease activities: %v", err)
	}
	if len(leased) != 1 {
		t.Fatalf("leased len = %d, want 1", len(leased))
	}
}

func TestOutboxEmptyDedupeKeysDoNotCollide(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 3, 12, 10, 0, 0, time.UTC)

	for _, id := range []string{"act-1", "act-2"} {
		activity := testActivity(id, now)
		activity.DedupeKey = ""
		if err := store.EnqueueActivity(context.Background(), activity); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	leased, err := store.LeaseActivities(context.Background(), "worker-1", 10, now, time.Minute)
	if err != nil {
		t.Fatalf("lease activities: %v", err)
	}
	if len(leased) != 2 {
		t.Fatalf("leased len = %d, want 2", len(leased))
	}
}

func TestOutboxLeaseRespectsExpiry(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 3, 12, 15, 0, 0, time.UTC)

	if err := store.EnqueueActivity(context.Background(), testActivity("act-1", now)); err != nil {
		t.Fatalf("enqueue activity: %v", err)
	}

	firstLease, err := store.LeaseActivities(context.Background(), "worker-1", 1, now, 10*time.Minute)
	if err != nil {
		t.Fatalf("lease activities: %v", err)
	}
	if len(firstLease) != 1 {
		t.Fatalf("first lease len = %d, want 1", len(firstLease))
	}

	// Not yet expired.
	secondLease, err := store.LeaseActivities(context.Background(), "worker-2", 1, now.Add(9*time.Minute), 10*time.Minute)
	if err != nil {
		t.Fatalf("second lease: %v", err)
	}
	if len(secondLease) != 0 {
		t.Fatalf("second lease len = %d, want 0", len(secondLease))
	}

	// Expired lease can be reclaimed.
	thirdLease, err := store.LeaseActivities(context.Background(), "worker-2", 1, now.Add(11*time.Minute), 10*time.Minute)
	if err != nil {
		t.Fatalf("third lease: %v", err)
	}
	if len(thirdLease) != 1 {
		t.Fatalf("third lease len = %d, want 1", len(thirdLease))
	}
	if thirdLease[0].LeaseOwner != "worker-2" {
		t.Fatalf("lease owner = %q, want %q", thirdLease[0].LeaseOwner, "worker-2")
	}
}

func TestOutboxRetryAndDead(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 3, 12, 20, 0, 0, time.UTC)

	if err := store.EnqueueActivity(context.Background(), testActivity("act-1", now)); err != nil {
		t.Fatalf("enqueue activity: %v", err)
	}

	leased, err := store.LeaseActivities(context.Background(), "worker-1", 1, now, time.Minute)
	if err != nil {
		t.Fatalf("lease activities: %v", err)
	}
	if len(leased) != 1 {
		t.Fatalf("leased len = %d, want 1", len(leased))
	}

	retryAt := now.Add(3 * time.Minute)
	if err := store.MarkActivityRetry(context.Background(), "act-1", "worker-1", retryAt, "inbox timeout"); err != nil {
		t.Fatalf("mark retry: %v", err)
	}

	afterRetry, err := store.GetActivity(context.Background(), "act-1")
	if err != nil {
		t.Fatalf("get activity: %v", err)
	}
	if afterRetry.Status != storage.OutboxStatusPending {
		t.Fatalf("status = %q, want %q", afterRetry.Status, storage.OutboxStatusPending)
	}
	if afterRetry.AttemptCount != 1 {
		t.Fatalf("attempt count = %d, want 1", afterRetry.AttemptCount)
	}
	if !afterRetry.NextAttemptAt.Equal(retryAt) {
		t.Fatalf("next attempt = %v, want %v", afterRetry.NextAttemptAt, retryAt)
	}
	if afterRetry.LastError != "inbox timeout" {
		t.Fatalf("last error = %q, want %q", afterRetry.LastError, "inbox timeout")
	}

	// Not due before the retry delay elapses.
	early, err := store.LeaseActivities(context.Background(), "worker-1", 1, now.Add(time.Minute), time.Minute)
	if err != nil {
		t.Fatalf("early lease: %v", err)
	}
	if len(early) != 0 {
		t.Fatalf("early lease len = %d, want 0", len(early))
	}

	due, err := store.LeaseActivities(context.Background(), "worker-1", 1, retryAt, time.Minute)
	if err != nil {
		t.Fatalf("due lease: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("due lease len = %d, want 1", len(due))
	}

	deadAt := retryAt.Add(time.Minute)
	if err := store.MarkActivityDead(context.Background(), "act-1", "worker-1", "inbox gone", deadAt); err != nil {
		t.Fatalf("mark dead: %v", err)
	}

	dead, err := store.GetActivity(context.Background(), "act-1")
	if err != nil {
		t.Fatalf("get activity: %v", err)
	}
	if dead.Status != storage.OutboxStatusDead {
		t.Fatalf("status = %q, want %q", dead.Status, storage.OutboxStatusDead)
	}
	if dead.AttemptCount != 2 {
		t.Fatalf("attempt count = %d, want 2", dead.AttemptCount)
	}
	if dead.ProcessedAt == nil {
		t.Fatal("expected processed_at")
	}

	// Dead activities are never leased again.
	none, err := store.LeaseActivities(context.Background(), "worker-1", 1, deadAt.Add(time.Hour), time.Minute)
	if err != nil {
		t.Fatalf("lease after dead: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("lease after dead len = %d, want 0", len(none))
	}
}
