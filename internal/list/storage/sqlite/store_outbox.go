package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fedilist/fedilist/internal/list/storage"
)

const outboxColumns = `
	id,
	activity_type,
	activity_json,
	inboxes_json,
	dedupe_key,
	status,
	attempt_count,
	next_attempt_at,
	lease_owner,
	lease_expires_at,
	last_error,
	processed_at,
	created_at,
	updated_at`

// EnqueueActivity inserts one outbound activity; a duplicate dedupe key is
// silently dropped so retransmitted domain events stay idempotent.
func (s *Store) EnqueueActivity(ctx context.Context, activity storage.OutboxActivity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	activity.ID = strings.TrimSpace(activity.ID)
	activity.ActivityType = strings.TrimSpace(activity.ActivityType)
	activity.DedupeKey = strings.TrimSpace(activity.DedupeKey)
	if activity.ID == "" {
		return fmt.Errorf("activity id is required")
	}
	if activity.ActivityType == "" {
		return fmt.Errorf("activity type is required")
	}
	if len(activity.ActivityJSON) == 0 {
		return fmt.Errorf("activity payload is required")
	}
	if activity.Status == "" {
		activity.Status = storage.OutboxStatusPending
	}
	now := time.Now().UTC()
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = now
	}
	if activity.UpdatedAt.IsZero() {
		activity.UpdatedAt = activity.CreatedAt
	}
	if activity.NextAttemptAt.IsZero() {
		activity.NextAttemptAt = activity.CreatedAt
	}

	inboxes := activity.Inboxes
	if inboxes == nil {
		inboxes = []string{}
	}
	inboxesJSON, err := json.Marshal(inboxes)
	if err != nil {
		return fmt.Errorf("marshal inboxes: %w", err)
	}

	var leaseExpiresAt sql.NullInt64
	if activity.LeaseExpiresAt != nil {
		leaseExpiresAt = sql.NullInt64{Int64: toMillis(*activity.LeaseExpiresAt), Valid: true}
	}
	var processedAt sql.NullInt64
	if activity.ProcessedAt != nil {
		processedAt = sql.NullInt64{Int64: toMillis(*activity.ProcessedAt), Valid: true}
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO activity_outbox (`+outboxColumns+`
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(dedupe_key) WHERE dedupe_key <> '' DO NOTHING
`,
		activity.ID,
		activity.ActivityType,
		activity.ActivityJSON,
		string(inboxesJSON),
		activity.DedupeKey,
		string(activity.Status),
		activity.AttemptCount,
		toMillis(activity.NextAttemptAt),
		activity.LeaseOwner,
		leaseExpiresAt,
		activity.LastError,
		processedAt,
		toMillis(activity.CreatedAt),
		toMillis(activity.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("enqueue activity: %w", err)
	}
	return nil
}

// GetActivity returns one outbox activity by ID.
func (s *Store) GetActivity(ctx context.Context, id string) (storage.OutboxActivity, error) {
	if err := ctx.Err(); err != nil {
		return storage.OutboxActivity{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.OutboxActivity{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.OutboxActivity{}, fmt.Errorf("activity id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT`+outboxColumns+`
FROM activity_outbox
WHERE id = ?
`, id)
	activity, err := scanOutboxActivity(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.OutboxActivity{}, storage.ErrNotFound
		}
		return storage.OutboxActivity{}, fmt.Errorf("get activity: %w", err)
	}
	return activity, nil
}

// LeaseActivities leases due outbox activities for one worker. Pending
// activities whose next attempt is due and leased activities whose lease
// expired are both candidates.
func (s *Store) LeaseActivities(ctx context.Context, consumer string, limit int, now time.Time, leaseTTL time.Duration) ([]storage.OutboxActivity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return nil, fmt.Errorf("consumer is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	if leaseTTL <= 0 {
		return nil, fmt.Errorf("lease ttl must be greater than zero")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	now = now.UTC()
	leaseExpiresAt := now.Add(leaseTTL)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("start lease transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
SELECT id
FROM activity_outbox
WHERE (
	(status = ? AND next_attempt_at <= ?)
	OR
	(status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?)
)
ORDER BY next_attempt_at ASC, created_at ASC, id ASC
LIMIT ?
`,
		storage.OutboxStatusPending,
		toMillis(now),
		storage.OutboxStatusLeased,
		toMillis(now),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select lease candidates: %w", err)
	}
	candidateIDs := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan lease candidate: %w", scanErr)
		}
		candidateIDs = append(candidateIDs, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate lease candidates: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close lease candidates: %w", err)
	}
	if len(candidateIDs) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit empty lease transaction: %w", err)
		}
		return []storage.OutboxActivity{}, nil
	}

	leased := make([]storage.OutboxActivity, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		result, updateErr := tx.ExecContext(ctx, `
UPDATE activity_outbox
SET status = ?, lease_owner = ?, lease_expires_at = ?, updated_at = ?
WHERE id = ?
AND (
	(status = ? AND next_attempt_at <= ?)
	OR
	(status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?)
)
`,
			storage.OutboxStatusLeased,
			consumer,
			toMillis(leaseExpiresAt),
			toMillis(now),
			id,
			storage.OutboxStatusPending,
			toMillis(now),
			storage.OutboxStatusLeased,
			toMillis(now),
		)
		if updateErr != nil {
			return nil, fmt.Errorf("lease activity %s: %w", id, updateErr)
		}
		rowsAffected, rowsErr := result.RowsAffected()
		if rowsErr != nil {
			return nil, fmt.Errorf("lease rows affected for %s: %w", id, rowsErr)
		}
		if rowsAffected == 0 {
			continue
		}

		row := tx.QueryRowContext(ctx, `
SELECT`+outboxColumns+`
FROM activity_outbox
WHERE id = ?
`, id)
		activity, scanErr := scanOutboxActivity(row.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan leased activity %s: %w", id, scanErr)
		}
		leased = append(leased, activity)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lease transaction: %w", err)
	}
	return leased, nil
}

// MarkActivitySucceeded marks one leased activity as delivered.
func (s *Store) MarkActivitySucceeded(ctx context.Context, id string, consumer string, processedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	consumer = strings.TrimSpace(consumer)
	if id == "" {
		return fmt.Errorf("activity id is required")
	}
	if consumer == "" {
		return fmt.Errorf("consumer is required")
	}
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}
	processedAt = processedAt.UTC()

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE activity_outbox
SET status = ?, lease_owner = '', lease_expires_at = NULL, last_error = '',
    processed_at = ?, updated_at = ?
WHERE id = ? AND status = ? AND lease_owner = ?
`,
		storage.OutboxStatusSucceeded,
		toMillis(processedAt),
		toMillis(processedAt),
		id,
		storage.OutboxStatusLeased,
		consumer,
	)
	if err != nil {
		return fmt.Errorf("mark activity succeeded: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark activity succeeded rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkActivityRetry marks one leased activity for retry at a later attempt.
func (s *Store) MarkActivityRetry(ctx context.Context, id string, consumer string, nextAttemptAt time.Time, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	consumer = strings.TrimSpace(consumer)
	lastError = strings.TrimSpace(lastError)
	if id == "" {
		return fmt.Errorf("activity id is required")
	}
	if consumer == "" {
		return fmt.Errorf("consumer is required")
	}
	if nextAttemptAt.IsZero() {
		return fmt.Errorf("next attempt at is required")
	}
	now := time.Now().UTC()
	nextAttemptAt = nextAttemptAt.UTC()

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE activity_outbox
SET status = ?, attempt_count = attempt_count + 1, next_attempt_at = ?,
    lease_owner = '', lease_expires_at = NULL, last_error = ?,
    processed_at = NULL, updated_at = ?
WHERE id = ? AND status = ? AND lease_owner = ?
`,
		storage.OutboxStatusPending,
		toMillis(nextAttemptAt),
		lastError,
		toMillis(now),
		id,
		storage.OutboxStatusLeased,
		consumer,
	)
	if err != nil {
		return fmt.Errorf("mark activity retry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark activity retry rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkActivityDead marks one leased activity as undeliverable.
func (s *Store) MarkActivityDead(ctx context.Context, id string, consumer string, lastError string, processedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	consumer = strings.TrimSpace(consumer)
	lastError = strings.TrimSpace(lastError)
	if id == "" {
		return fmt.Errorf("activity id is required")
	}
	if consumer == "" {
		return fmt.Errorf("consumer is required")
	}
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}
	processedAt = processedAt.UTC()

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE activity_outbox
SET status = ?, attempt_count = attempt_count + 1, lease_owner = '',
    lease_expires_at = NULL, last_error = ?, processed_at = ?, updated_at = ?
WHERE id = ? AND status = ? AND lease_owner = ?
`,
		storage.OutboxStatusDead,
		lastError,
		toMillis(processedAt),
		toMillis(processedAt),
		id,
		storage.OutboxStatusLeased,
		consumer,
	)
	if err != nil {
		return fmt.Errorf("mark activity dead: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark activity dead rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanOutboxActivity(scan rowScanner) (storage.OutboxActivity, error) {
	var activity storage.OutboxActivity
	var inboxesJSON string
	var status string
	var nextAttemptAt int64
	var createdAt int64
	var updatedAt int64
	var leaseExpiresAt sql.NullInt64
	var processedAt sql.NullInt64
	if err := scan(
		&activity.ID,
		&activity.ActivityType,
		&activity.ActivityJSON,
		&inboxesJSON,
		&activity.DedupeKey,
		&status,
		&activity.AttemptCount,
		&nextAttemptAt,
		&activity.LeaseOwner,
		&leaseExpiresAt,
		&activity.LastError,
		&processedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.OutboxActivity{}, err
	}
	if err := json.Unmarshal([]byte(inboxesJSON), &activity.Inboxes); err != nil {
		return storage.OutboxActivity{}, fmt.Errorf("unmarshal inboxes: %w", err)
	}
	activity.Status = storage.OutboxStatus(status)
	activity.NextAttemptAt = fromMillis(nextAttemptAt)
	activity.CreatedAt = fromMillis(createdAt)
	activity.UpdatedAt = fromMillis(updatedAt)
	if leaseExpiresAt.Valid {
		value := fromMillis(leaseExpiresAt.Int64)
		activity.LeaseExpiresAt = &value
	}
	if processedAt.Valid {
		value := fromMillis(processedAt.Int64)
		activity.ProcessedAt = &value
	}
	return activity, nil
}
