package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fedilist/fedilist/internal/list/domain"
	"github.com/fedilist/fedilist/internal/list/storage"
)

// InsertItem inserts one list item at its precomputed position.
func (s *Store) InsertItem(ctx context.Context, item domain.ListItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("item id is required")
	}
	if strings.TrimSpace(item.ListID) == "" {
		return fmt.Errorf("item list id is required")
	}
	if item.Position < 1 {
		return fmt.Errorf("item position must be greater than zero")
	}

	approved := 0
	if item.Approved {
		approved = 1
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO list_items (
		   id, remote_id, list_id, resource_iri, contributor_id, position,
		   approved, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.RemoteID,
		item.ListID,
		item.ResourceIRI,
		item.ContributorID,
		item.Position,
		approved,
		toMillis(item.CreatedAt),
		toMillis(item.UpdatedAt),
	)
	if err != nil {
		if positionConflict(err) {
			return storage.ErrOrderConflict
		}
		if isUniqueViolation(err, "list_items.") {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// GetItem returns one item by list and item ID.
func (s *Store) GetItem(ctx context.Context, listID, itemID string) (domain.ListItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.ListItem{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.ListItem{}, fmt.Errorf("storage is not configured")
	}
	listID = strings.TrimSpace(listID)
	itemID = strings.TrimSpace(itemID)
	if listID == "" {
		return domain.ListItem{}, fmt.Errorf("list id is required")
	}
	if itemID == "" {
		return domain.ListItem{}, fmt.Errorf("item id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, remote_id, list_id, resource_iri, contributor_id, position,
		        approved, created_at, updated_at
		   FROM list_items
		  WHERE list_id = ? AND id = ?`,
		listID,
		itemID,
	)
	item, err := scanItem(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ListItem{}, storage.ErrNotFound
		}
		return domain.ListItem{}, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ListItems returns all items of a list ordered by position.
func (s *Store) ListItems(ctx context.Context, listID string) ([]domain.ListItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	listID = strings.TrimSpace(listID)
	if listID == "" {
		return nil, fmt.Errorf("list id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, remote_id, list_id, resource_iri, contributor_id, position,
		        approved, created_at, updated_at
		   FROM list_items
		  WHERE list_id = ?
		  ORDER BY position ASC`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []domain.ListItem{}
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// ApproveItem flips the approved flag on one item.
func (s *Store) ApproveItem(ctx context.Context, listID, itemID string, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	listID = strings.TrimSpace(listID)
	itemID = strings.TrimSpace(itemID)
	if listID == "" || itemID == "" {
		return fmt.Errorf("list id and item id are required")
	}
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE list_items SET approved = 1, updated_at = ? WHERE list_id = ? AND id = ?`,
		toMillis(updatedAt),
		listID,
		itemID,
	)
	if err != nil {
		return fmt.Errorf("approve item: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("approve item rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteItem removes one item and applies the compacted positions in the
// same transaction.
func (s *Store) DeleteItem(ctx context.Context, listID, itemID string, positions map[string]int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	listID = strings.TrimSpace(listID)
	itemID = strings.TrimSpace(itemID)
	if listID == "" || itemID == "" {
		return fmt.Errorf("list id and item id are required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start delete transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(
		ctx,
		`DELETE FROM list_items WHERE list_id = ? AND id = ?`,
		listID,
		itemID,
	)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}

	if err := applyPositions(ctx, tx, listID, positions); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete transaction: %w", err)
	}
	return nil
}

// SetPositions applies a reposition's position changes in one transaction.
func (s *Store) SetPositions(ctx context.Context, listID string, positions map[string]int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	listID = strings.TrimSpace(listID)
	if listID == "" {
		return fmt.Errorf("list id is required")
	}
	if len(positions) == 0 {
		return nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start reposition transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := applyPositions(ctx, tx, listID, positions); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reposition transaction: %w", err)
	}
	return nil
}

// applyPositions rewrites positions in two phases so the unique
// (list_id, position) index holds at every statement: first park each
// changed row on the negated target slot, then flip the sign.
func applyPositions(ctx context.Context, tx *sql.Tx, listID string, positions map[string]int) error {
	if len(positions) == 0 {
		return nil
	}

	itemIDs := make([]string, 0, len(positions))
	for itemID := range positions {
		itemIDs = append(itemIDs, itemID)
	}
	sort.Strings(itemIDs)

	for _, itemID := range itemIDs {
		target := positions[itemID]
		if target < 1 {
			return fmt.Errorf("position for item %s must be greater than zero", itemID)
		}
		result, err := tx.ExecContext(
			ctx,
			`UPDATE list_items SET position = ? WHERE list_id = ? AND id = ?`,
			-target,
			listID,
			itemID,
		)
		if err != nil {
			return fmt.Errorf("park position for item %s: %w", itemID, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("park position rows affected for item %s: %w", itemID, err)
		}
		if rowsAffected == 0 {
			return storage.ErrNotFound
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE list_items SET position = -position WHERE list_id = ? AND position < 0`,
		listID,
	); err != nil {
		if positionConflict(err) {
			return storage.ErrOrderConflict
		}
		return fmt.Errorf("apply positions: %w", err)
	}
	return nil
}

func scanItem(scan rowScanner) (domain.ListItem, error) {
	var item domain.ListItem
	var approved int
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&item.ID,
		&item.RemoteID,
		&item.ListID,
		&item.ResourceIRI,
		&item.ContributorID,
		&item.Position,
		&approved,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.ListItem{}, err
	}
	item.Approved = approved != 0
	item.CreatedAt = fromMillis(createdAt)
	item.UpdatedAt = fromMillis(updatedAt)
	return item, nil
}
