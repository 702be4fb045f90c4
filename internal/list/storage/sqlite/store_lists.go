package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fedilist/fedilist/internal/list/domain"
	"github.com/fedilist/fedilist/internal/list/storage"
)

// CreateList inserts one list record.
func (s *Store) CreateList(ctx context.Context, list domain.List) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(list.ID) == "" {
		return fmt.Errorf("list id is required")
	}
	if strings.TrimSpace(list.RemoteID) == "" {
		return fmt.Errorf("list remote id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO lists (
		   id, remote_id, name, description, owner_id, privacy, curation,
		   created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		list.ID,
		list.RemoteID,
		list.Name,
		list.Description,
		list.OwnerID,
		string(list.Privacy),
		string(list.Curation),
		toMillis(list.CreatedAt),
		toMillis(list.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "lists.") {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create list: %w", err)
	}
	return nil
}

// GetList returns one list by ID.
func (s *Store) GetList(ctx context.Context, listID string) (domain.List, error) {
	if err := ctx.Err(); err != nil {
		return domain.List{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.List{}, fmt.Errorf("storage is not configured")
	}
	listID = strings.TrimSpace(listID)
	if listID == "" {
		return domain.List{}, fmt.Errorf("list id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, remote_id, name, description, owner_id, privacy, curation,
		        created_at, updated_at
		   FROM lists
		  WHERE id = ?`,
		listID,
	)
	list, err := scanList(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.List{}, storage.ErrNotFound
		}
		return domain.List{}, fmt.Errorf("get list: %w", err)
	}
	return list, nil
}

// UpdateList rewrites one list's mutable metadata.
func (s *Store) UpdateList(ctx context.Context, list domain.List) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(list.ID) == "" {
		return fmt.Errorf("list id is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE lists
		    SET name = ?, description = ?, privacy = ?, curation = ?, updated_at = ?
		  WHERE id = ?`,
		list.Name,
		list.Description,
		string(list.Privacy),
		string(list.Curation),
		toMillis(list.UpdatedAt),
		list.ID,
	)
	if err != nil {
		return fmt.Errorf("update list: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update list rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListLists returns one page of list records ordered by ID.
func (s *Store) ListLists(ctx context.Context, pageSize int, pageToken string) (storage.ListPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.ListPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ListPage{}, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 {
		return storage.ListPage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)

	page := storage.ListPage{
		Lists: make([]domain.List, 0, pageSize),
	}

	var (
		rows *sql.Rows
		err  error
	)
	if pageToken == "" {
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT id, remote_id, name, description, owner_id, privacy, curation,
			        created_at, updated_at
			   FROM lists
			  ORDER BY id ASC
			  LIMIT ?`,
			pageSize+1,
		)
	} else {
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT id, remote_id, name, description, owner_id, privacy, curation,
			        created_at, updated_at
			   FROM lists
			  WHERE id > ?
			  ORDER BY id ASC
			  LIMIT ?`,
			pageToken,
			pageSize+1,
		)
	}
	if err != nil {
		return storage.ListPage{}, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		list, err := scanList(rows.Scan)
		if err != nil {
			return storage.ListPage{}, fmt.Errorf("list lists: %w", err)
		}
		page.Lists = append(page.Lists, list)
	}
	if err := rows.Err(); err != nil {
		return storage.ListPage{}, fmt.Errorf("list lists: %w", err)
	}
	if len(page.Lists) > pageSize {
		page.NextPageToken = page.Lists[pageSize-1].ID
		page.Lists = page.Lists[:pageSize]
	}

	return page, nil
}

type rowScanner func(dest ...any) error

func scanList(scan rowScanner) (domain.List, error) {
	var list domain.List
	var privacy string
	var curation string
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&list.ID,
		&list.RemoteID,
		&list.Name,
		&list.Description,
		&list.OwnerID,
		&privacy,
		&curation,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.List{}, err
	}
	list.Privacy = domain.Privacy(privacy)
	list.Curation = domain.Curation(curation)
	list.CreatedAt = fromMillis(createdAt)
	list.UpdatedAt = fromMillis(updatedAt)
	return list, nil
}
