package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wrolpi/archivaid/internal/apperr"
	"github.com/wrolpi/archivaid/internal/model"
)

// InventoryStore persists model.Inventory rows: soft-deleted, unlike
// Collections which are hard-deleted.
type InventoryStore struct {
	db *DB
}

// NewInventoryStore returns an InventoryStore bound to db.
func NewInventoryStore(db *DB) *InventoryStore {
	return &InventoryStore{db: db}
}

// Create inserts a new, non-deleted Inventory row. If a soft-deleted
// inventory with the same name exists, it is removed first (matching the
// original's _remove_conflicting_deleted_inventory behavior), so a name can
// be reused after deletion without a unique-constraint conflict.
func (s *InventoryStore) Create(ctx context.Context, name string) (int64, error) {
	if _, err := s.db.Conn().ExecContext(ctx,
		`DELETE FROM inventory WHERE name = ? AND deleted_at IS NOT NULL`, name); err != nil {
		return 0, fmt.Errorf("store: clearing conflicting deleted inventories named %q: %w", name, err)
	}

	res, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO inventory (name, created_at) VALUES (?, ?)`, name, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("store: creating inventory %q: %w", name, err)
	}

	return res.LastInsertId()
}

// GetByID fetches an Inventory by id, including soft-deleted rows.
func (s *InventoryStore) GetByID(ctx context.Context, id int64) (*model.Inventory, error) {
	row := s.db.Conn().QueryRowContext(ctx, inventorySelectColumns+` WHERE id = ?`, id)

	inv, err := scanInventory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("inventory id %d not found", id)
	}

	return inv, err
}

// GetActiveByName fetches a non-deleted Inventory by name.
func (s *InventoryStore) GetActiveByName(ctx context.Context, name string) (*model.Inventory, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		inventorySelectColumns+` WHERE name = ? AND deleted_at IS NULL`, name)

	inv, err := scanInventory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("inventory %q not found", name)
	}

	return inv, err
}

// ListActive returns every non-deleted Inventory ordered by most recently
// viewed first, matching the original's query ordering.
func (s *InventoryStore) ListActive(ctx context.Context) ([]*model.Inventory, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		inventorySelectColumns+` WHERE deleted_at IS NULL ORDER BY viewed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: listing inventories: %w", err)
	}
	defer rows.Close()

	var inventories []*model.Inventory

	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, err
		}

		inventories = append(inventories, inv)
	}

	return inventories, rows.Err()
}

// Rename updates the name of an existing inventory.
func (s *InventoryStore) Rename(ctx context.Context, id int64, name string) error {
	_, err := s.db.Conn().ExecContext(ctx, `UPDATE inventory SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("store: renaming inventory %d: %w", id, err)
	}

	return nil
}

// Touch updates viewed_at to now.
func (s *InventoryStore) Touch(ctx context.Context, id int64) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`UPDATE inventory SET viewed_at = ? WHERE id = ?`, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("store: touching inventory %d: %w", id, err)
	}

	return nil
}

// SoftDelete marks an inventory deleted without removing its row.
func (s *InventoryStore) SoftDelete(ctx context.Context, id int64) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`UPDATE inventory SET deleted_at = ? WHERE id = ?`, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("store: soft-deleting inventory %d: %w", id, err)
	}

	return nil
}

const inventorySelectColumns = `SELECT id, name, viewed_at, created_at, deleted_at FROM inventory`

func scanInventory(row rowScanner) (*model.Inventory, error) {
	var (
		inv                  model.Inventory
		viewedAt, deletedAt  sql.NullInt64
		createdAt            int64
	)

	if err := row.Scan(&inv.ID, &inv.Name, &viewedAt, &createdAt, &deletedAt); err != nil {
		return nil, fmt.Errorf("store: scanning inventory: %w", err)
	}

	inv.ViewedAt = nullIntToTime(viewedAt)
	inv.CreatedAt = time.Unix(createdAt, 0).UTC()
	inv.DeletedAt = nullIntToTime(deletedAt)

	return &inv, nil
}
