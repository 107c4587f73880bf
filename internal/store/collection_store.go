package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wrolpi/archivaid/internal/apperr"
	"github.com/wrolpi/archivaid/internal/model"
)

// CollectionStore persists model.Collection rows, the polymorphic grouping
// entity internal/collection operates on.
type CollectionStore struct {
	db *DB
}

// NewCollectionStore returns a CollectionStore bound to db.
func NewCollectionStore(db *DB) *CollectionStore {
	return &CollectionStore{db: db}
}

// Create inserts a new Collection row.
func (s *CollectionStore) Create(ctx context.Context, c *model.Collection) (int64, error) {
	res, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO collection (name, kind, directory, tag_id, description, file_format)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, string(c.Kind), c.Directory, nullableInt64(c.TagID), c.Description, c.FileFormat)
	if err != nil {
		return 0, fmt.Errorf("store: creating collection %q: %w", c.Name, err)
	}

	return res.LastInsertId()
}

// GetByID fetches a Collection by id.
func (s *CollectionStore) GetByID(ctx context.Context, id int64) (*model.Collection, error) {
	row := s.db.Conn().QueryRowContext(ctx, collectionSelectColumns+` WHERE id = ?`, id)

	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("collection id %d not found", id)
	}

	return c, err
}

// GetByNameAndKind fetches a Collection by its natural key.
func (s *CollectionStore) GetByNameAndKind(ctx context.Context, name string, kind model.CollectionKind) (*model.Collection, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		collectionSelectColumns+` WHERE name = ? AND kind = ?`, name, string(kind))

	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("collection %q (%s) not found", name, kind)
	}

	return c, err
}

// GetByDirectory fetches a Collection by its directory, used to detect
// domain-directory conflicts when tagging.
func (s *CollectionStore) GetByDirectory(ctx context.Context, directory string) (*model.Collection, error) {
	row := s.db.Conn().QueryRowContext(ctx, collectionSelectColumns+` WHERE directory = ?`, directory)

	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("collection with directory %s not found", directory)
	}

	return c, err
}

// ListByKind returns every Collection of the given kind, ordered by name.
func (s *CollectionStore) ListByKind(ctx context.Context, kind model.CollectionKind) ([]*model.Collection, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		collectionSelectColumns+` WHERE kind = ? ORDER BY name`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("store: listing %s collections: %w", kind, err)
	}
	defer rows.Close()

	return scanCollections(rows)
}

// All returns every Collection.
func (s *CollectionStore) All(ctx context.Context) ([]*model.Collection, error) {
	rows, err := s.db.Conn().QueryContext(ctx, collectionSelectColumns+` ORDER BY kind, name`)
	if err != nil {
		return nil, fmt.Errorf("store: listing collections: %w", err)
	}
	defer rows.Close()

	return scanCollections(rows)
}

// Update persists all mutable fields of c.
func (s *CollectionStore) Update(ctx context.Context, c *model.Collection) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		UPDATE collection SET name = ?, directory = ?, tag_id = ?, description = ?, file_format = ?
		WHERE id = ?`,
		c.Name, c.Directory, nullableInt64(c.TagID), c.Description, c.FileFormat, c.ID)
	if err != nil {
		return fmt.Errorf("store: updating collection %d: %w", c.ID, err)
	}

	return nil
}

// Delete removes a Collection row.
func (s *CollectionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.Conn().ExecContext(ctx, `DELETE FROM collection WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: deleting collection %d: %w", id, err)
	}

	return nil
}

const collectionSelectColumns = `
	SELECT id, name, kind, directory, tag_id, description, file_format
	FROM collection`

func scanCollection(row rowScanner) (*model.Collection, error) {
	var (
		c             model.Collection
		kind          string
		directory     sql.NullString
		tagID         sql.NullInt64
		fileFormat    sql.NullString
	)

	if err := row.Scan(&c.ID, &c.Name, &kind, &directory, &tagID, &c.Description, &fileFormat); err != nil {
		return nil, fmt.Errorf("store: scanning collection: %w", err)
	}

	c.Kind = model.CollectionKind(kind)

	if directory.Valid {
		d := directory.String
		c.Directory = &d
	}

	if tagID.Valid {
		id := tagID.Int64
		c.TagID = &id
	}

	if fileFormat.Valid {
		f := fileFormat.String
		c.FileFormat = &f
	}

	return &c, nil
}

func scanCollections(rows *sql.Rows) ([]*model.Collection, error) {
	var collections []*model.Collection

	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}

		collections = append(collections, c)
	}

	return collections, rows.Err()
}
