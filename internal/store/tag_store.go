package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wrolpi/archivaid/internal/apperr"
	"github.com/wrolpi/archivaid/internal/model"
)

// TagStore persists model.Tag rows.
type TagStore struct {
	db *DB
}

// NewTagStore returns a TagStore bound to db.
func NewTagStore(db *DB) *TagStore {
	return &TagStore{db: db}
}

// GetOrCreate finds a tag by name, creating it with a default color if
// absent. Tag names are immutable identity, so this is the only
// write path tag_file associations rely on.
func (s *TagStore) GetOrCreate(ctx context.Context, name string) (*model.Tag, error) {
	tag, err := s.GetByName(ctx, name)
	if err == nil {
		return tag, nil
	}

	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	res, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO tag (name, color) VALUES (?, '#808080')`, name)
	if err != nil {
		return nil, fmt.Errorf("store: creating tag %q: %w", name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: reading new tag id: %w", err)
	}

	return &model.Tag{ID: id, Name: name, Color: "#808080"}, nil
}

// GetByName looks up a tag by its unique name.
func (s *TagStore) GetByName(ctx context.Context, name string) (*model.Tag, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT id, name, color FROM tag WHERE name = ?`, name)

	var tag model.Tag
	if err := row.Scan(&tag.ID, &tag.Name, &tag.Color); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("tag %q not found", name)
		}

		return nil, fmt.Errorf("store: querying tag %q: %w", name, err)
	}

	return &tag, nil
}

// GetByID looks up a tag by id.
func (s *TagStore) GetByID(ctx context.Context, id int64) (*model.Tag, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT id, name, color FROM tag WHERE id = ?`, id)

	var tag model.Tag
	if err := row.Scan(&tag.ID, &tag.Name, &tag.Color); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("tag id %d not found", id)
		}

		return nil, fmt.Errorf("store: querying tag id %d: %w", id, err)
	}

	return &tag, nil
}

// All returns every tag, ordered by name.
func (s *TagStore) All(ctx context.Context) ([]*model.Tag, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `SELECT id, name, color FROM tag ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: listing tags: %w", err)
	}
	defer rows.Close()

	var tags []*model.Tag

	for rows.Next() {
		var tag model.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color); err != nil {
			return nil, fmt.Errorf("store: scanning tag: %w", err)
		}

		tags = append(tags, &tag)
	}

	return tags, rows.Err()
}

// SetColor updates a tag's display color.
func (s *TagStore) SetColor(ctx context.Context, id int64, color string) error {
	_, err := s.db.Conn().ExecContext(ctx, `UPDATE tag SET color = ? WHERE id = ?`, color, id)
	if err != nil {
		return fmt.Errorf("store: updating tag %d color: %w", id, err)
	}

	return nil
}

// Delete removes a tag and its tag_file associations (cascading).
func (s *TagStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.Conn().ExecContext(ctx, `DELETE FROM tag WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: deleting tag %d: %w", id, err)
	}

	return nil
}

// TagFileGroup attaches a tag to a FileGroup (idempotent).
func (s *TagStore) TagFileGroup(ctx context.Context, tagID, fileGroupID int64) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`INSERT OR IGNORE INTO tag_file (tag_id, file_group_id) VALUES (?, ?)`, tagID, fileGroupID)
	if err != nil {
		return fmt.Errorf("store: tagging file_group %d with tag %d: %w", fileGroupID, tagID, err)
	}

	return nil
}

// UntagFileGroup removes a tag association if present.
func (s *TagStore) UntagFileGroup(ctx context.Context, tagID, fileGroupID int64) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`DELETE FROM tag_file WHERE tag_id = ? AND file_group_id = ?`, tagID, fileGroupID)
	if err != nil {
		return fmt.Errorf("store: untagging file_group %d from tag %d: %w", fileGroupID, tagID, err)
	}

	return nil
}

// TagsForFileGroup returns every tag attached to fileGroupID.
func (s *TagStore) TagsForFileGroup(ctx context.Context, fileGroupID int64) ([]*model.Tag, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT t.id, t.name, t.color
		FROM tag t
		JOIN tag_file tf ON tf.tag_id = t.id
		WHERE tf.file_group_id = ?
		ORDER BY t.name`, fileGroupID)
	if err != nil {
		return nil, fmt.Errorf("store: listing tags for file_group %d: %w", fileGroupID, err)
	}
	defer rows.Close()

	var tags []*model.Tag

	for rows.Next() {
		var tag model.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color); err != nil {
			return nil, fmt.Errorf("store: scanning tag: %w", err)
		}

		tags = append(tags, &tag)
	}

	return tags, rows.Err()
}
