package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wrolpi/archivaid/internal/apperr"
	"github.com/wrolpi/archivaid/internal/model"
)

// ChannelStore persists model.Channel rows, each owning exactly one
// "channel"-kind Collection.
type ChannelStore struct {
	db *DB
}

// NewChannelStore returns a ChannelStore bound to db.
func NewChannelStore(db *DB) *ChannelStore {
	return &ChannelStore{db: db}
}

// Create inserts a new Channel row.
func (s *ChannelStore) Create(ctx context.Context, c *model.Channel) (int64, error) {
	res, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO channel (name, url, directory, collection_id) VALUES (?, ?, ?, ?)`,
		c.Name, c.URL, c.Directory, c.CollectionID)
	if err != nil {
		return 0, fmt.Errorf("store: creating channel %q: %w", c.Name, err)
	}

	return res.LastInsertId()
}

// GetByID fetches a Channel by id.
func (s *ChannelStore) GetByID(ctx context.Context, id int64) (*model.Channel, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT id, name, url, directory, collection_id FROM channel WHERE id = ?`, id)

	c, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("channel id %d not found", id)
	}

	return c, err
}

// GetByCollectionID fetches the Channel owning collectionID.
func (s *ChannelStore) GetByCollectionID(ctx context.Context, collectionID int64) (*model.Channel, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT id, name, url, directory, collection_id FROM channel WHERE collection_id = ?`, collectionID)

	c, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("channel for collection %d not found", collectionID)
	}

	return c, err
}

// All returns every channel, ordered by name.
func (s *ChannelStore) All(ctx context.Context) ([]*model.Channel, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, name, url, directory, collection_id FROM channel ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: listing channels: %w", err)
	}
	defer rows.Close()

	var channels []*model.Channel

	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}

		channels = append(channels, c)
	}

	return channels, rows.Err()
}

// Update persists all mutable fields of c.
func (s *ChannelStore) Update(ctx context.Context, c *model.Channel) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`UPDATE channel SET name = ?, url = ?, directory = ? WHERE id = ?`,
		c.Name, c.URL, c.Directory, c.ID)
	if err != nil {
		return fmt.Errorf("store: updating channel %d: %w", c.ID, err)
	}

	return nil
}

// Delete removes a Channel row (videos are orphaned, channel_id set null).
func (s *ChannelStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.Conn().ExecContext(ctx, `DELETE FROM channel WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: deleting channel %d: %w", id, err)
	}

	return nil
}

func scanChannel(row rowScanner) (*model.Channel, error) {
	var c model.Channel

	if err := row.Scan(&c.ID, &c.Name, &c.URL, &c.Directory, &c.CollectionID); err != nil {
		return nil, fmt.Errorf("store: scanning channel: %w", err)
	}

	return &c, nil
}
