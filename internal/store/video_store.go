package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wrolpi/archivaid/internal/apperr"
	"github.com/wrolpi/archivaid/internal/model"
)

// VideoStore persists model.Video rows, created by internal/modeler's video
// modeler and optionally attached to a Channel.
type VideoStore struct {
	db *DB
}

// NewVideoStore returns a VideoStore bound to db.
func NewVideoStore(db *DB) *VideoStore {
	return &VideoStore{db: db}
}

// Create inserts a new Video row tied to fileGroupID.
func (s *VideoStore) Create(ctx context.Context, v *model.Video) (int64, error) {
	res, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO video (file_group_id, channel_id, source_id, upload_date, duration, view_count, url)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.FileGroupID, nullableInt64(v.ChannelID), v.SourceID, timeToNullInt(v.UploadDate),
		v.Duration, v.ViewCount, v.URL)
	if err != nil {
		return 0, fmt.Errorf("store: creating video for file_group %d: %w", v.FileGroupID, err)
	}

	return res.LastInsertId()
}

// GetByFileGroupID fetches the Video attached to a FileGroup, if any.
func (s *VideoStore) GetByFileGroupID(ctx context.Context, fileGroupID int64) (*model.Video, error) {
	row := s.db.Conn().QueryRowContext(ctx, videoSelectColumns+` WHERE file_group_id = ?`, fileGroupID)

	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("video for file_group %d not found", fileGroupID)
	}

	return v, err
}

// ListByChannel returns every Video belonging to channelID.
func (s *VideoStore) ListByChannel(ctx context.Context, channelID int64) ([]*model.Video, error) {
	rows, err := s.db.Conn().QueryContext(ctx, videoSelectColumns+` WHERE channel_id = ? ORDER BY upload_date DESC`, channelID)
	if err != nil {
		return nil, fmt.Errorf("store: listing videos for channel %d: %w", channelID, err)
	}
	defer rows.Close()

	var videos []*model.Video

	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}

		videos = append(videos, v)
	}

	return videos, rows.Err()
}

// ListBySourceID finds videos by platform source id, used for
// already-downloaded checks.
func (s *VideoStore) ListBySourceID(ctx context.Context, sourceID string) ([]*model.Video, error) {
	rows, err := s.db.Conn().QueryContext(ctx, videoSelectColumns+` WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("store: listing videos for source_id %s: %w", sourceID, err)
	}
	defer rows.Close()

	var videos []*model.Video

	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}

		videos = append(videos, v)
	}

	return videos, rows.Err()
}

const videoSelectColumns = `
	SELECT id, file_group_id, channel_id, source_id, upload_date, duration, view_count, url
	FROM video`

func scanVideo(row rowScanner) (*model.Video, error) {
	var (
		v          model.Video
		channelID  sql.NullInt64
		uploadDate sql.NullInt64
	)

	err := row.Scan(&v.ID, &v.FileGroupID, &channelID, &v.SourceID, &uploadDate, &v.Duration, &v.ViewCount, &v.URL)
	if err != nil {
		return nil, fmt.Errorf("store: scanning video: %w", err)
	}

	if channelID.Valid {
		id := channelID.Int64
		v.ChannelID = &id
	}

	v.UploadDate = nullIntToTime(uploadDate)

	return &v, nil
}
