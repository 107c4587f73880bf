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

// ArchiveStore persists model.Archive rows, one per archived page, created
// by internal/modeler's archive modeler.
type ArchiveStore struct {
	db *DB
}

// NewArchiveStore returns an ArchiveStore bound to db.
func NewArchiveStore(db *DB) *ArchiveStore {
	return &ArchiveStore{db: db}
}

// Create inserts a new Archive row tied to fileGroupID.
func (s *ArchiveStore) Create(ctx context.Context, a *model.Archive) (int64, error) {
	res, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO archive (file_group_id, url, archive_datetime, collection_id)
		VALUES (?, ?, ?, ?)`,
		a.FileGroupID, a.URL, timeToNullInt(&a.ArchiveDatetime), nullableInt64(a.CollectionID))
	if err != nil {
		return 0, fmt.Errorf("store: creating archive for file_group %d: %w", a.FileGroupID, err)
	}

	return res.LastInsertId()
}

// GetByFileGroupID fetches the Archive attached to a FileGroup, if any.
func (s *ArchiveStore) GetByFileGroupID(ctx context.Context, fileGroupID int64) (*model.Archive, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT id, file_group_id, url, archive_datetime, collection_id FROM archive WHERE file_group_id = ?`,
		fileGroupID)

	a, err := scanArchive(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("archive for file_group %d not found", fileGroupID)
	}

	return a, err
}

// ListByURL returns every Archive recorded for the given URL, used to
// satisfy "already downloaded" checks for the archive downloader.
func (s *ArchiveStore) ListByURL(ctx context.Context, url string) ([]*model.Archive, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, file_group_id, url, archive_datetime, collection_id FROM archive WHERE url = ? ORDER BY archive_datetime DESC`,
		url)
	if err != nil {
		return nil, fmt.Errorf("store: listing archives for url %s: %w", url, err)
	}
	defer rows.Close()

	var archives []*model.Archive

	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}

		archives = append(archives, a)
	}

	return archives, rows.Err()
}

// ListByCollection returns every Archive belonging to collectionID.
func (s *ArchiveStore) ListByCollection(ctx context.Context, collectionID int64) ([]*model.Archive, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, file_group_id, url, archive_datetime, collection_id FROM archive WHERE collection_id = ? ORDER BY archive_datetime DESC`,
		collectionID)
	if err != nil {
		return nil, fmt.Errorf("store: listing archives for collection %d: %w", collectionID, err)
	}
	defer rows.Close()

	var archives []*model.Archive

	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}

		archives = append(archives, a)
	}

	return archives, rows.Err()
}

// SetCollection assigns or clears (nil) the owning collection of an Archive.
func (s *ArchiveStore) SetCollection(ctx context.Context, archiveID int64, collectionID *int64) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`UPDATE archive SET collection_id = ? WHERE id = ?`, nullableInt64(collectionID), archiveID)
	if err != nil {
		return fmt.Errorf("store: setting collection for archive %d: %w", archiveID, err)
	}

	return nil
}

func scanArchive(row rowScanner) (*model.Archive, error) {
	var (
		a               model.Archive
		archiveDatetime sql.NullInt64
		collectionID    sql.NullInt64
	)

	if err := row.Scan(&a.ID, &a.FileGroupID, &a.URL, &archiveDatetime, &collectionID); err != nil {
		return nil, fmt.Errorf("store: scanning archive: %w", err)
	}

	if t := nullIntToTime(archiveDatetime); t != nil {
		a.ArchiveDatetime = *t
	} else {
		a.ArchiveDatetime = time.Time{}
	}

	if collectionID.Valid {
		id := collectionID.Int64
		a.CollectionID = &id
	}

	return &a, nil
}

func nullableInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: *p, Valid: true}
}
