package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/wrolpi/archivaid/internal/apperr"
	"github.com/wrolpi/archivaid/internal/model"
)

// FileGroupStore persists model.FileGroup rows, the atomic storage unit
// every modeler (internal/modeler) and the refresh pipeline (internal/refresh)
// operate on.
type FileGroupStore struct {
	db *DB
}

// NewFileGroupStore returns a FileGroupStore bound to db.
func NewFileGroupStore(db *DB) *FileGroupStore {
	return &FileGroupStore{db: db}
}

// Create inserts a new FileGroup row, discovered but not yet indexed.
func (s *FileGroupStore) Create(ctx context.Context, fg *model.FileGroup) (int64, error) {
	now := time.Now().UTC()

	dataJSON, err := encodeDataMap(fg.Data)
	if err != nil {
		return 0, err
	}

	filesJSON, err := json.Marshal(fg.Files)
	if err != nil {
		return 0, fmt.Errorf("store: encoding file_group.files: %w", err)
	}

	res, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO file_group (
			directory, primary_path, mimetype, size, indexed, deep_indexed,
			failure_note, title, author, url, published, modified,
			a_text, b_text, c_text, d_text, data, files, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fg.Directory, fg.PrimaryPath, fg.Mimetype, fg.Size, boolToInt(fg.Indexed), boolToInt(fg.DeepIndexed),
		fg.FailureNote, fg.Title, fg.Author, fg.URL, timeToNullInt(fg.Published), timeToNullInt(fg.Modified),
		fg.ATitleText, fg.BSummaryText, fg.CKeywordsText, fg.DBodyText, dataJSON, string(filesJSON),
		now.Unix(), now.Unix())
	if err != nil {
		return 0, fmt.Errorf("store: creating file_group %s/%s: %w", fg.Directory, fg.PrimaryPath, err)
	}

	return res.LastInsertId()
}

// GetByID fetches a FileGroup by id.
func (s *FileGroupStore) GetByID(ctx context.Context, id int64) (*model.FileGroup, error) {
	row := s.db.Conn().QueryRowContext(ctx, fileGroupSelectColumns+` WHERE id = ?`, id)

	fg, err := scanFileGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("file_group id %d not found", id)
	}

	return fg, err
}

// GetByDirectoryAndPrimaryPath fetches a FileGroup by its natural key.
func (s *FileGroupStore) GetByDirectoryAndPrimaryPath(ctx context.Context, directory, primaryPath string) (*model.FileGroup, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		fileGroupSelectColumns+` WHERE directory = ? AND primary_path = ?`, directory, primaryPath)

	fg, err := scanFileGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("file_group %s/%s not found", directory, primaryPath)
	}

	return fg, err
}

// ListByDirectory returns every FileGroup whose directory is directory or a
// descendant of it, used by the refresh pipeline's delete phase to diff
// against what's currently on disk and by the collection move operation to
// find descendants needing their directory rewritten.
func (s *FileGroupStore) ListByDirectory(ctx context.Context, directory string) ([]*model.FileGroup, error) {
	exact, prefix := directoryMatchArgs(directory)

	rows, err := s.db.Conn().QueryContext(ctx,
		fileGroupSelectColumns+` WHERE directory = ? OR directory LIKE ? ESCAPE '\' ORDER BY directory, primary_path`,
		exact, prefix)
	if err != nil {
		return nil, fmt.Errorf("store: listing file_groups under %s: %w", directory, err)
	}
	defer rows.Close()

	return scanFileGroups(rows)
}

// directoryMatchArgs builds the (exact, prefix) argument pair for an
// "under this directory, recursively" query: FileGroups may live in
// arbitrarily nested subdirectories beneath a Collection's directory
// (e.g. year/ subfolders), so matching by exact equality alone would
// silently miss every descendant. LIKE wildcard characters in the
// directory itself are escaped so a literal '%' or '_' in a path
// component doesn't widen the match.
func directoryMatchArgs(directory string) (exact, prefix string) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(directory)

	return directory, escaped + string(filepath.Separator) + "%"
}

// ListPendingSurfaceIndex returns up to limit FileGroups with indexed=0, the
// refresh pipeline's surface-indexing batch source. Batches must be drained
// with len(batch) < limit as the stop condition (never an off-by-one
// enumerate-style counter), since a batch short of limit means no rows
// remain.
func (s *FileGroupStore) ListPendingSurfaceIndex(ctx context.Context, limit int) ([]*model.FileGroup, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		fileGroupSelectColumns+` WHERE indexed = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: listing pending surface index: %w", err)
	}
	defer rows.Close()

	return scanFileGroups(rows)
}

// ListPendingDeepIndex returns up to limit FileGroups with indexed=1 AND
// deep_indexed=0, the refresh pipeline's modeler batch source. Same
// batch-draining discipline as ListPendingSurfaceIndex applies.
func (s *FileGroupStore) ListPendingDeepIndex(ctx context.Context, limit int) ([]*model.FileGroup, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		fileGroupSelectColumns+` WHERE indexed = 1 AND deep_indexed = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: listing pending deep index: %w", err)
	}
	defer rows.Close()

	return scanFileGroups(rows)
}

// Update persists all mutable fields of fg (full-row update rather than
// partial PATCH semantics).
func (s *FileGroupStore) Update(ctx context.Context, fg *model.FileGroup) error {
	dataJSON, err := encodeDataMap(fg.Data)
	if err != nil {
		return err
	}

	filesJSON, err := json.Marshal(fg.Files)
	if err != nil {
		return fmt.Errorf("store: encoding file_group.files: %w", err)
	}

	_, err = s.db.Conn().ExecContext(ctx, `
		UPDATE file_group SET
			directory = ?, primary_path = ?, mimetype = ?, size = ?, indexed = ?, deep_indexed = ?,
			failure_note = ?, title = ?, author = ?, url = ?, published = ?, modified = ?,
			a_text = ?, b_text = ?, c_text = ?, d_text = ?, data = ?, files = ?, updated_at = ?
		WHERE id = ?`,
		fg.Directory, fg.PrimaryPath, fg.Mimetype, fg.Size, boolToInt(fg.Indexed), boolToInt(fg.DeepIndexed),
		fg.FailureNote, fg.Title, fg.Author, fg.URL, timeToNullInt(fg.Published), timeToNullInt(fg.Modified),
		fg.ATitleText, fg.BSummaryText, fg.CKeywordsText, fg.DBodyText, dataJSON, string(filesJSON),
		time.Now().UTC().Unix(), fg.ID)
	if err != nil {
		return fmt.Errorf("store: updating file_group %d: %w", fg.ID, err)
	}

	return nil
}

// Delete removes a FileGroup row (cascades to tag_file and archive/video).
func (s *FileGroupStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.Conn().ExecContext(ctx, `DELETE FROM file_group WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: deleting file_group %d: %w", id, err)
	}

	return nil
}

// CountUnder returns the number of FileGroups rooted at directory, used by
// the collection-prune hook to decide whether a domain Collection's
// directory is now empty.
func (s *FileGroupStore) CountUnder(ctx context.Context, directory string) (int, error) {
	exact, prefix := directoryMatchArgs(directory)

	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM file_group WHERE directory = ? OR directory LIKE ? ESCAPE '\'`, exact, prefix)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("store: counting file_groups under %s: %w", directory, err)
	}

	return count, nil
}

const fileGroupSelectColumns = `
	SELECT id, directory, primary_path, mimetype, size, indexed, deep_indexed,
		failure_note, title, author, url, published, modified,
		a_text, b_text, c_text, d_text, data, files, created_at, updated_at
	FROM file_group`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFileGroup(row rowScanner) (*model.FileGroup, error) {
	var (
		fg                         model.FileGroup
		indexedInt, deepIndexedInt int
		published, modified        sql.NullInt64
		dataJSON, filesJSON        string
		createdAt, updatedAt       int64
	)

	err := row.Scan(
		&fg.ID, &fg.Directory, &fg.PrimaryPath, &fg.Mimetype, &fg.Size, &indexedInt, &deepIndexedInt,
		&fg.FailureNote, &fg.Title, &fg.Author, &fg.URL, &published, &modified,
		&fg.ATitleText, &fg.BSummaryText, &fg.CKeywordsText, &fg.DBodyText, &dataJSON, &filesJSON,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: scanning file_group: %w", err)
	}

	fg.Indexed = indexedInt != 0
	fg.DeepIndexed = deepIndexedInt != 0
	fg.Published = nullIntToTime(published)
	fg.Modified = nullIntToTime(modified)
	fg.CreatedAt = time.Unix(createdAt, 0).UTC()
	fg.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	if err := json.Unmarshal([]byte(dataJSON), &fg.Data); err != nil {
		return nil, fmt.Errorf("store: decoding file_group.data: %w", err)
	}

	if err := json.Unmarshal([]byte(filesJSON), &fg.Files); err != nil {
		return nil, fmt.Errorf("store: decoding file_group.files: %w", err)
	}

	return &fg, nil
}

func scanFileGroups(rows *sql.Rows) ([]*model.FileGroup, error) {
	var groups []*model.FileGroup

	for rows.Next() {
		fg, err := scanFileGroup(rows)
		if err != nil {
			return nil, err
		}

		groups = append(groups, fg)
	}

	return groups, rows.Err()
}

func encodeDataMap(data map[string]string) (string, error) {
	if data == nil {
		data = map[string]string{}
	}

	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("store: encoding file_group.data: %w", err)
	}

	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

func timeToNullInt(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: t.UTC().Unix(), Valid: true}
}

func nullIntToTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}

	t := time.Unix(n.Int64, 0).UTC()

	return &t
}
