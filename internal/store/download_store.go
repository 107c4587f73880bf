package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wrolpi/archivaid/internal/apperr"
	"github.com/wrolpi/archivaid/internal/model"
)

// DownloadStore persists model.Download rows and enforces their
// status-transition discipline: every mutation is a guarded SQL UPDATE
// (WHERE status = <expected>), a claim/complete/fail pattern generalized
// here to downloads.
type DownloadStore struct {
	db *DB
}

// NewDownloadStore returns a DownloadStore bound to db.
func NewDownloadStore(db *DB) *DownloadStore {
	return &DownloadStore{db: db}
}

// Create inserts a new Download row in status "new" and returns its id.
// create_download is idempotent by url: if a non-terminal Download for
// d.URL already exists (idx_download_url_active rejects the insert),
// Create returns that existing row's id instead of erroring, so calling
// it twice with the same URL returns the same Download id both times.
func (s *DownloadStore) Create(ctx context.Context, d *model.Download) (int64, error) {
	now := time.Now().UTC()

	settingsJSON, err := json.Marshal(defaultMap(d.Settings))
	if err != nil {
		return 0, fmt.Errorf("store: encoding download.settings: %w", err)
	}

	tagNamesJSON, err := json.Marshal(defaultSlice(d.TagNames))
	if err != nil {
		return 0, fmt.Errorf("store: encoding download.tag_names: %w", err)
	}

	res, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO download (
			url, downloader, destination, frequency_seconds, status,
			last_successful_download, next_download, attempts, sub_downloader,
			settings, tag_names, collection_id, location, last_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, 'new', ?, ?, 0, ?, ?, ?, ?, '', '', ?, ?)`,
		d.URL, d.Downloader, d.Destination, durationToNullInt(d.Frequency),
		timeToNullInt(d.LastSuccessfulDownload), timeToNullInt(d.NextDownload), d.SubDownloader,
		string(settingsJSON), string(tagNamesJSON), nullableInt64(d.CollectionID),
		now.Unix(), now.Unix())
	if err != nil {
		if isUniqueConstraintErr(err) {
			existing, getErr := s.GetActiveByURL(ctx, d.URL)
			if getErr != nil {
				return 0, getErr
			}

			return existing.ID, nil
		}

		return 0, fmt.Errorf("store: creating download for %s: %w", d.URL, err)
	}

	return res.LastInsertId()
}

// GetByID fetches a Download by id.
func (s *DownloadStore) GetByID(ctx context.Context, id int64) (*model.Download, error) {
	row := s.db.Conn().QueryRowContext(ctx, downloadSelectColumns+` WHERE id = ?`, id)

	d, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("download id %d not found", id)
	}

	return d, err
}

// GetActiveByURL fetches the non-terminal Download for url, if any.
func (s *DownloadStore) GetActiveByURL(ctx context.Context, url string) (*model.Download, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		downloadSelectColumns+` WHERE url = ? AND status IN ('new', 'pending', 'deferred')`, url)

	d, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("no active download for url %s", url)
	}

	return d, err
}

// ListEligible returns downloads eligible for dispatch: status in
// (new, deferred) and next_download either unset or due — the scheduler's
// candidate pool. New rows that have never succeeded come first, then
// deferred rows, then recurring rows rescheduled back to new; each group
// is ordered by id, oldest first.
func (s *DownloadStore) ListEligible(ctx context.Context, now time.Time, limit int) ([]*model.Download, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		downloadSelectColumns+`
		WHERE status IN ('new', 'deferred')
		AND (next_download IS NULL OR next_download <= ?)
		ORDER BY CASE
			WHEN status = 'new' AND last_successful_download IS NULL THEN 0
			WHEN status = 'deferred' THEN 1
			ELSE 2
		END, id
		LIMIT ?`, now.UTC().Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("store: listing eligible downloads: %w", err)
	}
	defer rows.Close()

	return scanDownloads(rows)
}

// ListByStatus returns every Download with the given status.
func (s *DownloadStore) ListByStatus(ctx context.Context, status model.DownloadStatus) ([]*model.Download, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		downloadSelectColumns+` WHERE status = ? ORDER BY created_at`, string(status))
	if err != nil {
		return nil, fmt.Errorf("store: listing %s downloads: %w", status, err)
	}
	defer rows.Close()

	return scanDownloads(rows)
}

// ListByDestinationPrefix returns every Download whose destination is
// directory or nested beneath it, used by the collection move operation to
// find descendants needing their destination rewritten.
func (s *DownloadStore) ListByDestinationPrefix(ctx context.Context, directory string) ([]*model.Download, error) {
	exact, prefix := directoryMatchArgs(directory)

	rows, err := s.db.Conn().QueryContext(ctx,
		downloadSelectColumns+` WHERE destination = ? OR destination LIKE ? ESCAPE '\' ORDER BY id`,
		exact, prefix)
	if err != nil {
		return nil, fmt.Errorf("store: listing downloads under destination %s: %w", directory, err)
	}
	defer rows.Close()

	return scanDownloads(rows)
}

// UpdateDestination rewrites a Download's destination path, used by the
// collection move operation after relocating a Collection's directory.
func (s *DownloadStore) UpdateDestination(ctx context.Context, id int64, destination string) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`UPDATE download SET destination = ?, updated_at = ? WHERE id = ?`,
		destination, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("store: updating download %d destination: %w", id, err)
	}

	return nil
}

// Claim transitions a download from new/deferred to pending. Returns
// apperr.ErrConflict if the row was not in an expected state (already
// claimed by a concurrent scheduler pass).
func (s *DownloadStore) Claim(ctx context.Context, id int64) error {
	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE download SET status = 'pending', attempts = attempts + 1, updated_at = ?
		 WHERE id = ? AND status IN ('new', 'deferred')`,
		time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("store: claiming download %d: %w", id, err)
	}

	return requireRowsAffected(res, "claim download %d", id)
}

// Complete transitions a pending download to complete, recording location
// and last_successful_download and clearing last_error. For a recurring
// download the caller calls Reschedule after Complete.
func (s *DownloadStore) Complete(ctx context.Context, id int64, location string) error {
	now := time.Now().UTC().Unix()

	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE download SET status = 'complete', location = ?, last_error = '',
			last_successful_download = ?, updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		location, now, now, id)
	if err != nil {
		return fmt.Errorf("store: completing download %d: %w", id, err)
	}

	return requireRowsAffected(res, "complete download %d", id)
}

// Fail transitions a pending download to failed and records the error.
func (s *DownloadStore) Fail(ctx context.Context, id int64, cause string) error {
	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE download SET status = 'failed', last_error = ?, updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		cause, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("store: failing download %d: %w", id, err)
	}

	return requireRowsAffected(res, "fail download %d", id)
}

// Defer transitions a pending download back to deferred after a transient
// failure, recording the error and the next retry time.
func (s *DownloadStore) Defer(ctx context.Context, id int64, cause string, nextDownload time.Time) error {
	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE download SET status = 'deferred', last_error = ?, next_download = ?, updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		cause, nextDownload.UTC().Unix(), time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("store: deferring download %d: %w", id, err)
	}

	return requireRowsAffected(res, "defer download %d", id)
}

// Reschedule moves a complete, recurring download back to new with a fresh
// next_download, supporting the frequency-based re-queue loop.
func (s *DownloadStore) Reschedule(ctx context.Context, id int64, nextDownload time.Time) error {
	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE download SET status = 'new', next_download = ?, updated_at = ?
		 WHERE id = ? AND status = 'complete'`,
		nextDownload.UTC().Unix(), time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("store: rescheduling download %d: %w", id, err)
	}

	return requireRowsAffected(res, "reschedule download %d", id)
}

// Retry resets a failed download back to new, clearing attempts, for manual
// retry_failed commands.
func (s *DownloadStore) Retry(ctx context.Context, id int64) error {
	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE download SET status = 'new', attempts = 0, last_error = '', updated_at = ?
		 WHERE id = ? AND status = 'failed'`,
		time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("store: retrying download %d: %w", id, err)
	}

	return requireRowsAffected(res, "retry download %d", id)
}

// UpdateSettings persists the config-mutable fields of a download
// (downloader, sub_downloader, frequency, tag_names) without touching its
// status, used by internal/configmirror to reconcile recurring downloads
// against download_manager.yaml.
func (s *DownloadStore) UpdateSettings(ctx context.Context, d *model.Download) error {
	tagNamesJSON, err := json.Marshal(defaultSlice(d.TagNames))
	if err != nil {
		return fmt.Errorf("store: encoding download.tag_names: %w", err)
	}

	_, err = s.db.Conn().ExecContext(ctx, `
		UPDATE download SET downloader = ?, sub_downloader = ?, frequency_seconds = ?, tag_names = ?, updated_at = ?
		WHERE id = ?`,
		d.Downloader, d.SubDownloader, durationToNullInt(d.Frequency), string(tagNamesJSON),
		time.Now().UTC().Unix(), d.ID)
	if err != nil {
		return fmt.Errorf("store: updating download %d settings: %w", d.ID, err)
	}

	return nil
}

// Delete removes a Download row outright (used for "kill" on non-terminal
// downloads, where there is no terminal state to transition to).
func (s *DownloadStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.Conn().ExecContext(ctx, `DELETE FROM download WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: deleting download %d: %w", id, err)
	}

	return nil
}

const downloadSelectColumns = `
	SELECT id, url, downloader, destination, frequency_seconds, status,
		last_successful_download, next_download, attempts, sub_downloader,
		settings, tag_names, collection_id, location, last_error
	FROM download`

func scanDownload(row rowScanner) (*model.Download, error) {
	var (
		d                              model.Download
		status                         string
		frequencySeconds               sql.NullInt64
		lastSuccessful, nextDownload   sql.NullInt64
		collectionID                   sql.NullInt64
		settingsJSON, tagNamesJSON     string
	)

	err := row.Scan(
		&d.ID, &d.URL, &d.Downloader, &d.Destination, &frequencySeconds, &status,
		&lastSuccessful, &nextDownload, &d.Attempts, &d.SubDownloader,
		&settingsJSON, &tagNamesJSON, &collectionID, &d.Location, &d.LastError)
	if err != nil {
		return nil, fmt.Errorf("store: scanning download: %w", err)
	}

	d.Status = model.DownloadStatus(status)
	d.Frequency = nullIntToDuration(frequencySeconds)
	d.LastSuccessfulDownload = nullIntToTime(lastSuccessful)
	d.NextDownload = nullIntToTime(nextDownload)

	if collectionID.Valid {
		id := collectionID.Int64
		d.CollectionID = &id
	}

	if err := json.Unmarshal([]byte(settingsJSON), &d.Settings); err != nil {
		return nil, fmt.Errorf("store: decoding download.settings: %w", err)
	}

	if err := json.Unmarshal([]byte(tagNamesJSON), &d.TagNames); err != nil {
		return nil, fmt.Errorf("store: decoding download.tag_names: %w", err)
	}

	return &d, nil
}

func scanDownloads(rows *sql.Rows) ([]*model.Download, error) {
	var downloads []*model.Download

	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}

		downloads = append(downloads, d)
	}

	return downloads, rows.Err()
}

func requireRowsAffected(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: reading rows affected: %w", err)
	}

	if n == 0 {
		return apperr.Conflict(format+": not in expected state", args...)
	}

	return nil
}

func durationToNullInt(d *time.Duration) sql.NullInt64 {
	if d == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: int64(d.Seconds()), Valid: true}
}

func nullIntToDuration(n sql.NullInt64) *time.Duration {
	if !n.Valid {
		return nil
	}

	d := time.Duration(n.Int64) * time.Second

	return &d
}

func defaultMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}

func defaultSlice(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
