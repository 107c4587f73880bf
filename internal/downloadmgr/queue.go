package downloadmgr

import (
	"context"
	"fmt"
	"time"

	"github.com/wrolpi/archivaid/internal/model"
	"github.com/wrolpi/archivaid/internal/store"
)

// Queue wraps DownloadStore's guarded status-transition methods, the same
// claim/complete/fail/defer shape as a generic action ledger, generalized
// from sync actions to Download rows.
type Queue struct {
	downloads *store.DownloadStore
}

// NewQueue wraps downloads.
func NewQueue(downloads *store.DownloadStore) *Queue {
	return &Queue{downloads: downloads}
}

// Enqueue inserts a new Download. Idempotent by URL: d.URL already having a
// non-terminal Download returns that row's id instead of creating a
// duplicate, per store.DownloadStore.Create.
func (q *Queue) Enqueue(ctx context.Context, d *model.Download) (int64, error) {
	if d.Status == "" {
		d.Status = model.DownloadStatusNew
	}

	return q.downloads.Create(ctx, d)
}

// NextEligible returns up to limit Downloads eligible to run now: new, or
// deferred/recurring-complete whose next_download has elapsed. The
// new → deferred-with-elapsed-next_download → recurring order is enforced
// by ListEligible's ORDER BY, see store/download_store.go.
func (q *Queue) NextEligible(ctx context.Context, now time.Time, limit int) ([]*model.Download, error) {
	return q.downloads.ListEligible(ctx, now, limit)
}

// Claim transitions a Download from new/deferred to pending.
func (q *Queue) Claim(ctx context.Context, id int64) error {
	return q.downloads.Claim(ctx, id)
}

// Succeed completes a one-shot Download, or reschedules a recurring one
// immediately.
func (q *Queue) Succeed(ctx context.Context, d *model.Download, location string) error {
	if err := q.downloads.Complete(ctx, d.ID, location); err != nil {
		return fmt.Errorf("downloadmgr: completing download %d: %w", d.ID, err)
	}

	if !d.IsRecurring() {
		return nil
	}

	next := time.Now().UTC().Add(*d.Frequency)

	if err := q.downloads.Reschedule(ctx, d.ID, next); err != nil {
		return fmt.Errorf("downloadmgr: rescheduling recurring download %d: %w", d.ID, err)
	}

	return nil
}

// FailTransient defers the Download with an exponential backoff computed
// from Attempts.
func (q *Queue) FailTransient(ctx context.Context, d *model.Download, cause string) error {
	next := time.Now().UTC().Add(backoffDuration(d.Attempts))

	if err := q.downloads.Defer(ctx, d.ID, cause, next); err != nil {
		return fmt.Errorf("downloadmgr: deferring download %d: %w", d.ID, err)
	}

	return nil
}

// FailPermanent marks the Download failed with no further retries: an
// unrecoverable error means status=failed with no retry.
func (q *Queue) FailPermanent(ctx context.Context, d *model.Download, cause string) error {
	if err := q.downloads.Fail(ctx, d.ID, cause); err != nil {
		return fmt.Errorf("downloadmgr: failing download %d: %w", d.ID, err)
	}

	return nil
}

// Retry resets a failed Download back to new, for the CLI's
// `download retry`/`retry_failed` commands.
func (q *Queue) Retry(ctx context.Context, id int64) error {
	return q.downloads.Retry(ctx, id)
}
