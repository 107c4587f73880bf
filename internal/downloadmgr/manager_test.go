package downloadmgr

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrolpi/archivaid/internal/apperr"
	"github.com/wrolpi/archivaid/internal/events"
	"github.com/wrolpi/archivaid/internal/model"
	"github.com/wrolpi/archivaid/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.DownloadStore) {
	t.Helper()

	db, err := store.OpenMemory(context.Background(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	downloads := store.NewDownloadStore(db)
	m := New(downloads, NewRegistry(), events.NewFeed(), slog.Default(), 2)

	return m, downloads
}

func waitForStatus(t *testing.T, downloads *store.DownloadStore, id int64, status model.DownloadStatus) *model.Download {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)

	for time.Now().Before(deadline) {
		d, err := downloads.GetByID(context.Background(), id)
		require.NoError(t, err)

		if d.Status == status {
			return d
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("download %d never reached status %s", id, status)

	return nil
}

func TestManager_NewDefaultsDisabledAndStopped(t *testing.T) {
	m, _ := newTestManager(t)
	assert.False(t, m.isRunnable())
}

func TestManager_EnableAndStartDispatchesSucceedingDownload(t *testing.T) {
	m, downloads := newTestManager(t)

	m.registry.Register("noop", func(_ context.Context, d *model.Download) (Result, error) {
		return Result{Location: "/archive/1"}, nil
	})

	id, err := downloads.Create(context.Background(), &model.Download{
		URL: "https://example.com/a", Downloader: "noop", Destination: "/tmp/a",
	})
	require.NoError(t, err)

	m.Enable()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	defer m.Stop()

	m.dispatchOnce(ctx)

	waitForStatus(t, downloads, id, model.DownloadStatusComplete)
}

func TestManager_UnregisteredDownloaderFailsPermanently(t *testing.T) {
	m, downloads := newTestManager(t)

	id, err := downloads.Create(context.Background(), &model.Download{
		URL: "https://example.com/a", Downloader: "missing", Destination: "/tmp/a",
	})
	require.NoError(t, err)

	m.Enable()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	defer m.Stop()

	m.dispatchOnce(ctx)

	waitForStatus(t, downloads, id, model.DownloadStatusFailed)
}

func TestManager_UnrecoverableErrorFailsPermanently(t *testing.T) {
	m, downloads := newTestManager(t)

	m.registry.Register("broken", func(_ context.Context, _ *model.Download) (Result, error) {
		return Result{}, apperr.Wrap(apperr.CodeUnrecoverable, "unrecoverable", errors.New("410 gone"))
	})

	id, err := downloads.Create(context.Background(), &model.Download{
		URL: "https://example.com/a", Downloader: "broken", Destination: "/tmp/a",
	})
	require.NoError(t, err)

	m.Enable()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	defer m.Stop()

	m.dispatchOnce(ctx)

	waitForStatus(t, downloads, id, model.DownloadStatusFailed)
}

func TestManager_TransientErrorDefers(t *testing.T) {
	m, downloads := newTestManager(t)

	m.registry.Register("flaky", func(_ context.Context, _ *model.Download) (Result, error) {
		return Result{}, errors.New("temporary network error")
	})

	id, err := downloads.Create(context.Background(), &model.Download{
		URL: "https://example.com/a", Downloader: "flaky", Destination: "/tmp/a",
	})
	require.NoError(t, err)

	m.Enable()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	defer m.Stop()

	m.dispatchOnce(ctx)

	waitForStatus(t, downloads, id, model.DownloadStatusDeferred)
}

func TestManager_KillUnknownDownloadReturnsFalse(t *testing.T) {
	m, _ := newTestManager(t)
	assert.False(t, m.Kill(9999))
}

func TestManager_NotifyArchiveCreated_CompletesFailedDownload(t *testing.T) {
	m, downloads := newTestManager(t)
	ctx := context.Background()

	id, err := downloads.Create(ctx, &model.Download{
		URL: "https://example.com/page", Downloader: "archive", Destination: "/tmp/page",
	})
	require.NoError(t, err)
	require.NoError(t, downloads.Claim(ctx, id))
	require.NoError(t, downloads.Fail(ctx, id, "timed out"))

	require.NoError(t, m.NotifyArchiveCreated(ctx, "https://example.com/page", "/archive/page"))

	d, err := downloads.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.DownloadStatusComplete, d.Status)
	assert.Equal(t, "/archive/page", d.Location)
}

func TestManager_NotifyArchiveCreated_NoMatchingDownloadIsNoOp(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.NotifyArchiveCreated(context.Background(), "https://example.com/unrelated", "/archive/x")
	assert.NoError(t, err)
}
