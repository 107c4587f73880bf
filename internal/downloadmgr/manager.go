package downloadmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wrolpi/archivaid/internal/apperr"
	"github.com/wrolpi/archivaid/internal/events"
	"github.com/wrolpi/archivaid/internal/model"
	"github.com/wrolpi/archivaid/internal/store"
)

// dispatchInterval is how often the scheduler polls for eligible
// downloads when idle.
const dispatchInterval = 5 * time.Second

// Manager is the download manager's top-level coordinator: it owns the
// two independent process-wide flags (disabled/stopped, both default
// true at startup until a post-config-import step flips them), the
// per-domain throttle, the worker pool, and per-download kill contexts.
type Manager struct {
	queue    *Queue
	registry *Registry
	domains  *domainLock
	pool     *workerPool
	feed     *events.Feed
	logger   *slog.Logger

	workers   int
	bandwidth *BandwidthLimiter

	mu       sync.Mutex
	disabled bool
	stopped  bool
	kills    map[int64]context.CancelFunc

	loopCancel context.CancelFunc
	loopWG     sync.WaitGroup
}

// New builds a Manager. Downloads do not dispatch until both Enable and
// Start have been called, so the queue stays quiescent until a
// post-config-import startup step explicitly turns it on.
func New(downloads *store.DownloadStore, registry *Registry, feed *events.Feed, logger *slog.Logger, workers int) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	if workers < 1 {
		workers = 1
	}

	return &Manager{
		queue:    NewQueue(downloads),
		registry: registry,
		domains:  newDomainLock(),
		pool:     newWorkerPool(logger, workers*4),
		feed:     feed,
		logger:   logger,
		workers:  workers,
		disabled: true,
		stopped:  true,
		kills:    make(map[int64]context.CancelFunc),
	}
}

// Registry returns the Manager's downloader registry, used by callers
// (e.g. the CLI's `download add`) to auto-select a downloader by URL when
// none is named explicitly.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// AlreadyDownloaded implements already_downloaded(*urls): for each url it
// resolves the downloader that would handle it (the same priority-by-
// Matcher resolution create_download's auto-select uses) and delegates to
// that downloader's AlreadyDownloadedFunc. A url with no matching
// downloader, or whose downloader registered no check, reports false.
func (m *Manager) AlreadyDownloaded(ctx context.Context, urls ...string) (map[string]bool, error) {
	result := make(map[string]bool, len(urls))

	for _, url := range urls {
		name, ok := m.registry.ResolveByURL(url)
		if !ok {
			result[url] = false

			continue
		}

		done, err := m.registry.AlreadyDownloaded(ctx, name, url)
		if err != nil {
			return nil, fmt.Errorf("downloadmgr: checking already_downloaded for %s: %w", url, err)
		}

		result[url] = done
	}

	return result, nil
}

// SetBandwidthLimiter attaches a shared rate limiter that every dispatched
// Downloader receives via its context.
// A nil limiter means unlimited and is the default.
func (m *Manager) SetBandwidthLimiter(bl *BandwidthLimiter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bandwidth = bl
}

// Enable flips the disabled flag off (called after config import has run,
// whether or not every file imported).
func (m *Manager) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disabled = false
}

// Disable flips the disabled flag on, preventing new dispatch without
// affecting in-flight downloads.
func (m *Manager) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disabled = true

	m.feed.SendDownloadsDisabled()
}

// Start clears the stopped flag and begins the dispatch loop and worker
// pool.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.stopped = false
	m.mu.Unlock()

	ctx, m.loopCancel = context.WithCancel(ctx)

	m.pool.start(ctx, m.workers, m.runOne)

	m.loopWG.Add(1)

	go m.dispatchLoop(ctx)
}

// Stop halts dispatch and waits for in-flight downloads to finish or be
// canceled by the caller's ctx.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()

	if m.loopCancel != nil {
		m.loopCancel()
	}

	m.loopWG.Wait()
	m.pool.stop()
}

// Kill cancels an in-flight download's context. The Downloader is
// responsible for noticing ctx.Err() at its suspension points and
// leaving no partial FileGroup behind.
func (m *Manager) Kill(downloadID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cancel, ok := m.kills[downloadID]
	if !ok {
		return false
	}

	cancel()

	return true
}

func (m *Manager) isRunnable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return !m.disabled && !m.stopped
}

// dispatchLoop polls for eligible downloads and submits them to the
// worker pool, honoring the per-domain throttle: a download whose domain
// is already in flight is skipped this tick rather than blocking the
// loop (it will be picked up again on the next poll).
func (m *Manager) dispatchLoop(ctx context.Context) {
	defer m.loopWG.Done()

	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.dispatchOnce(ctx)
		}
	}
}

func (m *Manager) dispatchOnce(ctx context.Context) {
	if !m.isRunnable() {
		return
	}

	cycleID := uuid.NewString()

	eligible, err := m.queue.NextEligible(ctx, time.Now().UTC(), m.workers*2)
	if err != nil {
		m.logger.Error("listing eligible downloads", slog.String("cycle_id", cycleID), slog.Any("error", err))

		return
	}

	for _, d := range eligible {
		domain := domainOf(d.URL)

		if !m.domains.tryAcquire(domain) {
			continue
		}

		if err := m.queue.Claim(ctx, d.ID); err != nil {
			m.domains.release(domain)

			continue
		}

		if err := m.pool.submit(ctx, d.ID); err != nil {
			m.domains.release(domain)

			return
		}
	}
}

// runOne executes one claimed Download by ID, releasing its domain slot
// and kill context when done.
func (m *Manager) runOne(ctx context.Context, downloadID int64) {
	d, err := m.queue.downloads.GetByID(ctx, downloadID)
	if err != nil {
		m.logger.Error("loading claimed download", slog.Int64("download_id", downloadID), slog.Any("error", err))

		return
	}

	domain := domainOf(d.URL)
	defer m.domains.release(domain)

	downloadCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.kills[downloadID] = cancel
	bandwidth := m.bandwidth
	m.mu.Unlock()

	downloadCtx = WithLimiter(downloadCtx, bandwidth)

	defer func() {
		m.mu.Lock()
		delete(m.kills, downloadID)
		m.mu.Unlock()
		cancel()
	}()

	downloader, ok := m.registry.Get(d.Downloader)
	if !ok {
		m.handleFailure(ctx, d, apperr.Wrap(apperr.CodeUnrecoverable, "no downloader registered", errors.New(d.Downloader)))

		return
	}

	result, err := downloader(downloadCtx, d)
	if err != nil {
		m.handleFailure(ctx, d, err)

		return
	}

	if err := m.queue.Succeed(ctx, d, result.Location); err != nil {
		m.logger.Error("recording download success", slog.Int64("download_id", d.ID), slog.Any("error", err))

		return
	}

	m.feed.SendDownloadComplete(d.URL, result.Location)
}

func (m *Manager) handleFailure(ctx context.Context, d *model.Download, cause error) {
	if errors.Is(cause, apperr.ErrUnrecoverable) {
		if err := m.queue.FailPermanent(ctx, d, cause.Error()); err != nil {
			m.logger.Error("recording permanent failure", slog.Int64("download_id", d.ID), slog.Any("error", err))
		}

		m.feed.SendDownloadFailed(d.URL, cause.Error())

		return
	}

	if err := m.queue.FailTransient(ctx, d, cause.Error()); err != nil {
		m.logger.Error("recording transient failure", slog.Int64("download_id", d.ID), slog.Any("error", err))
	}
}

// NotifyArchiveCreated handles a SingleFile blob uploaded out-of-band for
// url: when a failed or deferred Download already exists for that url,
// it completes that Download rather than leaving it stuck. Completion
// only happens from "pending"
// (store/download_store.go's guarded UPDATE), so a failed row is walked
// back through Retry+Claim first rather than patched directly.
func (m *Manager) NotifyArchiveCreated(ctx context.Context, url, location string) error {
	for _, status := range []model.DownloadStatus{model.DownloadStatusFailed, model.DownloadStatusDeferred} {
		rows, err := m.queue.downloads.ListByStatus(ctx, status)
		if err != nil {
			return err
		}

		for _, d := range rows {
			if d.URL != url {
				continue
			}

			if status == model.DownloadStatusFailed {
				if err := m.queue.downloads.Retry(ctx, d.ID); err != nil {
					return err
				}
			}

			if err := m.queue.downloads.Claim(ctx, d.ID); err != nil {
				return err
			}

			return m.queue.downloads.Complete(ctx, d.ID, location)
		}
	}

	return nil
}
