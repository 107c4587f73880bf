// Package refresh implements the discovery → surface-index → deep-model →
// after-hooks → delete pipeline. Uses a single Pipeline type driving
// phases under a re-entry guard and emitting progress as it goes.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/wrolpi/archivaid/internal/events"
	"github.com/wrolpi/archivaid/internal/model"
	"github.com/wrolpi/archivaid/internal/modeler"
	"github.com/wrolpi/archivaid/internal/store"
)

// defaultBatchSize bounds how many FileGroups the surface-index and deep-model
// phases process per transaction.
const defaultBatchSize = 100

// Pipeline runs refresh cycles against one media root.
type Pipeline struct {
	fileGroups *store.FileGroupStore
	registry   *modeler.Registry
	feed       *events.Feed
	logger     *slog.Logger
	batchSize  int
	hooks      []AfterRefreshHook

	running atomic.Bool
}

// AfterRefreshHook runs once per full refresh cycle.
// Hooks must be idempotent: the driver may run them on every refresh,
// not just the first.
type AfterRefreshHook func(ctx context.Context) error

// New builds a Pipeline. Call AddHook to register after-refresh cleanup
// functions before the first Run.
func New(fileGroups *store.FileGroupStore, registry *modeler.Registry, feed *events.Feed, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		fileGroups: fileGroups,
		registry:   registry,
		feed:       feed,
		logger:     logger,
		batchSize:  defaultBatchSize,
	}
}

// SetBatchSize overrides the default batch size (mainly for tests pinning
// the off-by-one scenario to a specific batch size).
func (p *Pipeline) SetBatchSize(n int) {
	if n > 0 {
		p.batchSize = n
	}
}

// AddHook registers an after-refresh hook, run in registration order.
func (p *Pipeline) AddHook(hook AfterRefreshHook) {
	p.hooks = append(p.hooks, hook)
}

// Report summarizes one Run.
type Report struct {
	Discovered int
	Indexed    int
	Modeled    int
	Deleted    int
}

// Run executes one full refresh cycle rooted at directory. Re-entry while
// a refresh is already running is a no-op.
func (p *Pipeline) Run(ctx context.Context, directory string) (Report, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Report{}, nil
	}
	defer p.running.Store(false)

	p.feed.SendGlobalRefreshStarted()

	var report Report

	candidates, err := Discover(directory)
	if err != nil {
		return report, fmt.Errorf("refresh: discovering %s: %w", directory, err)
	}

	report.Discovered = len(candidates)
	p.feed.SendGlobalRefreshDiscoveryCompleted(report.Discovered)

	seen, err := p.reconcileDiscovered(ctx, candidates)
	if err != nil {
		return report, err
	}

	indexed, err := p.surfaceIndex(ctx)
	if err != nil {
		return report, err
	}

	report.Indexed = indexed
	p.feed.SendGlobalRefreshIndexingCompleted(indexed)

	modeled, err := p.deepModel(ctx)
	if err != nil {
		return report, err
	}

	report.Modeled = modeled
	p.feed.SendGlobalRefreshModelingCompleted(modeled)

	for _, hook := range p.hooks {
		if err := hook(ctx); err != nil {
			p.logger.Error("after-refresh hook failed", slog.Any("error", err))
		}
	}

	p.feed.SendGlobalAfterRefreshCompleted()

	deleted, err := p.deleteMissing(ctx, directory, seen)
	if err != nil {
		return report, err
	}

	report.Deleted = deleted

	p.feed.SendRefreshCompleted(directory)

	return report, nil
}

// reconcileDiscovered upserts a FileGroup per candidate and returns the set
// of (directory, primary_path) keys seen on disk this cycle, for the
// delete phase to diff against.
func (p *Pipeline) reconcileDiscovered(ctx context.Context, candidates []candidateGroup) (map[string]bool, error) {
	seen := make(map[string]bool, len(candidates))

	for _, c := range candidates {
		seen[seenKey(c.Directory, c.PrimaryPath)] = true

		existing, err := p.fileGroups.GetByDirectoryAndPrimaryPath(ctx, c.Directory, c.PrimaryPath)
		if err != nil {
			fg := &model.FileGroup{
				Directory:   c.Directory,
				PrimaryPath: c.PrimaryPath,
				Mimetype:    guessMimetype(c.PrimaryPath),
				Size:        c.Size,
				Files:       c.Files,
				Title:       titleFromStem(c.Stem),
				Data:        map[string]string{},
			}

			if _, err := p.fileGroups.Create(ctx, fg); err != nil {
				return nil, fmt.Errorf("refresh: creating file_group %s/%s: %w", c.Directory, c.PrimaryPath, err)
			}

			p.feed.SendCreated(filepath.Join(c.Directory, c.PrimaryPath))

			continue
		}

		if existing.Size != c.Size || !sameFiles(existing.Files, c.Files) {
			existing.Size = c.Size
			existing.Files = c.Files
			existing.Indexed = false

			if err := p.fileGroups.Update(ctx, existing); err != nil {
				return nil, fmt.Errorf("refresh: updating file_group %d: %w", existing.ID, err)
			}
		}
	}

	return seen, nil
}

// surfaceIndex drains ListPendingSurfaceIndex in batches. The stop
// condition is len(batch) < p.batchSize — never an off-by-one counter
// mixing a 0-indexed enumeration with a < comparison against the limit.
func (p *Pipeline) surfaceIndex(ctx context.Context) (int, error) {
	total := 0

	for {
		batch, err := p.fileGroups.ListPendingSurfaceIndex(ctx, p.batchSize)
		if err != nil {
			return total, fmt.Errorf("refresh: listing pending surface index: %w", err)
		}

		for _, fg := range batch {
			fg.Indexed = true
			fg.DeepIndexed = false

			if err := p.fileGroups.Update(ctx, fg); err != nil {
				return total, fmt.Errorf("refresh: surface-indexing file_group %d: %w", fg.ID, err)
			}

			total++
		}

		if len(batch) < p.batchSize {
			break
		}
	}

	return total, nil
}

// deepModel drains ListPendingDeepIndex in batches, applying the same
// batch-draining discipline as surfaceIndex.
func (p *Pipeline) deepModel(ctx context.Context) (int, error) {
	total := 0

	for {
		batch, err := p.fileGroups.ListPendingDeepIndex(ctx, p.batchSize)
		if err != nil {
			return total, fmt.Errorf("refresh: listing pending deep index: %w", err)
		}

		for _, fg := range batch {
			if err := p.registry.Run(ctx, fg); err != nil {
				fg.FailureNote = err.Error()
				p.logger.Warn("modeler failed", slog.Int64("file_group_id", fg.ID), slog.Any("error", err))
			} else {
				fg.FailureNote = ""
			}

			fg.DeepIndexed = true

			if err := p.fileGroups.Update(ctx, fg); err != nil {
				return total, fmt.Errorf("refresh: deep-modeling file_group %d: %w", fg.ID, err)
			}

			total++
		}

		if len(batch) < p.batchSize {
			break
		}
	}

	return total, nil
}

// deleteMissing removes FileGroups rooted at directory whose (directory,
// primary_path) key was not observed by this cycle's discovery walk.
func (p *Pipeline) deleteMissing(ctx context.Context, directory string, seen map[string]bool) (int, error) {
	tracked, err := p.fileGroups.ListByDirectory(ctx, directory)
	if err != nil {
		return 0, fmt.Errorf("refresh: listing tracked file_groups under %s: %w", directory, err)
	}

	deleted := 0

	for _, fg := range tracked {
		if seen[seenKey(fg.Directory, fg.PrimaryPath)] {
			continue
		}

		if err := p.fileGroups.Delete(ctx, fg.ID); err != nil {
			return deleted, fmt.Errorf("refresh: deleting missing file_group %d: %w", fg.ID, err)
		}

		p.feed.SendDeleted(filepath.Join(fg.Directory, fg.PrimaryPath))

		deleted++
	}

	return deleted, nil
}

func seenKey(directory, primaryPath string) string {
	return directory + "\x00" + primaryPath
}

func sameFiles(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func guessMimetype(relativePath string) string {
	ext := filepath.Ext(relativePath)

	if t := mime.TypeByExtension(ext); t != "" {
		if idx := strings.IndexByte(t, ';'); idx >= 0 {
			t = t[:idx]
		}

		return strings.TrimSpace(t)
	}

	return "application/octet-stream"
}

func titleFromStem(stem string) string {
	base := filepath.Base(stem)

	// Strip a leading "<timestamp>_" prefix, matching the
	// "<timestamp>_<title>" naming convention.
	if idx := strings.IndexByte(base, '_'); idx > 0 && looksLikeTimestampPrefix(base[:idx]) {
		base = base[idx+1:]
	}

	return strings.ReplaceAll(base, "_", " ")
}

func looksLikeTimestampPrefix(s string) bool {
	if len(s) < 8 {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
