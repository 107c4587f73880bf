// Package downloadmgr implements the download queue's scheduling,
// dispatch, and retry policy. Acquirers (yt-dlp, SingleFile,
// libzim, a generic HTTP fetcher) are opaque named plugins registered
// against this package's Registry — the package never imports an
// acquirer implementation directly, treating downloaders purely as
// boundary functions returning bytes/metadata.
package downloadmgr

import (
	"context"
	"sort"
	"sync"

	"github.com/wrolpi/archivaid/internal/model"
)

// Result is what a Downloader returns on success: where the acquired
// content now lives and, for recurring
// downloads, an optional Collection to attach the result to.
type Result struct {
	Location     string
	CollectionID *int64
}

// Downloader acquires the content at d.URL. ctx is canceled on kill
// — a well-behaved Downloader polls
// ctx.Err() at its suspension points and must not leave a partial
// FileGroup behind if canceled. Returning an error satisfying
// apperr.ErrUnrecoverable marks the Download permanently failed; any
// other error is treated as transient and scheduled for retry.
type Downloader func(ctx context.Context, d *model.Download) (Result, error)

// Matcher reports whether its downloader accepts url. Only downloaders
// registered with a non-nil Matcher are considered by ResolveByURL; a
// downloader registered without one only ever runs when named explicitly.
type Matcher func(url string) bool

// AlreadyDownloadedFunc reports whether url already has a downloaded
// entity for its downloader's domain (e.g. an existing Archive row for
// an archive downloader), so create_download can skip redundant work.
type AlreadyDownloadedFunc func(ctx context.Context, url string) (bool, error)

// registration pairs a Downloader with its dispatch priority, optional
// URL-matcher, and optional already-downloaded check. Lower Priority
// values are tried first when more than one downloader claims the same
// URL pattern — though in practice each Download row names its
// downloader explicitly (Download.Downloader), so Priority only orders
// the catch-all/fallback case.
type registration struct {
	name              string
	priority          int
	matches           Matcher
	alreadyDownloaded AlreadyDownloadedFunc
	downloader        Downloader
}

// defaultPriority is used by downloaders registered without an explicit
// rank. Since lower values are tried first, a catch-all acquirer such as
// the archive (SingleFile) downloader registers at this rank or above, so
// any URL with a more specific match resolves to that downloader first and
// generic page archival is the fallback.
const defaultPriority = 100

// Registry maps a Download's Downloader name to the Downloader func that
// executes it, and tracks the priority order used when a caller asks for
// the default downloader to use for an unclassified URL.
type Registry struct {
	mu     sync.Mutex
	byName map[string]registration
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]registration)}
}

// Register adds a named Downloader at the default priority. It never
// participates in auto-select (no Matcher); pair with RegisterMatching
// for a downloader that should.
func (r *Registry) Register(name string, d Downloader) {
	r.RegisterMatching(name, defaultPriority, nil, nil, d)
}

// RegisterWithPriority adds a named Downloader at an explicit priority
// rank (lower runs first in auto-select order), with no Matcher.
func (r *Registry) RegisterWithPriority(name string, priority int, d Downloader) {
	r.RegisterMatching(name, priority, nil, nil, d)
}

// RegisterMatching adds a named Downloader that participates in
// auto-select: ResolveByURL considers it a candidate for any url where
// matches returns true. alreadyDownloaded may be nil if this downloader
// has no typed-entity check to delegate to.
func (r *Registry) RegisterMatching(name string, priority int, matches Matcher, alreadyDownloaded AlreadyDownloadedFunc, d Downloader) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName[name] = registration{
		name:              name,
		priority:          priority,
		matches:           matches,
		alreadyDownloaded: alreadyDownloaded,
		downloader:        d,
	}
}

// Get returns the Downloader registered under name, or ok=false if none
// is registered.
func (r *Registry) Get(name string) (Downloader, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.byName[name]
	if !ok {
		return nil, false
	}

	return reg.downloader, true
}

// ResolveByURL implements create_download's auto-select: it returns the
// name of the lowest-priority-value registered downloader whose Matcher
// accepts url (ties broken by name), the way the first downloader to
// claim a URL via valid_url wins. ok is false when no registered
// downloader accepts url.
func (r *Registry) ResolveByURL(url string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *registration

	for name := range r.byName {
		reg := r.byName[name]

		if reg.matches == nil || !reg.matches(url) {
			continue
		}

		if best == nil || reg.priority < best.priority || (reg.priority == best.priority && reg.name < best.name) {
			regCopy := reg
			best = &regCopy
		}
	}

	if best == nil {
		return "", false
	}

	return best.name, true
}

// AlreadyDownloaded delegates to the AlreadyDownloadedFunc registered for
// name, reporting whether url already has a downloaded entity. A
// downloader registered without one (or an unknown name) reports false.
func (r *Registry) AlreadyDownloaded(ctx context.Context, name, url string) (bool, error) {
	r.mu.Lock()
	reg, ok := r.byName[name]
	r.mu.Unlock()

	if !ok || reg.alreadyDownloaded == nil {
		return false, nil
	}

	return reg.alreadyDownloaded(ctx, url)
}

// Names returns every registered downloader name ordered by priority
// (ties broken by name), for diagnostics and the `archivaid status`
// command.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	regs := make([]registration, 0, len(r.byName))
	for _, reg := range r.byName {
		regs = append(regs, reg)
	}

	sort.Slice(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority < regs[j].priority
		}

		return regs[i].name < regs[j].name
	})

	names := make([]string, len(regs))
	for i, reg := range regs {
		names[i] = reg.name
	}

	return names
}
