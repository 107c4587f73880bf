// Package events implements a bounded, in-memory, ring-buffered event
// feed: the last 100 user-visible occurrences (refresh progress,
// downloads, collection moves, shutdown) available to CLI/API consumers,
// never persisted to the database. Uses a mutex-guarded
// github.com/emirpasic/gods/v2 arraylist local to one process rather than
// cross-process shared state.
package events

import (
	"strconv"
	"sync"
	"time"

	"github.com/emirpasic/gods/v2/lists/arraylist"

	"github.com/wrolpi/archivaid/internal/model"
)

// historySize caps the in-memory event ring buffer.
const historySize = 100

// Feed is a bounded, thread-safe event history.
type Feed struct {
	mu      sync.Mutex
	history *arraylist.List[model.Event]
}

// NewFeed constructs an empty Feed.
func NewFeed() *Feed {
	return &Feed{history: arraylist.New[model.Event]()}
}

// send appends event to the history, evicting the oldest entry once the
// buffer is at capacity.
func (f *Feed) send(event model.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.history.Size() >= historySize {
		f.history.Remove(0)
	}

	f.history.Add(event)
}

// Recent returns a copy of the current event history, oldest first.
func (f *Feed) Recent() []model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]model.Event, 0, f.history.Size())

	for i := range f.history.Size() {
		event, ok := f.history.Get(i)
		if ok {
			out = append(out, event)
		}
	}

	return out
}

func now() time.Time { return time.Now().UTC() }

// SendGlobalRefreshStarted records the start of a refresh cycle.
func (f *Feed) SendGlobalRefreshStarted() {
	f.send(model.Event{Event: "global_refresh_started", Timestamp: now()})
}

// SendGlobalRefreshDiscoveryCompleted records the end of the discovery
// phase of a refresh.
func (f *Feed) SendGlobalRefreshDiscoveryCompleted(discovered int) {
	f.send(model.Event{
		Event:   "global_refresh_discovery_completed",
		Message: formatCount(discovered),
		Timestamp: now(),
	})
}

// SendGlobalRefreshIndexingCompleted records the end of the surface-index
// phase of a refresh.
func (f *Feed) SendGlobalRefreshIndexingCompleted(indexed int) {
	f.send(model.Event{
		Event:   "global_refresh_indexing_completed",
		Message: formatCount(indexed),
		Timestamp: now(),
	})
}

// SendGlobalRefreshModelingCompleted records the end of the deep-model
// phase of a refresh.
func (f *Feed) SendGlobalRefreshModelingCompleted(modeled int) {
	f.send(model.Event{
		Event:   "global_refresh_modeling_completed",
		Message: formatCount(modeled),
		Timestamp: now(),
	})
}

// SendRefreshCompleted records the end of a refresh cycle for one directory.
func (f *Feed) SendRefreshCompleted(directory string) {
	f.send(model.Event{Event: "refresh_completed", Subject: directory, Timestamp: now()})
}

// SendGlobalAfterRefreshCompleted records the end of the after-refresh
// hook phase.
func (f *Feed) SendGlobalAfterRefreshCompleted() {
	f.send(model.Event{Event: "global_after_refresh_completed", Timestamp: now()})
}

// SendReady records that the daemon has finished startup and is ready to
// serve requests.
func (f *Feed) SendReady() {
	f.send(model.Event{Event: "ready", Timestamp: now()})
}

// SendDownloadsDisabled records that the download manager has been paused.
func (f *Feed) SendDownloadsDisabled() {
	f.send(model.Event{Event: "downloads_disabled", Timestamp: now()})
}

// SendUserNotify records an arbitrary user-facing notification.
func (f *Feed) SendUserNotify(message string) {
	f.send(model.Event{Event: "user_notify", Message: message, Timestamp: now()})
}

// SendDirectoryRefresh records that a specific directory was queued for
// refresh.
func (f *Feed) SendDirectoryRefresh(directory string) {
	f.send(model.Event{Event: "directory_refresh", Subject: directory, Timestamp: now()})
}

// SendDeleted records that a FileGroup's backing files were deleted.
func (f *Feed) SendDeleted(path string) {
	f.send(model.Event{Event: "deleted", Subject: path, Timestamp: now()})
}

// SendCreated records that a FileGroup was created from newly discovered
// files.
func (f *Feed) SendCreated(path string) {
	f.send(model.Event{Event: "created", Subject: path, Timestamp: now()})
}

// SendDownloadComplete records a completed Download.
func (f *Feed) SendDownloadComplete(downloadURL, location string) {
	f.send(model.Event{Event: "download_complete", URL: downloadURL, Message: location, Timestamp: now()})
}

// SendDownloadFailed records a failed Download.
func (f *Feed) SendDownloadFailed(downloadURL, cause string) {
	f.send(model.Event{Event: "download_failed", URL: downloadURL, Message: cause, Timestamp: now()})
}

// SendCollectionMoved records a collection directory move.
func (f *Feed) SendCollectionMoved(oldDirectory, newDirectory string) {
	f.send(model.Event{
		Event:   "collection_moved",
		Subject: oldDirectory,
		Action:  newDirectory,
		Timestamp: now(),
	})
}

// SendShutdown records a graceful shutdown, or a failed one if cause is
// non-empty.
func (f *Feed) SendShutdown(cause string) {
	event := model.Event{Event: "shutdown", Timestamp: now()}
	if cause != "" {
		event.Event = "shutdown_failed"
		event.Message = cause
	}

	f.send(event)
}

func formatCount(n int) string {
	if n == 1 {
		return "1 item"
	}

	return strconv.Itoa(n) + " items"
}
