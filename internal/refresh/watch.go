package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/rjeczalik/notify"
)

// debounceWindow coalesces a burst of filesystem events (e.g. a
// multi-file download landing, or an editor's write-then-rename) into a
// single refresh request.
const debounceWindow = 2 * time.Second

// Watcher debounces filesystem write/create/remove/rename events under a
// directory tree into Pipeline.Run calls, using a per-directory debounce
// timer over a single fan-in channel so a burst of events produces one
// refresh, not one per event.
type Watcher struct {
	pipeline *Pipeline
	logger   *slog.Logger

	events chan notify.EventInfo
}

// NewWatcher builds a Watcher over pipeline. Call Watch to start.
func NewWatcher(pipeline *Pipeline, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		pipeline: pipeline,
		logger:   logger,
		events:   make(chan notify.EventInfo, 64),
	}
}

// Watch registers a recursive watch under directory and runs the debounce
// loop until ctx is canceled. directory is refreshed once immediately
// (covering files that arrived before the watch was registered) and again
// every time the debounce window elapses after the last observed event.
func (w *Watcher) Watch(ctx context.Context, directory string) error {
	recursivePath := directory + "/..."

	if err := notify.Watch(recursivePath, w.events, notify.Write, notify.Create, notify.Remove, notify.Rename); err != nil {
		return err
	}
	defer notify.Stop(w.events)

	w.logger.Info("watch started", slog.String("directory", directory))

	if _, err := w.pipeline.Run(ctx, directory); err != nil {
		w.logger.Warn("initial refresh failed", slog.Any("error", err))
	}

	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}

			return nil

		case <-w.events:
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				if !timer.Stop() {
					<-timer.C
				}

				timer.Reset(debounceWindow)
			}

		case <-w.timerC(timer):
			timer = nil

			if _, err := w.pipeline.Run(ctx, directory); err != nil {
				w.logger.Warn("watch-triggered refresh failed",
					slog.String("directory", directory), slog.Any("error", err))
			}
		}
	}
}

// timerC returns t.C, or a nil channel (which blocks forever in a select)
// when no debounce timer is currently pending.
func (w *Watcher) timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}

	return t.C
}
