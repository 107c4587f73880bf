// Package switchbus implements a debounced, single-flight task bus:
// ActivateSwitch(name, context) records the latest context for a switch,
// displacing any pending activation of the same name; a single worker
// goroutine drains one switch at a time and invokes its registered
// handler, never concurrently with itself. Uses a Go channel-signaled
// worker rather than a polling loop.
package switchbus

import (
	"context"
	"log/slog"
	"sync"
)

// Handler processes one activation of a switch. It receives the most
// recent context passed to ActivateSwitch for that switch name; if the
// switch was activated multiple times before the worker got to it, only
// the last context survives.
type Handler func(ctx context.Context, switchContext any) error

// Bus is a single-worker, debounced, single-flight switch dispatcher.
type Bus struct {
	mu       sync.Mutex
	pending  map[string]any
	handlers map[string]Handler
	signal   chan struct{}
	logger   *slog.Logger

	runOnce sync.Once
	stop    chan struct{}
	done    chan struct{}
}

// New constructs a Bus. Call Start to begin the worker goroutine.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bus{
		pending:  make(map[string]any),
		handlers: make(map[string]Handler),
		signal:   make(chan struct{}, 1),
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// RegisterHandler attaches handler to switch name. Registration must
// happen before Start; the bus does not support concurrent registration
// and dispatch.
func (b *Bus) RegisterHandler(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[name] = handler
}

// ActivateSwitch records switchContext as the latest pending activation of
// name and wakes the worker. Repeated activations before the worker
// processes the switch collapse to one invocation.
func (b *Bus) ActivateSwitch(name string, switchContext any) {
	b.mu.Lock()
	b.pending[name] = switchContext
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Start launches the worker goroutine. Safe to call once; subsequent calls
// are no-ops.
func (b *Bus) Start(ctx context.Context) {
	b.runOnce.Do(func() {
		go b.run(ctx)
	})
}

// Stop signals the worker to exit and waits for it to finish its current
// handler invocation.
func (b *Bus) Stop() {
	close(b.stop)
	<-b.done
}

func (b *Bus) run(ctx context.Context) {
	defer close(b.done)

	for {
		select {
		case <-b.stop:
			return
		case <-ctx.Done():
			return
		case <-b.signal:
			b.drainOnce(ctx)
		}
	}
}

// drainOnce pops and runs switches one at a time until the pending map is
// empty, so a single wakeup processes everything queued so far rather than
// requiring one signal per switch.
func (b *Bus) drainOnce(ctx context.Context) {
	for {
		name, switchContext, ok := b.popPending()
		if !ok {
			return
		}

		b.invoke(ctx, name, switchContext)
	}
}

func (b *Bus) popPending() (string, any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for name, switchContext := range b.pending {
		delete(b.pending, name)

		return name, switchContext, true
	}

	return "", nil, false
}

// invoke runs the handler for name, isolating a handler error or panic so
// it never brings down the worker goroutine.
func (b *Bus) invoke(ctx context.Context, name string, switchContext any) {
	b.mu.Lock()
	handler, ok := b.handlers[name]
	b.mu.Unlock()

	if !ok {
		b.logger.Warn("switch activated with no registered handler", slog.String("switch", name))

		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("switch handler panicked",
				slog.String("switch", name),
				slog.Any("panic", r),
			)
		}
	}()

	if err := handler(ctx, switchContext); err != nil {
		b.logger.Error("switch handler failed",
			slog.String("switch", name),
			slog.Any("error", err),
		)
	}
}
