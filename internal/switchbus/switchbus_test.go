package switchbus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivateSwitch_InvokesRegisteredHandler(t *testing.T) {
	b := New(nil)

	var got any

	done := make(chan struct{})
	b.RegisterHandler("save_domains_config", func(_ context.Context, switchContext any) error {
		got = switchContext
		close(done)

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.Start(ctx)
	b.ActivateSwitch("save_domains_config", "payload")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}

	assert.Equal(t, "payload", got)
}

func TestActivateSwitch_CollapsesRepeatedActivations(t *testing.T) {
	b := New(nil)

	var calls int32

	handlerStarted := make(chan struct{})
	release := make(chan struct{})

	b.RegisterHandler("x", func(_ context.Context, _ any) error {
		atomic.AddInt32(&calls, 1)
		close(handlerStarted)
		<-release

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.Start(ctx)
	b.ActivateSwitch("x", 1)

	<-handlerStarted

	// Activated twice more while the first invocation is still running;
	// these should collapse into at most one further invocation.
	b.ActivateSwitch("x", 2)
	b.ActivateSwitch("x", 3)

	close(release)

	time.Sleep(100 * time.Millisecond)

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestActivateSwitch_NoHandlerRegisteredIsSafe(t *testing.T) {
	b := New(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.Start(ctx)

	assert.NotPanics(t, func() {
		b.ActivateSwitch("unknown", nil)
		time.Sleep(50 * time.Millisecond)
	})
}

func TestInvoke_HandlerPanicIsIsolated(t *testing.T) {
	b := New(nil)

	var calledAgain int32

	first := true

	var mu sync.Mutex

	done := make(chan struct{})

	b.RegisterHandler("panicky", func(_ context.Context, _ any) error {
		mu.Lock()
		wasFirst := first
		first = false
		mu.Unlock()

		if wasFirst {
			panic("boom")
		}

		atomic.AddInt32(&calledAgain, 1)
		close(done)

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.Start(ctx)
	b.ActivateSwitch("panicky", nil)

	time.Sleep(50 * time.Millisecond)

	b.ActivateSwitch("panicky", nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not recover from panic and process the next activation")
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&calledAgain))
}

func TestStop_WaitsForWorkerExit(t *testing.T) {
	b := New(nil)

	ctx := context.Background()
	b.Start(ctx)

	require.NotPanics(t, func() {
		b.Stop()
	})
}
