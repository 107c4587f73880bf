package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunServe_StopsOnContextCancel(t *testing.T) {
	app := newTestApp(t)
	cc := mustCLIContext(withCLIContext(app, OutputFlags{}))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cc, false) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runServe did not stop after context cancellation")
	}
}

func TestNewServeCmd_WatchFlagDefaultsTrue(t *testing.T) {
	cmd := newServeCmd()

	flag := cmd.Flags().Lookup("watch")
	require.NotNil(t, flag)
	require.Equal(t, "true", flag.DefValue)
}
