package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wrolpi/archivaid/internal/appconfig"
	"github.com/wrolpi/archivaid/internal/store"
)

// newTestApp builds an App backed by an in-memory database, for CLI
// command tests that need real store/service wiring without touching the
// filesystem.
func newTestApp(t *testing.T) *App {
	t.Helper()

	ctx := context.Background()
	logger := buildLogger()

	cfg := appconfig.Default()
	cfg.Media.Root = t.TempDir()

	db, err := store.OpenMemory(ctx, logger)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	app, err := wireApp(cfg, db, logger)
	require.NoError(t, err)

	return app
}
