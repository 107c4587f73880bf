package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRefreshOnce_EmptyDirectory(t *testing.T) {
	app := newTestApp(t)
	ctx := withCLIContext(app, OutputFlags{})

	dir := t.TempDir()

	require.NoError(t, runRefreshOnce(ctx, mustCLIContext(ctx), dir))
}

func TestRunRefreshOnce_DiscoversFiles(t *testing.T) {
	app := newTestApp(t)
	ctx := withCLIContext(app, OutputFlags{})

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hello"), 0o644))

	require.NoError(t, runRefreshOnce(ctx, mustCLIContext(ctx), dir))

	groups, err := app.FileGroups.ListByDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestRunRefreshOnce_JSON(t *testing.T) {
	app := newTestApp(t)
	ctx := withCLIContext(app, OutputFlags{JSON: true})

	dir := t.TempDir()

	require.NoError(t, runRefreshOnce(ctx, mustCLIContext(ctx), dir))
}

func TestNewRefreshCmd_HasWatchFlag(t *testing.T) {
	cmd := newRefreshCmd()
	assert.NotNil(t, cmd.Flags().Lookup("watch"))
}
