package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrolpi/archivaid/internal/model"
)

func TestInspectFileGroupsCmd_ListsDiscoveredFiles(t *testing.T) {
	app := newTestApp(t)
	ctx := withCLIContext(app, OutputFlags{})

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("data"), 0o644))
	require.NoError(t, runRefreshOnce(ctx, mustCLIContext(ctx), dir))

	cmd := newInspectFileGroupsCmd()
	cmd.SetContext(ctx)

	require.NoError(t, cmd.RunE(cmd, []string{dir}))
}

func TestInspectCollectionsCmd_Empty(t *testing.T) {
	app := newTestApp(t)
	ctx := withCLIContext(app, OutputFlags{})

	cmd := newInspectCollectionsCmd()
	cmd.SetContext(ctx)

	require.NoError(t, cmd.RunE(cmd, nil))
}

func TestInspectCollectionsCmd_FilterByKind(t *testing.T) {
	app := newTestApp(t)
	ctx := withCLIContext(app, OutputFlags{JSON: true})

	directory := filepath.Join(app.Config.Media.Root, "domains", "example.com")
	_, err := app.Collections.Create(ctx, &model.Collection{
		Name: "example.com", Kind: model.CollectionKindDomain, Directory: &directory,
	})
	require.NoError(t, err)

	cmd := newInspectCollectionsCmd()
	cmd.SetContext(ctx)
	require.NoError(t, cmd.Flags().Set("kind", "domain"))

	require.NoError(t, cmd.RunE(cmd, nil))
}

func TestNewInspectCmd_Subcommands(t *testing.T) {
	cmd := newInspectCmd()

	for _, name := range []string{"file-groups", "collections"} {
		_, _, err := cmd.Find([]string{name})
		assert.NoError(t, err, "expected subcommand %q", name)
	}
}
