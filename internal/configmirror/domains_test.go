package configmirror

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrolpi/archivaid/internal/model"
	"github.com/wrolpi/archivaid/internal/store"
)

func newDomainsConfig(t *testing.T) (*DomainsConfig, string) {
	t.Helper()

	db, err := store.OpenMemory(context.Background(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dir := t.TempDir()

	return NewDomainsConfig(dir, db), dir
}

func TestDomainsConfig_DumpEmptyRemovesStaleFile(t *testing.T) {
	cfg, dir := newDomainsConfig(t)

	path := filepath.Join(dir, "domains.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, cfg.Dump(context.Background()))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDomainsConfig_DumpThenImportRoundTrips(t *testing.T) {
	ctx := context.Background()
	cfg, _ := newDomainsConfig(t)

	dir := t.TempDir()
	_, err := cfg.collections.Create(ctx, &model.Collection{
		Name:      "example.com",
		Kind:      model.CollectionKindDomain,
		Directory: &dir,
	})
	require.NoError(t, err)

	require.NoError(t, cfg.Dump(ctx))

	// A fresh config sharing no in-memory state, pointed at the same file,
	// should reconstruct the collection on Import.
	db2, err := store.OpenMemory(ctx, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db2.Close() })

	cfg2 := &DomainsConfig{path: cfg.path, collections: store.NewCollectionStore(db2), tags: store.NewTagStore(db2), versions: newVersionStore(db2)}

	require.NoError(t, cfg2.Import(ctx))

	got, err := cfg2.collections.GetByNameAndKind(ctx, "example.com", model.CollectionKindDomain)
	require.NoError(t, err)
	require.NotNil(t, got.Directory)
	assert.Equal(t, dir, *got.Directory)
}

func TestDomainsConfig_ImportMissingFileIsNoOp(t *testing.T) {
	cfg, _ := newDomainsConfig(t)

	require.NoError(t, cfg.Import(context.Background()))
}

func TestDomainsConfig_ImportRemovesCollectionsNotInYAML(t *testing.T) {
	ctx := context.Background()
	cfg, dir := newDomainsConfig(t)

	gone := t.TempDir()
	_, err := cfg.collections.Create(ctx, &model.Collection{
		Name:      "stale.com",
		Kind:      model.CollectionKindDomain,
		Directory: &gone,
	})
	require.NoError(t, err)

	doc := "version: 1\ndomains:\n  - name: fresh.com\n    directory: " + dir + "\n"
	require.NoError(t, os.WriteFile(cfg.path, []byte(doc), 0o644))

	require.NoError(t, cfg.Import(ctx))

	_, err = cfg.collections.GetByNameAndKind(ctx, "stale.com", model.CollectionKindDomain)
	assert.Error(t, err)

	_, err = cfg.collections.GetByNameAndKind(ctx, "fresh.com", model.CollectionKindDomain)
	assert.NoError(t, err)
}

func TestDomainsConfig_DumpIncrementsVersion(t *testing.T) {
	ctx := context.Background()
	cfg, dir := newDomainsConfig(t)

	_, err := cfg.collections.Create(ctx, &model.Collection{
		Name:      "example.com",
		Kind:      model.CollectionKindDomain,
		Directory: &dir,
	})
	require.NoError(t, err)

	require.NoError(t, cfg.Dump(ctx))
	v1, err := cfg.versions.Get(ctx, cfg.FileName())
	require.NoError(t, err)

	require.NoError(t, cfg.Dump(ctx))
	v2, err := cfg.versions.Get(ctx, cfg.FileName())
	require.NoError(t, err)

	assert.Greater(t, v2, v1)
}
