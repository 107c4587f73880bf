package configmirror

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrolpi/archivaid/internal/store"
)

func newInventoriesConfig(t *testing.T) (*InventoriesConfig, string) {
	t.Helper()

	db, err := store.OpenMemory(context.Background(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dir := t.TempDir()

	return NewInventoriesConfig(dir, db), dir
}

func TestInventoriesConfig_DumpEmptyRemovesStaleFile(t *testing.T) {
	cfg, dir := newInventoriesConfig(t)

	path := filepath.Join(dir, "inventories.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, cfg.Dump(context.Background()))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestInventoriesConfig_DumpThenImportRoundTrips(t *testing.T) {
	ctx := context.Background()
	cfg, _ := newInventoriesConfig(t)

	_, err := cfg.inventories.Create(ctx, "pantry")
	require.NoError(t, err)

	require.NoError(t, cfg.Dump(ctx))

	db2, err := store.OpenMemory(ctx, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db2.Close() })

	cfg2 := &InventoriesConfig{path: cfg.path, inventories: store.NewInventoryStore(db2), versions: newVersionStore(db2)}
	require.NoError(t, cfg2.Import(ctx))

	got, err := cfg2.inventories.GetActiveByName(ctx, "pantry")
	require.NoError(t, err)
	assert.Equal(t, "pantry", got.Name)
}

func TestInventoriesConfig_ImportMissingFileIsNoOp(t *testing.T) {
	cfg, _ := newInventoriesConfig(t)
	require.NoError(t, cfg.Import(context.Background()))
}

func TestInventoriesConfig_ImportSoftDeletesRemovedInventories(t *testing.T) {
	ctx := context.Background()
	cfg, _ := newInventoriesConfig(t)

	id, err := cfg.inventories.Create(ctx, "stale")
	require.NoError(t, err)

	doc := "version: 1\ninventories:\n  - name: fresh\n"
	require.NoError(t, os.WriteFile(cfg.path, []byte(doc), 0o644))

	require.NoError(t, cfg.Import(ctx))

	stale, err := cfg.inventories.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, stale.IsDeleted())

	_, err = cfg.inventories.GetActiveByName(ctx, "fresh")
	assert.NoError(t, err)
}
