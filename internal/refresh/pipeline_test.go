package refresh

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrolpi/archivaid/internal/events"
	"github.com/wrolpi/archivaid/internal/modeler"
	"github.com/wrolpi/archivaid/internal/store"
)

func newTestPipeline(t *testing.T) (*Pipeline, *store.FileGroupStore) {
	t.Helper()

	db, err := store.OpenMemory(context.Background(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fileGroups := store.NewFileGroupStore(db)
	p := New(fileGroups, modeler.NewRegistry(), events.NewFeed(), slog.Default())

	return p, fileGroups
}

func TestRun_DiscoversAndIndexesNewFiles(t *testing.T) {
	p, fileGroups := newTestPipeline(t)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "note.txt"), 5)

	report, err := p.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Discovered)
	assert.Equal(t, 1, report.Indexed)

	groups, err := fileGroups.ListByDirectory(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].Indexed)
}

func TestRun_DeletesFileGroupsNoLongerOnDisk(t *testing.T) {
	p, fileGroups := newTestPipeline(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	writeFile(t, path, 5)

	_, err := p.Run(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	report, err := p.Run(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)

	groups, err := fileGroups.ListByDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestRun_NeverDeletesWhenDirectoryStillHasFiles(t *testing.T) {
	p, fileGroups := newTestPipeline(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "stays.txt"), 5)

	_, err := p.Run(ctx, dir)
	require.NoError(t, err)

	report, err := p.Run(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Deleted)

	groups, err := fileGroups.ListByDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestRun_BatchDrainingHandlesExactMultipleOfBatchSize(t *testing.T) {
	p, fileGroups := newTestPipeline(t)
	ctx := context.Background()

	p.SetBatchSize(2)

	dir := t.TempDir()
	for i := 0; i < 4; i++ {
		writeFile(t, filepath.Join(dir, "f"+string(rune('a'+i))+".txt"), 1)
	}

	report, err := p.Run(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Discovered)
	assert.Equal(t, 4, report.Indexed)

	groups, err := fileGroups.ListByDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, groups, 4)
}

func TestRun_ReentrancyIsNoOp(t *testing.T) {
	p, _ := newTestPipeline(t)

	p.running.Store(true)
	defer p.running.Store(false)

	report, err := p.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
}

func TestRun_ExistingFileGroupReindexedOnSizeChange(t *testing.T) {
	p, fileGroups := newTestPipeline(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "changing.txt")
	writeFile(t, path, 5)

	_, err := p.Run(ctx, dir)
	require.NoError(t, err)

	writeFile(t, path, 50)

	_, err = p.Run(ctx, dir)
	require.NoError(t, err)

	groups, err := fileGroups.ListByDirectory(ctx, dir)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, int64(50), groups[0].Size)
	assert.True(t, groups[0].Indexed)
}

func TestGuessMimetype_KnownExtension(t *testing.T) {
	assert.Equal(t, "text/plain", guessMimetype("note.txt"))
}

func TestGuessMimetype_UnknownExtensionFallsBack(t *testing.T) {
	assert.Equal(t, "application/octet-stream", guessMimetype("file.unknownext12345"))
}

func TestTitleFromStem_StripsTimestampPrefix(t *testing.T) {
	assert.Equal(t, "my cool video", titleFromStem("20240102030405_my_cool_video"))
}

func TestTitleFromStem_NoPrefixLeftAsIs(t *testing.T) {
	assert.Equal(t, "my cool video", titleFromStem("my_cool_video"))
}
