package collection

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrolpi/archivaid/internal/model"
)

func TestMove_SameDirectoryIsNoOp(t *testing.T) {
	s := newTestService(t)

	dir := t.TempDir()
	err := s.move(context.Background(), dir, dir)
	require.NoError(t, err)
}

func TestMove_RewritesFileGroupDirectories(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	base := t.TempDir()
	oldDir := filepath.Join(base, "old")
	newDir := filepath.Join(base, "new")

	require.NoError(t, os.MkdirAll(oldDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(oldDir, "a.txt"), []byte("x"), 0o644))

	fgID, err := s.fileGroups.Create(ctx, &model.FileGroup{
		Directory:   oldDir,
		PrimaryPath: "a.txt",
		Files:       []string{"a.txt"},
	})
	require.NoError(t, err)

	require.NoError(t, s.move(ctx, oldDir, newDir))

	fg, err := s.fileGroups.GetByID(ctx, fgID)
	require.NoError(t, err)
	assert.Equal(t, newDir, fg.Directory)
	assert.Equal(t, "a.txt", fg.PrimaryPath, "relative filenames are untouched by a directory move")
}

func TestMove_RewritesDownloadDestinations(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	base := t.TempDir()
	oldDir := filepath.Join(base, "old")
	newDir := filepath.Join(base, "new")
	require.NoError(t, os.MkdirAll(oldDir, 0o755))

	dlID, err := s.downloads.Create(ctx, &model.Download{
		URL:         "https://example.com/video",
		Downloader:  "video",
		Destination: filepath.Join(oldDir, "sub"),
	})
	require.NoError(t, err)

	require.NoError(t, s.move(ctx, oldDir, newDir))

	d, err := s.downloads.GetByID(ctx, dlID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(newDir, "sub"), d.Destination)
}

func TestRebase_NonMatchingPathReturnsFalse(t *testing.T) {
	_, ok := rebase("/media/other/path", "/media/archivaid/old", "/media/archivaid/new")
	assert.False(t, ok)
}

func TestRebase_ExactMatch(t *testing.T) {
	got, ok := rebase("/media/old", "/media/old", "/media/new")
	require.True(t, ok)
	assert.Equal(t, "/media/new", got)
}

func TestRebase_NestedPath(t *testing.T) {
	got, ok := rebase("/media/old/2024/video.mp4", "/media/old", "/media/new")
	require.True(t, ok)
	assert.Equal(t, "/media/new/2024/video.mp4", got)
}

func TestMove_RemovesOldDirectoryWhenEmpty(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	base := t.TempDir()
	oldDir := filepath.Join(base, "old")
	newDir := filepath.Join(base, "new")
	require.NoError(t, os.MkdirAll(oldDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(oldDir, "only.txt"), []byte("x"), 0o644))

	require.NoError(t, s.move(ctx, oldDir, newDir))

	_, err := os.Stat(oldDir)
	assert.True(t, os.IsNotExist(err))
}
