package modeler

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

const singleFilePage = `<!--
 Page saved with SingleFile
 url: https://example.com/article
 saved date: Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)
-->
<html><body>hello</body></html>`

func newArchiveDeps(t *testing.T) ArchiveModelerDeps {
	t.Helper()

	db, err := store.OpenMemory(context.Background(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return ArchiveModelerDeps{Archives: store.NewArchiveStore(db)}
}

func newArchiveDepsWithCollections(t *testing.T) (ArchiveModelerDeps, *store.CollectionStore) {
	t.Helper()

	db, err := store.OpenMemory(context.Background(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	collections := store.NewCollectionStore(db)

	return ArchiveModelerDeps{Archives: store.NewArchiveStore(db), Collections: collections, MediaRoot: "/media"}, collections
}

func TestModelArchive_CreatesArchiveForSingleFilePage(t *testing.T) {
	deps := newArchiveDeps(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "article.html"), []byte(singleFilePage), 0o644))

	group := &model.FileGroup{
		ID:          1,
		Directory:   dir,
		PrimaryPath: "article.html",
		Mimetype:    "text/html",
	}

	require.NoError(t, modelArchive(context.Background(), group, deps))

	assert.Equal(t, "https://example.com/article", group.URL)
	require.NotNil(t, group.Published)

	archive, err := deps.Archives.GetByFileGroupID(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/article", archive.URL)
}

func TestModelArchive_SetsCollectionIDFromDomainDirectoryIncludingYearSubdir(t *testing.T) {
	deps, collections := newArchiveDepsWithCollections(t)
	ctx := context.Background()

	domainDir := "/media/archive/example.com"
	collectionID, err := collections.Create(ctx, &model.Collection{
		Name:      "example.com",
		Kind:      model.CollectionKindDomain,
		Directory: &domainDir,
	})
	require.NoError(t, err)

	dir := filepath.Join(domainDir, "2024")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "article.html"), []byte(singleFilePage), 0o644))

	group := &model.FileGroup{
		ID:          5,
		Directory:   dir,
		PrimaryPath: "article.html",
		Mimetype:    "text/html",
	}

	require.NoError(t, modelArchive(ctx, group, deps))

	archive, err := deps.Archives.GetByFileGroupID(ctx, group.ID)
	require.NoError(t, err)
	require.NotNil(t, archive.CollectionID)
	assert.Equal(t, collectionID, *archive.CollectionID)
}

func TestModelArchive_LeavesCollectionIDNilWithoutDomainCollection(t *testing.T) {
	deps, _ := newArchiveDepsWithCollections(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "article.html"), []byte(singleFilePage), 0o644))

	group := &model.FileGroup{
		ID:          6,
		Directory:   dir,
		PrimaryPath: "article.html",
		Mimetype:    "text/html",
	}

	require.NoError(t, modelArchive(context.Background(), group, deps))

	archive, err := deps.Archives.GetByFileGroupID(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Nil(t, archive.CollectionID)
}

func TestModelArchive_AttachesReadabilitySiblings(t *testing.T) {
	deps := newArchiveDeps(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "article.html"), []byte(singleFilePage), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "article.readability.html"), []byte("<html></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "article.png"), []byte("png"), 0o644))

	group := &model.FileGroup{
		ID:          2,
		Directory:   dir,
		PrimaryPath: "article.html",
		Mimetype:    "text/html",
		Files:       []string{"article.html"},
	}

	require.NoError(t, modelArchive(context.Background(), group, deps))

	assert.Equal(t, "article.readability.html", group.Data[model.DataKeyReadabilityHTML])
	assert.Equal(t, "article.png", group.Data[model.DataKeyScreenshotPath])
	assert.Contains(t, group.Files, "article.readability.html")
	assert.Contains(t, group.Files, "article.png")
}

func TestModelArchive_SkipsReadabilityVariantsAsPrimary(t *testing.T) {
	deps := newArchiveDeps(t)

	group := &model.FileGroup{
		ID:          3,
		Directory:   t.TempDir(),
		PrimaryPath: "article.readability.html",
		Mimetype:    "text/html",
	}

	require.NoError(t, modelArchive(context.Background(), group, deps))

	_, err := deps.Archives.GetByFileGroupID(context.Background(), group.ID)
	assert.Error(t, err, "no archive should be created for a readability-variant primary path")
}

func TestModelArchive_NonSingleFileHTMLIsIgnored(t *testing.T) {
	deps := newArchiveDeps(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.html"), []byte("<html>no header</html>"), 0o644))

	group := &model.FileGroup{
		ID:          4,
		Directory:   dir,
		PrimaryPath: "plain.html",
		Mimetype:    "text/html",
	}

	require.NoError(t, modelArchive(context.Background(), group, deps))

	_, err := deps.Archives.GetByFileGroupID(context.Background(), group.ID)
	assert.Error(t, err)
}
