package store

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrolpi/archivaid/internal/model"
)

func newArchiveTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenMemory(context.Background(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func createTestFileGroup(t *testing.T, db *DB, directory, primaryPath string) int64 {
	t.Helper()

	id, err := NewFileGroupStore(db).Create(context.Background(), &model.FileGroup{
		Directory: directory, PrimaryPath: primaryPath, Mimetype: "text/html",
	})
	require.NoError(t, err)

	return id
}

func TestArchiveStore_CreateAndGetByFileGroupID(t *testing.T) {
	db := newArchiveTestDB(t)
	ctx := context.Background()
	archives := NewArchiveStore(db)

	fgID := createTestFileGroup(t, db, "/archive/example.com", "page.html")

	id, err := archives.Create(ctx, &model.Archive{
		FileGroupID: fgID, URL: "https://example.com/page", ArchiveDatetime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	got, err := archives.GetByFileGroupID(ctx, fgID)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "https://example.com/page", got.URL)
}

func TestArchiveStore_GetByFileGroupID_NotFound(t *testing.T) {
	db := newArchiveTestDB(t)
	archives := NewArchiveStore(db)

	_, err := archives.GetByFileGroupID(context.Background(), 9999)
	assert.Error(t, err)
}

func TestArchiveStore_ListByURL_OrdersMostRecentFirst(t *testing.T) {
	db := newArchiveTestDB(t)
	ctx := context.Background()
	archives := NewArchiveStore(db)

	fg1 := createTestFileGroup(t, db, "/archive/example.com", "page1.html")
	fg2 := createTestFileGroup(t, db, "/archive/example.com", "page2.html")

	_, err := archives.Create(ctx, &model.Archive{
		FileGroupID: fg1, URL: "https://example.com/page", ArchiveDatetime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = archives.Create(ctx, &model.Archive{
		FileGroupID: fg2, URL: "https://example.com/page", ArchiveDatetime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	got, err := archives.ListByURL(ctx, "https://example.com/page")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, fg2, got[0].FileGroupID)
	assert.Equal(t, fg1, got[1].FileGroupID)
}

func TestArchiveStore_SetCollection(t *testing.T) {
	db := newArchiveTestDB(t)
	ctx := context.Background()
	archives := NewArchiveStore(db)

	fgID := createTestFileGroup(t, db, "/archive/example.com", "page.html")
	id, err := archives.Create(ctx, &model.Archive{FileGroupID: fgID, URL: "https://example.com/page"})
	require.NoError(t, err)

	directory := "/archive/example.com"
	collectionID, err := NewCollectionStore(db).Create(ctx, &model.Collection{
		Name: "example.com", Kind: model.CollectionKindDomain, Directory: &directory,
	})
	require.NoError(t, err)

	require.NoError(t, archives.SetCollection(ctx, id, &collectionID))

	got, err := archives.GetByFileGroupID(ctx, fgID)
	require.NoError(t, err)
	require.NotNil(t, got.CollectionID)
	assert.Equal(t, collectionID, *got.CollectionID)

	require.NoError(t, archives.SetCollection(ctx, id, nil))

	got, err = archives.GetByFileGroupID(ctx, fgID)
	require.NoError(t, err)
	assert.Nil(t, got.CollectionID)
}
