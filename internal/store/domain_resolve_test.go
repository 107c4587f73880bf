package store

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrolpi/archivaid/internal/model"
)

func newDomainResolveTestStore(t *testing.T) *CollectionStore {
	t.Helper()

	db, err := OpenMemory(context.Background(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewCollectionStore(db)
}

func TestResolveDomainDirectory_FindsRegisteredDirectoryNotYearSubdir(t *testing.T) {
	collections := newDomainResolveTestStore(t)
	ctx := context.Background()

	domainDir := "/media/archivaid/archive/example.com"
	_, err := collections.Create(ctx, &model.Collection{
		Name:      "example.com",
		Kind:      model.CollectionKindDomain,
		Directory: &domainDir,
	})
	require.NoError(t, err)

	filePath := "/media/archivaid/archive/example.com/2024/page.html"

	got, err := ResolveDomainDirectory(ctx, collections, "/media/archivaid", filePath)
	require.NoError(t, err)
	assert.Equal(t, domainDir, *got.Directory)
}

func TestResolveDomainDirectory_NoneFoundReturnsNotFound(t *testing.T) {
	collections := newDomainResolveTestStore(t)

	_, err := ResolveDomainDirectory(context.Background(), collections, "/media/archivaid", "/media/archivaid/random/file.txt")
	assert.Error(t, err)
}
