package collection

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wrolpi/archivaid/internal/model"
	"github.com/wrolpi/archivaid/internal/store"
	"github.com/wrolpi/archivaid/internal/switchbus"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	ctx := context.Background()

	db, err := store.OpenMemory(ctx, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return New(
		store.NewCollectionStore(db),
		store.NewChannelStore(db),
		store.NewTagStore(db),
		store.NewFileGroupStore(db),
		store.NewDownloadStore(db),
		switchbus.New(slog.Default()),
		slog.Default(),
		t.TempDir(),
	)
}

func seedCollection(t *testing.T, s *Service, directory string) int64 {
	t.Helper()

	d := directory
	id, err := s.collections.Create(context.Background(), &model.Collection{
		Name:      "example.com",
		Kind:      model.CollectionKindDomain,
		Directory: &d,
	})
	require.NoError(t, err)

	return id
}

func seedUnrestrictedCollection(t *testing.T, s *Service, name string) int64 {
	t.Helper()

	id, err := s.collections.Create(context.Background(), &model.Collection{
		Name: name,
		Kind: model.CollectionKindManual,
	})
	require.NoError(t, err)

	return id
}
