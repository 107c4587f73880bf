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

const videoInfoJSONFixture = `{
	"id": "abc123",
	"title": "A great video",
	"upload_date": "20240102",
	"duration": 120,
	"view_count": 99,
	"webpage_url": "https://example.com/watch?v=abc123",
	"channel": "Example Channel"
}`

func newVideoDeps(t *testing.T) VideoModelerDeps {
	t.Helper()

	db, err := store.OpenMemory(context.Background(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return VideoModelerDeps{Videos: store.NewVideoStore(db), Channels: store.NewChannelStore(db)}
}

func TestModelVideo_CreatesVideoFromInfoJSON(t *testing.T) {
	deps := newVideoDeps(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vid.mp4"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vid.info.json"), []byte(videoInfoJSONFixture), 0o644))

	group := &model.FileGroup{
		ID:          1,
		Directory:   dir,
		PrimaryPath: "vid.mp4",
		Mimetype:    "video/mp4",
	}

	require.NoError(t, modelVideo(context.Background(), group, deps))

	assert.Equal(t, "A great video", group.Title)
	assert.Equal(t, "https://example.com/watch?v=abc123", group.URL)
	assert.Equal(t, "vid.info.json", group.Data[model.DataKeyInfoJSONPath])

	video, err := deps.Videos.GetByFileGroupID(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc123", video.SourceID)
	assert.Equal(t, int64(120), video.Duration)
	require.NotNil(t, video.UploadDate)
}

func TestModelVideo_AssociatesExistingChannelByName(t *testing.T) {
	deps := newVideoDeps(t)

	channelID, err := deps.Channels.Create(context.Background(), &model.Channel{
		Name:      "Example Channel",
		Directory: t.TempDir(),
	})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vid.mp4"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vid.info.json"), []byte(videoInfoJSONFixture), 0o644))

	group := &model.FileGroup{ID: 2, Directory: dir, PrimaryPath: "vid.mp4", Mimetype: "video/mp4"}

	require.NoError(t, modelVideo(context.Background(), group, deps))

	video, err := deps.Videos.GetByFileGroupID(context.Background(), group.ID)
	require.NoError(t, err)
	require.NotNil(t, video.ChannelID)
	assert.Equal(t, channelID, *video.ChannelID)
}

func TestModelVideo_NoInfoJSONStillCreatesBareVideo(t *testing.T) {
	deps := newVideoDeps(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vid.mp4"), []byte("x"), 0o644))

	group := &model.FileGroup{ID: 3, Directory: dir, PrimaryPath: "vid.mp4", Mimetype: "video/mp4"}

	require.NoError(t, modelVideo(context.Background(), group, deps))

	video, err := deps.Videos.GetByFileGroupID(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Empty(t, video.SourceID)
}

func TestModelVideo_RerunDoesNotDuplicateVideo(t *testing.T) {
	deps := newVideoDeps(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vid.mp4"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vid.info.json"), []byte(videoInfoJSONFixture), 0o644))

	group := &model.FileGroup{ID: 4, Directory: dir, PrimaryPath: "vid.mp4", Mimetype: "video/mp4"}

	require.NoError(t, modelVideo(context.Background(), group, deps))
	require.NoError(t, modelVideo(context.Background(), group, deps))

	videos, err := deps.Videos.ListBySourceID(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Len(t, videos, 1, "re-modeling the same file_group must not create a duplicate video row")
}
