package modeler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wrolpi/archivaid/internal/model"
	"github.com/wrolpi/archivaid/internal/store"
)

// videoMimetypePrefix is the prefix this modeler registers under.
const videoMimetypePrefix = "video/"

// VideoModelerDeps bundles the stores the video modeler needs.
type VideoModelerDeps struct {
	Videos   *store.VideoStore
	Channels *store.ChannelStore
}

// videoInfoJSON is the subset of a yt-dlp-style info.json sidecar this
// modeler reads.
type videoInfoJSON struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	UploadDate  string `json:"upload_date"` // YYYYMMDD
	Duration    int64  `json:"duration"`
	ViewCount   int64  `json:"view_count"`
	WebpageURL  string `json:"webpage_url"`
	ChannelName string `json:"channel"`
}

// RegisterVideoModeler attaches the video modeler to registry: a FileGroup
// whose primary mimetype is a video variant is promoted to a Video,
// reading sidecar info.json/poster/caption files by the same stem
// convention the archive modeler uses for its siblings.
func RegisterVideoModeler(registry *Registry, deps VideoModelerDeps) {
	registry.RegisterModeler(videoMimetypePrefix, func(ctx context.Context, group *model.FileGroup) error {
		return modelVideo(ctx, group, deps)
	})
}

func modelVideo(ctx context.Context, group *model.FileGroup, deps VideoModelerDeps) error {
	stem := strings.TrimSuffix(group.PrimaryPath, filepath.Ext(group.PrimaryPath))

	attachSibling(group, stem+".info.json", model.DataKeyInfoJSONPath)
	attachSibling(group, stem+".jpg", model.DataKeyPosterPath)
	attachSibling(group, stem+".en.vtt", model.DataKeyCaptionPath)

	info, haveInfo := readVideoInfoJSON(group)

	if haveInfo {
		group.Title = info.Title
		group.URL = info.WebpageURL
	}

	video, err := deps.Videos.GetByFileGroupID(ctx, group.ID)
	if err == nil {
		applyVideoInfo(video, info, haveInfo)

		return nil
	}

	v := &model.Video{FileGroupID: group.ID}
	applyVideoInfo(v, info, haveInfo)

	if haveInfo && info.ChannelName != "" {
		if channel, chErr := findChannelByName(ctx, deps.Channels, info.ChannelName); chErr == nil {
			v.ChannelID = &channel.ID
		}
	}

	if _, err := deps.Videos.Create(ctx, v); err != nil {
		return fmt.Errorf("modeler: creating video for file_group %d: %w", group.ID, err)
	}

	return nil
}

func applyVideoInfo(v *model.Video, info videoInfoJSON, haveInfo bool) {
	if !haveInfo {
		return
	}

	v.SourceID = info.ID
	v.Duration = info.Duration
	v.ViewCount = info.ViewCount
	v.URL = info.WebpageURL

	if t, err := time.Parse("20060102", info.UploadDate); err == nil {
		v.UploadDate = &t
	}
}

func readVideoInfoJSON(group *model.FileGroup) (videoInfoJSON, bool) {
	path, ok := group.Data[model.DataKeyInfoJSONPath]
	if !ok {
		return videoInfoJSON{}, false
	}

	data, err := os.ReadFile(filepath.Join(group.Directory, path))
	if err != nil {
		return videoInfoJSON{}, false
	}

	var info videoInfoJSON
	if err := json.Unmarshal(data, &info); err != nil {
		return videoInfoJSON{}, false
	}

	return info, true
}

func findChannelByName(ctx context.Context, channels *store.ChannelStore, name string) (*model.Channel, error) {
	all, err := channels.All(ctx)
	if err != nil {
		return nil, err
	}

	for _, ch := range all {
		if ch.Name == name {
			return ch, nil
		}
	}

	return nil, fmt.Errorf("modeler: channel %q not found", name)
}
