// Package collection implements the Collection update/tag/move lifecycle:
// editing a Collection's directory/tag/description, combined
// tag-and-move operations, and the directory-move itself (relocating
// every descendant FileGroup and Download along with the files on disk).
// Uses Go's explicit error returns in place of exceptions, and the
// directory-mutation style used elsewhere in this codebase (os.MkdirAll +
// os.Rename, not a third-party filesystem library).
package collection

import (
	"context"
	"log/slog"

	"github.com/wrolpi/archivaid/internal/store"
	"github.com/wrolpi/archivaid/internal/switchbus"
)

// Switch names activated after a Collection mutation, matching the
// named-switch convention reused throughout internal/configmirror.
const (
	SwitchSaveDomainsConfig  = "save_domains_config"
	SwitchSaveChannelsConfig = "save_channels_config"
)

// Service bundles the stores and switch bus the Collection lifecycle
// operations need.
type Service struct {
	collections *store.CollectionStore
	channels    *store.ChannelStore
	tags        *store.TagStore
	fileGroups  *store.FileGroupStore
	downloads   *store.DownloadStore
	switches    *switchbus.Bus
	logger      *slog.Logger
	mediaRoot   string
}

// New builds a Service. mediaRoot is the media directory's root, used by
// Tag to compute a tagged collection's target directory.
func New(
	collections *store.CollectionStore,
	channels *store.ChannelStore,
	tags *store.TagStore,
	fileGroups *store.FileGroupStore,
	downloads *store.DownloadStore,
	switches *switchbus.Bus,
	logger *slog.Logger,
	mediaRoot string,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		collections: collections,
		channels:    channels,
		tags:        tags,
		fileGroups:  fileGroups,
		downloads:   downloads,
		switches:    switches,
		logger:      logger,
		mediaRoot:   mediaRoot,
	}
}

func (s *Service) activateConfigSwitch(ctx context.Context, kind string) {
	var name string

	switch kind {
	case "domain":
		name = SwitchSaveDomainsConfig
	case "channel":
		name = SwitchSaveChannelsConfig
	default:
		return
	}

	s.switches.ActivateSwitch(name, ctx)
}
