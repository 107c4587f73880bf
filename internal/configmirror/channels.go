package configmirror

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wrolpi/archivaid/internal/apperr"
	"github.com/wrolpi/archivaid/internal/model"
	"github.com/wrolpi/archivaid/internal/store"
)

// ChannelsConfig mirrors the `channel` table (and each channel's owning
// "channel"-kind Collection) to channels.yaml. It imports after tags.yaml
// and download_manager.yaml since a channel
// entry may reference a tag by name.
type ChannelsConfig struct {
	path        string
	channels    *store.ChannelStore
	collections *store.CollectionStore
	tags        *store.TagStore
	versions    *versionStore
}

// NewChannelsConfig returns a ChannelsConfig rooted at
// <mediaConfigDir>/channels.yaml.
func NewChannelsConfig(mediaConfigDir string, db *store.DB) *ChannelsConfig {
	return &ChannelsConfig{
		path:        filepath.Join(mediaConfigDir, "channels.yaml"),
		channels:    store.NewChannelStore(db),
		collections: store.NewCollectionStore(db),
		tags:        store.NewTagStore(db),
		versions:    newVersionStore(db),
	}
}

// FileName identifies this config for the driver's per-config result map.
func (c *ChannelsConfig) FileName() string { return "channels" }

type channelsYAML struct {
	Version  int             `yaml:"version"`
	Channels []channelEntry  `yaml:"channels"`
}

type channelEntry struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	Directory string `yaml:"directory"`
	TagName   string `yaml:"tag_name,omitempty"`
}

// Import reconciles channels.yaml into the DB. This is bulk reconciliation,
// not the runtime tag-move lifecycle (internal/collection's Service.Tag
// handles directory moves when a user retags a live channel); here the
// directory and tag association are simply written to match the file.
func (c *ChannelsConfig) Import(ctx context.Context) error {
	data, exists, err := readFileIfExists(c.path)
	if err != nil {
		return err
	}

	if !exists {
		return nil
	}

	var doc channelsYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("configmirror: parsing channels.yaml: %w", err)
	}

	if len(doc.Channels) == 0 {
		return nil
	}

	wanted := make(map[string]bool, len(doc.Channels))

	for _, entry := range doc.Channels {
		wanted[entry.Name] = true

		if err := c.importOne(ctx, entry); err != nil {
			return fmt.Errorf("configmirror: importing channel %q: %w", entry.Name, err)
		}
	}

	existing, err := c.channels.All(ctx)
	if err != nil {
		return err
	}

	for _, ch := range existing {
		if !wanted[ch.Name] {
			if err := c.deleteChannel(ctx, ch); err != nil {
				return fmt.Errorf("configmirror: deleting removed channel %q: %w", ch.Name, err)
			}
		}
	}

	return c.versions.Set(ctx, c.FileName(), doc.Version)
}

func (c *ChannelsConfig) importOne(ctx context.Context, entry channelEntry) error {
	collection, err := c.collections.GetByNameAndKind(ctx, entry.Name, model.CollectionKindChannel)
	if errors.Is(err, apperr.ErrNotFound) {
		directory := entry.Directory
		collectionID, createErr := c.collections.Create(ctx, &model.Collection{
			Name:      entry.Name,
			Kind:      model.CollectionKindChannel,
			Directory: &directory,
		})
		if createErr != nil {
			return createErr
		}

		collection, err = c.collections.GetByID(ctx, collectionID)
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else {
		collection.Directory = &entry.Directory
		if err := c.collections.Update(ctx, collection); err != nil {
			return err
		}
	}

	if entry.TagName != "" {
		tag, err := c.tags.GetOrCreate(ctx, entry.TagName)
		if err != nil {
			return err
		}

		collection.TagID = &tag.ID
		if err := c.collections.Update(ctx, collection); err != nil {
			return err
		}
	}

	channel, err := c.channels.GetByCollectionID(ctx, collection.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		_, err = c.channels.Create(ctx, &model.Channel{
			Name:         entry.Name,
			URL:          entry.URL,
			Directory:    entry.Directory,
			CollectionID: collection.ID,
		})

		return err
	} else if err != nil {
		return err
	}

	channel.URL = entry.URL
	channel.Directory = entry.Directory

	return c.channels.Update(ctx, channel)
}

func (c *ChannelsConfig) deleteChannel(ctx context.Context, ch *model.Channel) error {
	if err := c.channels.Delete(ctx, ch.ID); err != nil {
		return err
	}

	return c.collections.Delete(ctx, ch.CollectionID)
}

// Dump writes every channel to channels.yaml, incrementing the version.
func (c *ChannelsConfig) Dump(ctx context.Context) error {
	channels, err := c.channels.All(ctx)
	if err != nil {
		return err
	}

	if len(channels) == 0 {
		return removeStale(c.path)
	}

	doc := channelsYAML{Channels: make([]channelEntry, 0, len(channels))}

	for _, ch := range channels {
		entry := channelEntry{Name: ch.Name, URL: ch.URL, Directory: ch.Directory}

		collection, err := c.collections.GetByID(ctx, ch.CollectionID)
		if err == nil && collection.TagID != nil {
			tag, err := c.tags.GetByID(ctx, *collection.TagID)
			if err == nil {
				entry.TagName = tag.Name
			}
		}

		doc.Channels = append(doc.Channels, entry)
	}

	current, err := c.versions.Get(ctx, c.FileName())
	if err != nil {
		return err
	}

	doc.Version = current + 1

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("configmirror: marshaling channels.yaml: %w", err)
	}

	if err := atomicWriteFile(c.path, out); err != nil {
		return err
	}

	return c.versions.Set(ctx, c.FileName(), doc.Version)
}
