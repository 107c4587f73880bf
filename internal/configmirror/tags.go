package configmirror

import (
	"context"
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wrolpi/archivaid/internal/store"
)

// TagsConfig mirrors the `tag` table to tags.yaml. It is first in the
// cross-config dependency order since channels and domains
// reference tags by name.
type TagsConfig struct {
	path     string
	tags     *store.TagStore
	versions *versionStore
}

// NewTagsConfig returns a TagsConfig rooted at <mediaConfigDir>/tags.yaml.
func NewTagsConfig(mediaConfigDir string, db *store.DB) *TagsConfig {
	return &TagsConfig{
		path:     filepath.Join(mediaConfigDir, "tags.yaml"),
		tags:     store.NewTagStore(db),
		versions: newVersionStore(db),
	}
}

// FileName identifies this config for the driver's per-config result map.
func (c *TagsConfig) FileName() string { return "tags" }

type tagsYAML struct {
	Version int         `yaml:"version"`
	Tags    []tagEntry  `yaml:"tags"`
}

type tagEntry struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

// Import loads tags.yaml into the DB: present entries are created or
// overwrite DB values (source of truth when present), entries the DB has
// that the file omits are deleted (delete-on-removal), but a missing file
// or an empty list never deletes anything (never-delete-on-empty).
func (c *TagsConfig) Import(ctx context.Context) error {
	data, exists, err := readFileIfExists(c.path)
	if err != nil {
		return err
	}

	if !exists {
		return nil
	}

	var doc tagsYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("configmirror: parsing tags.yaml: %w", err)
	}

	if len(doc.Tags) == 0 {
		return nil
	}

	wanted := make(map[string]bool, len(doc.Tags))

	for _, entry := range doc.Tags {
		wanted[entry.Name] = true

		tag, err := c.tags.GetOrCreate(ctx, entry.Name)
		if err != nil {
			return fmt.Errorf("configmirror: importing tag %q: %w", entry.Name, err)
		}

		if entry.Color != "" && entry.Color != tag.Color {
			if err := c.tags.SetColor(ctx, tag.ID, entry.Color); err != nil {
				return fmt.Errorf("configmirror: setting color for tag %q: %w", entry.Name, err)
			}
		}
	}

	existing, err := c.tags.All(ctx)
	if err != nil {
		return err
	}

	for _, tag := range existing {
		if !wanted[tag.Name] {
			if err := c.tags.Delete(ctx, tag.ID); err != nil {
				return fmt.Errorf("configmirror: deleting removed tag %q: %w", tag.Name, err)
			}
		}
	}

	return c.versions.Set(ctx, c.FileName(), doc.Version)
}

// Dump writes the DB's tags to tags.yaml, incrementing the version. An
// empty tag set writes no file and removes any stale one.
func (c *TagsConfig) Dump(ctx context.Context) error {
	tags, err := c.tags.All(ctx)
	if err != nil {
		return err
	}

	if len(tags) == 0 {
		return removeStale(c.path)
	}

	doc := tagsYAML{Tags: make([]tagEntry, 0, len(tags))}
	for _, tag := range tags {
		doc.Tags = append(doc.Tags, tagEntry{Name: tag.Name, Color: tag.Color})
	}

	current, err := c.versions.Get(ctx, c.FileName())
	if err != nil {
		return err
	}

	doc.Version = current + 1

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("configmirror: marshaling tags.yaml: %w", err)
	}

	if err := atomicWriteFile(c.path, out); err != nil {
		return err
	}

	return c.versions.Set(ctx, c.FileName(), doc.Version)
}
