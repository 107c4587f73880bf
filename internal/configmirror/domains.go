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

// DomainsConfig mirrors "domain"-kind Collections to domains.yaml. Imports
// after channels.yaml.
type DomainsConfig struct {
	path        string
	collections *store.CollectionStore
	tags        *store.TagStore
	versions    *versionStore
}

// NewDomainsConfig returns a DomainsConfig rooted at
// <mediaConfigDir>/domains.yaml.
func NewDomainsConfig(mediaConfigDir string, db *store.DB) *DomainsConfig {
	return &DomainsConfig{
		path:        filepath.Join(mediaConfigDir, "domains.yaml"),
		collections: store.NewCollectionStore(db),
		tags:        store.NewTagStore(db),
		versions:    newVersionStore(db),
	}
}

// FileName identifies this config for the driver's per-config result map.
func (c *DomainsConfig) FileName() string { return "domains" }

type domainsYAML struct {
	Version int            `yaml:"version"`
	Domains []domainEntry  `yaml:"domains"`
}

type domainEntry struct {
	Name      string `yaml:"name"`
	Directory string `yaml:"directory"`
	TagName   string `yaml:"tag_name,omitempty"`
}

// Import reconciles domains.yaml into the `collection` table.
func (c *DomainsConfig) Import(ctx context.Context) error {
	data, exists, err := readFileIfExists(c.path)
	if err != nil {
		return err
	}

	if !exists {
		return nil
	}

	var doc domainsYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("configmirror: parsing domains.yaml: %w", err)
	}

	if len(doc.Domains) == 0 {
		return nil
	}

	wanted := make(map[string]bool, len(doc.Domains))

	for _, entry := range doc.Domains {
		wanted[entry.Name] = true

		if err := c.importOne(ctx, entry); err != nil {
			return fmt.Errorf("configmirror: importing domain %q: %w", entry.Name, err)
		}
	}

	existing, err := c.collections.ListByKind(ctx, model.CollectionKindDomain)
	if err != nil {
		return err
	}

	for _, collection := range existing {
		if !wanted[collection.Name] {
			if err := c.collections.Delete(ctx, collection.ID); err != nil {
				return fmt.Errorf("configmirror: deleting removed domain %q: %w", collection.Name, err)
			}
		}
	}

	return c.versions.Set(ctx, c.FileName(), doc.Version)
}

func (c *DomainsConfig) importOne(ctx context.Context, entry domainEntry) error {
	directory := entry.Directory

	collection, err := c.collections.GetByNameAndKind(ctx, entry.Name, model.CollectionKindDomain)
	if errors.Is(err, apperr.ErrNotFound) {
		_, createErr := c.collections.Create(ctx, &model.Collection{
			Name:      entry.Name,
			Kind:      model.CollectionKindDomain,
			Directory: &directory,
		})
		if createErr != nil {
			return createErr
		}

		collection, err = c.collections.GetByNameAndKind(ctx, entry.Name, model.CollectionKindDomain)
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	collection.Directory = &directory

	if entry.TagName != "" {
		tag, err := c.tags.GetOrCreate(ctx, entry.TagName)
		if err != nil {
			return err
		}

		collection.TagID = &tag.ID
	}

	return c.collections.Update(ctx, collection)
}

// BoundDomainNames reads <mediaConfigDir>/domains.yaml and returns the set
// of domain names it names, so a caller (refresh's empty-domain prune hook)
// can tell a domain Collection that is merely awaiting its first archive
// apart from one with nothing left to keep it around. A missing domains.yaml
// returns an empty set, not an error.
func BoundDomainNames(mediaConfigDir string) (map[string]bool, error) {
	path := filepath.Join(mediaConfigDir, "domains.yaml")

	data, exists, err := readFileIfExists(path)
	if err != nil {
		return nil, err
	}

	if !exists {
		return map[string]bool{}, nil
	}

	var doc domainsYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("configmirror: parsing domains.yaml: %w", err)
	}

	bound := make(map[string]bool, len(doc.Domains))
	for _, entry := range doc.Domains {
		bound[entry.Name] = true
	}

	return bound, nil
}

// Dump writes every domain collection to domains.yaml, incrementing the
// version.
func (c *DomainsConfig) Dump(ctx context.Context) error {
	collections, err := c.collections.ListByKind(ctx, model.CollectionKindDomain)
	if err != nil {
		return err
	}

	if len(collections) == 0 {
		return removeStale(c.path)
	}

	doc := domainsYAML{Domains: make([]domainEntry, 0, len(collections))}

	for _, collection := range collections {
		entry := domainEntry{Name: collection.Name}

		if collection.Directory != nil {
			entry.Directory = *collection.Directory
		}

		if collection.TagID != nil {
			tag, err := c.tags.GetByID(ctx, *collection.TagID)
			if err == nil {
				entry.TagName = tag.Name
			}
		}

		doc.Domains = append(doc.Domains, entry)
	}

	current, err := c.versions.Get(ctx, c.FileName())
	if err != nil {
		return err
	}

	doc.Version = current + 1

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("configmirror: marshaling domains.yaml: %w", err)
	}

	if err := atomicWriteFile(c.path, out); err != nil {
		return err
	}

	return c.versions.Set(ctx, c.FileName(), doc.Version)
}
