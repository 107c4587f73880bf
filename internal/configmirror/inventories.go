package configmirror

import (
	"context"
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wrolpi/archivaid/internal/store"
)

// InventoriesConfig mirrors the `inventory` table to inventories.yaml. It
// imports last and soft-deletes rows omitted
// by the file, unlike every other config here which hard-deletes.
type InventoriesConfig struct {
	path       string
	inventories *store.InventoryStore
	versions   *versionStore
}

// NewInventoriesConfig returns an InventoriesConfig rooted at
// <mediaConfigDir>/inventories.yaml.
func NewInventoriesConfig(mediaConfigDir string, db *store.DB) *InventoriesConfig {
	return &InventoriesConfig{
		path:        filepath.Join(mediaConfigDir, "inventories.yaml"),
		inventories: store.NewInventoryStore(db),
		versions:    newVersionStore(db),
	}
}

// FileName identifies this config for the driver's per-config result map.
func (c *InventoriesConfig) FileName() string { return "inventories" }

type inventoriesYAML struct {
	Version     int                 `yaml:"version"`
	Inventories []inventoryEntry    `yaml:"inventories"`
}

type inventoryEntry struct {
	Name string `yaml:"name"`
}

// Import reconciles inventories.yaml into the `inventory` table, soft
// deleting rows the file omits.
func (c *InventoriesConfig) Import(ctx context.Context) error {
	data, exists, err := readFileIfExists(c.path)
	if err != nil {
		return err
	}

	if !exists {
		return nil
	}

	var doc inventoriesYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("configmirror: parsing inventories.yaml: %w", err)
	}

	if len(doc.Inventories) == 0 {
		return nil
	}

	wanted := make(map[string]bool, len(doc.Inventories))

	for _, entry := range doc.Inventories {
		wanted[entry.Name] = true

		if _, err := c.inventories.GetActiveByName(ctx, entry.Name); err != nil {
			if _, createErr := c.inventories.Create(ctx, entry.Name); createErr != nil {
				return fmt.Errorf("configmirror: importing inventory %q: %w", entry.Name, createErr)
			}
		}
	}

	existing, err := c.inventories.ListActive(ctx)
	if err != nil {
		return err
	}

	for _, inv := range existing {
		if !wanted[inv.Name] {
			if err := c.inventories.SoftDelete(ctx, inv.ID); err != nil {
				return fmt.Errorf("configmirror: soft-deleting removed inventory %q: %w", inv.Name, err)
			}
		}
	}

	return c.versions.Set(ctx, c.FileName(), doc.Version)
}

// Dump writes every active inventory to inventories.yaml, incrementing the
// version.
func (c *InventoriesConfig) Dump(ctx context.Context) error {
	active, err := c.inventories.ListActive(ctx)
	if err != nil {
		return err
	}

	if len(active) == 0 {
		return removeStale(c.path)
	}

	doc := inventoriesYAML{Inventories: make([]inventoryEntry, 0, len(active))}
	for _, inv := range active {
		doc.Inventories = append(doc.Inventories, inventoryEntry{Name: inv.Name})
	}

	current, err := c.versions.Get(ctx, c.FileName())
	if err != nil {
		return err
	}

	doc.Version = current + 1

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("configmirror: marshaling inventories.yaml: %w", err)
	}

	if err := atomicWriteFile(c.path, out); err != nil {
		return err
	}

	return c.versions.Set(ctx, c.FileName(), doc.Version)
}
