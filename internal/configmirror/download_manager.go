package configmirror

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wrolpi/archivaid/internal/apperr"
	"github.com/wrolpi/archivaid/internal/model"
	"github.com/wrolpi/archivaid/internal/store"
)

// DownloadManagerConfig mirrors recurring (subscription-style) Downloads to
// download_manager.yaml. It imports second, right after tags.yaml, since
// channels.yaml entries may reference a download by URL.
type DownloadManagerConfig struct {
	path      string
	downloads *store.DownloadStore
	versions  *versionStore
}

// NewDownloadManagerConfig returns a DownloadManagerConfig rooted at
// <mediaConfigDir>/download_manager.yaml.
func NewDownloadManagerConfig(mediaConfigDir string, db *store.DB) *DownloadManagerConfig {
	return &DownloadManagerConfig{
		path:      filepath.Join(mediaConfigDir, "download_manager.yaml"),
		downloads: store.NewDownloadStore(db),
		versions:  newVersionStore(db),
	}
}

// FileName identifies this config for the driver's per-config result map.
func (c *DownloadManagerConfig) FileName() string { return "download_manager" }

type downloadManagerYAML struct {
	Version   int               `yaml:"version"`
	Downloads []downloadEntry   `yaml:"downloads"`
}

type downloadEntry struct {
	URL              string   `yaml:"url"`
	Downloader       string   `yaml:"downloader"`
	SubDownloader    string   `yaml:"sub_downloader,omitempty"`
	FrequencySeconds *int64   `yaml:"frequency_seconds,omitempty"`
	TagNames         []string `yaml:"tag_names,omitempty"`
}

// Import reconciles download_manager.yaml into the `download` table. Only
// recurring downloads (frequency_seconds set) are config-managed; one-shot
// downloads created via the API never appear here.
func (c *DownloadManagerConfig) Import(ctx context.Context) error {
	data, exists, err := readFileIfExists(c.path)
	if err != nil {
		return err
	}

	if !exists {
		return nil
	}

	var doc downloadManagerYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("configmirror: parsing download_manager.yaml: %w", err)
	}

	if len(doc.Downloads) == 0 {
		return nil
	}

	wanted := make(map[string]bool, len(doc.Downloads))

	for _, entry := range doc.Downloads {
		wanted[entry.URL] = true

		if err := c.importOne(ctx, entry); err != nil {
			return fmt.Errorf("configmirror: importing download %q: %w", entry.URL, err)
		}
	}

	recurring, err := c.recurringDownloads(ctx)
	if err != nil {
		return err
	}

	for _, d := range recurring {
		if !wanted[d.URL] {
			if err := c.downloads.Delete(ctx, d.ID); err != nil {
				return fmt.Errorf("configmirror: deleting removed download %q: %w", d.URL, err)
			}
		}
	}

	return c.versions.Set(ctx, c.FileName(), doc.Version)
}

func (c *DownloadManagerConfig) importOne(ctx context.Context, entry downloadEntry) error {
	var frequency *time.Duration

	if entry.FrequencySeconds != nil {
		d := time.Duration(*entry.FrequencySeconds) * time.Second
		frequency = &d
	}

	existing, err := c.downloads.GetActiveByURL(ctx, entry.URL)
	if errors.Is(err, apperr.ErrNotFound) {
		_, err = c.downloads.Create(ctx, &model.Download{
			URL:           entry.URL,
			Downloader:    entry.Downloader,
			SubDownloader: entry.SubDownloader,
			Frequency:     frequency,
			TagNames:      entry.TagNames,
		})

		return err
	}

	if err != nil {
		return err
	}

	existing.Downloader = entry.Downloader
	existing.SubDownloader = entry.SubDownloader
	existing.Frequency = frequency
	existing.TagNames = entry.TagNames

	return c.downloads.UpdateSettings(ctx, existing)
}

// recurringDownloads returns every non-terminal Download with a frequency
// set, the config-managed subset.
func (c *DownloadManagerConfig) recurringDownloads(ctx context.Context) ([]*model.Download, error) {
	var all []*model.Download

	for _, status := range []model.DownloadStatus{model.DownloadStatusNew, model.DownloadStatusPending, model.DownloadStatusDeferred, model.DownloadStatusComplete} {
		batch, err := c.downloads.ListByStatus(ctx, status)
		if err != nil {
			return nil, err
		}

		for _, d := range batch {
			if d.IsRecurring() {
				all = append(all, d)
			}
		}
	}

	return all, nil
}

// Dump writes every recurring download to download_manager.yaml,
// incrementing the version.
func (c *DownloadManagerConfig) Dump(ctx context.Context) error {
	recurring, err := c.recurringDownloads(ctx)
	if err != nil {
		return err
	}

	if len(recurring) == 0 {
		return removeStale(c.path)
	}

	doc := downloadManagerYAML{Downloads: make([]downloadEntry, 0, len(recurring))}

	for _, d := range recurring {
		entry := downloadEntry{
			URL:           d.URL,
			Downloader:    d.Downloader,
			SubDownloader: d.SubDownloader,
			TagNames:      d.TagNames,
		}

		if d.Frequency != nil {
			seconds := int64(d.Frequency.Seconds())
			entry.FrequencySeconds = &seconds
		}

		doc.Downloads = append(doc.Downloads, entry)
	}

	current, err := c.versions.Get(ctx, c.FileName())
	if err != nil {
		return err
	}

	doc.Version = current + 1

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("configmirror: marshaling download_manager.yaml: %w", err)
	}

	if err := atomicWriteFile(c.path, out); err != nil {
		return err
	}

	return c.versions.Set(ctx, c.FileName(), doc.Version)
}
