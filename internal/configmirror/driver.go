package configmirror

import (
	"context"
	"log/slog"

	"github.com/wrolpi/archivaid/internal/store"
)

// ConfigFile is implemented by each of the five mirrors. Import reads the
// YAML file into the DB; Dump writes the DB out to the YAML file.
type ConfigFile interface {
	FileName() string
	Import(ctx context.Context) error
	Dump(ctx context.Context) error
}

// Driver runs all five config mirrors in their cross-config dependency
// order: tags, download_manager, channels, domains, inventories.
type Driver struct {
	configs []ConfigFile
	logger  *slog.Logger
}

// NewDriver builds a Driver for every mirror rooted at mediaConfigDir,
// sharing db.
func NewDriver(mediaConfigDir string, db *store.DB, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Driver{
		logger: logger,
		configs: []ConfigFile{
			NewTagsConfig(mediaConfigDir, db),
			NewDownloadManagerConfig(mediaConfigDir, db),
			NewChannelsConfig(mediaConfigDir, db),
			NewDomainsConfig(mediaConfigDir, db),
			NewInventoriesConfig(mediaConfigDir, db),
		},
	}
}

// ImportAll runs Import on every config in dependency order. A failure
// importing one config does not abort the others; the returned map reports per-config success.
func (d *Driver) ImportAll(ctx context.Context) map[string]bool {
	results := make(map[string]bool, len(d.configs))

	for _, cfg := range d.configs {
		err := cfg.Import(ctx)
		results[cfg.FileName()] = err == nil

		if err != nil {
			d.logger.Error("config import failed",
				slog.String("config", cfg.FileName()),
				slog.Any("error", err),
			)
		}
	}

	return results
}

// DumpAll runs Dump on every config. Dump ordering across different
// configs is not guaranteed; each config's dump is individually
// consistent, so these run without a fixed order dependency.
func (d *Driver) DumpAll(ctx context.Context) map[string]bool {
	results := make(map[string]bool, len(d.configs))

	for _, cfg := range d.configs {
		err := cfg.Dump(ctx)
		results[cfg.FileName()] = err == nil

		if err != nil {
			d.logger.Error("config dump failed",
				slog.String("config", cfg.FileName()),
				slog.Any("error", err),
			)
		}
	}

	return results
}
