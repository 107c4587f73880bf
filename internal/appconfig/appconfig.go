// Package appconfig implements TOML configuration loading and atomic
// writing for the archivaid daemon's own settings (media root, worker
// counts, WROL mode, Docker mode, network ports). This is distinct from
// internal/configmirror, which mirrors domain data (tags, channels,
// domains, downloads, inventories) to YAML — two independent tiers because
// the domain mirror's wire format is fixed by external tooling while the
// daemon's own settings are free to follow the TOML convention this
// codebase already uses.
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level archivaid daemon configuration.
type Config struct {
	Media   MediaConfig   `toml:"media"`
	Workers WorkersConfig `toml:"workers"`
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
}

// MediaConfig controls the on-disk media root and WROL (read-only) mode.
type MediaConfig struct {
	Root     string `toml:"root"`
	WROLMode bool   `toml:"wrol_mode"`
	Docker   bool   `toml:"docker_mode"`
}

// WorkersConfig controls the sizes of the refresh and download worker pools.
type WorkersConfig struct {
	RefreshWorkers  int    `toml:"refresh_workers"`
	DownloadWorkers int    `toml:"download_workers"`
	BatchSize       int    `toml:"batch_size"`
	BandwidthLimit  string `toml:"bandwidth_limit"` // e.g. "5MB/s"; "" or "0" means unlimited
}

// ServerConfig controls the daemon's listen address.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Default returns a Config populated with archivaid's defaults.
func Default() Config {
	return Config{
		Media: MediaConfig{
			Root:     "/media/archivaid",
			WROLMode: false,
			Docker:   false,
		},
		Workers: WorkersConfig{
			RefreshWorkers:  4,
			DownloadWorkers: 2,
			BatchSize:       20,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

const configFilePermissions = 0o644
const configDirPermissions = 0o755

// Load reads the TOML config file at path, falling back to Default() for any
// field a key omits — BurntSushi/toml leaves zero-valued fields for absent
// keys, so callers that need defaults applied should start from Default()
// and decode on top of it.
func Load(path string) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("appconfig: decoding %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes cfg to path as TOML, atomically (temp file + fsync + rename),
// so a crash mid-write never leaves a truncated config on disk.
func Save(path string, cfg Config) error {
	var buf []byte

	w := &bufWriter{}
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("appconfig: encoding config: %w", err)
	}

	buf = w.data

	return atomicWriteFile(path, buf)
}

// bufWriter is a minimal io.Writer collecting bytes, avoiding a bytes.Buffer
// import for a single accumulate-then-write use.
type bufWriter struct {
	data []byte
}

func (b *bufWriter) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)

	return len(p), nil
}

// atomicWriteFile writes data to path via a temp file in the same directory,
// fsynced and renamed into place.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("appconfig: creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".appconfig-*.tmp")
	if err != nil {
		return fmt.Errorf("appconfig: creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("appconfig: writing temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()

		return fmt.Errorf("appconfig: syncing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("appconfig: closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("appconfig: setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("appconfig: renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
