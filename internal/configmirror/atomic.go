package configmirror

import (
	"fmt"
	"os"
	"path/filepath"
)

const mirrorFilePermissions = 0o644
const mirrorDirPermissions = 0o755

// atomicWriteFile writes data to path via a temp file in the same
// directory, fsynced and renamed into place — the same discipline
// internal/appconfig uses for the TOML app config, reused here for the
// YAML domain mirror so a crash mid-dump never leaves a truncated or
// half-written config file for the next import to choke on.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, mirrorDirPermissions); err != nil {
		return fmt.Errorf("configmirror: creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".configmirror-*.tmp")
	if err != nil {
		return fmt.Errorf("configmirror: creating temp file: %w", err)
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

		return fmt.Errorf("configmirror: writing temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()

		return fmt.Errorf("configmirror: syncing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("configmirror: closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, mirrorFilePermissions); err != nil {
		return fmt.Errorf("configmirror: setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("configmirror: renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}

// removeStale deletes path if it exists, ignoring a not-exist error.
func removeStale(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("configmirror: removing stale config %s: %w", path, err)
	}

	return nil
}

// readFileIfExists reads path, returning (nil, false, nil) if it is absent.
func readFileIfExists(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("configmirror: reading %s: %w", path, err)
	}

	return data, true, nil
}
