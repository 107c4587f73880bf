// Package configmirror implements bidirectional DB↔YAML synchronization:
// tags.yaml, download_manager.yaml, channels.yaml, domains.yaml, and
// inventories.yaml, each import()/dump() pair bound to a YAML file under
// <media>/config/, with monotonic version tracking, never-delete-on-empty
// semantics, and a cross-config dependency-ordered driver
// (ImportAll/DumpAll). Five independent YAML mirrors, each versioned in
// the config_version table.
package configmirror

import (
	"context"
	"fmt"

	"github.com/wrolpi/archivaid/internal/store"
)

// versionStore reads and writes the monotonic version counter each config
// file carries.
type versionStore struct {
	db *store.DB
}

func newVersionStore(db *store.DB) *versionStore {
	return &versionStore{db: db}
}

// Get returns the current known version for name, or 0 if never dumped.
func (v *versionStore) Get(ctx context.Context, name string) (int, error) {
	row := v.db.Conn().QueryRowContext(ctx, `SELECT version FROM config_version WHERE name = ?`, name)

	var version int
	if err := row.Scan(&version); err != nil {
		return 0, nil
	}

	return version, nil
}

// Set persists version for name, inserting the row if absent.
func (v *versionStore) Set(ctx context.Context, name string, version int) error {
	_, err := v.db.Conn().ExecContext(ctx, `
		INSERT INTO config_version (name, version) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET version = excluded.version`, name, version)
	if err != nil {
		return fmt.Errorf("configmirror: setting version for %s: %w", name, err)
	}

	return nil
}

// ErrVersionMismatch describes a config whose attempted version is not
// newer than the version already recorded for it. No mirror returns it:
// every Dump writes the recorded version plus one, and no Import compares
// a file's version against the recorded one.
type ErrVersionMismatch struct {
	Name       string
	Current    int
	Attempted  int
}

func (e *ErrVersionMismatch) Error() string {
	return fmt.Sprintf("configmirror: %s: attempted version %d is not newer than current version %d",
		e.Name, e.Attempted, e.Current)
}
