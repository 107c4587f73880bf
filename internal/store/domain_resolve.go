package store

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/wrolpi/archivaid/internal/apperr"
	"github.com/wrolpi/archivaid/internal/model"
)

// ResolveDomainDirectory handles a domain-directory-resolution edge
// case: walking up from a file, the owning Collection's directory is the
// registered domain directory itself, never a "year/" (or any other)
// subdirectory beneath it, even under a custom archive_file_format. Rather
// than parsing the "<media>/archive/[<tag>/]<domain>" shape textually,
// this walks ancestor directories checking each against the DB, since the
// registered Collection row is the only authority on where a domain
// directory actually sits (a custom format can insert arbitrary depth
// between archive/ and the domain). Lives in internal/store, not
// internal/refresh, so internal/modeler (which internal/refresh already
// imports) can call it without an import cycle.
func ResolveDomainDirectory(ctx context.Context, collections *CollectionStore, mediaRoot, filePath string) (*model.Collection, error) {
	dir := filepath.Dir(filePath)
	root := filepath.Clean(mediaRoot)

	for {
		dir = filepath.Clean(dir)

		c, err := collections.GetByDirectory(ctx, dir)
		if err == nil && c.Kind == model.CollectionKindDomain {
			return c, nil
		}

		if dir == root || !strings.HasPrefix(dir, root) {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return nil, apperr.NotFound("no domain collection directory found above %s", filePath)
}
