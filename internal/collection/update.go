package collection

import (
	"context"
	"fmt"

	"github.com/wrolpi/archivaid/internal/apperr"
	"github.com/wrolpi/archivaid/internal/model"
)

// Update applies collection update validation rules:
// directory nil means "leave unchanged", a non-nil empty string clears it,
// any other value sets it (nil→non-null is only meaningful for
// unrestricted collections, since a restricted collection already has
// one). tagName follows the same nil/empty/value convention, but setting
// a tag on a collection with no directory is a validation error (a tag
// implies a managed directory to move files into). description follows
// the plain nil-means-unchanged convention.
func (s *Service) Update(ctx context.Context, collectionID int64, directory, tagName, description *string) (*model.Collection, error) {
	c, err := s.collections.GetByID(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	if directory != nil {
		if *directory == "" {
			c.Directory = nil
		} else {
			d := *directory
			c.Directory = &d
		}
	}

	if description != nil {
		c.Description = *description
	}

	if tagName != nil {
		if *tagName == "" {
			c.TagID = nil
		} else {
			if c.Directory == nil {
				return nil, apperr.Validation("collection %q has no directory; set a directory before tagging", c.Name)
			}

			tag, err := s.tags.GetOrCreate(ctx, *tagName)
			if err != nil {
				return nil, fmt.Errorf("collection: resolving tag %q: %w", *tagName, err)
			}

			c.TagID = &tag.ID
		}
	}

	if err := s.collections.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("collection: updating %d: %w", collectionID, err)
	}

	s.activateConfigSwitch(ctx, string(c.Kind))

	return c, nil
}
