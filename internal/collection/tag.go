package collection

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/wrolpi/archivaid/internal/model"
)

// TagResult reports the outcome of Tag.
type TagResult struct {
	CollectionID   int64
	CollectionName string
	TagName        string // empty if the tag was removed
	Directory      string // empty if the collection has no directory
	Moved          bool
}

// Tag applies tagName to the collection (or removes the tag if tagName is
// empty), optionally moving its files to directory. The target directory
// is directory if given; otherwise, when tagging a collection that has a
// directory, FormatDirectory(mediaRoot, kind, tagName, name); otherwise the
// existing directory (unset for an unrestricted collection). A move only
// happens when the resolved target differs from the collection's current
// directory and both are non-nil.
func (s *Service) Tag(ctx context.Context, collectionID int64, tagName, directory string) (TagResult, error) {
	c, err := s.collections.GetByID(ctx, collectionID)
	if err != nil {
		return TagResult{}, err
	}

	oldDirectory := c.Directory

	if tagName == "" {
		c.TagID = nil

		if directory != "" {
			d := directory
			c.Directory = &d
		}

		return s.finishTag(ctx, c, oldDirectory, "")
	}

	tag, err := s.tags.GetOrCreate(ctx, tagName)
	if err != nil {
		return TagResult{}, fmt.Errorf("collection: resolving tag %q: %w", tagName, err)
	}

	target := c.Directory

	if directory != "" {
		d := directory
		target = &d
	} else if c.Directory != nil {
		d := FormatDirectory(s.mediaRoot, c.Kind, tagName, c.Name)
		target = &d
	}

	c.TagID = &tag.ID
	if target != nil {
		c.Directory = target
	}

	return s.finishTag(ctx, c, oldDirectory, tagName)
}

func (s *Service) finishTag(ctx context.Context, c *model.Collection, oldDirectory *string, tagName string) (TagResult, error) {
	moved := false

	if c.Directory != nil && oldDirectory != nil && *c.Directory != *oldDirectory {
		if err := s.move(ctx, *oldDirectory, *c.Directory); err != nil {
			return TagResult{}, err
		}

		moved = true
	}

	if err := s.collections.Update(ctx, c); err != nil {
		return TagResult{}, fmt.Errorf("collection: updating %d: %w", c.ID, err)
	}

	s.activateConfigSwitch(ctx, string(c.Kind))

	result := TagResult{
		CollectionID:   c.ID,
		CollectionName: c.Name,
		TagName:        tagName,
		Moved:          moved,
	}

	if c.Directory != nil {
		result.Directory = *c.Directory
	}

	return result, nil
}

// FormatDirectory computes the directory a Collection of kind belongs
// under when tagged with tagName (or untagged, if tagName is empty):
// <mediaRoot>/<kindRoot>/<tagName>/<name> or <mediaRoot>/<kindRoot>/<name>.
func FormatDirectory(mediaRoot string, kind model.CollectionKind, tagName, name string) string {
	root := kindRoot(kind)

	if tagName != "" {
		return filepath.Join(mediaRoot, root, tagName, name)
	}

	return filepath.Join(mediaRoot, root, name)
}

// kindRoot maps a Collection's kind to its top-level media directory. Manual
// collections have no fixed root in the media layout; "manual" is this
// domain's own choice since nothing upstream names one.
func kindRoot(kind model.CollectionKind) string {
	switch kind {
	case model.CollectionKindChannel:
		return "videos"
	case model.CollectionKindDomain:
		return "archive"
	default:
		return "manual"
	}
}
