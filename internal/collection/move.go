package collection

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const movedDirPermissions = 0o755

// move relocates every entry under oldDirectory into newDirectory
// (mkdir -p newDirectory; rename each top-level entry, which carries its
// whole subtree with it; remove oldDirectory if it ends up empty), then
// rewrites every descendant FileGroup.Directory and Download.Destination
// that was rooted at oldDirectory. FileGroup.Data/Files filenames are
// relative to Directory and are left untouched.
func (s *Service) move(ctx context.Context, oldDirectory, newDirectory string) error {
	if oldDirectory == newDirectory {
		return nil
	}

	if err := os.MkdirAll(newDirectory, movedDirPermissions); err != nil {
		return fmt.Errorf("collection: creating %s: %w", newDirectory, err)
	}

	if err := moveEntries(oldDirectory, newDirectory); err != nil {
		return err
	}

	if err := s.rewriteFileGroups(ctx, oldDirectory, newDirectory); err != nil {
		return err
	}

	if err := s.rewriteDownloads(ctx, oldDirectory, newDirectory); err != nil {
		return err
	}

	removeIfEmpty(oldDirectory)

	return nil
}

// moveEntries renames every top-level entry of oldDirectory into
// newDirectory, preserving names. A directory entry's whole subtree moves
// with it as a single rename (same filesystem), so nested year/ or stem
// subdirectories need no individual handling.
func moveEntries(oldDirectory, newDirectory string) error {
	entries, err := os.ReadDir(oldDirectory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("collection: reading %s: %w", oldDirectory, err)
	}

	for _, entry := range entries {
		src := filepath.Join(oldDirectory, entry.Name())
		dst := filepath.Join(newDirectory, entry.Name())

		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("collection: moving %s to %s: %w", src, dst, err)
		}
	}

	return nil
}

func removeIfEmpty(directory string) {
	entries, err := os.ReadDir(directory)
	if err != nil || len(entries) > 0 {
		return
	}

	_ = os.Remove(directory)
}

func (s *Service) rewriteFileGroups(ctx context.Context, oldDirectory, newDirectory string) error {
	groups, err := s.fileGroups.ListByDirectory(ctx, oldDirectory)
	if err != nil {
		return fmt.Errorf("collection: listing file_groups under %s: %w", oldDirectory, err)
	}

	for _, fg := range groups {
		rewritten, ok := rebase(fg.Directory, oldDirectory, newDirectory)
		if !ok {
			continue
		}

		fg.Directory = rewritten

		if err := s.fileGroups.Update(ctx, fg); err != nil {
			return fmt.Errorf("collection: rewriting file_group %d directory: %w", fg.ID, err)
		}
	}

	return nil
}

func (s *Service) rewriteDownloads(ctx context.Context, oldDirectory, newDirectory string) error {
	downloads, err := s.downloads.ListByDestinationPrefix(ctx, oldDirectory)
	if err != nil {
		return fmt.Errorf("collection: listing downloads under %s: %w", oldDirectory, err)
	}

	for _, d := range downloads {
		rewritten, ok := rebase(d.Destination, oldDirectory, newDirectory)
		if !ok {
			continue
		}

		if err := s.downloads.UpdateDestination(ctx, d.ID, rewritten); err != nil {
			return fmt.Errorf("collection: rewriting download %d destination: %w", d.ID, err)
		}
	}

	return nil
}

// rebase rewrites path's oldRoot prefix to newRoot, returning ok=false if
// path is not actually rooted at oldRoot.
func rebase(path, oldRoot, newRoot string) (string, bool) {
	if path == oldRoot {
		return newRoot, true
	}

	prefix := oldRoot + string(filepath.Separator)
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}

	return filepath.Join(newRoot, strings.TrimPrefix(path, prefix)), true
}
