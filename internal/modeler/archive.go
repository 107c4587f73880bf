package modeler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wrolpi/archivaid/internal/model"
	"github.com/wrolpi/archivaid/internal/singlefile"
	"github.com/wrolpi/archivaid/internal/store"
)

// archiveMimetypePrefix is the prefix this modeler registers under; it
// matches any HTML variant.
const archiveMimetypePrefix = "text/html"

// ArchiveModelerDeps bundles the stores the archive modeler needs.
type ArchiveModelerDeps struct {
	Archives    *store.ArchiveStore
	Collections *store.CollectionStore
	MediaRoot   string
}

// RegisterArchiveModeler attaches the archive modeler to registry: a
// FileGroup whose primary file is a SingleFile HTML page (the group's
// stem has a sibling ".html" that is not itself a ".readability.html")
// is promoted to an Archive, with readability/json/txt/screenshot
// siblings recorded in FileGroup.Data by their well-known keys.
func RegisterArchiveModeler(registry *Registry, deps ArchiveModelerDeps) {
	registry.RegisterModeler(archiveMimetypePrefix, func(ctx context.Context, group *model.FileGroup) error {
		return modelArchive(ctx, group, deps)
	})
}

func modelArchive(ctx context.Context, group *model.FileGroup, deps ArchiveModelerDeps) error {
	if strings.HasSuffix(group.PrimaryPath, ".readability.html") {
		// This group's primary file is a readability variant, not a
		// SingleFile page; it belongs to the group whose primary path is
		// the sibling ".html" file and is handled there.
		return nil
	}

	if !isSingleFileHTML(group, group.PrimaryPath) {
		return nil
	}

	stem := strings.TrimSuffix(group.PrimaryPath, filepath.Ext(group.PrimaryPath))

	attachSibling(group, stem+".readability.html", model.DataKeyReadabilityHTML)
	attachSibling(group, stem+".readability.json", model.DataKeyReadabilityJSON)
	attachSibling(group, stem+".readability.txt", model.DataKeyReadabilityTxt)
	attachSibling(group, stem+".png", model.DataKeyScreenshotPath)

	group.URL = resolveURL(group)

	if group.Published == nil {
		if t, ok := savedDateFromSingleFile(group); ok {
			group.Published = &t
		}
	}

	collectionID := resolveArchiveCollection(ctx, group, deps)

	archive, err := deps.Archives.GetByFileGroupID(ctx, group.ID)
	if err != nil {
		archiveDatetime := group.CreatedAt
		if group.Published != nil {
			archiveDatetime = *group.Published
		}

		_, createErr := deps.Archives.Create(ctx, &model.Archive{
			FileGroupID:     group.ID,
			URL:             group.URL,
			ArchiveDatetime: archiveDatetime,
			CollectionID:    collectionID,
		})
		if createErr != nil {
			return fmt.Errorf("modeler: creating archive for file_group %d: %w", group.ID, createErr)
		}

		return nil
	}

	archive.URL = group.URL

	if collectionID != nil && (archive.CollectionID == nil || *archive.CollectionID != *collectionID) {
		if err := deps.Archives.SetCollection(ctx, archive.ID, collectionID); err != nil {
			return fmt.Errorf("modeler: setting collection for archive %d: %w", archive.ID, err)
		}
	}

	return nil
}

// resolveArchiveCollection finds the domain Collection owning group's
// directory (the year-subfolder/custom-archive_file_format edge case: the
// registered directory may sit above group.Directory, never below it), so
// a freshly modeled Archive is associated with its domain Collection
// rather than left with a nil CollectionID until someone tags it by hand.
// A group with no owning domain Collection (not yet imported from
// domains.yaml, or a manually organized directory outside archive/)
// resolves to nil, not an error.
func resolveArchiveCollection(ctx context.Context, group *model.FileGroup, deps ArchiveModelerDeps) *int64 {
	if deps.Collections == nil || deps.MediaRoot == "" {
		return nil
	}

	collection, err := store.ResolveDomainDirectory(ctx, deps.Collections, deps.MediaRoot, filepath.Join(group.Directory, group.PrimaryPath))
	if err != nil {
		return nil
	}

	return &collection.ID
}

// isSingleFileHTML reports whether relativePath, resolved under
// group.Directory, opens with a SingleFile header.
func isSingleFileHTML(group *model.FileGroup, relativePath string) bool {
	if !strings.HasSuffix(relativePath, ".html") {
		return false
	}

	f, err := os.Open(filepath.Join(group.Directory, relativePath))
	if err != nil {
		return false
	}
	defer f.Close()

	header, err := singlefile.ParseHeader(f)

	return err == nil && header.URL != ""
}

// attachSibling records relativePath in group.Data under key if the file
// exists under group.Directory.
func attachSibling(group *model.FileGroup, relativePath, key string) {
	if _, err := os.Stat(filepath.Join(group.Directory, relativePath)); err != nil {
		return
	}

	if group.Data == nil {
		group.Data = make(map[string]string)
	}

	group.Data[key] = relativePath

	for _, existing := range group.Files {
		if existing == relativePath {
			return
		}
	}

	group.Files = append(group.Files, relativePath)
}

// resolveURL implements Open Question (a): when the singlefile header and
// the readability JSON disagree on URL, the readability JSON wins.
func resolveURL(group *model.FileGroup) string {
	if readabilityPath, ok := group.Data[model.DataKeyReadabilityJSON]; ok {
		if url, ok := urlFromReadabilityJSON(filepath.Join(group.Directory, readabilityPath)); ok {
			return url
		}
	}

	if header, ok := singleFileHeader(group); ok {
		return header.URL
	}

	return group.URL
}

func savedDateFromSingleFile(group *model.FileGroup) (time.Time, bool) {
	header, ok := singleFileHeader(group)
	if !ok || header.SavedDate.IsZero() {
		return time.Time{}, false
	}

	return header.SavedDate, true
}

// urlFromReadabilityJSON extracts the "url" field from a readability.json
// sidecar file, returning ok=false if the file is absent, malformed, or
// lacks a url.
func urlFromReadabilityJSON(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}

	var doc struct {
		URL string `json:"url"`
	}

	if err := json.Unmarshal(data, &doc); err != nil || doc.URL == "" {
		return "", false
	}

	return doc.URL, true
}

func singleFileHeader(group *model.FileGroup) (singlefile.Header, bool) {
	f, err := os.Open(filepath.Join(group.Directory, group.PrimaryPath))
	if err != nil {
		return singlefile.Header{}, false
	}
	defer f.Close()

	header, err := singlefile.ParseHeader(f)
	if err != nil || header.URL == "" {
		return singlefile.Header{}, false
	}

	return header, true
}
