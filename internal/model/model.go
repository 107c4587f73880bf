// Package model defines the domain entities of the archive appliance: Tag,
// FileGroup, Archive, Video, Channel, Collection, Download, and Event. These
// are plain structs persisted by internal/store; model itself holds no
// database code.
package model

import "time"

// Tag is a named label with a color, referenced by Collections and
// FileGroups. Identity is immutable by Name.
type Tag struct {
	ID    int64
	Name  string
	Color string
}

// Well-known keys in FileGroup.Data, one per modeler that attaches auxiliary
// files without a schema migration.
const (
	DataKeyScreenshotPath    = "screenshot_path"
	DataKeyInfoJSONPath      = "info_json_path"
	DataKeyReadabilityHTML   = "readability_path"
	DataKeyReadabilityJSON   = "readability_json_path"
	DataKeyReadabilityTxt    = "readability_txt_path"
	DataKeyPosterPath        = "poster_path"
	DataKeyCaptionPath       = "caption_path"
)

// FileGroup is the atomic unit of storage: a set of sibling files sharing a
// stem, treated as one logical artifact.
type FileGroup struct {
	ID            int64
	Directory     string // absolute directory containing all files in this group
	PrimaryPath   string // filename (relative to Directory) chosen as the primary representative
	Mimetype      string
	Size          int64
	Indexed       bool // surface scan done
	DeepIndexed   bool // modeler ran (successfully or with a logged failure)
	FailureNote   string
	Title         string
	Author        string
	URL           string
	Published     *time.Time
	Modified      *time.Time
	ATitleText    string // ranked text field: title
	BSummaryText  string
	CKeywordsText string
	DBodyText     string // ranked text field: body
	Data          map[string]string // purpose -> relative filename
	Files         []string          // sibling relative filenames owned by this group
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Archive represents a saved HTML page. Singlefile, readability
// variants, screenshot, and info-JSON live in FileGroup.Data.
type Archive struct {
	ID              int64
	FileGroupID     int64
	URL             string
	ArchiveDatetime time.Time
	CollectionID    *int64
}

// Video represents an archived video. Info-JSON, poster, and
// caption live in FileGroup.Data.
type Video struct {
	ID          int64
	FileGroupID int64
	ChannelID   *int64
	SourceID    string
	UploadDate  *time.Time
	Duration    int64
	ViewCount   int64
	URL         string
}

// Channel groups Videos and owns exactly one Collection of kind "channel".
type Channel struct {
	ID           int64
	Name         string
	URL          string
	Directory    string
	CollectionID int64
}

// CollectionKind enumerates the three kinds of Collection.
type CollectionKind string

// Collection kinds.
const (
	CollectionKindDomain  CollectionKind = "domain"
	CollectionKindChannel CollectionKind = "channel"
	CollectionKindManual  CollectionKind = "manual"
)

// Collection is a polymorphic group of FileGroups, optionally
// directory-restricted and tagged.
type Collection struct {
	ID           int64
	Name         string
	Kind         CollectionKind
	Directory    *string // nil means unrestricted
	TagID        *int64
	Description  string
	FileFormat   *string
}

// CanBeTagged reports whether the collection can be tagged: an
// unrestricted collection (no directory) cannot be.
func (c *Collection) CanBeTagged() bool {
	return c.Directory != nil
}

// DownloadStatus enumerates the Download lifecycle states.
type DownloadStatus string

// Download statuses.
const (
	DownloadStatusNew      DownloadStatus = "new"
	DownloadStatusPending  DownloadStatus = "pending"
	DownloadStatusComplete DownloadStatus = "complete"
	DownloadStatusFailed   DownloadStatus = "failed"
	DownloadStatusDeferred DownloadStatus = "deferred"
)

// Download is a durable job row in the download manager's queue.
type Download struct {
	ID                     int64
	URL                    string
	Downloader             string
	Destination            string
	Frequency              *time.Duration // nil means one-shot
	Status                 DownloadStatus
	LastSuccessfulDownload *time.Time
	NextDownload           *time.Time
	Attempts               int
	SubDownloader          string
	Settings               map[string]any
	TagNames               []string
	CollectionID           *int64
	Location               string // set on completion, e.g. "/archive/{id}"
	LastError              string
}

// IsTerminal reports whether the download is in a state that no longer
// participates in scheduling (complete or failed).
func (d *Download) IsTerminal() bool {
	return d.Status == DownloadStatusComplete || d.Status == DownloadStatusFailed
}

// IsRecurring reports whether the download reschedules itself on success.
func (d *Download) IsRecurring() bool {
	return d.Frequency != nil
}

// Inventory is a soft-deleted domain entity mirrored to inventories.yaml
//. Unlike Collection, removal from the config file soft-deletes
// rather than hard-deletes the row.
type Inventory struct {
	ID        int64
	Name      string
	ViewedAt  *time.Time
	CreatedAt time.Time
	DeletedAt *time.Time
}

// IsDeleted reports whether the inventory has been soft-deleted.
func (i *Inventory) IsDeleted() bool {
	return i.DeletedAt != nil
}

// Event is a bounded, ring-buffered, non-persisted user-visible occurrence.
type Event struct {
	Event     string
	Subject   string
	Action    string
	URL       string
	Message   string
	Timestamp time.Time
}
