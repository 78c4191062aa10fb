package session

import (
	"slices"
	"strings"
)

const (
	MinYear = 1939
	MaxYear = 2025
)

// TaskStatus tracks the background work done for a photo after it is loaded.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusDone       TaskStatus = "done"
	StatusError      TaskStatus = "error"
)

// File is one selected file handed to LoadBatch.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Photo is a copy of one photo record. Values returned by State and
// Controller are detached from the session; changing them has no effect.
type Photo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	NewName      string   `json:"new_name,omitempty"`
	AssignedYear int      `json:"assigned_year,omitempty"` // 0 = unsorted
	Tags         []string `json:"tags"`
	Selected     bool     `json:"selected"`
	ContentType  string   `json:"content_type"`
	Size         int      `json:"size"`

	ThumbnailPath   string     `json:"thumbnail_path,omitempty"`
	ThumbnailStatus TaskStatus `json:"thumbnail_status"`
	ThumbnailError  string     `json:"thumbnail_error,omitempty"`

	Width          int        `json:"width,omitempty"`
	Height         int        `json:"height,omitempty"`
	CameraMake     string     `json:"camera_make,omitempty"`
	CameraModel    string     `json:"camera_model,omitempty"`
	TakenAt        *int64     `json:"taken_at,omitempty"` // unix seconds from the file's own EXIF
	MetadataStatus TaskStatus `json:"metadata_status"`

	data []byte
}

// PhotoMetadata is what a metadata task read from a photo's bytes. Zero
// values mean the field was not found.
type PhotoMetadata struct {
	Width       int
	Height      int
	CameraMake  string
	CameraModel string
	TakenAt     *int64
}

// Assigned reports whether the photo has a year and so has left the unsorted view.
func (p Photo) Assigned() bool {
	return p.AssignedYear != 0
}

// Data returns the original file bytes. Callers must not modify them.
func (p Photo) Data() []byte {
	return p.data
}

func (p *Photo) clone() Photo {
	c := *p
	c.Tags = slices.Clone(p.Tags)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if p.TakenAt != nil {
		ts := *p.TakenAt
		c.TakenAt = &ts
	}
	return c
}

func (p *Photo) hasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

// addTag appends tag unless present. Returns true if the tags changed.
func (p *Photo) addTag(tag string) bool {
	if tag == "" || p.hasTag(tag) {
		return false
	}
	p.Tags = append(p.Tags, tag)
	return true
}

// removeTag drops every occurrence of tag. Returns true if the tags changed.
func (p *Photo) removeTag(tag string) bool {
	if !p.hasTag(tag) {
		return false
	}
	p.Tags = slices.DeleteFunc(p.Tags, func(t string) bool { return t == tag })
	return true
}

// dedupTags returns tags without empties or repeats, keeping first occurrences.
func dedupTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ValidYear reports whether year has a bucket.
func ValidYear(year int) bool {
	return year >= MinYear && year <= MaxYear
}
