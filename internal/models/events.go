package models

import (
	"time"

	"github.com/lib/pq"
)

// EventsDocumentID is the fixed primary key of the singleton events page row.
const EventsDocumentID = "events"

// EventsDocument represents the editable content of the public events page.
// Exactly one row exists per deployment; it is created with empty defaults on
// first read and never deleted.
type EventsDocument struct {
	ID             string `db:"id" json:"id"`
	Title          string `db:"title" json:"title"`
	RichContent    string `db:"rich_content" json:"richContent"`
	BannerImageURL string `db:"banner_image_url" json:"bannerImageUrl"`
	// LegacyGalleryURLs is the deprecated flat gallery. After migration it is
	// still returned verbatim for old callers but never written by new paths.
	LegacyGalleryURLs pq.StringArray `db:"legacy_gallery_urls" json:"legacyGalleryUrls"`
	Sections          []Section      `db:"-" json:"sections"`
	Version           int64          `db:"version" json:"version"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updatedAt"`
}

// Migrated reports whether the structured section model is the source of truth.
func (d *EventsDocument) Migrated() bool {
	return d != nil && len(d.Sections) > 0
}

// Section is a named, ordered grouping of images within the events document.
// Order among sections is insertion order; no reorder operation exists.
type Section struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"-"`
	Name       string    `db:"name" json:"name"`
	Title      *string   `db:"title" json:"title,omitempty"`
	Position   int       `db:"position" json:"-"`
	Images     []Image   `db:"-" json:"images"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// Image is a single captioned picture reference owned by one section.
type Image struct {
	ID          string    `db:"id" json:"id"`
	SectionID   string    `db:"section_id" json:"-"`
	URL         string    `db:"url" json:"url"`
	Title       *string   `db:"title" json:"title,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	Position    int       `db:"position" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// NewImage carries the attributes for an image about to be attached to a section.
type NewImage struct {
	URL         string
	Title       *string
	Description *string
}
