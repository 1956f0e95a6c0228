package dto

import "github.com/campuskit/institute-cms-api/internal/models"

// UpdateEventsDocumentRequest carries a partial update of the events page.
// Nil fields are left untouched; a non-nil Sections replaces the whole
// section/image structure.
type UpdateEventsDocumentRequest struct {
	Title             *string        `json:"title"`
	RichContent       *string        `json:"richContent"`
	LegacyGalleryURLs *[]string      `json:"legacyGalleryUrls"`
	Sections          *[]SectionInput `json:"sections" validate:"omitempty,dive"`
	// Version enables the optimistic concurrency check; when nil the update is
	// applied last-writer-wins for compatibility with older clients.
	Version *int64 `json:"version"`
}

// SectionInput is one section in a full-structure replace payload.
type SectionInput struct {
	Name   string       `json:"name" validate:"required"`
	Title  *string      `json:"title"`
	Images []ImageInput `json:"images" validate:"omitempty,dive"`
}

// ImageInput is one image in a full-structure replace payload.
type ImageInput struct {
	URL         string  `json:"url" validate:"required"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// CreateSectionRequest creates a new named section.
type CreateSectionRequest struct {
	SectionName  string  `json:"sectionName" validate:"required"`
	SectionTitle *string `json:"sectionTitle"`
}

// RenameSectionRequest renames an existing section.
type RenameSectionRequest struct {
	SectionName  string  `json:"sectionName" validate:"required"`
	SectionTitle *string `json:"sectionTitle"`
}

// AttachImagesRequest attaches externally hosted images to a section.
type AttachImagesRequest struct {
	SectionID string       `json:"sectionId" validate:"required"`
	Images    []ImageInput `json:"images" validate:"required,min=1,dive"`
}

// BannerResponse returns the stored banner URL after an upload.
type BannerResponse struct {
	BannerImageURL string `json:"bannerImageUrl"`
}

// SweepResponse acknowledges an enqueued orphan sweep.
type SweepResponse struct {
	JobID  string `json:"jobId"`
	Queued bool   `json:"queued"`
}

// SectionResponse wraps a created or updated section.
type SectionResponse struct {
	Section models.Section `json:"section"`
}
