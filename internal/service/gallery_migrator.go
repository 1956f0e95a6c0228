package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/campuskit/institute-cms-api/internal/models"
)

// Names given to the section synthesized from the legacy flat gallery.
const (
	migratedSectionName  = "Gallery"
	migratedSectionTitle = "Event Gallery"
)

type migratorSectionStore interface {
	Create(ctx context.Context, documentID, name string, title *string) (*models.Section, error)
	AddImages(ctx context.Context, sectionID string, inputs []models.NewImage) ([]models.Image, error)
	Delete(ctx context.Context, sectionID string) (bool, error)
}

// GalleryMigrator converts the deprecated flat gallery URL list into a single
// structured section. It runs on every document read but only transforms when
// no structured sections exist yet, so in steady state it fires at most once.
type GalleryMigrator struct {
	sections migratorSectionStore
	logger   *zap.Logger
}

// NewGalleryMigrator constructs the migrator.
func NewGalleryMigrator(sections migratorSectionStore, logger *zap.Logger) *GalleryMigrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GalleryMigrator{sections: sections, logger: logger}
}

// MigrateIfNeeded synthesizes the "Gallery" section from the legacy URL list.
// Persistence failures are logged and swallowed: the caller receives the
// pre-migration document and the migration retries on the next read. The
// legacy list itself is never modified; it stays on the row as a read-only
// compatibility mirror.
func (m *GalleryMigrator) MigrateIfNeeded(ctx context.Context, doc *models.EventsDocument) *models.EventsDocument {
	if doc == nil || len(doc.Sections) > 0 || len(doc.LegacyGalleryURLs) == 0 {
		return doc
	}

	title := migratedSectionTitle
	section, err := m.sections.Create(ctx, doc.ID, migratedSectionName, &title)
	if err != nil {
		m.logger.Warn("legacy gallery migration failed to create section", zap.Error(err))
		return doc
	}

	inputs := make([]models.NewImage, 0, len(doc.LegacyGalleryURLs))
	for i, url := range doc.LegacyGalleryURLs {
		imgTitle := fmt.Sprintf("Image %d", i+1)
		description := ""
		inputs = append(inputs, models.NewImage{
			URL:         url,
			Title:       &imgTitle,
			Description: &description,
		})
	}

	images, err := m.sections.AddImages(ctx, section.ID, inputs)
	if err != nil {
		m.logger.Warn("legacy gallery migration failed to persist images", zap.Error(err))
		if _, delErr := m.sections.Delete(ctx, section.ID); delErr != nil {
			m.logger.Warn("failed to roll back partially migrated section", zap.Error(delErr))
		}
		return doc
	}

	section.Images = images
	doc.Sections = []models.Section{*section}
	m.logger.Info("legacy gallery migrated",
		zap.String("section_id", section.ID),
		zap.Int("images", len(images)))
	return doc
}
