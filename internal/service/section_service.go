package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/campuskit/institute-cms-api/internal/dto"
	"github.com/campuskit/institute-cms-api/internal/models"
	appErrors "github.com/campuskit/institute-cms-api/pkg/errors"
)

type sectionStore interface {
	Create(ctx context.Context, documentID, name string, title *string) (*models.Section, error)
	Rename(ctx context.Context, sectionID, name string, title *string) (*models.Section, error)
	Delete(ctx context.Context, sectionID string) (bool, error)
	AddImages(ctx context.Context, sectionID string, inputs []models.NewImage) ([]models.Image, error)
	DeleteImage(ctx context.Context, sectionID, imageID string) (bool, error)
}

type documentToucher interface {
	GetOrCreate(ctx context.Context) (*models.EventsDocument, error)
	Touch(ctx context.Context) error
}

// SectionService implements the per-section and per-image mutation contract.
type SectionService struct {
	repo   sectionStore
	docs   documentToucher
	cache  pageCacheInvalidator
	audit  auditLogger
	logger *zap.Logger
}

// NewSectionService constructs the service.
func NewSectionService(repo sectionStore, docs documentToucher, cache pageCacheInvalidator, audit auditLogger, logger *zap.Logger) *SectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionService{repo: repo, docs: docs, cache: cache, audit: audit, logger: logger}
}

// CreateSection appends a new named section to the document.
func (s *SectionService) CreateSection(ctx context.Context, req dto.CreateSectionRequest, actor *models.JWTClaims) (*models.Section, error) {
	name := strings.TrimSpace(req.SectionName)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section name is required")
	}

	doc, err := s.docs.GetOrCreate(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load events document")
	}

	section, err := s.repo.Create(ctx, doc.ID, name, normalizeRef(req.SectionTitle))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}

	s.afterWrite(ctx, actor, models.AuditActionSectionCreate, section.ID, fmt.Sprintf(`{"name":%q}`, section.Name))
	return section, nil
}

// RenameSection updates the name/title of an existing section.
func (s *SectionService) RenameSection(ctx context.Context, sectionID string, req dto.RenameSectionRequest, actor *models.JWTClaims) (*models.Section, error) {
	name := strings.TrimSpace(req.SectionName)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section name is required")
	}

	section, err := s.repo.Rename(ctx, sectionID, name, normalizeRef(req.SectionTitle))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rename section")
	}

	s.afterWrite(ctx, actor, models.AuditActionSectionRename, section.ID, fmt.Sprintf(`{"name":%q}`, section.Name))
	return section, nil
}

// DeleteSection removes a section and all of its images. Deleting an already
// deleted section is a no-op success so clients can retry safely.
func (s *SectionService) DeleteSection(ctx context.Context, sectionID string, actor *models.JWTClaims) error {
	removed, err := s.repo.Delete(ctx, sectionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete section")
	}
	if !removed {
		return nil
	}
	s.afterWrite(ctx, actor, models.AuditActionSectionDelete, sectionID, `{"deleted":true}`)
	return nil
}

// AddImages appends images to a section in the given order.
func (s *SectionService) AddImages(ctx context.Context, sectionID string, inputs []models.NewImage, actor *models.JWTClaims) ([]models.Image, error) {
	if len(inputs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one image is required")
	}
	for _, input := range inputs {
		if strings.TrimSpace(input.URL) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "image url is required")
		}
	}

	images, err := s.repo.AddImages(ctx, sectionID, inputs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add images")
	}

	s.afterWrite(ctx, actor, models.AuditActionImagesAdd, sectionID, fmt.Sprintf(`{"count":%d}`, len(images)))
	return images, nil
}

// DeleteImage removes one image from a section. A missing section is
// NotFound; a missing image within a present section is a no-op success.
func (s *SectionService) DeleteImage(ctx context.Context, sectionID, imageID string, actor *models.JWTClaims) error {
	removed, err := s.repo.DeleteImage(ctx, sectionID, imageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete image")
	}
	if !removed {
		return nil
	}
	s.afterWrite(ctx, actor, models.AuditActionImageDelete, imageID, `{"deleted":true}`)
	return nil
}

func (s *SectionService) afterWrite(ctx context.Context, actor *models.JWTClaims, action, resourceID, payload string) {
	if err := s.docs.Touch(ctx); err != nil {
		s.logger.Warn("failed to bump document version", zap.Error(err))
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, PageCacheKey); err != nil {
			s.logger.Warn("failed to invalidate events page cache", zap.Error(err))
		}
	}
	if s.audit != nil {
		log := &models.AuditLog{
			Action:     action,
			Resource:   "events_section",
			ResourceID: &resourceID,
			NewValues:  []byte(payload),
		}
		if actor != nil {
			log.UserID = &actor.UserID
		}
		if err := s.audit.CreateAuditLog(ctx, log); err != nil {
			s.logger.Warn("failed to record section audit log", zap.Error(err))
		}
	}
}
