package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/campuskit/institute-cms-api/internal/dto"
	"github.com/campuskit/institute-cms-api/internal/models"
	"github.com/campuskit/institute-cms-api/internal/repository"
	appErrors "github.com/campuskit/institute-cms-api/pkg/errors"
)

// PageCacheKey is the cache entry holding the public events page payload.
const PageCacheKey = "events:page"

type eventsDocumentStore interface {
	GetOrCreate(ctx context.Context) (*models.EventsDocument, error)
	UpdateFields(ctx context.Context, doc *models.EventsDocument, expectedVersion *int64) error
	UpdateBanner(ctx context.Context, url string) error
}

type eventsSectionStore interface {
	ListByDocument(ctx context.Context, documentID string) ([]models.Section, error)
	ReplaceAll(ctx context.Context, documentID string, sections []models.Section) error
}

type documentMigrator interface {
	MigrateIfNeeded(ctx context.Context, doc *models.EventsDocument) *models.EventsDocument
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type pageCacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// EventsService exposes the read/update contract of the events page aggregate.
type EventsService struct {
	repo      eventsDocumentStore
	sections  eventsSectionStore
	migrator  documentMigrator
	cache     pageCacheInvalidator
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventsService constructs the service.
func NewEventsService(repo eventsDocumentStore, sections eventsSectionStore, migrator documentMigrator, cache pageCacheInvalidator, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *EventsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EventsService{
		repo:      repo,
		sections:  sections,
		migrator:  migrator,
		cache:     cache,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// GetDocument loads the singleton document, creating an empty default on
// first access, and runs the legacy gallery migration when applicable.
func (s *EventsService) GetDocument(ctx context.Context) (*models.EventsDocument, error) {
	doc, err := s.loadDocument(ctx)
	if err != nil {
		return nil, err
	}
	if s.migrator != nil {
		doc = s.migrator.MigrateIfNeeded(ctx, doc)
	}
	return doc, nil
}

// UpdateDocument applies a partial update. Fields absent from the request are
// left unchanged; a present Sections payload replaces the whole structure.
func (s *EventsService) UpdateDocument(ctx context.Context, req dto.UpdateEventsDocumentRequest, actor *models.JWTClaims) (*models.EventsDocument, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid events document payload")
	}

	// Validate the whole payload before the first write so a rejected
	// request leaves no partial state behind.
	var replacement []models.Section
	if req.Sections != nil {
		built, err := s.buildSections(*req.Sections)
		if err != nil {
			return nil, err
		}
		replacement = built
	}

	doc, err := s.repo.GetOrCreate(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load events document")
	}

	if req.Title != nil {
		doc.Title = *req.Title
	}
	if req.RichContent != nil {
		doc.RichContent = *req.RichContent
	}
	if req.LegacyGalleryURLs != nil {
		doc.LegacyGalleryURLs = pq.StringArray(*req.LegacyGalleryURLs)
	}

	if err := s.repo.UpdateFields(ctx, doc, req.Version); err != nil {
		if errors.Is(err, repository.ErrVersionMismatch) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "events document was modified by another writer")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update events document")
	}

	if req.Sections != nil {
		if err := s.sections.ReplaceAll(ctx, doc.ID, replacement); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace sections")
		}
	}

	s.invalidatePage(ctx)
	s.emitAudit(ctx, actor, models.AuditActionEventsUpdate, doc.ID, fmt.Sprintf(`{"title":%q}`, doc.Title))

	return s.loadDocument(ctx)
}

// SetBannerImage stores the banner URL produced by an upload.
func (s *EventsService) SetBannerImage(ctx context.Context, url string, actor *models.JWTClaims) error {
	if strings.TrimSpace(url) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "banner image is required")
	}
	if _, err := s.repo.GetOrCreate(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load events document")
	}
	if err := s.repo.UpdateBanner(ctx, url); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update banner image")
	}
	s.invalidatePage(ctx)
	s.emitAudit(ctx, actor, models.AuditActionBannerUpdate, models.EventsDocumentID, fmt.Sprintf(`{"bannerImageUrl":%q}`, url))
	return nil
}

func (s *EventsService) loadDocument(ctx context.Context) (*models.EventsDocument, error) {
	doc, err := s.repo.GetOrCreate(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load events document")
	}
	sections, err := s.sections.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	doc.Sections = sections
	return doc, nil
}

func (s *EventsService) buildSections(inputs []dto.SectionInput) ([]models.Section, error) {
	sections := make([]models.Section, 0, len(inputs))
	for _, input := range inputs {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "section name is required")
		}
		section := models.Section{
			Name:  name,
			Title: normalizeRef(input.Title),
		}
		for _, img := range input.Images {
			url := strings.TrimSpace(img.URL)
			if url == "" {
				return nil, appErrors.Clone(appErrors.ErrValidation, "image url is required")
			}
			section.Images = append(section.Images, models.Image{
				URL:         url,
				Title:       normalizeRef(img.Title),
				Description: normalizeRef(img.Description),
			})
		}
		sections = append(sections, section)
	}
	return sections, nil
}

func (s *EventsService) invalidatePage(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, PageCacheKey); err != nil {
		s.logger.Warn("failed to invalidate events page cache", zap.Error(err))
	}
}

func (s *EventsService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID, payload string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "events",
		ResourceID: &resourceID,
		NewValues:  []byte(payload),
	}
	if actor != nil {
		log.UserID = &actor.UserID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record events audit log", zap.Error(err))
	}
}

func normalizeRef(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	result := trimmed
	return &result
}
