package service

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/institute-cms-api/internal/dto"
	"github.com/campuskit/institute-cms-api/internal/models"
	"github.com/campuskit/institute-cms-api/internal/repository"
	appErrors "github.com/campuskit/institute-cms-api/pkg/errors"
)

type eventsDocStoreStub struct {
	doc          *models.EventsDocument
	updateErr    error
	bannerErr    error
	updatedDoc   *models.EventsDocument
	bannerURL    string
	updateCalled bool
}

func (s *eventsDocStoreStub) GetOrCreate(ctx context.Context) (*models.EventsDocument, error) {
	if s.doc == nil {
		s.doc = &models.EventsDocument{ID: models.EventsDocumentID, Version: 1}
	}
	copied := *s.doc
	return &copied, nil
}

func (s *eventsDocStoreStub) UpdateFields(ctx context.Context, doc *models.EventsDocument, expectedVersion *int64) error {
	s.updateCalled = true
	if s.updateErr != nil {
		return s.updateErr
	}
	copied := *doc
	s.updatedDoc = &copied
	s.doc = &copied
	return nil
}

func (s *eventsDocStoreStub) UpdateBanner(ctx context.Context, url string) error {
	if s.bannerErr != nil {
		return s.bannerErr
	}
	s.bannerURL = url
	return nil
}

type eventsSectionStoreStub struct {
	sections   []models.Section
	replaced   []models.Section
	replaceErr error
}

func (s *eventsSectionStoreStub) ListByDocument(ctx context.Context, documentID string) ([]models.Section, error) {
	if s.sections == nil {
		return []models.Section{}, nil
	}
	return s.sections, nil
}

func (s *eventsSectionStoreStub) ReplaceAll(ctx context.Context, documentID string, sections []models.Section) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.replaced = sections
	s.sections = sections
	return nil
}

type migratorStub struct {
	calls int
}

func (m *migratorStub) MigrateIfNeeded(ctx context.Context, doc *models.EventsDocument) *models.EventsDocument {
	m.calls++
	return doc
}

type auditSpy struct {
	logs []*models.AuditLog
	err  error
}

func (a *auditSpy) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, log)
	return nil
}

type cacheSpy struct {
	invalidated []string
	err         error
}

func (c *cacheSpy) Invalidate(ctx context.Context, pattern string) error {
	if c.err != nil {
		return c.err
	}
	c.invalidated = append(c.invalidated, pattern)
	return nil
}

func newEventsServiceForTest(docs *eventsDocStoreStub, sections *eventsSectionStoreStub, audit *auditSpy, cache *cacheSpy) *EventsService {
	return NewEventsService(docs, sections, &migratorStub{}, cache, audit, nil, nil)
}

func strPtr(v string) *string { return &v }

func TestEventsServiceGetDocumentRunsMigrator(t *testing.T) {
	docs := &eventsDocStoreStub{}
	sections := &eventsSectionStoreStub{}
	mig := &migratorStub{}
	svc := NewEventsService(docs, sections, mig, nil, nil, nil, nil)

	doc, err := svc.GetDocument(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.EventsDocumentID, doc.ID)
	assert.Equal(t, 1, mig.calls)
	assert.NotNil(t, doc.Sections)
}

func TestEventsServiceUpdateDocumentPartial(t *testing.T) {
	docs := &eventsDocStoreStub{doc: &models.EventsDocument{
		ID:          models.EventsDocumentID,
		Title:       "Old Title",
		RichContent: "<p>old</p>",
		Version:     2,
	}}
	sections := &eventsSectionStoreStub{}
	audit := &auditSpy{}
	cache := &cacheSpy{}
	svc := newEventsServiceForTest(docs, sections, audit, cache)

	_, err := svc.UpdateDocument(context.Background(), dto.UpdateEventsDocumentRequest{
		Title: strPtr("New Title"),
	}, &models.JWTClaims{UserID: "user-1"})
	require.NoError(t, err)

	require.NotNil(t, docs.updatedDoc)
	assert.Equal(t, "New Title", docs.updatedDoc.Title)
	assert.Equal(t, "<p>old</p>", docs.updatedDoc.RichContent)
	assert.Nil(t, sections.replaced)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionEventsUpdate, audit.logs[0].Action)
	require.Len(t, cache.invalidated, 1)
	assert.Equal(t, PageCacheKey, cache.invalidated[0])
}

func TestEventsServiceUpdateDocumentVersionConflict(t *testing.T) {
	docs := &eventsDocStoreStub{updateErr: repository.ErrVersionMismatch}
	svc := newEventsServiceForTest(docs, &eventsSectionStoreStub{}, &auditSpy{}, &cacheSpy{})

	version := int64(1)
	_, err := svc.UpdateDocument(context.Background(), dto.UpdateEventsDocumentRequest{
		Title:   strPtr("Anything"),
		Version: &version,
	}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEventsServiceUpdateDocumentReplacesSections(t *testing.T) {
	docs := &eventsDocStoreStub{}
	sections := &eventsSectionStoreStub{}
	svc := newEventsServiceForTest(docs, sections, &auditSpy{}, &cacheSpy{})

	payload := []dto.SectionInput{
		{Name: "Sports Day", Images: []dto.ImageInput{{URL: "/uploads/a.jpg", Title: strPtr("  Finish line  ")}}},
	}
	doc, err := svc.UpdateDocument(context.Background(), dto.UpdateEventsDocumentRequest{
		Sections: &payload,
	}, nil)
	require.NoError(t, err)

	require.Len(t, sections.replaced, 1)
	assert.Equal(t, "Sports Day", sections.replaced[0].Name)
	require.Len(t, sections.replaced[0].Images, 1)
	require.NotNil(t, sections.replaced[0].Images[0].Title)
	assert.Equal(t, "Finish line", *sections.replaced[0].Images[0].Title)
	require.Len(t, doc.Sections, 1)
}

func TestEventsServiceUpdateDocumentRejectsBlankSectionName(t *testing.T) {
	svc := newEventsServiceForTest(&eventsDocStoreStub{}, &eventsSectionStoreStub{}, &auditSpy{}, &cacheSpy{})

	payload := []dto.SectionInput{{Name: "   "}}
	_, err := svc.UpdateDocument(context.Background(), dto.UpdateEventsDocumentRequest{
		Sections: &payload,
	}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEventsServiceUpdateDocumentRejectionWritesNothing(t *testing.T) {
	docs := &eventsDocStoreStub{doc: &models.EventsDocument{
		ID:      models.EventsDocumentID,
		Title:   "Old Title",
		Version: 2,
	}}
	sections := &eventsSectionStoreStub{}
	audit := &auditSpy{}
	cache := &cacheSpy{}
	svc := newEventsServiceForTest(docs, sections, audit, cache)

	payload := []dto.SectionInput{{Name: "   "}}
	_, err := svc.UpdateDocument(context.Background(), dto.UpdateEventsDocumentRequest{
		Title:    strPtr("New Title"),
		Sections: &payload,
	}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	assert.False(t, docs.updateCalled)
	assert.Equal(t, "Old Title", docs.doc.Title)
	assert.Nil(t, sections.replaced)
	assert.Empty(t, audit.logs)
	assert.Empty(t, cache.invalidated)
}

func TestEventsServiceUpdateDocumentRejectsBlankImageURL(t *testing.T) {
	svc := newEventsServiceForTest(&eventsDocStoreStub{}, &eventsSectionStoreStub{}, &auditSpy{}, &cacheSpy{})

	payload := []dto.SectionInput{{Name: "Gallery", Images: []dto.ImageInput{{URL: " "}}}}
	_, err := svc.UpdateDocument(context.Background(), dto.UpdateEventsDocumentRequest{
		Sections: &payload,
	}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEventsServiceUpdateDocumentReplacesLegacyURLs(t *testing.T) {
	docs := &eventsDocStoreStub{doc: &models.EventsDocument{
		ID:                models.EventsDocumentID,
		LegacyGalleryURLs: pq.StringArray{"/uploads/old.jpg"},
	}}
	svc := newEventsServiceForTest(docs, &eventsSectionStoreStub{}, &auditSpy{}, &cacheSpy{})

	urls := []string{"/uploads/new1.jpg", "/uploads/new2.jpg"}
	_, err := svc.UpdateDocument(context.Background(), dto.UpdateEventsDocumentRequest{
		LegacyGalleryURLs: &urls,
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, docs.updatedDoc)
	assert.Equal(t, pq.StringArray(urls), docs.updatedDoc.LegacyGalleryURLs)
}

func TestEventsServiceSetBannerImage(t *testing.T) {
	docs := &eventsDocStoreStub{}
	audit := &auditSpy{}
	cache := &cacheSpy{}
	svc := newEventsServiceForTest(docs, &eventsSectionStoreStub{}, audit, cache)

	require.NoError(t, svc.SetBannerImage(context.Background(), "/uploads/banner.jpg", &models.JWTClaims{UserID: "user-1"}))
	assert.Equal(t, "/uploads/banner.jpg", docs.bannerURL)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionBannerUpdate, audit.logs[0].Action)
	assert.Len(t, cache.invalidated, 1)
}

func TestEventsServiceSetBannerImageRequiresURL(t *testing.T) {
	svc := newEventsServiceForTest(&eventsDocStoreStub{}, &eventsSectionStoreStub{}, &auditSpy{}, &cacheSpy{})

	err := svc.SetBannerImage(context.Background(), "   ", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
