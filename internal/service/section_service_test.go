package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/institute-cms-api/internal/dto"
	"github.com/campuskit/institute-cms-api/internal/models"
	appErrors "github.com/campuskit/institute-cms-api/pkg/errors"
)

type sectionStoreStub struct {
	createErr  error
	renameErr  error
	deleteErr  error
	addErr     error
	delImgErr  error
	deleted    bool
	imgDeleted bool

	lastName  string
	lastTitle *string
	addedTo   string
	added     []models.NewImage
}

func (s *sectionStoreStub) Create(ctx context.Context, documentID, name string, title *string) (*models.Section, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.lastName = name
	s.lastTitle = title
	return &models.Section{ID: "sec-1", DocumentID: documentID, Name: name, Title: title, Images: []models.Image{}}, nil
}

func (s *sectionStoreStub) Rename(ctx context.Context, sectionID, name string, title *string) (*models.Section, error) {
	if s.renameErr != nil {
		return nil, s.renameErr
	}
	s.lastName = name
	return &models.Section{ID: sectionID, Name: name, Title: title, Images: []models.Image{}}, nil
}

func (s *sectionStoreStub) Delete(ctx context.Context, sectionID string) (bool, error) {
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	return s.deleted, nil
}

func (s *sectionStoreStub) AddImages(ctx context.Context, sectionID string, inputs []models.NewImage) ([]models.Image, error) {
	if s.addErr != nil {
		return nil, s.addErr
	}
	s.addedTo = sectionID
	s.added = inputs
	images := make([]models.Image, 0, len(inputs))
	for i, input := range inputs {
		images = append(images, models.Image{ID: "img", SectionID: sectionID, URL: input.URL, Position: i})
	}
	return images, nil
}

func (s *sectionStoreStub) DeleteImage(ctx context.Context, sectionID, imageID string) (bool, error) {
	if s.delImgErr != nil {
		return false, s.delImgErr
	}
	return s.imgDeleted, nil
}

type documentToucherStub struct {
	touches int
}

func (d *documentToucherStub) GetOrCreate(ctx context.Context) (*models.EventsDocument, error) {
	return &models.EventsDocument{ID: models.EventsDocumentID}, nil
}

func (d *documentToucherStub) Touch(ctx context.Context) error {
	d.touches++
	return nil
}

func newSectionServiceForTest(store *sectionStoreStub, docs *documentToucherStub, audit *auditSpy, cache *cacheSpy) *SectionService {
	return NewSectionService(store, docs, cache, audit, nil)
}

func TestSectionServiceCreateSection(t *testing.T) {
	store := &sectionStoreStub{}
	docs := &documentToucherStub{}
	audit := &auditSpy{}
	cache := &cacheSpy{}
	svc := newSectionServiceForTest(store, docs, audit, cache)

	section, err := svc.CreateSection(context.Background(), dto.CreateSectionRequest{
		SectionName:  "  Sports Day  ",
		SectionTitle: strPtr("Annual Sports Day"),
	}, &models.JWTClaims{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "Sports Day", section.Name)
	assert.Equal(t, 1, docs.touches)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSectionCreate, audit.logs[0].Action)
	assert.Len(t, cache.invalidated, 1)
}

func TestSectionServiceCreateSectionRequiresName(t *testing.T) {
	svc := newSectionServiceForTest(&sectionStoreStub{}, &documentToucherStub{}, &auditSpy{}, &cacheSpy{})

	_, err := svc.CreateSection(context.Background(), dto.CreateSectionRequest{SectionName: "   "}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSectionServiceRenameSectionNotFound(t *testing.T) {
	store := &sectionStoreStub{renameErr: sql.ErrNoRows}
	svc := newSectionServiceForTest(store, &documentToucherStub{}, &auditSpy{}, &cacheSpy{})

	_, err := svc.RenameSection(context.Background(), "missing", dto.RenameSectionRequest{SectionName: "Renamed"}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSectionServiceDeleteSectionIdempotent(t *testing.T) {
	store := &sectionStoreStub{deleted: false}
	docs := &documentToucherStub{}
	audit := &auditSpy{}
	svc := newSectionServiceForTest(store, docs, audit, &cacheSpy{})

	require.NoError(t, svc.DeleteSection(context.Background(), "already-gone", nil))
	assert.Zero(t, docs.touches)
	assert.Empty(t, audit.logs)
}

func TestSectionServiceDeleteSectionRemoves(t *testing.T) {
	store := &sectionStoreStub{deleted: true}
	docs := &documentToucherStub{}
	audit := &auditSpy{}
	svc := newSectionServiceForTest(store, docs, audit, &cacheSpy{})

	require.NoError(t, svc.DeleteSection(context.Background(), "sec-1", nil))
	assert.Equal(t, 1, docs.touches)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSectionDelete, audit.logs[0].Action)
}

func TestSectionServiceAddImagesRequiresInputs(t *testing.T) {
	svc := newSectionServiceForTest(&sectionStoreStub{}, &documentToucherStub{}, &auditSpy{}, &cacheSpy{})

	_, err := svc.AddImages(context.Background(), "sec-1", nil, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSectionServiceAddImagesRejectsBlankURL(t *testing.T) {
	svc := newSectionServiceForTest(&sectionStoreStub{}, &documentToucherStub{}, &auditSpy{}, &cacheSpy{})

	_, err := svc.AddImages(context.Background(), "sec-1", []models.NewImage{{URL: "  "}}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSectionServiceAddImagesSectionNotFound(t *testing.T) {
	store := &sectionStoreStub{addErr: sql.ErrNoRows}
	svc := newSectionServiceForTest(store, &documentToucherStub{}, &auditSpy{}, &cacheSpy{})

	_, err := svc.AddImages(context.Background(), "missing", []models.NewImage{{URL: "/uploads/a.jpg"}}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSectionServiceAddImagesAppends(t *testing.T) {
	store := &sectionStoreStub{}
	docs := &documentToucherStub{}
	svc := newSectionServiceForTest(store, docs, &auditSpy{}, &cacheSpy{})

	created, err := svc.AddImages(context.Background(), "sec-1", []models.NewImage{
		{URL: "/uploads/a.jpg"},
		{URL: "/uploads/b.jpg"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "sec-1", store.addedTo)
	assert.Equal(t, 1, docs.touches)
}

func TestSectionServiceDeleteImageMissingSection(t *testing.T) {
	store := &sectionStoreStub{delImgErr: sql.ErrNoRows}
	svc := newSectionServiceForTest(store, &documentToucherStub{}, &auditSpy{}, &cacheSpy{})

	err := svc.DeleteImage(context.Background(), "missing", "img-1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSectionServiceDeleteImageIdempotent(t *testing.T) {
	store := &sectionStoreStub{imgDeleted: false}
	docs := &documentToucherStub{}
	svc := newSectionServiceForTest(store, docs, &auditSpy{}, &cacheSpy{})

	require.NoError(t, svc.DeleteImage(context.Background(), "sec-1", "already-gone", nil))
	assert.Zero(t, docs.touches)
}
