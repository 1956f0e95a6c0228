package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/institute-cms-api/internal/dto"
	"github.com/campuskit/institute-cms-api/internal/middleware"
	"github.com/campuskit/institute-cms-api/internal/models"
	"github.com/campuskit/institute-cms-api/internal/service"
)

type eventsServiceMock struct {
	doc       *models.EventsDocument
	getCalls  int
	bannerURL string
	updateErr error
}

func (m *eventsServiceMock) GetDocument(ctx context.Context) (*models.EventsDocument, error) {
	m.getCalls++
	return m.doc, nil
}

func (m *eventsServiceMock) UpdateDocument(ctx context.Context, req dto.UpdateEventsDocumentRequest, actor *models.JWTClaims) (*models.EventsDocument, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	doc := *m.doc
	if req.Title != nil {
		doc.Title = *req.Title
	}
	return &doc, nil
}

func (m *eventsServiceMock) SetBannerImage(ctx context.Context, url string, actor *models.JWTClaims) error {
	m.bannerURL = url
	return nil
}

type pageCacheMock struct {
	enabled bool
	entries map[string][]byte
	sets    int
}

func (m *pageCacheMock) Enabled() bool { return m.enabled }

func (m *pageCacheMock) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *pageCacheMock) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = map[string][]byte{}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	m.sets++
	return nil
}

func eventsTestDocument() *models.EventsDocument {
	return &models.EventsDocument{
		ID:       models.EventsDocumentID,
		Title:    "Events",
		Version:  3,
		Sections: []models.Section{{ID: "sec-1", Name: "Gallery", Images: []models.Image{}}},
	}
}

func TestEventsHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &eventsServiceMock{doc: eventsTestDocument()}
	handler := NewEventsHandler(svc, &mediaStoreMock{}, &pageCacheMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/events", nil)
	c.Request = req

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Gallery")
	assert.Equal(t, 1, svc.getCalls)
}

func TestEventsHandlerGetServesFromCache(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &eventsServiceMock{doc: eventsTestDocument()}
	cached, _ := json.Marshal(eventsTestDocument())
	cache := &pageCacheMock{enabled: true, entries: map[string][]byte{service.PageCacheKey: cached}}
	handler := NewEventsHandler(svc, &mediaStoreMock{}, cache)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/events", nil)
	c.Request = req

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, svc.getCalls)
}

func TestEventsHandlerGetPopulatesCacheOnMiss(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &eventsServiceMock{doc: eventsTestDocument()}
	cache := &pageCacheMock{enabled: true}
	handler := NewEventsHandler(svc, &mediaStoreMock{}, cache)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/events", nil)
	c.Request = req

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, svc.getCalls)
	assert.Equal(t, 1, cache.sets)
}

func TestEventsHandlerGetSkipsCacheForUnmigratedLegacyDocument(t *testing.T) {
	gin.SetMode(gin.TestMode)
	doc := &models.EventsDocument{
		ID:                models.EventsDocumentID,
		LegacyGalleryURLs: pq.StringArray{"/uploads/legacy.jpg"},
		Sections:          []models.Section{},
	}
	svc := &eventsServiceMock{doc: doc}
	cache := &pageCacheMock{enabled: true}
	handler := NewEventsHandler(svc, &mediaStoreMock{}, cache)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/events", nil)
	c.Request = req

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, cache.sets)
}

func TestEventsHandlerUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &eventsServiceMock{doc: eventsTestDocument()}
	handler := NewEventsHandler(svc, &mediaStoreMock{}, &pageCacheMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	title := "Annual Events"
	body, _ := json.Marshal(dto.UpdateEventsDocumentRequest{Title: &title})
	req, _ := http.NewRequest(http.MethodPut, "/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, editorClaims())

	handler.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Annual Events")
}

func TestEventsHandlerUpdateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEventsHandler(&eventsServiceMock{doc: eventsTestDocument()}, &mediaStoreMock{}, &pageCacheMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/events", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, editorClaims())

	handler.Update(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventsHandlerUploadBanner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &eventsServiceMock{doc: eventsTestDocument()}
	media := &mediaStoreMock{urls: []string{"/uploads/event_1_banner.png"}}
	handler := NewEventsHandler(svc, media, &pageCacheMock{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("banner", "banner.png")
	require.NoError(t, err)
	_, err = part.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/events/banner", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.Request = req
	c.Set(middleware.ContextUserKey, editorClaims())

	handler.UploadBanner(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/uploads/event_1_banner.png", svc.bannerURL)
	assert.Contains(t, w.Body.String(), "bannerImageUrl")
}

func TestEventsHandlerUploadBannerMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEventsHandler(&eventsServiceMock{doc: eventsTestDocument()}, &mediaStoreMock{}, &pageCacheMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/events/banner", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, editorClaims())

	handler.UploadBanner(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
