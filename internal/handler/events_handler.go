package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/institute-cms-api/internal/dto"
	"github.com/campuskit/institute-cms-api/internal/middleware"
	"github.com/campuskit/institute-cms-api/internal/models"
	"github.com/campuskit/institute-cms-api/internal/service"
	appErrors "github.com/campuskit/institute-cms-api/pkg/errors"
	"github.com/campuskit/institute-cms-api/pkg/response"
)

type eventsService interface {
	GetDocument(ctx context.Context) (*models.EventsDocument, error)
	UpdateDocument(ctx context.Context, req dto.UpdateEventsDocumentRequest, actor *models.JWTClaims) (*models.EventsDocument, error)
	SetBannerImage(ctx context.Context, url string, actor *models.JWTClaims) error
}

type mediaStore interface {
	Store(ctx context.Context, upload service.MediaUpload) (string, error)
}

type pageCache interface {
	Enabled() bool
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// EventsHandler exposes the events page document endpoints.
type EventsHandler struct {
	events eventsService
	media  mediaStore
	cache  pageCache
}

// NewEventsHandler constructs the handler.
func NewEventsHandler(events eventsService, media mediaStore, cache pageCache) *EventsHandler {
	return &EventsHandler{events: events, media: media, cache: cache}
}

// Get godoc
// @Summary Fetch the events page document
// @Tags Events
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventsHandler) Get(c *gin.Context) {
	if h.events == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "events service not configured"))
		return
	}

	if h.cache != nil && h.cache.Enabled() {
		var cached models.EventsDocument
		if hit, _ := h.cache.Get(c.Request.Context(), service.PageCacheKey, &cached); hit {
			middleware.SetCacheHit(c, true)
			response.JSON(c, http.StatusOK, cached, middleware.ExtractMeta(c))
			return
		}
		middleware.SetCacheHit(c, false)
	}

	doc, err := h.events.GetDocument(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	// A document still carrying legacy URLs without sections means the
	// migration write failed and will retry on the next read; caching it
	// would stall that retry until TTL expiry.
	if h.cache != nil && h.cache.Enabled() && (doc.Migrated() || len(doc.LegacyGalleryURLs) == 0) {
		_ = h.cache.Set(c.Request.Context(), service.PageCacheKey, doc, 0)
	}
	response.JSON(c, http.StatusOK, doc, middleware.ExtractMeta(c))
}

// Update godoc
// @Summary Update the events page document
// @Tags Events
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /events [put]
func (h *EventsHandler) Update(c *gin.Context) {
	if h.events == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "events service not configured"))
		return
	}
	var req dto.UpdateEventsDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid events payload"))
		return
	}
	doc, err := h.events.UpdateDocument(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// UploadBanner godoc
// @Summary Upload and set the events page banner image
// @Tags Events
// @Accept multipart/form-data
// @Produce json
// @Param banner formData file true "Banner image"
// @Success 200 {object} response.Envelope
// @Router /events/banner [post]
func (h *EventsHandler) UploadBanner(c *gin.Context) {
	if h.events == nil || h.media == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "events service not configured"))
		return
	}
	fileHeader, err := c.FormFile("banner")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "banner file is required"))
		return
	}
	upload, closeFn, err := openUpload(fileHeader)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	url, err := h.media.Store(c.Request.Context(), upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.events.SetBannerImage(c.Request.Context(), url, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.BannerResponse{BannerImageURL: url}, nil)
}

// openUpload converts a multipart file header into a service upload with a
// guaranteed seekable reader.
func openUpload(fileHeader *multipart.FileHeader) (service.MediaUpload, func(), error) {
	src, err := fileHeader.Open()
	if err != nil {
		return service.MediaUpload{}, func() {}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	closeFn := func() { _ = src.Close() }

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			closeFn()
			return service.MediaUpload{}, func() {}, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file")
		}
		reader = bytes.NewReader(buf)
	}
	return service.MediaUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  reader,
	}, closeFn, nil
}
