package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/institute-cms-api/internal/dto"
	"github.com/campuskit/institute-cms-api/internal/models"
	appErrors "github.com/campuskit/institute-cms-api/pkg/errors"
	"github.com/campuskit/institute-cms-api/pkg/response"
)

type sectionService interface {
	CreateSection(ctx context.Context, req dto.CreateSectionRequest, actor *models.JWTClaims) (*models.Section, error)
	RenameSection(ctx context.Context, sectionID string, req dto.RenameSectionRequest, actor *models.JWTClaims) (*models.Section, error)
	DeleteSection(ctx context.Context, sectionID string, actor *models.JWTClaims) error
	AddImages(ctx context.Context, sectionID string, inputs []models.NewImage, actor *models.JWTClaims) ([]models.Image, error)
	DeleteImage(ctx context.Context, sectionID, imageID string, actor *models.JWTClaims) error
}

// SectionHandler manages gallery section endpoints.
type SectionHandler struct {
	sections sectionService
	media    mediaStore
}

// NewSectionHandler constructs the handler.
func NewSectionHandler(sections sectionService, media mediaStore) *SectionHandler {
	return &SectionHandler{sections: sections, media: media}
}

// Create godoc
// @Summary Create a gallery section
// @Tags Sections
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /events/sections [post]
func (h *SectionHandler) Create(c *gin.Context) {
	var req dto.CreateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid section payload"))
		return
	}
	section, err := h.sections.CreateSection(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, dto.SectionResponse{Section: *section}, nil)
}

// Rename godoc
// @Summary Rename a gallery section
// @Tags Sections
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /events/sections/{id} [put]
func (h *SectionHandler) Rename(c *gin.Context) {
	var req dto.RenameSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid section payload"))
		return
	}
	section, err := h.sections.RenameSection(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SectionResponse{Section: *section}, nil)
}

// Delete godoc
// @Summary Delete a gallery section and its images
// @Tags Sections
// @Param id path string true "Section ID"
// @Success 204
// @Router /events/sections/{id} [delete]
func (h *SectionHandler) Delete(c *gin.Context) {
	if err := h.sections.DeleteSection(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddImages godoc
// @Summary Add images to a gallery section
// @Tags Sections
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /events/images [post]
func (h *SectionHandler) AddImages(c *gin.Context) {
	contentType := c.ContentType()
	if strings.HasPrefix(contentType, "multipart/") {
		h.addUploadedImages(c)
		return
	}

	var req dto.AttachImagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid images payload"))
		return
	}
	inputs := make([]models.NewImage, 0, len(req.Images))
	for _, img := range req.Images {
		inputs = append(inputs, models.NewImage{
			URL:         img.URL,
			Title:       img.Title,
			Description: img.Description,
		})
	}
	created, err := h.sections.AddImages(c.Request.Context(), req.SectionID, inputs, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, created, nil)
}

// addUploadedImages stores each uploaded file and attaches the resulting
// URLs to the section in one batch.
func (h *SectionHandler) addUploadedImages(c *gin.Context) {
	sectionID := strings.TrimSpace(c.PostForm("sectionId"))
	if sectionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "sectionId is required"))
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid multipart payload"))
		return
	}
	files := form.File["images[]"]
	if len(files) == 0 {
		files = form.File["images"]
	}
	if len(files) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at least one image file is required"))
		return
	}

	titles := form.Value["titles[]"]
	if len(titles) == 0 {
		titles = form.Value["title"]
	}
	descriptions := form.Value["descriptions[]"]
	if len(descriptions) == 0 {
		descriptions = form.Value["description"]
	}

	inputs := make([]models.NewImage, 0, len(files))
	for i, fileHeader := range files {
		upload, closeFn, openErr := openUpload(fileHeader)
		if openErr != nil {
			response.Error(c, openErr)
			return
		}
		url, storeErr := h.media.Store(c.Request.Context(), upload)
		closeFn()
		if storeErr != nil {
			response.Error(c, storeErr)
			return
		}
		input := models.NewImage{URL: url}
		if i < len(titles) && strings.TrimSpace(titles[i]) != "" {
			title := titles[i]
			input.Title = &title
		}
		if i < len(descriptions) && strings.TrimSpace(descriptions[i]) != "" {
			desc := descriptions[i]
			input.Description = &desc
		}
		inputs = append(inputs, input)
	}

	created, err := h.sections.AddImages(c.Request.Context(), sectionID, inputs, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, created, nil)
}

// DeleteImage godoc
// @Summary Remove an image from a gallery section
// @Tags Sections
// @Param id path string true "Section ID"
// @Param imageId path string true "Image ID"
// @Success 204
// @Router /events/sections/{id}/images/{imageId} [delete]
func (h *SectionHandler) DeleteImage(c *gin.Context) {
	if err := h.sections.DeleteImage(c.Request.Context(), c.Param("id"), c.Param("imageId"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
