package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campuskit/institute-cms-api/internal/dto"
	appErrors "github.com/campuskit/institute-cms-api/pkg/errors"
	"github.com/campuskit/institute-cms-api/pkg/jobs"
	"github.com/campuskit/institute-cms-api/pkg/response"
)

// SweepJobType identifies queued orphan sweep jobs.
const SweepJobType = "upload_sweep"

type sweepQueue interface {
	Enqueue(job jobs.Job) error
}

// MaintenanceHandler exposes operational endpoints for administrators.
type MaintenanceHandler struct {
	queue sweepQueue
}

// NewMaintenanceHandler constructs the handler.
func NewMaintenanceHandler(queue sweepQueue) *MaintenanceHandler {
	return &MaintenanceHandler{queue: queue}
}

// Sweep godoc
// @Summary Queue a sweep of orphaned upload files
// @Tags Maintenance
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /events/maintenance/sweep [post]
func (h *MaintenanceHandler) Sweep(c *gin.Context) {
	if h.queue == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "sweep queue not configured"))
		return
	}
	job := jobs.Job{
		ID:       uuid.NewString(),
		Type:     SweepJobType,
		Enqueued: time.Now().UTC(),
	}
	if err := h.queue.Enqueue(job); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue sweep"))
		return
	}
	response.JSON(c, http.StatusAccepted, dto.SweepResponse{JobID: job.ID, Queued: true}, nil)
}
