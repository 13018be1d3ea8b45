package handler

import (
	"github.com/gin-gonic/gin"
	eventapp "github.com/orgextract/backend/internal/application/event"
)

// ProjectionHandler exposes projector checkpoints for operators
type ProjectionHandler struct {
	BaseHandler
	service *eventapp.ProjectionService
}

// NewProjectionHandler creates a new ProjectionHandler
func NewProjectionHandler(service *eventapp.ProjectionService) *ProjectionHandler {
	return &ProjectionHandler{service: service}
}

// ListProjections godoc
// @ID           listProjections
// @Summary      List projections
// @Description  Returns checkpoint, high water mark and lag for every projector
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[[]eventapp.ProjectionStatusDTO]
// @Failure      500 {object} ErrorResponse
// @Router       /system/projections [get]
func (h *ProjectionHandler) ListProjections(c *gin.Context) {
	statuses, err := h.service.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, statuses)
}

// GetProjection godoc
// @ID           getProjection
// @Summary      Get a projection
// @Tags         system
// @Produce      json
// @Param        name path string true "Projector name"
// @Success      200 {object} APIResponse[eventapp.ProjectionStatusDTO]
// @Failure      404 {object} ErrorResponse
// @Router       /system/projections/{name} [get]
func (h *ProjectionHandler) GetProjection(c *gin.Context) {
	status, err := h.service.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// RewindProjection godoc
// @ID           rewindProjection
// @Summary      Rewind a projection
// @Description  Moves the checkpoint back so later events are published again
// @Tags         system
// @Accept       json
// @Produce      json
// @Param        name path string true "Projector name"
// @Param        request body eventapp.RewindRequest true "Rewind target"
// @Success      200 {object} APIResponse[eventapp.ProjectionStatusDTO]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /system/projections/{name}/rewind [post]
func (h *ProjectionHandler) RewindProjection(c *gin.Context) {
	var req eventapp.RewindRequest
	if !h.bindJSON(c, &req) {
		return
	}

	status, err := h.service.Rewind(c.Request.Context(), c.Param("name"), *req.Position)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}
