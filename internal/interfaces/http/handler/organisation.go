package handler

import (
	"github.com/gin-gonic/gin"
	orgapp "github.com/orgextract/backend/internal/application/organisation"
	"github.com/orgextract/backend/internal/interfaces/http/dto"
)

// OrganisationHandler handles entity and extract API endpoints
type OrganisationHandler struct {
	BaseHandler
	service *orgapp.Service
}

// NewOrganisationHandler creates a new OrganisationHandler
func NewOrganisationHandler(service *orgapp.Service) *OrganisationHandler {
	return &OrganisationHandler{service: service}
}

// CreateEntity godoc
// @ID           createEntity
// @Summary      Create an entity
// @Description  Starts a new organisation entity with no extracts
// @Tags         entities
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant identifier"
// @Param        X-Correlation-ID header string false "Correlation identifier"
// @Success      201 {object} APIResponse[orgapp.EntityDTO]
// @Failure      500 {object} ErrorResponse
// @Router       /entities [post]
func (h *OrganisationHandler) CreateEntity(c *gin.Context) {
	entity, err := h.service.CreateEntity(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, entity)
}

// GetEntity godoc
// @ID           getEntity
// @Summary      Get an entity
// @Description  Returns the entity with the status of every extract
// @Tags         entities
// @Produce      json
// @Param        id path string true "Entity ID" format(uuid)
// @Success      200 {object} APIResponse[orgapp.EntityDTO]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /entities/{id} [get]
func (h *OrganisationHandler) GetEntity(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	entity, err := h.service.GetEntity(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entity)
}

// GetHistory godoc
// @ID           getEntityHistory
// @Summary      Get entity history
// @Description  Returns the human-readable change history of an entity in stream order
// @Tags         entities
// @Produce      json
// @Param        id path string true "Entity ID" format(uuid)
// @Success      200 {object} APIResponse[[]orgapp.HistoryEntryDTO]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /entities/{id}/history [get]
func (h *OrganisationHandler) GetHistory(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	entries, err := h.service.History(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}

// InitiateRiskExtract godoc
// @ID           initiateRiskExtract
// @Summary      Initiate a risk extract
// @Description  Opens a risk extract; it is fetched and completed asynchronously
// @Tags         extracts
// @Produce      json
// @Param        id path string true "Entity ID" format(uuid)
// @Success      202 {object} APIResponse[dto.ExtractAcceptedResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /entities/{id}/risk [post]
func (h *OrganisationHandler) InitiateRiskExtract(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	extractID, err := h.service.InitiateRiskExtract(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, dto.ExtractAcceptedResponse{ExtractID: extractID.String()})
}

// InitiateAsicExtract godoc
// @ID           initiateAsicExtract
// @Summary      Initiate an ASIC extract
// @Description  Opens an ASIC extract for an ACN; the order is placed and collected asynchronously
// @Tags         extracts
// @Accept       json
// @Produce      json
// @Param        id path string true "Entity ID" format(uuid)
// @Param        request body dto.InitiateAsicExtractRequest true "ASIC extract request"
// @Success      202 {object} APIResponse[dto.ExtractAcceptedResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /entities/{id}/asic [post]
func (h *OrganisationHandler) InitiateAsicExtract(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.InitiateAsicExtractRequest
	if !h.bindJSON(c, &req) {
		return
	}

	extractID, err := h.service.InitiateAsicExtract(c.Request.Context(), id, req.ACN)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, dto.ExtractAcceptedResponse{ExtractID: extractID.String()})
}
