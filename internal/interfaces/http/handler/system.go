package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/orgextract/backend/internal/interfaces/http/dto"
)

// HealthCheck probes one backing dependency
type HealthCheck func(ctx context.Context) error

// HealthDetail reports extra state alongside the checks, such as pool usage
type HealthDetail func(ctx context.Context) (any, error)

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	checks    map[string]HealthCheck
	details   map[string]HealthDetail
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]HealthCheck),
		details:   make(map[string]HealthDetail),
	}
}

// WithHealthCheck registers a named dependency probe for the health endpoint
func (h *SystemHandler) WithHealthCheck(name string, check HealthCheck) *SystemHandler {
	h.checks[name] = check
	return h
}

// WithHealthDetail registers a named report included in the health response.
// A failing report is shown as its error and does not degrade the status.
func (h *SystemHandler) WithHealthDetail(name string, detail HealthDetail) *SystemHandler {
	h.details[name] = detail
	return h
}

// SystemInfoResponse represents the system information response
// @name HandlerSystemInfoResponse
type SystemInfoResponse struct {
	Name      string `json:"name" example:"org-backend"`
	Version   string `json:"version" example:"1.0.0"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// HealthResponse reports the state of each dependency
// @name HandlerHealthResponse
type HealthResponse struct {
	Status  string            `json:"status" example:"ok"`
	Checks  map[string]string `json:"checks,omitempty"`
	Details map[string]any    `json:"details,omitempty"`
}

// GetSystemInfo godoc
// @ID           getSystemSystemInfo
// @Summary      Get system information
// @Description  Returns basic system information including version and uptime
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[SystemInfoResponse]
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Health godoc
// @ID           getHealth
// @Summary      Health check
// @Description  Runs every registered dependency probe; any failure answers 503
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[HealthResponse]
// @Failure      503 {object} APIResponse[HealthResponse]
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}
	if len(h.details) > 0 {
		resp.Details = make(map[string]any, len(h.details))
		for name, detail := range h.details {
			v, err := detail(ctx)
			if err != nil {
				v = err.Error()
			}
			resp.Details[name] = v
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}
