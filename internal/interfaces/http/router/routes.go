package router

import (
	"github.com/gin-gonic/gin"
	"github.com/orgextract/backend/internal/interfaces/http/handler"
)

// Handlers bundles every HTTP handler the API serves
type Handlers struct {
	Organisation *handler.OrganisationHandler
	Projection   *handler.ProjectionHandler
	System       *handler.SystemHandler
}

// EntityRoutes returns the entity and extract routes
func EntityRoutes(h *handler.OrganisationHandler) *DomainGroup {
	return NewDomainGroup("entities", "/entities").
		POST("", h.CreateEntity).
		GET("/:id", h.GetEntity).
		GET("/:id/history", h.GetHistory).
		POST("/:id/risk", h.InitiateRiskExtract).
		POST("/:id/asic", h.InitiateAsicExtract)
}

// SystemRoutes returns the system info and projection admin routes
func SystemRoutes(sys *handler.SystemHandler, proj *handler.ProjectionHandler) *DomainGroup {
	group := NewDomainGroup("system", "/system").
		GET("/info", sys.GetSystemInfo)
	if proj != nil {
		group.GET("/projections", proj.ListProjections).
			GET("/projections/:name", proj.GetProjection).
			POST("/projections/:name/rewind", proj.RewindProjection)
	}
	return group
}

// Mount registers the health check at the root and the versioned API routes
func Mount(engine *gin.Engine, h Handlers, opts ...RouterOption) {
	engine.GET("/health", h.System.Health)

	r := NewRouter(engine, opts...)
	r.Register(EntityRoutes(h.Organisation))
	r.Register(SystemRoutes(h.System, h.Projection))
	r.Setup()
}
