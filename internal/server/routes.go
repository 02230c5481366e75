package server

import (
	"github.com/OFFIS-RIT/kgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/kgraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)
	read := middleware.RequirePermission(middleware.PermissionGraphRead)
	write := middleware.RequirePermission(middleware.PermissionGraphWrite)

	// Ingestion routes
	apiRoutes.POST("/documents", routes.PostDocumentHandler, write)
	apiRoutes.POST("/documents/queue", routes.PostQueuedDocumentHandler, write)

	// Query routes
	apiRoutes.GET("/query", routes.QueryGraphHandler, read)
	apiRoutes.GET("/entities/:id/neighborhood", routes.GetEntityNeighborhoodHandler, read)

	// Registry routes
	apiRoutes.GET("/graphs", routes.GetGraphsHandler, read)
	apiRoutes.GET("/graphs/:id", routes.GetGraphHandler, read)
	apiRoutes.GET("/cross-document", routes.GetCrossDocumentRelationshipsHandler, read)
	apiRoutes.GET("/stats", routes.GetStatsHandler, read)
}
