package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/kgraph/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

func GetGraphsHandler(c echo.Context) error {
	registry := c.(*middleware.AppContext).App.Graph.Registry()
	return c.JSON(http.StatusOK, registry.Documents())
}

func GetGraphHandler(c echo.Context) error {
	registry := c.(*middleware.AppContext).App.Graph.Registry()
	kg, err := registry.DocumentGraph(c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, kg)
}

func GetCrossDocumentRelationshipsHandler(c echo.Context) error {
	registry := c.(*middleware.AppContext).App.Graph.Registry()
	return c.JSON(http.StatusOK, registry.CrossDocumentRelationships())
}

func GetStatsHandler(c echo.Context) error {
	registry := c.(*middleware.AppContext).App.Graph.Registry()
	return c.JSON(http.StatusOK, registry.Stats())
}
