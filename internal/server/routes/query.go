package routes

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/OFFIS-RIT/kgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"

	"github.com/labstack/echo/v4"
)

// intParam reads an optional integer query parameter. A value that is not an
// integer is a type error.
func intParam(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", graph.ErrType, name, raw)
	}
	return v, nil
}

func QueryGraphHandler(c echo.Context) error {
	maxResults, err := intParam(c, "max_results", graph.DefaultMaxResults)
	if err != nil {
		return errorResponse(c, err)
	}

	client := c.(*middleware.AppContext).App.Graph
	res, err := client.QueryGraph(c.QueryParam("q"), c.QueryParam("graph_id"), maxResults)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

func GetEntityNeighborhoodHandler(c echo.Context) error {
	depth, err := intParam(c, "depth", graph.DefaultNeighborhoodDepth)
	if err != nil {
		return errorResponse(c, err)
	}

	client := c.(*middleware.AppContext).App.Graph
	res, err := client.GetEntityNeighborhood(c.Param("id"), depth)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, res)
}
