package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

// statusFor maps the graph error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, graph.ErrValidation), errors.Is(err, graph.ErrType):
		return http.StatusBadRequest
	case errors.Is(err, graph.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("[Server] Request failed", "path", c.Path(), "err", err)
		return c.JSON(status, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
