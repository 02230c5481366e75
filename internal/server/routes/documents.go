package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/kgraph/internal/queue"
	"github.com/OFFIS-RIT/kgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

type queuedDocumentResponse struct {
	Message       string `json:"message"`
	DocumentID    string `json:"document_id"`
	CorrelationID string `json:"correlation_id"`
}

// PostDocumentHandler integrates a chunked document synchronously and returns
// its document graph.
func PostDocumentHandler(c echo.Context) error {
	doc := new(common.Document)
	if err := c.Bind(doc); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(doc); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	client := c.(*middleware.AppContext).App.Graph
	kg, err := client.IntegrateDocument(c.Request().Context(), doc)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, kg)
}

// PostQueuedDocumentHandler publishes a chunked document to the ingest queue.
func PostQueuedDocumentHandler(c echo.Context) error {
	doc := new(common.Document)
	if err := c.Bind(doc); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(doc); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	ch := c.(*middleware.AppContext).App.Queue
	if ch == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Queue is not configured"})
	}

	correlationID, err := queue.PublishDocument(ch, doc)
	if err != nil {
		logger.Error("[Server] Failed to publish document", "document_id", doc.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusAccepted, queuedDocumentResponse{
		Message:       "Document queued",
		DocumentID:    doc.ID,
		CorrelationID: correlationID,
	})
}
