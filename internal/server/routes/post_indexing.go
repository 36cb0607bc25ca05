package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/ariadne/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/logger"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/store"

	"github.com/labstack/echo/v4"
)

// StartIndexingHandler queues a document for indexing. The pipeline
// itself runs on a worker; the handler only validates the transition
// and publishes the message.
func StartIndexingHandler(c echo.Context) error {
	type startResponse struct {
		Message    string `json:"message"`
		DocumentID string `json:"document_id,omitempty"`
	}

	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, startResponse{
			Message: "Invalid document id",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	document, err := app.Documents.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(http.StatusNotFound, startResponse{
				Message: "Document not found",
			})
		}
		logger.Error("Failed to get document", "document_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, startResponse{
			Message: "Internal server error",
		})
	}

	switch document.Status {
	case store.StatusIndexing:
		return c.JSON(http.StatusConflict, startResponse{
			Message: "Document is already being indexed",
		})
	case store.StatusCompleted:
		return c.JSON(http.StatusConflict, startResponse{
			Message: "Document is already indexed",
		})
	}

	if err := publishIndexMessage(c, id); err != nil {
		logger.Error("Failed to publish index message", "document_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, startResponse{
			Message: "Internal server error",
		})
	}

	logger.Info("[Server] Indexing queued", "document_id", id)

	return c.JSON(http.StatusAccepted, startResponse{
		Message:    "Indexing queued",
		DocumentID: id,
	})
}

// CancelIndexingHandler cancels a running indexing run. Cancellation is
// advisory towards the worker; the document is marked cancelled
// immediately.
func CancelIndexingHandler(c echo.Context) error {
	type cancelResponse struct {
		Message    string `json:"message"`
		DocumentID string `json:"document_id,omitempty"`
	}

	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, cancelResponse{
			Message: "Invalid document id",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	if err := app.Orchestrator.Cancel(ctx, id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(http.StatusNotFound, cancelResponse{
				Message: "Document not found",
			})
		}
		if errors.Is(err, common.ErrInvalidState) {
			return c.JSON(http.StatusConflict, cancelResponse{
				Message: "Document is not being indexed",
			})
		}
		logger.Error("Failed to cancel indexing", "document_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, cancelResponse{
			Message: "Internal server error",
		})
	}

	logger.Info("[Server] Indexing cancelled", "document_id", id)

	return c.JSON(http.StatusOK, cancelResponse{
		Message:    "Indexing cancelled",
		DocumentID: id,
	})
}

// RetryIndexingHandler re-queues a failed or cancelled document. The
// previous progress record is dropped so the run starts clean.
func RetryIndexingHandler(c echo.Context) error {
	type retryResponse struct {
		Message    string `json:"message"`
		DocumentID string `json:"document_id,omitempty"`
	}

	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, retryResponse{
			Message: "Invalid document id",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	document, err := app.Documents.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(http.StatusNotFound, retryResponse{
				Message: "Document not found",
			})
		}
		logger.Error("Failed to get document", "document_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, retryResponse{
			Message: "Internal server error",
		})
	}

	if document.Status != store.StatusError && document.Status != store.StatusCancelled {
		return c.JSON(http.StatusConflict, retryResponse{
			Message: "Only failed or cancelled documents can be retried",
		})
	}

	if err := app.Tracker.Delete(id); err != nil {
		logger.Error("Failed to reset progress record", "document_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, retryResponse{
			Message: "Internal server error",
		})
	}
	if err := app.Documents.UpdateDocumentStatus(ctx, id, store.StatusUploaded, ""); err != nil {
		logger.Error("Failed to reset document status", "document_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, retryResponse{
			Message: "Internal server error",
		})
	}

	if err := publishIndexMessage(c, id); err != nil {
		logger.Error("Failed to publish index message", "document_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, retryResponse{
			Message: "Internal server error",
		})
	}

	logger.Info("[Server] Indexing retry queued", "document_id", id)

	return c.JSON(http.StatusAccepted, retryResponse{
		Message:    "Indexing retry queued",
		DocumentID: id,
	})
}
