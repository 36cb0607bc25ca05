package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/ariadne/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/ariadne/backend/internal/storage"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/logger"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/store"

	"github.com/labstack/echo/v4"
)

// DeleteDocumentHandler removes a document, its stored file, its
// artifacts, and its progress record. A document that is currently
// indexing must be cancelled first.
func DeleteDocumentHandler(c echo.Context) error {
	type deleteResponse struct {
		Message string `json:"message"`
	}

	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, deleteResponse{
			Message: "Invalid document id",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	document, err := app.Documents.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(http.StatusNotFound, deleteResponse{
				Message: "Document not found",
			})
		}
		logger.Error("Failed to get document", "document_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteResponse{
			Message: "Internal server error",
		})
	}

	if document.Status == store.StatusIndexing {
		return c.JSON(http.StatusConflict, deleteResponse{
			Message: "Document is currently indexing, cancel indexing first",
		})
	}

	if err := storage.DeleteFile(ctx, app.S3, document.FileKey); err != nil {
		logger.Warn("Failed to delete stored file", "document_id", id, "err", err)
	}
	if err := app.Artifacts.Delete(id); err != nil {
		logger.Warn("Failed to delete artifacts", "document_id", id, "err", err)
	}
	if err := app.Tracker.Delete(id); err != nil {
		logger.Warn("Failed to delete progress record", "document_id", id, "err", err)
	}

	if err := app.Documents.DeleteDocument(ctx, id); err != nil {
		logger.Error("Failed to delete document", "document_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteResponse{
			Message: "Internal server error",
		})
	}

	logger.Info("[Server] Document deleted", "document_id", id)

	return c.JSON(http.StatusOK, deleteResponse{
		Message: "Document deleted successfully",
	})
}
