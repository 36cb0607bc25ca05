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

// GetDocumentsHandler lists registered documents, optionally filtered by
// status.
func GetDocumentsHandler(c echo.Context) error {
	type getDocumentsQuery struct {
		Status string `query:"status"`
		Limit  int    `query:"limit"`
		Offset int    `query:"offset"`
	}

	type getDocumentsResponse struct {
		Message   string           `json:"message"`
		Documents []store.Document `json:"documents"`
		Total     int              `json:"total"`
	}

	params := new(getDocumentsQuery)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getDocumentsResponse{
			Message: "Invalid request",
		})
	}

	ctx := c.Request().Context()
	documents := c.(*middleware.AppContext).App.Documents

	docs, total, err := documents.ListDocuments(ctx, store.ListDocumentsParams{
		Status: params.Status,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		logger.Error("Failed to list documents", "err", err)
		return c.JSON(http.StatusInternalServerError, getDocumentsResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getDocumentsResponse{
		Message:   "Documents retrieved successfully",
		Documents: docs,
		Total:     total,
	})
}

// GetDocumentHandler returns a single document by id.
func GetDocumentHandler(c echo.Context) error {
	type getDocumentResponse struct {
		Message  string          `json:"message"`
		Document *store.Document `json:"document,omitempty"`
	}

	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, getDocumentResponse{
			Message: "Invalid document id",
		})
	}

	ctx := c.Request().Context()
	documents := c.(*middleware.AppContext).App.Documents

	document, err := documents.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(http.StatusNotFound, getDocumentResponse{
				Message: "Document not found",
			})
		}
		logger.Error("Failed to get document", "document_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, getDocumentResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getDocumentResponse{
		Message:  "Document retrieved successfully",
		Document: document,
	})
}

// GetDocumentDownloadHandler returns a presigned download link for the
// original uploaded file.
func GetDocumentDownloadHandler(c echo.Context) error {
	type downloadResponse struct {
		Message string `json:"message"`
		URL     string `json:"url,omitempty"`
	}

	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, downloadResponse{
			Message: "Invalid document id",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	document, err := app.Documents.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(http.StatusNotFound, downloadResponse{
				Message: "Document not found",
			})
		}
		logger.Error("Failed to get document", "document_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, downloadResponse{
			Message: "Internal server error",
		})
	}

	url, err := storage.GenerateDownloadLink(ctx, app.S3, document.FileKey)
	if err != nil {
		logger.Error("Failed to generate download link", "document_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, downloadResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, downloadResponse{
		Message: "Download link generated successfully",
		URL:     url,
	})
}
