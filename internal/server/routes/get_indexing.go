package routes

import (
	"errors"
	"net/http"
	"sort"

	"github.com/OFFIS-RIT/ariadne/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/logger"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/progress"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/store"

	"github.com/labstack/echo/v4"
)

// GetIndexingStatusHandler returns the progress record for one
// document.
func GetIndexingStatusHandler(c echo.Context) error {
	type statusResponse struct {
		Message  string                     `json:"message"`
		Progress *progress.IndexingProgress `json:"progress,omitempty"`
	}

	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, statusResponse{
			Message: "Invalid document id",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	record, err := app.Orchestrator.GetIndexingStatus(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(http.StatusNotFound, statusResponse{
				Message: "Document not found",
			})
		}
		logger.Error("Failed to get indexing status", "document_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, statusResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, statusResponse{
		Message:  "Status retrieved successfully",
		Progress: record,
	})
}

// GetAllIndexingStatusesHandler returns progress records for all
// registered documents, with aggregate counts per terminal state.
func GetAllIndexingStatusesHandler(c echo.Context) error {
	type statusesResponse struct {
		Message   string                      `json:"message"`
		Statuses  []progress.IndexingProgress `json:"statuses"`
		Active    int                         `json:"active"`
		Completed int                         `json:"completed"`
		Errors    int                         `json:"errors"`
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	statuses, err := app.Orchestrator.GetAllStatuses(ctx)
	if err != nil {
		logger.Error("Failed to get indexing statuses", "err", err)
		return c.JSON(http.StatusInternalServerError, statusesResponse{
			Message: "Internal server error",
		})
	}

	response := statusesResponse{
		Message:  "Statuses retrieved successfully",
		Statuses: statuses,
	}
	for _, status := range statuses {
		switch status.Status {
		case progress.StatusIndexing:
			response.Active++
		case progress.StatusCompleted:
			response.Completed++
		case progress.StatusError:
			response.Errors++
		}
	}

	return c.JSON(http.StatusOK, response)
}

// GetIndexingQueueHandler lists documents that are indexing or waiting
// to be indexed, running documents first.
func GetIndexingQueueHandler(c echo.Context) error {
	type queueResponse struct {
		Message   string           `json:"message"`
		Documents []store.Document `json:"documents"`
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	documents, err := app.Documents.ListDocumentsByStatus(ctx, []string{store.StatusIndexing, store.StatusUploaded})
	if err != nil {
		logger.Error("Failed to list indexing queue", "err", err)
		return c.JSON(http.StatusInternalServerError, queueResponse{
			Message: "Internal server error",
		})
	}

	sort.SliceStable(documents, func(i, j int) bool {
		return documents[i].Status == store.StatusIndexing && documents[j].Status != store.StatusIndexing
	})

	return c.JSON(http.StatusOK, queueResponse{
		Message:   "Indexing queue retrieved successfully",
		Documents: documents,
	})
}
