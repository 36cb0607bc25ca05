package routes

import (
	"net/http"
	"strings"

	"github.com/OFFIS-RIT/ariadne/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetGraphDataHandler returns the merged graph data for a set of
// documents, for visualization.
func GetGraphDataHandler(c echo.Context) error {
	type graphResponse struct {
		Message string            `json:"message"`
		Graph   *common.GraphData `json:"graph,omitempty"`
	}

	raw := c.QueryParam("document_ids")
	if raw == "" {
		return c.JSON(http.StatusBadRequest, graphResponse{
			Message: "No document ids provided",
		})
	}

	ids := make([]string, 0)
	for _, id := range strings.Split(raw, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return c.JSON(http.StatusBadRequest, graphResponse{
			Message: "No document ids provided",
		})
	}

	ctx := c.Request().Context()
	artifacts := c.(*middleware.AppContext).App.Artifacts

	graph, err := artifacts.LoadGraphData(ctx, ids)
	if err != nil {
		logger.Error("Failed to load graph data", "err", err)
		return c.JSON(http.StatusInternalServerError, graphResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, graphResponse{
		Message: "Graph data retrieved successfully",
		Graph:   graph,
	})
}
