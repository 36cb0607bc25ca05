package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/ariadne/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/logger"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/query"

	"github.com/labstack/echo/v4"
)

// QueryHandler answers a question over indexed documents. Local mode
// searches the graph data of the given documents, global mode the
// community reports of the whole collection.
func QueryHandler(c echo.Context) error {
	type queryRequest struct {
		Query       string   `json:"query" validate:"required,max=2000"`
		Mode        string   `json:"mode"`
		DocumentIDs []string `json:"document_ids"`
	}

	type queryResponse struct {
		Message        string         `json:"message"`
		Response       string         `json:"response,omitempty"`
		Mode           string         `json:"mode,omitempty"`
		Sources        []query.Source `json:"sources,omitempty"`
		ProcessingTime float64        `json:"processing_time,omitempty"`
	}

	data := new(queryRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Invalid request body",
		})
	}

	if data.Mode == "" {
		data.Mode = query.ModeLocal
	}
	if data.Mode != query.ModeLocal && data.Mode != query.ModeGlobal {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Mode must be 'local' or 'global'",
		})
	}
	if data.Mode == query.ModeLocal && len(data.DocumentIDs) == 0 {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Local search requires document ids",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	engine := c.(*middleware.AppContext).App.Engine

	result, err := engine.QueryGraph(ctx, data.Query, data.Mode, data.DocumentIDs)
	if err != nil {
		if errors.Is(err, common.ErrInvalidState) {
			return c.JSON(http.StatusBadRequest, queryResponse{
				Message: "Invalid query parameters",
			})
		}
		logger.Error("[Query] graph error", "err", err)
		return c.JSON(http.StatusInternalServerError, queryResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, queryResponse{
		Message:        "Query completed successfully",
		Response:       result.Response,
		Mode:           result.Mode,
		Sources:        result.Sources,
		ProcessingTime: result.ProcessingTime,
	})
}
