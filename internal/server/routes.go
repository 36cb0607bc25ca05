package server

import (
	"github.com/OFFIS-RIT/ariadne/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/ariadne/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Document routes
	apiRoutes.GET("/documents", routes.GetDocumentsHandler, middleware.RequirePermission("document.view"))
	apiRoutes.GET("/documents/:id", routes.GetDocumentHandler, middleware.RequirePermission("document.view"))
	apiRoutes.GET("/documents/:id/download", routes.GetDocumentDownloadHandler, middleware.RequirePermission("document.view"))
	apiRoutes.POST("/documents", routes.UploadDocumentHandler, middleware.RequirePermission("document.upload"))
	apiRoutes.DELETE("/documents/:id", routes.DeleteDocumentHandler, middleware.RequirePermission("document.delete"))

	// Indexing routes
	apiRoutes.POST("/documents/:id/index", routes.StartIndexingHandler, middleware.RequirePermission("document.index"))
	apiRoutes.POST("/documents/:id/cancel", routes.CancelIndexingHandler, middleware.RequirePermission("document.index"))
	apiRoutes.POST("/documents/:id/retry", routes.RetryIndexingHandler, middleware.RequirePermission("document.index"))
	apiRoutes.GET("/documents/:id/status", routes.GetIndexingStatusHandler, middleware.RequirePermission("document.view"))
	apiRoutes.GET("/status", routes.GetAllIndexingStatusesHandler, middleware.RequirePermission("document.view"))
	apiRoutes.GET("/queue", routes.GetIndexingQueueHandler, middleware.RequirePermission("document.view"))

	// Query routes
	apiRoutes.POST("/query", routes.QueryHandler, middleware.RequirePermission("document.query"))
	apiRoutes.GET("/graph", routes.GetGraphDataHandler, middleware.RequirePermission("document.view"))
}
