package routes

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/OFFIS-RIT/ariadne/backend/internal/queue"
	"github.com/OFFIS-RIT/ariadne/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/ariadne/backend/internal/storage"
	"github.com/OFFIS-RIT/ariadne/backend/internal/util"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/loader"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/logger"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/store"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// UploadDocumentHandler registers a new document from multipart/form-data
// and stores the raw file. Indexing is a separate, explicit step.
func UploadDocumentHandler(c echo.Context) error {
	type uploadResponse struct {
		Message  string          `json:"message"`
		Document *store.Document `json:"document,omitempty"`
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, uploadResponse{
			Message: "No file provided",
		})
	}

	if !loader.IsSupported(file.Filename) {
		return c.JSON(http.StatusBadRequest, uploadResponse{
			Message: "Unsupported file type, expected one of: " + strings.Join(loader.SupportedExtensions, ", "),
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, uploadResponse{
			Message: "Could not open file",
		})
	}
	defer src.Close()

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	id, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, uploadResponse{
			Message: "Internal server error",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	key, err := storage.PutFile(ctx, app.S3, "documents", file.Filename, id, src)
	if err != nil {
		logger.Error("Failed to upload file", "err", err)
		return c.JSON(http.StatusInternalServerError, uploadResponse{
			Message: "Internal server error",
		})
	}

	contentType := file.Header.Get("Content-Type")
	document := &store.Document{
		ID:           id,
		FileName:     file.Filename,
		OriginalName: file.Filename,
		FileKey:      key,
		Size:         file.Size,
		ContentType:  contentType,
		Status:       store.StatusUploaded,
		UploadDate:   time.Now().UTC(),
	}

	if err := app.Documents.CreateDocument(ctx, document); err != nil {
		logger.Error("Failed to register document", "err", err)
		if delErr := storage.DeleteFile(ctx, app.S3, key); delErr != nil {
			logger.Warn("Failed to clean up uploaded file", "key", key, "err", delErr)
		}
		return c.JSON(http.StatusInternalServerError, uploadResponse{
			Message: "Internal server error",
		})
	}

	logger.Info("[Server] Document uploaded", "document_id", id, "name", file.Filename, "size", file.Size)

	return c.JSON(http.StatusOK, uploadResponse{
		Message:  "Document uploaded successfully",
		Document: document,
	})
}

func publishIndexMessage(c echo.Context, documentID string) error {
	msg, err := json.Marshal(queue.IndexDocumentMsg{DocumentID: documentID})
	if err != nil {
		return err
	}
	ch := c.(*middleware.AppContext).App.Queue
	return util.RetryErr(3, func() error {
		return queue.PublishFIFO(ch, queue.IndexQueue, msg)
	})
}
