package store

import (
	"context"
	"time"
)

// Document statuses. A document moves uploaded → indexing → completed,
// with error and cancelled as the terminal failure states. Retry moves
// error/cancelled back to indexing.
const (
	StatusUploaded  = "uploaded"
	StatusIndexing  = "indexing"
	StatusCompleted = "completed"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Document is the registry row for an uploaded source file. The counts
// are populated only when indexing completes.
type Document struct {
	ID           string `json:"id"`
	FileName     string `json:"file_name"`
	OriginalName string `json:"original_name"`
	FileKey      string `json:"-"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`

	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`

	ChunksCount        int `json:"chunks_count"`
	EntitiesCount      int `json:"entities_count"`
	RelationshipsCount int `json:"relationships_count"`
	CommunitiesCount   int `json:"communities_count"`

	UploadDate time.Time  `json:"upload_date"`
	IndexedAt  *time.Time `json:"indexed_at,omitempty"`
}

// IndexCounts holds the artifact row counts recorded on a document when
// indexing completes.
type IndexCounts struct {
	Chunks        int
	Entities      int
	Relationships int
	Communities   int
}

// ListDocumentsParams filters and pages a document listing.
type ListDocumentsParams struct {
	Status string
	Limit  int
	Offset int
}

// DocumentStore is the persistence interface for the document registry.
// Implementations return common.ErrNotFound (wrapped) for unknown ids.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	ListDocuments(ctx context.Context, params ListDocumentsParams) ([]Document, int, error)
	ListDocumentsByStatus(ctx context.Context, statuses []string) ([]Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string, errorMessage string) error
	// CompleteDocument records the artifact counts and the completed
	// status in a single update, keeping counts absent on any
	// non-completed row.
	CompleteDocument(ctx context.Context, id string, counts IndexCounts, indexedAt time.Time) error
	DeleteDocument(ctx context.Context, id string) error
}
