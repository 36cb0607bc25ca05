package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Indexing steps as reported by the pipeline. The external indexer only
// logs free text, so steps inferred from its output are best-effort.
const (
	StepPreparing              = "preparing"
	StepCopyingFile            = "copying_file"
	StepChunking               = "chunking"
	StepEntityExtraction       = "entity_extraction"
	StepRelationshipExtraction = "relationship_extraction"
	StepCommunityDetection     = "community_detection"
	StepFinalizing             = "finalizing"
	StepFinished               = "finished"
	StepFailed                 = "failed"
	StepWaiting                = "waiting"
	StepUnknown                = "unknown"
)

// Document statuses mirrored onto the progress record while indexing.
const (
	StatusUploaded  = "uploaded"
	StatusIndexing  = "indexing"
	StatusCompleted = "completed"
	StatusError     = "error"
	StatusCancelled = "cancelled"
	StatusUnknown   = "unknown"
)

// IndexingProgress is the durable per-document indexing record. There is
// exactly one current record per document id; it is created when indexing
// starts, updated in place through the pipeline steps, and left terminal
// at completed/error/cancelled.
type IndexingProgress struct {
	DocumentID         string     `json:"document_id"`
	Status             string     `json:"status"`
	CurrentStep        string     `json:"current_step"`
	ProgressPercentage float64    `json:"progress_percentage"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// Tracker persists progress records as one JSON file per document under a
// cache directory. Writes are full overwrites (last write wins); callers
// serialize writes per document id, a single pipeline task owns a
// document's record at any time.
type Tracker struct {
	cacheDir string
}

// NewTrackerParams contains configuration for creating a Tracker.
type NewTrackerParams struct {
	CacheDir string
}

// NewTracker creates a Tracker rooted at the given cache directory,
// creating the directory if needed.
func NewTracker(params NewTrackerParams) (*Tracker, error) {
	if err := os.MkdirAll(params.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create progress cache dir: %w", err)
	}
	return &Tracker{cacheDir: params.CacheDir}, nil
}

func (t *Tracker) recordPath(documentID string) string {
	return filepath.Join(t.cacheDir, fmt.Sprintf("indexing_status_%s.json", documentID))
}

// Read returns the progress record for a document, or nil if no record
// exists. A corrupt or unreadable record is treated as absent, never as
// an error.
func (t *Tracker) Read(documentID string) *IndexingProgress {
	data, err := os.ReadFile(t.recordPath(documentID))
	if err != nil {
		return nil
	}

	var p IndexingProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	if p.DocumentID == "" {
		return nil
	}
	return &p
}

// Write persists the record as a full overwrite. The record is written to
// a temp file and renamed into place so readers never observe a partial
// record.
func (t *Tracker) Write(p *IndexingProgress) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode progress record: %w", err)
	}

	path := t.recordPath(p.DocumentID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write progress record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace progress record: %w", err)
	}
	return nil
}

// UpdateStep mutates the in-memory record and persists it.
func (t *Tracker) UpdateStep(p *IndexingProgress, step string, percentage float64) error {
	p.CurrentStep = step
	p.ProgressPercentage = percentage
	return t.Write(p)
}

// Delete removes the record for a document. Missing records are not an
// error.
func (t *Tracker) Delete(documentID string) error {
	err := os.Remove(t.recordPath(documentID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Synthetic derives a progress record from a document's registry status
// when no durable record exists: uploaded documents are waiting at 0%,
// completed documents are finished at 100%, errored documents carry the
// stored message at 0%.
func Synthetic(documentID, status, errorMessage string) *IndexingProgress {
	switch status {
	case StatusUploaded:
		return &IndexingProgress{
			DocumentID:         documentID,
			Status:             StatusUploaded,
			CurrentStep:        StepWaiting,
			ProgressPercentage: 0,
		}
	case StatusCompleted:
		now := time.Now().UTC()
		return &IndexingProgress{
			DocumentID:         documentID,
			Status:             StatusCompleted,
			CurrentStep:        StepFinished,
			ProgressPercentage: 100,
			CompletedAt:        &now,
		}
	case StatusError:
		return &IndexingProgress{
			DocumentID:         documentID,
			Status:             StatusError,
			CurrentStep:        StepFailed,
			ProgressPercentage: 0,
			ErrorMessage:       errorMessage,
		}
	default:
		return &IndexingProgress{
			DocumentID:         documentID,
			Status:             StatusUnknown,
			CurrentStep:        StepUnknown,
			ProgressPercentage: 0,
		}
	}
}
