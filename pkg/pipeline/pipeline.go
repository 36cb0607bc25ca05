package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/OFFIS-RIT/ariadne/backend/pkg/artifact"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/logger"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/progress"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/store"
)

// CancelledMessage is recorded on documents whose indexing run was
// cancelled by the user.
const CancelledMessage = "Indexing was cancelled by the user"

const stderrTailLimit = 2000

// Orchestrator drives the indexing pipeline for uploaded documents:
// text extraction, working directory setup, the external indexer child
// process, output monitoring, and terminal bookkeeping on both the
// progress record and the registry row.
type Orchestrator struct {
	documents  store.DocumentStore
	tracker    *progress.Tracker
	artifacts  *artifact.Store
	extractor  TextExtractor
	classifier StepClassifier

	command  []string
	settings NewIndexerSettingsParams

	mu    sync.Mutex
	tasks map[string]*Task
}

// NewOrchestratorParams contains configuration for creating an
// Orchestrator.
//
// Command is the external indexer invocation; the document working
// directory and generated settings file are appended as
// `--root <dir> --config <file>`.
type NewOrchestratorParams struct {
	Documents  store.DocumentStore
	Tracker    *progress.Tracker
	Artifacts  *artifact.Store
	Extractor  TextExtractor
	Classifier StepClassifier

	Command  []string
	Settings NewIndexerSettingsParams
}

// NewOrchestrator creates an Orchestrator. Classifier defaults to the
// keyword classifier when nil.
func NewOrchestrator(params NewOrchestratorParams) *Orchestrator {
	classifier := params.Classifier
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	return &Orchestrator{
		documents:  params.Documents,
		tracker:    params.Tracker,
		artifacts:  params.Artifacts,
		extractor:  params.Extractor,
		classifier: classifier,
		command:    params.Command,
		settings:   params.Settings,
		tasks:      map[string]*Task{},
	}
}

// StartIndexing begins an indexing run for the document and returns
// immediately with the initial progress record and a task handle. The
// pipeline itself runs in a background goroutine detached from the
// caller's context; all pipeline failures are recorded on the progress
// record and registry row, never returned to the caller.
func (o *Orchestrator) StartIndexing(ctx context.Context, documentID string) (*progress.IndexingProgress, *Task, error) {
	document, err := o.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}

	if document.Status == store.StatusIndexing {
		return nil, nil, fmt.Errorf("document %s is already indexing: %w", documentID, common.ErrInvalidState)
	}
	if document.Status == store.StatusCompleted {
		return nil, nil, fmt.Errorf("document %s is already indexed: %w", documentID, common.ErrInvalidState)
	}

	if err := o.documents.UpdateDocumentStatus(ctx, documentID, store.StatusIndexing, ""); err != nil {
		return nil, nil, err
	}

	started := time.Now().UTC()
	record := &progress.IndexingProgress{
		DocumentID:         documentID,
		Status:             progress.StatusIndexing,
		CurrentStep:        progress.StepPreparing,
		ProgressPercentage: 0,
		StartedAt:          &started,
	}
	if err := o.tracker.Write(record); err != nil {
		return nil, nil, err
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	task := newTask(documentID, cancel)

	o.mu.Lock()
	o.tasks[documentID] = task
	o.mu.Unlock()

	logger.Info("[Pipeline] Indexing started", "document_id", documentID, "file", document.FileName)

	go o.run(taskCtx, task, document, record)

	return record, task, nil
}

// run executes the pipeline to a terminal state. It must not leak
// panics or errors to the spawning goroutine.
func (o *Orchestrator) run(ctx context.Context, task *Task, document *store.Document, record *progress.IndexingProgress) {
	task.markRunning()
	defer func() {
		if r := recover(); r != nil {
			o.fail(task, record, fmt.Errorf("pipeline panic: %v", r))
		}
		o.mu.Lock()
		delete(o.tasks, document.ID)
		o.mu.Unlock()
	}()

	if err := o.tracker.UpdateStep(record, progress.StepPreparing, 5); err != nil {
		o.fail(task, record, err)
		return
	}

	text, err := o.extractor.ExtractText(ctx, document)
	if err != nil {
		o.fail(task, record, err)
		return
	}

	docDir := o.artifacts.DocumentDir(document.ID)
	inputDir := filepath.Join(docDir, "input")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		o.fail(task, record, fmt.Errorf("failed to create working directory: %w", err))
		return
	}
	inputPath := filepath.Join(inputDir, document.ID+".txt")
	if err := os.WriteFile(inputPath, text, 0o644); err != nil {
		o.fail(task, record, fmt.Errorf("failed to materialize input file: %w", err))
		return
	}
	if err := o.tracker.UpdateStep(record, progress.StepCopyingFile, 10); err != nil {
		o.fail(task, record, err)
		return
	}

	settingsPath := filepath.Join(docDir, "settings.yml")
	if err := NewIndexerSettings(o.settings).Write(settingsPath); err != nil {
		o.fail(task, record, err)
		return
	}

	if err := o.runIndexer(ctx, docDir, settingsPath, record); err != nil {
		if ctx.Err() != nil {
			// Cancel already wrote the terminal state; the child exit
			// is just the advisory kill taking effect.
			logger.Info("[Pipeline] Indexing cancelled", "document_id", document.ID)
			task.finish(ctx.Err())
			return
		}
		o.fail(task, record, err)
		return
	}
	if ctx.Err() != nil {
		task.finish(ctx.Err())
		return
	}

	if !o.artifacts.HasArtifacts(document.ID) {
		o.fail(task, record, fmt.Errorf("%w: indexer completed but produced no artifacts", common.ErrPipelineExecution))
		return
	}

	if err := o.tracker.UpdateStep(record, progress.StepFinalizing, 95); err != nil {
		o.fail(task, record, err)
		return
	}

	counts, err := o.artifacts.Counts(document.ID)
	if err != nil {
		o.fail(task, record, fmt.Errorf("failed to count artifacts: %w", err))
		return
	}

	indexedAt := time.Now().UTC()
	updateCtx, cancelUpdate := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelUpdate()

	// Counts and the completed status land in one update so a failure
	// never leaves populated counts on a non-completed row.
	if err := o.documents.CompleteDocument(updateCtx, document.ID, store.IndexCounts{
		Chunks:        counts.Chunks,
		Entities:      counts.Entities,
		Relationships: counts.Relationships,
		Communities:   counts.Communities,
	}, indexedAt); err != nil {
		o.fail(task, record, err)
		return
	}

	record.Status = progress.StatusCompleted
	record.CompletedAt = &indexedAt
	if err := o.tracker.UpdateStep(record, progress.StepFinished, 100); err != nil {
		logger.Warn("[Pipeline] Failed to persist final progress", "document_id", document.ID, "err", err)
	}
	task.finish(nil)

	logger.Info("[Pipeline] Indexing completed",
		"document_id", document.ID,
		"chunks", counts.Chunks,
		"entities", counts.Entities,
		"relationships", counts.Relationships,
		"communities", counts.Communities,
	)
}

// runIndexer spawns the external indexer for one document and blocks
// until it exits, streaming stdout through the step classifier.
func (o *Orchestrator) runIndexer(ctx context.Context, docDir string, settingsPath string, record *progress.IndexingProgress) error {
	if len(o.command) == 0 {
		return fmt.Errorf("%w: no indexer command configured", common.ErrPipelineExecution)
	}

	args := append(append([]string{}, o.command[1:]...), "--root", docDir, "--config", settingsPath)
	cmd := exec.CommandContext(ctx, o.command[0], args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrPipelineExecution, err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: failed to start indexer: %v", common.ErrPipelineExecution, err)
	}

	o.monitorOutput(ctx, stdout, record)

	if err := cmd.Wait(); err != nil {
		tail := strings.TrimSpace(stderr.String())
		if len(tail) > stderrTailLimit {
			tail = tail[len(tail)-stderrTailLimit:]
		}
		if tail == "" {
			return fmt.Errorf("%w: %v", common.ErrPipelineExecution, err)
		}
		return fmt.Errorf("%w: %v: %s", common.ErrPipelineExecution, err, tail)
	}
	return nil
}

// fail records a pipeline failure exactly once on both the progress
// record and the registry row.
func (o *Orchestrator) fail(task *Task, record *progress.IndexingProgress, err error) {
	logger.Error("[Pipeline] Indexing failed", "document_id", record.DocumentID, "err", err)

	record.Status = progress.StatusError
	record.CurrentStep = progress.StepFailed
	record.ErrorMessage = err.Error()
	if writeErr := o.tracker.Write(record); writeErr != nil {
		logger.Warn("[Pipeline] Failed to persist failure", "document_id", record.DocumentID, "err", writeErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if updateErr := o.documents.UpdateDocumentStatus(ctx, record.DocumentID, store.StatusError, err.Error()); updateErr != nil {
		logger.Warn("[Pipeline] Failed to persist document status", "document_id", record.DocumentID, "err", updateErr)
	}

	task.finish(err)
}

// Cancel stops an in-flight indexing run. Only documents currently in
// the indexing state can be cancelled; the child process kill is
// advisory and may take effect with a delay, but the terminal state is
// recorded immediately.
func (o *Orchestrator) Cancel(ctx context.Context, documentID string) error {
	document, err := o.documents.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if document.Status != store.StatusIndexing {
		return fmt.Errorf("document %s is not indexing: %w", documentID, common.ErrInvalidState)
	}

	if err := o.documents.UpdateDocumentStatus(ctx, documentID, store.StatusCancelled, CancelledMessage); err != nil {
		return err
	}

	record := o.tracker.Read(documentID)
	if record == nil {
		record = progress.Synthetic(documentID, progress.StatusUnknown, "")
	}
	record.Status = progress.StatusCancelled
	record.ErrorMessage = CancelledMessage
	if err := o.tracker.Write(record); err != nil {
		return err
	}

	o.mu.Lock()
	task := o.tasks[documentID]
	o.mu.Unlock()
	if task != nil {
		task.cancel()
	}

	logger.Info("[Pipeline] Cancel requested", "document_id", documentID)
	return nil
}

// Retry restarts indexing for a document that ended in error or
// cancelled. The previous progress record is discarded before the new
// run starts.
func (o *Orchestrator) Retry(ctx context.Context, documentID string) (*progress.IndexingProgress, *Task, error) {
	document, err := o.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	if document.Status != store.StatusError && document.Status != store.StatusCancelled {
		return nil, nil, fmt.Errorf("document %s cannot be retried from status %s: %w",
			documentID, document.Status, common.ErrInvalidState)
	}

	if err := o.tracker.Delete(documentID); err != nil {
		return nil, nil, err
	}
	if err := o.documents.UpdateDocumentStatus(ctx, documentID, store.StatusUploaded, ""); err != nil {
		return nil, nil, err
	}

	record, task, err := o.StartIndexing(ctx, documentID)
	if err != nil {
		msg := fmt.Sprintf("retry failed: %v", err)
		if updateErr := o.documents.UpdateDocumentStatus(ctx, documentID, store.StatusError, msg); updateErr != nil {
			logger.Warn("[Pipeline] Failed to persist retry failure", "document_id", documentID, "err", updateErr)
		}
		return nil, nil, err
	}
	return record, task, nil
}

// GetIndexingStatus returns the progress record for a document, falling
// back to a synthetic record derived from the registry status when no
// durable record exists.
func (o *Orchestrator) GetIndexingStatus(ctx context.Context, documentID string) (*progress.IndexingProgress, error) {
	if record := o.tracker.Read(documentID); record != nil {
		return record, nil
	}

	document, err := o.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return progress.Synthetic(document.ID, document.Status, document.ErrorMessage), nil
}

// GetAllStatuses returns progress records for every registered
// document, paging through the registry.
func (o *Orchestrator) GetAllStatuses(ctx context.Context) ([]progress.IndexingProgress, error) {
	statuses := []progress.IndexingProgress{}
	offset := 0
	for {
		documents, total, err := o.documents.ListDocuments(ctx, store.ListDocumentsParams{Limit: 100, Offset: offset})
		if err != nil {
			return nil, err
		}
		if len(documents) == 0 {
			break
		}
		for _, document := range documents {
			if record := o.tracker.Read(document.ID); record != nil {
				statuses = append(statuses, *record)
				continue
			}
			statuses = append(statuses, *progress.Synthetic(document.ID, document.Status, document.ErrorMessage))
		}
		offset += len(documents)
		if offset >= total {
			break
		}
	}
	return statuses, nil
}

// ActiveTask returns the in-process task handle for a document, or nil
// when no run is active in this process.
func (o *Orchestrator) ActiveTask(documentID string) *Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tasks[documentID]
}
