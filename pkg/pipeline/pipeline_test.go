package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/OFFIS-RIT/ariadne/backend/pkg/artifact"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/progress"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/store"
)

type fakeDocumentStore struct {
	mu          sync.Mutex
	docs        map[string]*store.Document
	completeErr error
}

func newFakeDocumentStore(docs ...*store.Document) *fakeDocumentStore {
	s := &fakeDocumentStore{docs: map[string]*store.Document{}}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *fakeDocumentStore) CreateDocument(ctx context.Context, doc *store.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

func (s *fakeDocumentStore) GetDocument(ctx context.Context, id string) (*store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	copied := *doc
	return &copied, nil
}

func (s *fakeDocumentStore) ListDocuments(ctx context.Context, params store.ListDocumentsParams) ([]store.Document, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := []store.Document{}
	for _, d := range s.docs {
		if params.Status == "" || d.Status == params.Status {
			docs = append(docs, *d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	total := len(docs)
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := params.Offset
	if offset > len(docs) {
		offset = len(docs)
	}
	docs = docs[offset:]
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, total, nil
}

func (s *fakeDocumentStore) ListDocumentsByStatus(ctx context.Context, statuses []string) ([]store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := []store.Document{}
	for _, d := range s.docs {
		for _, status := range statuses {
			if d.Status == status {
				docs = append(docs, *d)
			}
		}
	}
	return docs, nil
}

func (s *fakeDocumentStore) UpdateDocumentStatus(ctx context.Context, id string, status string, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	doc.Status = status
	doc.ErrorMessage = errorMessage
	return nil
}

func (s *fakeDocumentStore) CompleteDocument(ctx context.Context, id string, counts store.IndexCounts, indexedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeErr != nil {
		return s.completeErr
	}
	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	doc.Status = store.StatusCompleted
	doc.ErrorMessage = ""
	doc.ChunksCount = counts.Chunks
	doc.EntitiesCount = counts.Entities
	doc.RelationshipsCount = counts.Relationships
	doc.CommunitiesCount = counts.Communities
	doc.IndexedAt = &indexedAt
	return nil
}

func (s *fakeDocumentStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

type fakeExtractor struct {
	text []byte
	err  error
}

func (e *fakeExtractor) ExtractText(ctx context.Context, document *store.Document) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.text, nil
}

type testEnv struct {
	orchestrator *Orchestrator
	documents    *fakeDocumentStore
	tracker      *progress.Tracker
	artifacts    *artifact.Store
}

func newTestEnv(t *testing.T, docs []*store.Document, extractor TextExtractor, command []string) testEnv {
	t.Helper()

	tracker, err := progress.NewTracker(progress.NewTrackerParams{CacheDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewTracker() error = %v", err)
	}
	artifacts := artifact.NewStore(artifact.NewStoreParams{OutputDir: t.TempDir()})
	documents := newFakeDocumentStore(docs...)

	orchestrator := NewOrchestrator(NewOrchestratorParams{
		Documents: documents,
		Tracker:   tracker,
		Artifacts: artifacts,
		Extractor: extractor,
		Command:   command,
	})

	return testEnv{
		orchestrator: orchestrator,
		documents:    documents,
		tracker:      tracker,
		artifacts:    artifacts,
	}
}

func seedArtifacts(t *testing.T, artifacts *artifact.Store, documentID string, entities int) {
	t.Helper()
	dir := artifacts.ArtifactsDir(documentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	content := ""
	for i := range entities {
		content += fmt.Sprintf(`{"id":"e%d","name":"Entity %d"}`+"\n", i, i)
	}
	if err := os.WriteFile(filepath.Join(dir, artifact.TableEntities), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, artifact.TableTextUnits), []byte(`{"id":"c1","text":"chunk"}`+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func uploadedDoc(id string) *store.Document {
	return &store.Document{
		ID:       id,
		FileName: id + ".txt",
		Status:   store.StatusUploaded,
	}
}

func TestStartIndexingRejectsInvalidStates(t *testing.T) {
	tests := []struct {
		name   string
		status string
	}{
		{name: "already indexing", status: store.StatusIndexing},
		{name: "already completed", status: store.StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := uploadedDoc("doc1")
			doc.Status = tt.status
			env := newTestEnv(t, []*store.Document{doc}, &fakeExtractor{text: []byte("text")}, []string{"true"})

			_, _, err := env.orchestrator.StartIndexing(context.Background(), "doc1")
			if !errors.Is(err, common.ErrInvalidState) {
				t.Errorf("StartIndexing() error = %v, want ErrInvalidState", err)
			}
		})
	}
}

func TestStartIndexingUnknownDocument(t *testing.T) {
	env := newTestEnv(t, nil, &fakeExtractor{text: []byte("text")}, []string{"true"})

	_, _, err := env.orchestrator.StartIndexing(context.Background(), "nope")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("StartIndexing() error = %v, want ErrNotFound", err)
	}
}

func TestPipelineSuccess(t *testing.T) {
	env := newTestEnv(t, []*store.Document{uploadedDoc("doc1")},
		&fakeExtractor{text: []byte("some document text")},
		[]string{"echo", "create_base_text_units done"})
	seedArtifacts(t, env.artifacts, "doc1", 3)

	record, task, err := env.orchestrator.StartIndexing(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("StartIndexing() error = %v", err)
	}
	if record.Status != progress.StatusIndexing || record.CurrentStep != progress.StepPreparing {
		t.Errorf("initial record = {%s %s}, want {indexing preparing}", record.Status, record.CurrentStep)
	}
	if record.StartedAt == nil {
		t.Error("StartedAt = nil, want set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := task.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if task.Status() != TaskTerminal {
		t.Errorf("Status() = %s, want terminal", task.Status())
	}

	doc, err := env.documents.GetDocument(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if doc.Status != store.StatusCompleted {
		t.Errorf("document status = %s, want completed", doc.Status)
	}
	if doc.EntitiesCount != 3 || doc.ChunksCount != 1 {
		t.Errorf("counts = {entities %d, chunks %d}, want {3, 1}", doc.EntitiesCount, doc.ChunksCount)
	}
	if doc.IndexedAt == nil {
		t.Error("IndexedAt = nil, want set")
	}

	final := env.tracker.Read("doc1")
	if final == nil {
		t.Fatal("Read() = nil, want final record")
	}
	if final.Status != progress.StatusCompleted || final.CurrentStep != progress.StepFinished || final.ProgressPercentage != 100 {
		t.Errorf("final record = {%s %s %v}, want {completed finished 100}",
			final.Status, final.CurrentStep, final.ProgressPercentage)
	}
	if final.CompletedAt == nil {
		t.Error("CompletedAt = nil, want set")
	}
	inputPath := filepath.Join(env.artifacts.DocumentDir("doc1"), "input", "doc1.txt")
	if _, err := os.Stat(inputPath); err != nil {
		t.Errorf("input file not materialized: %v", err)
	}
}

func TestPipelineExtractionFailure(t *testing.T) {
	env := newTestEnv(t, []*store.Document{uploadedDoc("doc1")},
		&fakeExtractor{err: fmt.Errorf("%w: broken file", common.ErrExtraction)},
		[]string{"true"})

	_, task, err := env.orchestrator.StartIndexing(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("StartIndexing() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := task.Wait(ctx); !errors.Is(err, common.ErrExtraction) {
		t.Fatalf("Wait() error = %v, want ErrExtraction", err)
	}

	doc, _ := env.documents.GetDocument(context.Background(), "doc1")
	if doc.Status != store.StatusError || doc.ErrorMessage == "" {
		t.Errorf("document = {%s %q}, want error status with message", doc.Status, doc.ErrorMessage)
	}

	record := env.tracker.Read("doc1")
	if record == nil || record.Status != progress.StatusError || record.CurrentStep != progress.StepFailed {
		t.Errorf("record = %+v, want error/failed", record)
	}
}

func TestPipelineIndexerFailure(t *testing.T) {
	env := newTestEnv(t, []*store.Document{uploadedDoc("doc1")},
		&fakeExtractor{text: []byte("text")},
		[]string{"false"})

	_, task, err := env.orchestrator.StartIndexing(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("StartIndexing() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := task.Wait(ctx); !errors.Is(err, common.ErrPipelineExecution) {
		t.Fatalf("Wait() error = %v, want ErrPipelineExecution", err)
	}

	doc, _ := env.documents.GetDocument(context.Background(), "doc1")
	if doc.Status != store.StatusError {
		t.Errorf("document status = %s, want error", doc.Status)
	}
}

func TestPipelineNoArtifacts(t *testing.T) {
	env := newTestEnv(t, []*store.Document{uploadedDoc("doc1")},
		&fakeExtractor{text: []byte("text")},
		[]string{"true"})

	_, task, err := env.orchestrator.StartIndexing(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("StartIndexing() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := task.Wait(ctx); !errors.Is(err, common.ErrPipelineExecution) {
		t.Fatalf("Wait() error = %v, want ErrPipelineExecution", err)
	}

	doc, _ := env.documents.GetDocument(context.Background(), "doc1")
	if doc.Status != store.StatusError {
		t.Errorf("document status = %s, want error", doc.Status)
	}

	record := env.tracker.Read("doc1")
	if record == nil || record.ErrorMessage == "" {
		t.Fatalf("record = %+v, want error message about missing artifacts", record)
	}
}

func TestCancelGating(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr bool
	}{
		{name: "uploaded", status: store.StatusUploaded, wantErr: true},
		{name: "completed", status: store.StatusCompleted, wantErr: true},
		{name: "error", status: store.StatusError, wantErr: true},
		{name: "indexing", status: store.StatusIndexing, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := uploadedDoc("doc1")
			doc.Status = tt.status
			env := newTestEnv(t, []*store.Document{doc}, &fakeExtractor{text: []byte("text")}, []string{"true"})

			err := env.orchestrator.Cancel(context.Background(), "doc1")
			if tt.wantErr {
				if !errors.Is(err, common.ErrInvalidState) {
					t.Errorf("Cancel() error = %v, want ErrInvalidState", err)
				}
				got, _ := env.documents.GetDocument(context.Background(), "doc1")
				if got.Status != tt.status {
					t.Errorf("status mutated to %s on rejected cancel", got.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("Cancel() error = %v", err)
			}
			got, _ := env.documents.GetDocument(context.Background(), "doc1")
			if got.Status != store.StatusCancelled || got.ErrorMessage != CancelledMessage {
				t.Errorf("document = {%s %q}, want cancelled with fixed message", got.Status, got.ErrorMessage)
			}
		})
	}
}

func TestRetryGating(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr bool
	}{
		{name: "uploaded", status: store.StatusUploaded, wantErr: true},
		{name: "indexing", status: store.StatusIndexing, wantErr: true},
		{name: "completed", status: store.StatusCompleted, wantErr: true},
		{name: "error", status: store.StatusError, wantErr: false},
		{name: "cancelled", status: store.StatusCancelled, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := uploadedDoc("doc1")
			doc.Status = tt.status
			doc.ErrorMessage = "previous failure"
			env := newTestEnv(t, []*store.Document{doc},
				&fakeExtractor{text: []byte("text")},
				[]string{"echo", "ok"})
			seedArtifacts(t, env.artifacts, "doc1", 1)

			record, task, err := env.orchestrator.Retry(context.Background(), "doc1")
			if tt.wantErr {
				if !errors.Is(err, common.ErrInvalidState) {
					t.Errorf("Retry() error = %v, want ErrInvalidState", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Retry() error = %v", err)
			}
			if record.ErrorMessage != "" {
				t.Errorf("retried record carries stale error %q", record.ErrorMessage)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := task.Wait(ctx); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
			got, _ := env.documents.GetDocument(context.Background(), "doc1")
			if got.Status != store.StatusCompleted {
				t.Errorf("document status after retry = %s, want completed", got.Status)
			}
		})
	}
}

func TestPipelineCompletionWriteFailure(t *testing.T) {
	env := newTestEnv(t, []*store.Document{uploadedDoc("doc1")},
		&fakeExtractor{text: []byte("text")},
		[]string{"echo", "ok"})
	seedArtifacts(t, env.artifacts, "doc1", 2)
	env.documents.completeErr = errors.New("registry unavailable")

	_, task, err := env.orchestrator.StartIndexing(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("StartIndexing() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := task.Wait(ctx); err == nil {
		t.Fatal("Wait() error = nil, want completion write failure")
	}

	env.documents.completeErr = nil
	doc, err := env.documents.GetDocument(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if doc.Status != store.StatusError {
		t.Errorf("document status = %s, want error", doc.Status)
	}
	if doc.ChunksCount != 0 || doc.EntitiesCount != 0 {
		t.Errorf("counts = {chunks %d, entities %d}, want none on a non-completed row",
			doc.ChunksCount, doc.EntitiesCount)
	}
}

func TestGetAllStatusesPagesThroughRegistry(t *testing.T) {
	docs := make([]*store.Document, 0, 120)
	for i := range 120 {
		docs = append(docs, uploadedDoc(fmt.Sprintf("doc%03d", i)))
	}
	env := newTestEnv(t, docs, &fakeExtractor{text: []byte("text")}, []string{"true"})

	statuses, err := env.orchestrator.GetAllStatuses(context.Background())
	if err != nil {
		t.Fatalf("GetAllStatuses() error = %v", err)
	}
	if len(statuses) != 120 {
		t.Fatalf("len(statuses) = %d, want 120", len(statuses))
	}
	for _, status := range statuses {
		if status.CurrentStep != progress.StepWaiting {
			t.Fatalf("status for %s = %s, want waiting", status.DocumentID, status.CurrentStep)
		}
	}
}

func TestGetIndexingStatusSyntheticFallback(t *testing.T) {
	doc := uploadedDoc("doc1")
	doc.Status = store.StatusCompleted
	env := newTestEnv(t, []*store.Document{doc}, &fakeExtractor{text: []byte("text")}, []string{"true"})

	record, err := env.orchestrator.GetIndexingStatus(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("GetIndexingStatus() error = %v", err)
	}
	if record.Status != progress.StatusCompleted || record.CurrentStep != progress.StepFinished || record.ProgressPercentage != 100 {
		t.Errorf("synthetic record = {%s %s %v}, want {completed finished 100}",
			record.Status, record.CurrentStep, record.ProgressPercentage)
	}

	if _, err := env.orchestrator.GetIndexingStatus(context.Background(), "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetIndexingStatus() error = %v, want ErrNotFound", err)
	}
}
