package query

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/OFFIS-RIT/ariadne/backend/pkg/ai"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
)

type fakeGraphSource struct {
	data       *common.GraphData
	reports    []common.CommunityReport
	dataErr    error
	reportsErr error

	gotDocumentIDs []string
}

func (f *fakeGraphSource) LoadGraphData(_ context.Context, documentIDs []string) (*common.GraphData, error) {
	f.gotDocumentIDs = documentIDs
	if f.dataErr != nil {
		return nil, f.dataErr
	}
	if f.data == nil {
		return &common.GraphData{
			Entities:      []common.Entity{},
			Relationships: []common.Relationship{},
			Communities:   []common.Community{},
			Chunks:        []common.TextChunk{},
		}, nil
	}
	return f.data, nil
}

func (f *fakeGraphSource) LoadCommunityReports(_ context.Context, documentIDs []string) ([]common.CommunityReport, error) {
	f.gotDocumentIDs = documentIDs
	if f.reportsErr != nil {
		return nil, f.reportsErr
	}
	return f.reports, nil
}

type fakeChatClient struct {
	mu sync.Mutex

	completionResponse string
	completionErr      error
	chatResponse       string
	chatErr            error
	chatFailures       int
	mapPoints          []RatedPoint
	formatErr          error

	completionPrompts []string
	chatSystemPrompts []string
	formatCalls       int
}

func (f *fakeChatClient) GenerateCompletion(_ context.Context, prompt string, _ ...ai.GenerateOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completionPrompts = append(f.completionPrompts, prompt)
	return f.completionResponse, f.completionErr
}

func (f *fakeChatClient) GenerateCompletionWithFormat(
	_ context.Context,
	_ string,
	_ string,
	_ string,
	out any,
	_ ...ai.GenerateOption,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.formatCalls++
	if f.formatErr != nil {
		return f.formatErr
	}
	response, ok := out.(*mapResponse)
	if !ok {
		return errors.New("unexpected output type")
	}
	response.Points = f.mapPoints
	return nil
}

func (f *fakeChatClient) GenerateChat(_ context.Context, _ []ai.ChatMessage, opts ...ai.GenerateOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	options := &ai.GenerateOptions{}
	for _, opt := range opts {
		opt(options)
	}
	f.chatSystemPrompts = append(f.chatSystemPrompts, options.SystemPrompts...)
	if f.chatFailures > 0 {
		f.chatFailures--
		return "", errors.New("transient model failure")
	}
	return f.chatResponse, f.chatErr
}

func (f *fakeChatClient) ResetMetrics() {}

func (f *fakeChatClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func newTestEngine(t *testing.T, source *fakeGraphSource, client *fakeChatClient) *Engine {
	t.Helper()
	engine, err := NewEngine(NewEngineParams{Source: source, Client: client})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func testGraphData() *common.GraphData {
	return &common.GraphData{
		Entities: []common.Entity{
			{ID: "e1", Name: "Ada Lovelace", Type: "person", Description: "Mathematician and analyst", Degree: 3, SourceChunks: []string{"c1"}},
			{ID: "e2", Name: "Analytical Engine", Type: "technology", Description: "Mechanical computer design", Degree: 2, SourceChunks: []string{"c2"}},
		},
		Relationships: []common.Relationship{
			{ID: "r1", SourceID: "e1", TargetID: "e2", RelationshipType: "designed_for", Description: "Wrote programs for the engine", Weight: 1.0, SourceChunks: []string{"c1"}},
		},
		Chunks: []common.TextChunk{
			{ID: "c1", Text: "Ada Lovelace wrote the first published algorithm.", DocumentID: "doc-1"},
			{ID: "c2", Text: "The Analytical Engine was never completed.", DocumentID: "doc-1"},
		},
	}
}

func TestQueryGraphModeValidation(t *testing.T) {
	engine := newTestEngine(t, &fakeGraphSource{}, &fakeChatClient{})

	tests := []struct {
		name        string
		mode        string
		documentIDs []string
	}{
		{name: "unknown mode", mode: "hybrid", documentIDs: []string{"doc-1"}},
		{name: "local without documents", mode: ModeLocal, documentIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.QueryGraph(context.Background(), "question", tt.mode, tt.documentIDs)
			if !errors.Is(err, common.ErrInvalidState) {
				t.Fatalf("expected ErrInvalidState, got %v", err)
			}
		})
	}
}

func TestLocalSearchNoData(t *testing.T) {
	source := &fakeGraphSource{}
	client := &fakeChatClient{}
	engine := newTestEngine(t, source, client)

	result, err := engine.QueryGraph(context.Background(), "anything", ModeLocal, []string{"doc-1"})
	if err != nil {
		t.Fatalf("QueryGraph failed: %v", err)
	}
	if result.Response != NoLocalDataMessage {
		t.Errorf("expected no-data message, got %q", result.Response)
	}
	if len(result.Sources) != 0 {
		t.Errorf("expected no sources, got %d", len(result.Sources))
	}
	if len(client.chatSystemPrompts) != 0 || len(client.completionPrompts) != 0 {
		t.Error("expected no model calls for empty graph data")
	}
}

func TestLocalSearch(t *testing.T) {
	source := &fakeGraphSource{data: testGraphData()}
	client := &fakeChatClient{chatResponse: "Ada Lovelace designed programs for the Analytical Engine."}
	engine := newTestEngine(t, source, client)

	result, err := engine.QueryGraph(context.Background(), "Who was Ada Lovelace?", ModeLocal, []string{"doc-1"})
	if err != nil {
		t.Fatalf("QueryGraph failed: %v", err)
	}

	if result.Response != client.chatResponse {
		t.Errorf("unexpected response %q", result.Response)
	}
	if result.Mode != ModeLocal {
		t.Errorf("expected mode %q, got %q", ModeLocal, result.Mode)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(result.Sources))
	}
	if result.Sources[0].DocumentID != "doc-1" {
		t.Errorf("expected source document id doc-1, got %q", result.Sources[0].DocumentID)
	}
	if len(client.chatSystemPrompts) != 1 {
		t.Fatalf("expected one system prompt, got %d", len(client.chatSystemPrompts))
	}
	if !strings.Contains(client.chatSystemPrompts[0], "Ada Lovelace") {
		t.Error("expected assembled context in the system prompt")
	}

	localContext, ok := result.Context.(*LocalContext)
	if !ok {
		t.Fatalf("expected LocalContext, got %T", result.Context)
	}
	if localContext.SearchMode() != ModeLocal {
		t.Errorf("unexpected context mode %q", localContext.SearchMode())
	}
	if len(localContext.Entities) != 2 {
		t.Errorf("expected 2 context entities, got %d", len(localContext.Entities))
	}
}

func TestLocalSearchRetriesTransientFailure(t *testing.T) {
	source := &fakeGraphSource{data: testGraphData()}
	client := &fakeChatClient{
		chatResponse: "answer",
		chatFailures: 2,
	}
	engine := newTestEngine(t, source, client)

	result, err := engine.QueryGraph(context.Background(), "Who was Ada Lovelace?", ModeLocal, []string{"doc-1"})
	if err != nil {
		t.Fatalf("QueryGraph failed: %v", err)
	}
	if result.Response != "answer" {
		t.Errorf("unexpected response %q", result.Response)
	}
	if len(client.chatSystemPrompts) != 3 {
		t.Errorf("expected 3 chat attempts, got %d", len(client.chatSystemPrompts))
	}
}

func TestLocalSearchLoadFailure(t *testing.T) {
	source := &fakeGraphSource{dataErr: errors.New("disk gone")}
	engine := newTestEngine(t, source, &fakeChatClient{})

	_, err := engine.QueryGraph(context.Background(), "question", ModeLocal, []string{"doc-1"})
	if !errors.Is(err, common.ErrQuery) {
		t.Fatalf("expected ErrQuery, got %v", err)
	}
}

func TestGlobalSearchNoReports(t *testing.T) {
	source := &fakeGraphSource{}
	client := &fakeChatClient{}
	engine := newTestEngine(t, source, client)

	result, err := engine.QueryGraph(context.Background(), "main themes?", ModeGlobal, nil)
	if err != nil {
		t.Fatalf("QueryGraph failed: %v", err)
	}
	if result.Response != NoGlobalDataMessage {
		t.Errorf("expected no-data message, got %q", result.Response)
	}
	if client.formatCalls != 0 {
		t.Error("expected no map calls without reports")
	}
}

func TestGlobalSearch(t *testing.T) {
	source := &fakeGraphSource{
		reports: []common.CommunityReport{
			{ID: "rep-1", Title: "Computing pioneers", Content: "Early computing history.", Rank: 8.5},
			{ID: "rep-2", Title: "Victorian engineering", Content: "Mechanical design culture.", Rank: 6.0},
		},
	}
	client := &fakeChatClient{
		mapPoints: []RatedPoint{
			{Description: "Lovelace anticipated general computation", Score: 90},
			{Description: "irrelevant", Score: 0},
			{Description: "Babbage never finished the engine", Score: 60},
		},
		completionResponse: "The collection centers on early computing.",
	}
	engine := newTestEngine(t, source, client)

	result, err := engine.QueryGraph(context.Background(), "What are the main themes?", ModeGlobal, nil)
	if err != nil {
		t.Fatalf("QueryGraph failed: %v", err)
	}

	if result.Response != client.completionResponse {
		t.Errorf("unexpected response %q", result.Response)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("expected 2 report sources, got %d", len(result.Sources))
	}
	if result.Sources[0].Title != "Computing pioneers" {
		t.Errorf("unexpected source title %q", result.Sources[0].Title)
	}

	globalContext, ok := result.Context.(*GlobalContext)
	if !ok {
		t.Fatalf("expected GlobalContext, got %T", result.Context)
	}
	if len(globalContext.Points) != 2 {
		t.Fatalf("expected zero-score points filtered, got %d points", len(globalContext.Points))
	}
	if globalContext.Points[0].Score < globalContext.Points[1].Score {
		t.Error("expected points sorted by score descending")
	}
	if len(client.completionPrompts) != 1 {
		t.Fatalf("expected one reduce call, got %d", len(client.completionPrompts))
	}
	if !strings.Contains(client.completionPrompts[0], "Lovelace anticipated general computation") {
		t.Error("expected findings in the reduce prompt")
	}
}

func TestGlobalSearchMapFailure(t *testing.T) {
	source := &fakeGraphSource{
		reports: []common.CommunityReport{{ID: "rep-1", Title: "t", Content: "c"}},
	}
	client := &fakeChatClient{formatErr: errors.New("model unavailable")}
	engine := newTestEngine(t, source, client)

	_, err := engine.QueryGraph(context.Background(), "question", ModeGlobal, nil)
	if !errors.Is(err, common.ErrQuery) {
		t.Fatalf("expected ErrQuery, got %v", err)
	}
}

func TestPreviewText(t *testing.T) {
	short := "brief"
	if got := previewText(short); got != short {
		t.Errorf("expected short text unchanged, got %q", got)
	}

	long := strings.Repeat("a", 500)
	got := previewText(long)
	if len(got) != previewLength+3 {
		t.Errorf("expected %d characters, got %d", previewLength+3, len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("expected ellipsis suffix")
	}
}

func TestPreviewTextKeepsRunesWhole(t *testing.T) {
	// 199 ASCII bytes followed by two-byte Cyrillic runes puts the byte
	// cut in the middle of a rune.
	text := strings.Repeat("a", 199) + strings.Repeat("е", 10)

	got := previewText(text)
	if !utf8.ValidString(got) {
		t.Fatalf("preview is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("expected ellipsis suffix")
	}
	if len(got) > previewLength+3 {
		t.Errorf("preview too long: %d bytes", len(got))
	}

	cyrillic := strings.Repeat("е", 150)
	got = previewText(cyrillic)
	if !utf8.ValidString(got) {
		t.Fatalf("preview is not valid UTF-8: %q", got)
	}
}
