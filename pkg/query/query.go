package query

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/ariadne/backend/pkg/ai"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/logger"
)

// Search modes supported by the engine.
const (
	ModeLocal  = "local"
	ModeGlobal = "global"
)

// Fixed responses returned when the selected documents carry no usable
// graph data. They short-circuit before any LLM call.
const (
	NoLocalDataMessage  = "No indexed data found for the specified documents."
	NoGlobalDataMessage = "No community data found for global search."
)

// maxLLMRetries bounds retries of individual model calls; context
// cancellation still aborts immediately.
const maxLLMRetries = 3

// Source is one provenance reference attached to a query result.
type Source struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Preview    string `json:"preview"`
}

// Result is the outcome of one graph query.
type Result struct {
	Response       string   `json:"response"`
	Mode           string   `json:"mode"`
	Sources        []Source `json:"sources"`
	ProcessingTime float64  `json:"processing_time"`

	Context ContextData `json:"-"`
}

// ContextData is the typed context assembled for one query. The
// concrete type depends on the search mode.
type ContextData interface {
	SearchMode() string
}

// GraphSource loads per-document graph artifacts for context building.
// It is satisfied by the artifact store.
type GraphSource interface {
	LoadGraphData(ctx context.Context, documentIDs []string) (*common.GraphData, error)
	LoadCommunityReports(ctx context.Context, documentIDs []string) ([]common.CommunityReport, error)
}

// Engine dispatches graph queries to the local or global search
// strategy.
type Engine struct {
	source  GraphSource
	client  ai.ChatClient
	counter *TokenCounter
	model   string
}

// NewEngineParams contains configuration for creating an Engine.
type NewEngineParams struct {
	Source GraphSource
	Client ai.ChatClient
	Model  string
}

// NewEngine creates a query Engine.
func NewEngine(params NewEngineParams) (*Engine, error) {
	counter, err := NewTokenCounter()
	if err != nil {
		return nil, err
	}
	return &Engine{
		source:  params.Source,
		client:  params.Client,
		counter: counter,
		model:   params.Model,
	}, nil
}

// QueryGraph answers a query over the graph data of the given
// documents. Mode must be "local" or "global"; local search requires at
// least one document id. Failures are wrapped with query context and
// returned, never replaced by a fallback answer.
func (e *Engine) QueryGraph(ctx context.Context, query string, mode string, documentIDs []string) (*Result, error) {
	start := time.Now()

	var (
		result *Result
		err    error
	)
	switch mode {
	case ModeLocal:
		if len(documentIDs) == 0 {
			return nil, fmt.Errorf("local search requires document ids: %w", common.ErrInvalidState)
		}
		result, err = e.queryLocal(ctx, query, documentIDs)
	case ModeGlobal:
		result, err = e.queryGlobal(ctx, query, documentIDs)
	default:
		return nil, fmt.Errorf("unknown search mode %q: %w", mode, common.ErrInvalidState)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s search: %v", common.ErrQuery, mode, err)
	}

	result.Mode = mode
	result.ProcessingTime = time.Since(start).Seconds()

	logger.Info("[Query] Completed",
		"mode", mode,
		"documents", len(documentIDs),
		"sources", len(result.Sources),
		"seconds", result.ProcessingTime,
	)
	return result, nil
}
