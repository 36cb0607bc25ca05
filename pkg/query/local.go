package query

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/ariadne/backend/internal/util"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/ai"
)

// queryLocal answers a question about specific documents by assembling
// entity-level context from their artifact tables and generating once.
func (e *Engine) queryLocal(ctx context.Context, query string, documentIDs []string) (*Result, error) {
	data, err := e.source.LoadGraphData(ctx, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph data: %w", err)
	}

	if len(data.Entities) == 0 {
		return &Result{
			Response: NoLocalDataMessage,
			Sources:  []Source{},
			Context:  &LocalContext{},
		}, nil
	}

	localContext := buildLocalContext(data, query, e.counter)

	prompt := fmt.Sprintf(LocalAnswerPrompt, localContext.Text)
	opts := []ai.GenerateOption{
		ai.WithSystemPrompts(prompt),
	}
	if e.model != "" {
		opts = append(opts, ai.WithModel(e.model))
	}

	response, err := util.RetryWithContext(ctx, maxLLMRetries, func(ctx context.Context) (string, error) {
		return e.client.GenerateChat(ctx, []ai.ChatMessage{
			{Role: "user", Message: query},
		}, opts...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &Result{
		Response: response,
		Sources:  chunkSources(localContext.Chunks),
		Context:  localContext,
	}, nil
}
