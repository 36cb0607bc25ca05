package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/ariadne/backend/internal/util"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/ai"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const maxConcurrentMapCalls = 4

// RatedPoint is one scored finding from the map phase of global
// search.
type RatedPoint struct {
	Description string `json:"description" jsonschema_description:"One key point relevant to the question"`
	Score       int    `json:"score" jsonschema_description:"Importance of the point for the answer, 0-100"`
}

type mapResponse struct {
	Points []RatedPoint `json:"points" jsonschema_description:"Key points extracted from the community reports"`
}

// queryGlobal answers a broad question with two-phase map-reduce over
// community reports: each batch of reports is mined for scored key
// points in parallel, then the ranked points are combined into one
// answer.
func (e *Engine) queryGlobal(ctx context.Context, query string, documentIDs []string) (*Result, error) {
	reports, err := e.source.LoadCommunityReports(ctx, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load community reports: %w", err)
	}

	if len(reports) == 0 {
		return &Result{
			Response: NoGlobalDataMessage,
			Sources:  []Source{},
			Context:  &GlobalContext{Reports: []common.CommunityReport{}, Points: []RatedPoint{}},
		}, nil
	}

	batches := e.batchReports(reports)

	var mu sync.Mutex
	points := []RatedPoint{}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentMapCalls)
	for i, batch := range batches {
		group.Go(func() error {
			batchPoints, err := e.mapBatch(groupCtx, query, batch)
			if err != nil {
				return fmt.Errorf("map batch %d: %w", i, err)
			}
			mu.Lock()
			points = append(points, batchPoints...)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Score > points[j].Score
	})

	response, err := e.reducePoints(ctx, query, points)
	if err != nil {
		return nil, err
	}

	return &Result{
		Response: response,
		Sources:  reportSources(reports),
		Context: &GlobalContext{
			Reports: reports,
			Batches: len(batches),
			Points:  points,
		},
	}, nil
}

// batchReports groups community reports into batches that each fit the
// context token budget. A single oversized report still gets its own
// batch rather than being dropped.
func (e *Engine) batchReports(reports []common.CommunityReport) [][]common.CommunityReport {
	batches := [][]common.CommunityReport{}
	current := []common.CommunityReport{}
	used := 0

	for _, report := range reports {
		cost := e.counter.Count(formatReport(report))
		if len(current) > 0 && used+cost > contextTokenBudget {
			batches = append(batches, current)
			current = []common.CommunityReport{}
			used = 0
		}
		current = append(current, report)
		used += cost
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func formatReport(report common.CommunityReport) string {
	return fmt.Sprintf("## %s (rank %.1f)\n%s\n\n", report.Title, report.Rank, report.Content)
}

// mapBatch extracts scored key points from one batch of reports.
// Points scored zero carry no information and are dropped here.
func (e *Engine) mapBatch(ctx context.Context, query string, batch []common.CommunityReport) ([]RatedPoint, error) {
	var sb strings.Builder
	for _, report := range batch {
		sb.WriteString(formatReport(report))
	}

	prompt := fmt.Sprintf(GlobalMapPrompt, sb.String(), query)
	opts := []ai.GenerateOption{
		ai.WithMaxTokens(mapResponseMaxTokens),
	}
	if e.model != "" {
		opts = append(opts, ai.WithModel(e.model))
	}

	var response mapResponse
	err := util.RetryErrWithContext(ctx, maxLLMRetries, func(ctx context.Context) error {
		return e.client.GenerateCompletionWithFormat(
			ctx,
			"key_points",
			"Scored key points extracted from community reports",
			prompt,
			&response,
			opts...,
		)
	})
	if err != nil {
		return nil, err
	}

	kept := []RatedPoint{}
	for _, point := range response.Points {
		if point.Score > 0 && point.Description != "" {
			kept = append(kept, point)
		}
	}
	logger.Debug("[Query] Map batch done", "reports", len(batch), "points", len(kept))
	return kept, nil
}

// reducePoints combines the ranked findings into the final answer.
func (e *Engine) reducePoints(ctx context.Context, query string, points []RatedPoint) (string, error) {
	if len(points) == 0 {
		return NoGlobalDataMessage, nil
	}

	var sb strings.Builder
	used := 0
	for _, point := range points {
		line := fmt.Sprintf("- (score %d) %s\n", point.Score, point.Description)
		cost := e.counter.Count(line)
		if used+cost > contextTokenBudget {
			break
		}
		sb.WriteString(line)
		used += cost
	}

	prompt := fmt.Sprintf(GlobalReducePrompt, sb.String(), query)
	opts := []ai.GenerateOption{
		ai.WithMaxTokens(reduceResponseMaxTokens),
	}
	if e.model != "" {
		opts = append(opts, ai.WithModel(e.model))
	}

	response, err := util.RetryWithContext(ctx, maxLLMRetries, func(ctx context.Context) (string, error) {
		return e.client.GenerateCompletion(ctx, prompt, opts...)
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	return response, nil
}
