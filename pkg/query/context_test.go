package query

import (
	"reflect"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
)

func TestQueryTerms(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "lowercases and drops short tokens",
			query: "Who is Ada Lovelace?",
			want:  []string{"who", "ada", "lovelace"},
		},
		{
			name:  "deduplicates",
			query: "engine engine ENGINE",
			want:  []string{"engine"},
		},
		{
			name:  "empty query",
			query: "",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := queryTerms(tt.query)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("queryTerms(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestBuildLocalContextRanking(t *testing.T) {
	counter, err := NewTokenCounter()
	if err != nil {
		t.Fatalf("NewTokenCounter failed: %v", err)
	}

	data := &common.GraphData{
		Entities: []common.Entity{
			{ID: "e1", Name: "Background noise", Type: "concept", Degree: 10},
			{ID: "e2", Name: "Steam turbine", Type: "technology", Description: "Rotary engine", Degree: 1, SourceChunks: []string{"c1"}},
		},
		Relationships: []common.Relationship{
			{ID: "r1", SourceID: "e2", TargetID: "e1", RelationshipType: "related", SourceChunks: []string{"c1"}},
		},
		Chunks: []common.TextChunk{
			{ID: "c1", Text: "Turbines convert steam into rotation.", DocumentID: "doc-1"},
		},
	}

	context := buildLocalContext(data, "how does a steam turbine work", counter)

	if len(context.Entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(context.Entities))
	}
	if context.Entities[0].ID != "e2" {
		t.Errorf("expected query-matching entity first, got %q", context.Entities[0].ID)
	}
	if len(context.Relationships) != 1 {
		t.Errorf("expected 1 relationship, got %d", len(context.Relationships))
	}
	if len(context.Chunks) != 1 || context.Chunks[0].ID != "c1" {
		t.Errorf("expected chunk c1, got %v", context.Chunks)
	}
	for _, section := range []string{"-----Entities-----", "-----Relationships-----", "-----Sources-----"} {
		if !strings.Contains(context.Text, section) {
			t.Errorf("expected section %q in context text", section)
		}
	}
	if !strings.Contains(context.Text, "Steam turbine (technology)") {
		t.Error("expected rendered entity line in context text")
	}
}

func TestBuildLocalContextFallsBackToDegree(t *testing.T) {
	counter, err := NewTokenCounter()
	if err != nil {
		t.Fatalf("NewTokenCounter failed: %v", err)
	}

	data := &common.GraphData{
		Entities: []common.Entity{
			{ID: "low", Name: "Minor", Degree: 1},
			{ID: "high", Name: "Hub", Degree: 9},
		},
	}

	context := buildLocalContext(data, "zzz qqq", counter)
	if context.Entities[0].ID != "high" {
		t.Errorf("expected best-connected entity first without term overlap, got %q", context.Entities[0].ID)
	}
}

func TestBatchReportsSplitsOnBudget(t *testing.T) {
	counter, err := NewTokenCounter()
	if err != nil {
		t.Fatalf("NewTokenCounter failed: %v", err)
	}
	engine := &Engine{counter: counter}

	// Each report costs well over half the budget, so no two fit
	// together.
	big := strings.Repeat("community analysis ", 4000)
	reports := []common.CommunityReport{
		{ID: "rep-1", Title: "A", Content: big},
		{ID: "rep-2", Title: "B", Content: big},
		{ID: "rep-3", Title: "C", Content: big},
	}

	batches := engine.batchReports(reports)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	for i, batch := range batches {
		if len(batch) != 1 {
			t.Errorf("batch %d: expected 1 report, got %d", i, len(batch))
		}
	}
}

func TestBatchReportsKeepsSmallReportsTogether(t *testing.T) {
	counter, err := NewTokenCounter()
	if err != nil {
		t.Fatalf("NewTokenCounter failed: %v", err)
	}
	engine := &Engine{counter: counter}

	reports := []common.CommunityReport{
		{ID: "rep-1", Title: "A", Content: "short"},
		{ID: "rep-2", Title: "B", Content: "short"},
	}

	batches := engine.batchReports(reports)
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("expected one batch of 2 reports, got %v", batches)
	}
}
