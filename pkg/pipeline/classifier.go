package pipeline

import (
	"strings"

	"github.com/OFFIS-RIT/ariadne/backend/pkg/progress"
)

// StepClassifier maps one line of indexer output to a pipeline step.
// Classification is best-effort: the external indexer only logs free
// text, so unrecognized lines are ignored and progress simply stays at
// the last known step.
type StepClassifier interface {
	Classify(line string) (step string, percentage float64, ok bool)
}

type stepKeywords struct {
	step       string
	percentage float64
	keywords   []string
}

// KeywordClassifier classifies indexer output lines by substring match.
// Later pipeline phases are checked first so a line mentioning several
// phases maps to the furthest one.
type KeywordClassifier struct {
	rules []stepKeywords
}

// NewKeywordClassifier creates a classifier with the default keyword
// rules for the external graph indexer's workflow names.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		rules: []stepKeywords{
			{
				step:       progress.StepFinalizing,
				percentage: 95,
				keywords:   []string{"create_final", "generate_text_embeddings", "finalizing"},
			},
			{
				step:       progress.StepCommunityDetection,
				percentage: 90,
				keywords:   []string{"community", "communities", "cluster_graph", "leiden"},
			},
			{
				step:       progress.StepRelationshipExtraction,
				percentage: 80,
				keywords:   []string{"relationship", "extract_graph_edges", "summarize_descriptions"},
			},
			{
				step:       progress.StepEntityExtraction,
				percentage: 60,
				keywords:   []string{"entity", "entities", "extract_graph"},
			},
			{
				step:       progress.StepChunking,
				percentage: 20,
				keywords:   []string{"chunk", "create_base_text_units", "text_units"},
			},
		},
	}
}

// Classify returns the step a log line belongs to, or ok=false when no
// rule matches.
func (c *KeywordClassifier) Classify(line string) (string, float64, bool) {
	lower := strings.ToLower(line)
	for _, rule := range c.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.step, rule.percentage, true
			}
		}
	}
	return "", 0, false
}
