package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
)

const (
	maxLocalEntities      = 20
	maxLocalRelationships = 40
)

// LocalContext is the typed context assembled for a local search: the
// entities selected for the query, the relationships among them, and
// the source chunks backing both.
type LocalContext struct {
	Entities      []common.Entity       `json:"entities"`
	Relationships []common.Relationship `json:"relationships"`
	Chunks        []common.TextChunk    `json:"chunks"`
	Text          string                `json:"-"`
}

func (c *LocalContext) SearchMode() string { return ModeLocal }

// GlobalContext is the typed context assembled for a global search.
type GlobalContext struct {
	Reports []common.CommunityReport `json:"reports"`
	Batches int                      `json:"batches"`
	Points  []RatedPoint             `json:"points"`
}

func (c *GlobalContext) SearchMode() string { return ModeGlobal }

// queryTerms splits a query into lowercase terms for entity ranking.
// Short tokens carry no signal and are dropped.
func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r < 0x80
	})

	seen := map[string]bool{}
	terms := []string{}
	for _, f := range fields {
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

func entityScore(entity common.Entity, terms []string) int {
	haystack := strings.ToLower(entity.Name + " " + entity.Description)
	score := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			score++
		}
	}
	return score
}

// buildLocalContext selects the entities most relevant to the query,
// their relationships, and the source chunks behind them, then renders
// the whole selection as prompt text under the token budget.
func buildLocalContext(data *common.GraphData, query string, counter *TokenCounter) *LocalContext {
	terms := queryTerms(query)

	type scored struct {
		entity common.Entity
		score  int
	}
	ranked := make([]scored, 0, len(data.Entities))
	for _, entity := range data.Entities {
		ranked = append(ranked, scored{entity: entity, score: entityScore(entity, terms)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].entity.Degree > ranked[j].entity.Degree
	})

	// With no term overlap at all, fall back to the best-connected
	// entities so the model still sees the graph's core.
	selected := []common.Entity{}
	selectedIDs := map[string]bool{}
	for _, s := range ranked {
		if len(selected) >= maxLocalEntities {
			break
		}
		selected = append(selected, s.entity)
		selectedIDs[s.entity.ID] = true
	}

	relationships := []common.Relationship{}
	for _, rel := range data.Relationships {
		if len(relationships) >= maxLocalRelationships {
			break
		}
		if selectedIDs[rel.SourceID] || selectedIDs[rel.TargetID] {
			relationships = append(relationships, rel)
		}
	}

	chunkByID := map[string]common.TextChunk{}
	for _, chunk := range data.Chunks {
		chunkByID[chunk.ID] = chunk
	}
	chunkSeen := map[string]bool{}
	chunks := []common.TextChunk{}
	addChunks := func(ids []string) {
		for _, id := range ids {
			if chunkSeen[id] {
				continue
			}
			chunk, ok := chunkByID[id]
			if !ok {
				continue
			}
			chunkSeen[id] = true
			chunks = append(chunks, chunk)
		}
	}
	for _, entity := range selected {
		addChunks(entity.SourceChunks)
	}
	for _, rel := range relationships {
		addChunks(rel.SourceChunks)
	}

	return assembleLocalContext(selected, relationships, chunks, counter)
}

// assembleLocalContext renders the selection as sectioned prompt text,
// cutting off each section when the token budget is exhausted. Only the
// rows that made it into the text are kept on the typed context, so
// sources always reflect what the model actually saw.
func assembleLocalContext(
	entities []common.Entity,
	relationships []common.Relationship,
	chunks []common.TextChunk,
	counter *TokenCounter,
) *LocalContext {
	context := &LocalContext{
		Entities:      []common.Entity{},
		Relationships: []common.Relationship{},
		Chunks:        []common.TextChunk{},
	}

	var sb strings.Builder
	used := 0

	appendLine := func(line string) bool {
		cost := counter.Count(line)
		if used+cost > contextTokenBudget {
			return false
		}
		sb.WriteString(line)
		used += cost
		return true
	}

	entityNames := map[string]string{}
	for _, entity := range entities {
		entityNames[entity.ID] = entity.Name
	}

	appendLine("-----Entities-----\n")
	for _, entity := range entities {
		line := fmt.Sprintf("%s (%s): %s\n", entity.Name, entity.Type, entity.Description)
		if !appendLine(line) {
			break
		}
		context.Entities = append(context.Entities, entity)
	}

	appendLine("\n-----Relationships-----\n")
	for _, rel := range relationships {
		source := entityNames[rel.SourceID]
		if source == "" {
			source = rel.SourceID
		}
		target := entityNames[rel.TargetID]
		if target == "" {
			target = rel.TargetID
		}
		line := fmt.Sprintf("%s -[%s]-> %s: %s\n", source, rel.RelationshipType, target, rel.Description)
		if !appendLine(line) {
			break
		}
		context.Relationships = append(context.Relationships, rel)
	}

	appendLine("\n-----Sources-----\n")
	for _, chunk := range chunks {
		line := fmt.Sprintf("[%s] %s\n", chunk.ID, chunk.Text)
		if !appendLine(line) {
			break
		}
		context.Chunks = append(context.Chunks, chunk)
	}

	context.Text = sb.String()
	return context
}
