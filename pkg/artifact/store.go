package artifact

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/logger"
)

// Artifact table file names produced by the external indexer inside a
// document's artifact directory.
const (
	TableEntities         = "entities.jsonl"
	TableRelationships    = "relationships.jsonl"
	TableCommunities      = "communities.jsonl"
	TableTextUnits        = "text_units.jsonl"
	TableCommunityReports = "community_reports.jsonl"
)

// Counts holds the row counts of a document's artifact tables.
type Counts struct {
	Chunks        int `json:"chunks_count"`
	Entities      int `json:"entities_count"`
	Relationships int `json:"relationships_count"`
	Communities   int `json:"communities_count"`
}

// Store reads the per-document artifact tables written by the external
// indexer. One directory per document, four tables plus community
// reports, JSON lines per row. The store never writes artifacts itself.
type Store struct {
	outputDir string
}

// NewStoreParams contains configuration for creating a Store.
type NewStoreParams struct {
	OutputDir string
}

// NewStore creates a Store rooted at the indexer output directory.
func NewStore(params NewStoreParams) *Store {
	return &Store{outputDir: params.OutputDir}
}

// DocumentDir returns the working directory of a document's pipeline run.
func (s *Store) DocumentDir(documentID string) string {
	return filepath.Join(s.outputDir, documentID)
}

// ArtifactsDir returns the artifact table directory for a document.
func (s *Store) ArtifactsDir(documentID string) string {
	return filepath.Join(s.outputDir, documentID, "output", "artifacts")
}

// HasArtifacts reports whether the artifact directory for a document
// exists.
func (s *Store) HasArtifacts(documentID string) bool {
	info, err := os.Stat(s.ArtifactsDir(documentID))
	return err == nil && info.IsDir()
}

// LoadGraphData loads and concatenates the artifact tables of the given
// documents in encounter order. Documents without an artifact directory
// contribute nothing; ids are assumed globally unique so no cross-document
// deduplication happens.
func (s *Store) LoadGraphData(ctx context.Context, documentIDs []string) (*common.GraphData, error) {
	data := &common.GraphData{
		Entities:      []common.Entity{},
		Relationships: []common.Relationship{},
		Communities:   []common.Community{},
		Chunks:        []common.TextChunk{},
		GeneratedAt:   time.Now().UTC(),
	}

	for _, id := range documentIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.HasArtifacts(id) {
			continue
		}
		dir := s.ArtifactsDir(id)

		entities, err := readTable[common.Entity](filepath.Join(dir, TableEntities))
		if err != nil {
			return nil, fmt.Errorf("failed to load entities for %s: %w", id, err)
		}
		for i := range entities {
			applyEntityDefaults(&entities[i])
		}
		data.Entities = append(data.Entities, entities...)

		relationships, err := readTable[common.Relationship](filepath.Join(dir, TableRelationships))
		if err != nil {
			return nil, fmt.Errorf("failed to load relationships for %s: %w", id, err)
		}
		for i := range relationships {
			applyRelationshipDefaults(&relationships[i])
		}
		data.Relationships = append(data.Relationships, relationships...)

		communities, err := readTable[common.Community](filepath.Join(dir, TableCommunities))
		if err != nil {
			return nil, fmt.Errorf("failed to load communities for %s: %w", id, err)
		}
		data.Communities = append(data.Communities, communities...)

		chunks, err := readTable[common.TextChunk](filepath.Join(dir, TableTextUnits))
		if err != nil {
			return nil, fmt.Errorf("failed to load text units for %s: %w", id, err)
		}
		for i := range chunks {
			if chunks[i].DocumentID == "" {
				chunks[i].DocumentID = id
			}
		}
		data.Chunks = append(data.Chunks, chunks...)
	}

	return data, nil
}

// LoadCommunityReports loads the community report tables of the given
// documents. Documents without artifacts or without a report table
// contribute nothing.
func (s *Store) LoadCommunityReports(ctx context.Context, documentIDs []string) ([]common.CommunityReport, error) {
	reports := []common.CommunityReport{}
	for _, id := range documentIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.HasArtifacts(id) {
			continue
		}
		rows, err := readTable[common.CommunityReport](filepath.Join(s.ArtifactsDir(id), TableCommunityReports))
		if err != nil {
			return nil, fmt.Errorf("failed to load community reports for %s: %w", id, err)
		}
		reports = append(reports, rows...)
	}
	return reports, nil
}

// Counts returns the row counts of the four artifact tables for a
// document. Missing tables count as zero.
func (s *Store) Counts(documentID string) (Counts, error) {
	dir := s.ArtifactsDir(documentID)

	chunks, err := countRows(filepath.Join(dir, TableTextUnits))
	if err != nil {
		return Counts{}, err
	}
	entities, err := countRows(filepath.Join(dir, TableEntities))
	if err != nil {
		return Counts{}, err
	}
	relationships, err := countRows(filepath.Join(dir, TableRelationships))
	if err != nil {
		return Counts{}, err
	}
	communities, err := countRows(filepath.Join(dir, TableCommunities))
	if err != nil {
		return Counts{}, err
	}

	return Counts{
		Chunks:        chunks,
		Entities:      entities,
		Relationships: relationships,
		Communities:   communities,
	}, nil
}

// Delete removes a document's entire working directory, including its
// artifact tables. Missing directories are not an error.
func (s *Store) Delete(documentID string) error {
	return os.RemoveAll(s.DocumentDir(documentID))
}

func applyEntityDefaults(e *common.Entity) {
	if e.Type == "" {
		e.Type = "unknown"
	}
	if e.Degree < 0 {
		e.Degree = 0
	}
}

func applyRelationshipDefaults(r *common.Relationship) {
	if r.Weight <= 0 {
		r.Weight = 1.0
	}
	if r.RelationshipType == "" {
		r.RelationshipType = "related"
	}
}

// readTable decodes one JSON row per line. Malformed rows are skipped:
// a partially corrupt table still contributes its readable rows.
func readTable[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var rows []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(raw, &row); err != nil {
			logger.Warn("[Artifact] Skipping malformed row", "table", filepath.Base(path), "line", line, "err", err)
			continue
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func countRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return count, nil
}
