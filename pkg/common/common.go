package common

import "time"

// Entity represents a node in the knowledge graph. An entity can be an
// organization, person, location, or any other relevant concept extracted
// from a document.
//
// Entities are immutable once written to a document's artifact tables.
type Entity struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description,omitempty"`
	Degree      int     `json:"degree"`
	CommunityID string  `json:"community_id,omitempty"`
	X           float64 `json:"x,omitempty"`
	Y           float64 `json:"y,omitempty"`

	Attributes      map[string]any `json:"attributes,omitempty"`
	SourceChunks    []string       `json:"source_chunks,omitempty"`
	ConfidenceScore float64        `json:"confidence_score,omitempty"`
}

// Relationship represents a directed edge between two entities. Source and
// target reference entity ids loaded from the same set of documents.
type Relationship struct {
	ID               string  `json:"id"`
	SourceID         string  `json:"source_id"`
	TargetID         string  `json:"target_id"`
	RelationshipType string  `json:"relationship_type"`
	Description      string  `json:"description,omitempty"`
	Weight           float64 `json:"weight"`

	SourceChunks []string `json:"source_chunks,omitempty"`
}

// Community is a detected cluster of related entities. Level is the depth
// in the community hierarchy, with 0 being the root level.
type Community struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Level       int      `json:"level"`
	Size        int      `json:"size"`
	Entities    []string `json:"entities,omitempty"`
}

// CommunityReport is the generated summary of a community, consumed by
// global search. Reports are produced by the external indexer alongside
// the community table.
type CommunityReport struct {
	ID          string `json:"id"`
	CommunityID string `json:"community_id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Level       int    `json:"level"`
	Rank        float64 `json:"rank"`
}

// TextChunk is a contiguous segment of document text. Chunks are the
// provenance units for entities and relationships.
type TextChunk struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	DocumentID string    `json:"document_id"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// GraphData is the aggregate read-only view over the artifact tables of a
// set of documents. It is rebuilt per request and never persisted.
type GraphData struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	Communities   []Community    `json:"communities"`
	Chunks        []TextChunk    `json:"chunks"`
	GeneratedAt   time.Time      `json:"generated_at"`
}
