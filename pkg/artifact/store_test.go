package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
)

func writeTable(t *testing.T, store *Store, documentID, table string, lines []string) {
	t.Helper()
	dir := store.ArtifactsDir(documentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	if err := os.WriteFile(filepath.Join(dir, table), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoadGraphDataMergesDocuments(t *testing.T) {
	store := NewStore(NewStoreParams{OutputDir: t.TempDir()})

	writeTable(t, store, "doc1", TableEntities, []string{
		`{"id":"e1","name":"ACME","type":"organization","degree":2}`,
	})
	writeTable(t, store, "doc1", TableRelationships, []string{
		`{"id":"r1","source_id":"e1","target_id":"e2","relationship_type":"owns","weight":2.5}`,
	})
	writeTable(t, store, "doc1", TableTextUnits, []string{
		`{"id":"c1","text":"chunk one"}`,
	})
	writeTable(t, store, "doc2", TableEntities, []string{
		`{"id":"e2","name":"Widget","type":"product"}`,
	})
	writeTable(t, store, "doc2", TableCommunities, []string{
		`{"id":"com1","title":"Manufacturing","level":0,"size":2}`,
	})

	data, err := store.LoadGraphData(context.Background(), []string{"doc1", "doc2", "missing"})
	if err != nil {
		t.Fatalf("LoadGraphData() error = %v", err)
	}

	if len(data.Entities) != 2 {
		t.Fatalf("len(Entities) = %d, want 2", len(data.Entities))
	}
	if data.Entities[0].ID != "e1" || data.Entities[1].ID != "e2" {
		t.Errorf("entity order = %s, %s, want e1, e2", data.Entities[0].ID, data.Entities[1].ID)
	}
	if len(data.Relationships) != 1 || data.Relationships[0].Weight != 2.5 {
		t.Errorf("Relationships = %+v, want one row with weight 2.5", data.Relationships)
	}
	if len(data.Communities) != 1 || data.Communities[0].Title != "Manufacturing" {
		t.Errorf("Communities = %+v, want Manufacturing", data.Communities)
	}
	if len(data.Chunks) != 1 || data.Chunks[0].DocumentID != "doc1" {
		t.Errorf("Chunks = %+v, want document id backfilled to doc1", data.Chunks)
	}
	if data.GeneratedAt.IsZero() {
		t.Error("GeneratedAt is zero")
	}
}

func TestLoadGraphDataDefaults(t *testing.T) {
	store := NewStore(NewStoreParams{OutputDir: t.TempDir()})

	writeTable(t, store, "doc1", TableEntities, []string{
		`{"id":"e1","name":"Nameless"}`,
	})
	writeTable(t, store, "doc1", TableRelationships, []string{
		`{"id":"r1","source_id":"e1","target_id":"e2"}`,
	})

	data, err := store.LoadGraphData(context.Background(), []string{"doc1"})
	if err != nil {
		t.Fatalf("LoadGraphData() error = %v", err)
	}

	if got := data.Entities[0].Type; got != "unknown" {
		t.Errorf("entity type = %q, want %q", got, "unknown")
	}
	if got := data.Relationships[0].Weight; got != 1.0 {
		t.Errorf("relationship weight = %v, want 1.0", got)
	}
	if got := data.Relationships[0].RelationshipType; got != "related" {
		t.Errorf("relationship type = %q, want %q", got, "related")
	}
}

func TestLoadGraphDataSkipsMalformedRows(t *testing.T) {
	store := NewStore(NewStoreParams{OutputDir: t.TempDir()})

	writeTable(t, store, "doc1", TableEntities, []string{
		`{"id":"e1","name":"Good"}`,
		`{not json at all`,
		``,
		`{"id":"e2","name":"Also good"}`,
	})

	data, err := store.LoadGraphData(context.Background(), []string{"doc1"})
	if err != nil {
		t.Fatalf("LoadGraphData() error = %v", err)
	}
	if len(data.Entities) != 2 {
		t.Errorf("len(Entities) = %d, want 2", len(data.Entities))
	}
}

func TestLoadGraphDataEmpty(t *testing.T) {
	store := NewStore(NewStoreParams{OutputDir: t.TempDir()})

	data, err := store.LoadGraphData(context.Background(), []string{"doc1", "doc2"})
	if err != nil {
		t.Fatalf("LoadGraphData() error = %v", err)
	}

	if len(data.Entities) != 0 || len(data.Relationships) != 0 || len(data.Communities) != 0 || len(data.Chunks) != 0 {
		t.Errorf("LoadGraphData() = %+v, want empty tables", data)
	}
	if data.Entities == nil || data.Relationships == nil {
		t.Error("tables must be empty slices, not nil")
	}
}

func TestLoadCommunityReports(t *testing.T) {
	store := NewStore(NewStoreParams{OutputDir: t.TempDir()})

	writeTable(t, store, "doc1", TableCommunityReports, []string{
		`{"id":"rep1","community_id":"com1","title":"Report one","content":"Summary.","level":0,"rank":7.5}`,
	})
	writeTable(t, store, "doc2", TableEntities, []string{
		`{"id":"e1","name":"No reports here"}`,
	})

	reports, err := store.LoadCommunityReports(context.Background(), []string{"doc1", "doc2", "missing"})
	if err != nil {
		t.Fatalf("LoadCommunityReports() error = %v", err)
	}
	want := common.CommunityReport{ID: "rep1", CommunityID: "com1", Title: "Report one", Content: "Summary.", Level: 0, Rank: 7.5}
	if len(reports) != 1 || reports[0] != want {
		t.Errorf("LoadCommunityReports() = %+v, want [%+v]", reports, want)
	}
}

func TestCounts(t *testing.T) {
	store := NewStore(NewStoreParams{OutputDir: t.TempDir()})

	writeTable(t, store, "doc1", TableEntities, []string{
		`{"id":"e1"}`,
		`{"id":"e2"}`,
	})
	writeTable(t, store, "doc1", TableTextUnits, []string{
		`{"id":"c1"}`,
	})

	counts, err := store.Counts("doc1")
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}

	want := Counts{Chunks: 1, Entities: 2, Relationships: 0, Communities: 0}
	if counts != want {
		t.Errorf("Counts() = %+v, want %+v", counts, want)
	}
}

func TestDelete(t *testing.T) {
	store := NewStore(NewStoreParams{OutputDir: t.TempDir()})

	writeTable(t, store, "doc1", TableEntities, []string{`{"id":"e1"}`})
	if !store.HasArtifacts("doc1") {
		t.Fatal("HasArtifacts() = false before Delete")
	}
	if err := store.Delete("doc1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if store.HasArtifacts("doc1") {
		t.Error("HasArtifacts() = true after Delete")
	}
	if err := store.Delete("doc1"); err != nil {
		t.Errorf("Delete() on missing document error = %v, want nil", err)
	}
}
