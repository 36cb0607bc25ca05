package query

import (
	"unicode/utf8"

	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
)

const previewLength = 200

// previewText shortens text for source listings. The cut backs up to a
// rune boundary so multi-byte text never yields an invalid preview.
func previewText(text string) string {
	if len(text) <= previewLength {
		return text
	}
	cut := previewLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

// chunkSources builds provenance references from the text chunks that
// entered the answer context.
func chunkSources(chunks []common.TextChunk) []Source {
	sources := make([]Source, 0, len(chunks))
	for _, chunk := range chunks {
		sources = append(sources, Source{
			ID:         chunk.ID,
			DocumentID: chunk.DocumentID,
			Preview:    previewText(chunk.Text),
		})
	}
	return sources
}

// reportSources builds provenance references from the community
// reports consumed by a global search.
func reportSources(reports []common.CommunityReport) []Source {
	sources := make([]Source, 0, len(reports))
	for _, report := range reports {
		sources = append(sources, Source{
			ID:      report.ID,
			Title:   report.Title,
			Preview: previewText(report.Content),
		})
	}
	return sources
}
