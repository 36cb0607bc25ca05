package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/loader"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/loader/doc"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/loader/pdf"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/store"
)

// TextExtractor turns an uploaded document into plain text for the
// external indexer.
type TextExtractor interface {
	ExtractText(ctx context.Context, document *store.Document) ([]byte, error)
}

// LoaderExtractor extracts text through the loader chain: the source
// loader fetches raw bytes (disk or S3) and a format loader parses them
// based on the file extension.
type LoaderExtractor struct {
	source loader.GraphFileLoader
}

// NewLoaderExtractorParams contains configuration for creating a
// LoaderExtractor.
type NewLoaderExtractorParams struct {
	Source loader.GraphFileLoader
}

// NewLoaderExtractor creates a LoaderExtractor reading raw content from
// the given source loader.
func NewLoaderExtractor(params NewLoaderExtractorParams) *LoaderExtractor {
	return &LoaderExtractor{source: params.Source}
}

// ExtractText returns the plain text content of the document, or a
// wrapped common.ErrExtraction when the file cannot be parsed.
func (e *LoaderExtractor) ExtractText(ctx context.Context, document *store.Document) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(document.FileName))

	var fileLoader loader.GraphFileLoader
	switch ext {
	case ".txt":
		fileLoader = e.source
	case ".pdf":
		fileLoader = pdf.NewPDFGraphLoader(e.source)
	case ".docx", ".doc":
		fileLoader = doc.NewDocGraphLoader(e.source)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", common.ErrExtraction, ext)
	}

	file := loader.NewGraphDocumentFile(loader.NewGraphFileParams{
		ID:       document.ID,
		FilePath: document.FileKey,
		Loader:   fileLoader,
	})

	text, err := file.GetText(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrExtraction, document.FileName, err)
	}
	if len(strings.TrimSpace(string(text))) == 0 {
		return nil, fmt.Errorf("%w: %s contains no extractable text", common.ErrExtraction, document.FileName)
	}
	return text, nil
}
