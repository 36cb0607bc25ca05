package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

type GraphFileType string

const (
	GraphFileTypeDocument GraphFileType = "document"
	GraphFileTypeText     GraphFileType = "text"
)

// GraphFile represents a source file that can be turned into plain text
// for the indexing pipeline. The actual file content is retrieved via
// the associated GraphFileLoader.
type GraphFile struct {
	ID       string
	FilePath string
	FileType GraphFileType
	Loader   GraphFileLoader
}

// NewGraphFileParams defines the input parameters for creating a new
// GraphFile instance.
type NewGraphFileParams struct {
	ID       string
	FilePath string
	Loader   GraphFileLoader
}

// NewGraphDocumentFile creates a new GraphFile of type
// GraphFileTypeDocument. This is used for text-based documents such as
// PDFs or Word files that need parsing before use.
func NewGraphDocumentFile(
	params NewGraphFileParams,
) GraphFile {
	return GraphFile{
		ID:       params.ID,
		FilePath: params.FilePath,
		FileType: GraphFileTypeDocument,
		Loader:   params.Loader,
	}
}

// NewGraphTextFile creates a new GraphFile of type GraphFileTypeText
// whose content is already plain text and needs no parsing.
func NewGraphTextFile(
	params NewGraphFileParams,
) GraphFile {
	return GraphFile{
		ID:       params.ID,
		FilePath: params.FilePath,
		FileType: GraphFileTypeText,
		Loader:   params.Loader,
	}
}

// GetText retrieves the raw text content of the file using its Loader.
//
// Example:
//
//	text, err := file.GetText(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(string(text))
func (f *GraphFile) GetText(ctx context.Context) ([]byte, error) {
	return f.Loader.GetFileText(ctx, *f)
}

// GraphFileLoader defines the interface for loading the contents of a GraphFile.
// Implementations may load files from disk, cloud storage, or other sources.
type GraphFileLoader interface {
	GetFileText(ctx context.Context, file GraphFile) ([]byte, error)
}

// CacheKey returns the cache key used by loaders to deduplicate reads
// of the same file.
func CacheKey(file GraphFile) string {
	return fmt.Sprintf("%s:%s", file.ID, file.FilePath)
}

// SupportedExtensions lists the file extensions accepted for upload.
var SupportedExtensions = []string{".txt", ".pdf", ".docx", ".doc"}

// IsSupported reports whether the file name has a supported extension.
func IsSupported(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}
