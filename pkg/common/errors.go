package common

import "errors"

// Error categories shared across the indexing and query packages. Callers
// match with errors.Is after unwrapping.
var (
	// ErrNotFound marks an unknown document or progress record.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState marks an operation rejected because the document is
	// not in the required source state (e.g. cancel on a completed
	// document). No state is mutated when it is returned.
	ErrInvalidState = errors.New("invalid state")

	// ErrExtraction marks unreadable or unsupported source content.
	ErrExtraction = errors.New("extraction failed")

	// ErrPipelineExecution marks a failed external indexer run: non-zero
	// exit, or success without artifacts.
	ErrPipelineExecution = errors.New("pipeline execution failed")

	// ErrQuery marks a search engine failure. Always wrapped with context
	// before it reaches the caller.
	ErrQuery = errors.New("query failed")
)
