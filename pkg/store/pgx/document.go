package pgx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/store"

	"github.com/jackc/pgx/v5"
)

const documentColumns = `id, file_name, original_name, file_key, size_bytes, content_type,
	status, error_message, chunks_count, entities_count, relationships_count,
	communities_count, upload_date, indexed_at`

func scanDocument(row pgx.Row) (*store.Document, error) {
	var doc store.Document
	err := row.Scan(
		&doc.ID,
		&doc.FileName,
		&doc.OriginalName,
		&doc.FileKey,
		&doc.Size,
		&doc.ContentType,
		&doc.Status,
		&doc.ErrorMessage,
		&doc.ChunksCount,
		&doc.EntitiesCount,
		&doc.RelationshipsCount,
		&doc.CommunitiesCount,
		&doc.UploadDate,
		&doc.IndexedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (s *DocumentDBStorage) CreateDocument(ctx context.Context, doc *store.Document) error {
	if doc.UploadDate.IsZero() {
		doc.UploadDate = time.Now().UTC()
	}
	if doc.Status == "" {
		doc.Status = store.StatusUploaded
	}

	_, err := s.conn.Exec(ctx, `
		INSERT INTO documents (
			id, file_name, original_name, file_key, size_bytes, content_type,
			status, error_message, upload_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID,
		doc.FileName,
		doc.OriginalName,
		doc.FileKey,
		doc.Size,
		doc.ContentType,
		doc.Status,
		doc.ErrorMessage,
		doc.UploadDate,
	)
	if err != nil {
		return fmt.Errorf("failed to create document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *DocumentDBStorage) GetDocument(ctx context.Context, id string) (*store.Document, error) {
	row := s.conn.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return doc, nil
}

func (s *DocumentDBStorage) ListDocuments(ctx context.Context, params store.ListDocumentsParams) ([]store.Document, int, error) {
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	var total int
	var rows pgx.Rows
	var err error

	if params.Status != "" {
		if err := s.conn.QueryRow(ctx,
			`SELECT COUNT(*) FROM documents WHERE status = $1`, params.Status,
		).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to count documents: %w", err)
		}
		rows, err = s.conn.Query(ctx,
			`SELECT `+documentColumns+` FROM documents
			WHERE status = $1
			ORDER BY upload_date DESC
			LIMIT $2 OFFSET $3`,
			params.Status, limit, offset)
	} else {
		if err := s.conn.QueryRow(ctx,
			`SELECT COUNT(*) FROM documents`,
		).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to count documents: %w", err)
		}
		rows, err = s.conn.Query(ctx,
			`SELECT `+documentColumns+` FROM documents
			ORDER BY upload_date DESC
			LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}

	return docs, total, nil
}

func (s *DocumentDBStorage) ListDocumentsByStatus(ctx context.Context, statuses []string) ([]store.Document, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		WHERE status = ANY($1)
		ORDER BY upload_date ASC`,
		statuses)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents by status: %w", err)
	}
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list documents by status: %w", err)
	}

	return docs, nil
}

func (s *DocumentDBStorage) UpdateDocumentStatus(ctx context.Context, id string, status string, errorMessage string) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE documents SET status = $2, error_message = $3 WHERE id = $1`,
		id, status, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update document %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (s *DocumentDBStorage) CompleteDocument(ctx context.Context, id string, counts store.IndexCounts, indexedAt time.Time) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE documents SET
			status = $2,
			error_message = '',
			chunks_count = $3,
			entities_count = $4,
			relationships_count = $5,
			communities_count = $6,
			indexed_at = $7
		WHERE id = $1`,
		id,
		store.StatusCompleted,
		counts.Chunks,
		counts.Entities,
		counts.Relationships,
		counts.Communities,
		indexedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to complete document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (s *DocumentDBStorage) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.conn.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	return nil
}
