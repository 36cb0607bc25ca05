package pgx

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentDBStorage implements store.DocumentStore on top of Postgres
// via pgxpool.
type DocumentDBStorage struct {
	conn *pgxpool.Pool
}

// NewDocumentDBStorageParams contains configuration for creating a
// DocumentDBStorage.
type NewDocumentDBStorageParams struct {
	Conn *pgxpool.Pool
}

// NewDocumentDBStorage creates a registry storage backed by the given
// connection pool.
func NewDocumentDBStorage(params NewDocumentDBStorageParams) *DocumentDBStorage {
	return &DocumentDBStorage{conn: params.Conn}
}
