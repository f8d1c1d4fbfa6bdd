package pgvector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements bring the evidence store up to the current layout.
// Statements are idempotent so startup can run them unconditionally.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS evidence_chunks (
		id          TEXT PRIMARY KEY,
		source_type TEXT NOT NULL,
		source_id   TEXT NOT NULL,
		content     TEXT NOT NULL,
		embedding   vector(768) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS evidence_chunks_source_id_idx ON evidence_chunks (source_id)`,
	`CREATE INDEX IF NOT EXISTS evidence_chunks_source_type_idx ON evidence_chunks (source_type)`,
	`CREATE INDEX IF NOT EXISTS evidence_chunks_embedding_idx
		ON evidence_chunks USING hnsw (embedding vector_cosine_ops)`,
}

// EnsureSchema applies the evidence store schema
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
