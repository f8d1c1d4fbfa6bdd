package pgvector

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"courselens-backend/application/ports"
	"courselens-backend/domain/core/entities"
)

// EvidenceStore serves similarity search over catalog and review chunks
// stored in Postgres with the pgvector extension. Similarity is cosine
// distance; returned scores are 1 - distance so higher is better.
type EvidenceStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewEvidenceStore creates an evidence store over an existing pool
func NewEvidenceStore(pool *pgxpool.Pool, logger *zap.Logger) *EvidenceStore {
	return &EvidenceStore{
		pool:   pool,
		logger: logger,
	}
}

// Connect opens a pgx pool against the given DSN
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return pool, nil
}

// Search implements ports.EvidenceSearcher
func (s *EvidenceStore) Search(ctx context.Context, embedding []float32, filter ports.SearchFilter, topK int) ([]entities.EvidenceChunk, error) {
	query, args := buildSearchQuery(embedding, filter, topK)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("evidence search failed: %w", err)
	}
	defer rows.Close()

	var chunks []entities.EvidenceChunk
	for rows.Next() {
		var chunk entities.EvidenceChunk
		var sourceType string
		var distance float64
		if err := rows.Scan(&chunk.ID, &sourceType, &chunk.SourceID, &chunk.Text, &distance); err != nil {
			return nil, fmt.Errorf("evidence row scan failed: %w", err)
		}
		chunk.SourceType = entities.SourceType(sourceType)
		chunk.Score = 1 - distance
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evidence search failed: %w", err)
	}

	return chunks, nil
}

// Insert adds one chunk with its embedding. Used by catalog ingestion
// tooling; the query path is read-only.
func (s *EvidenceStore) Insert(ctx context.Context, chunk entities.EvidenceChunk) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO evidence_chunks (id, source_type, source_id, content, embedding)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   source_type = EXCLUDED.source_type,
		   source_id = EXCLUDED.source_id,
		   content = EXCLUDED.content,
		   embedding = EXCLUDED.embedding`,
		chunk.ID, string(chunk.SourceType), chunk.SourceID, chunk.Text, pgvector.NewVector(chunk.Embedding))
	if err != nil {
		return fmt.Errorf("evidence insert failed: %w", err)
	}
	return nil
}

// buildSearchQuery assembles the similarity query with optional metadata
// filters. $1 is always the query embedding.
func buildSearchQuery(embedding []float32, filter ports.SearchFilter, topK int) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, source_type, source_id, content, embedding <=> $1 AS distance FROM evidence_chunks`)

	args := []interface{}{pgvector.NewVector(embedding)}
	var conds []string

	if len(filter.CourseCodes) > 0 {
		codes := make([]string, 0, len(filter.CourseCodes))
		for _, code := range filter.CourseCodes {
			codes = append(codes, code.String())
		}
		args = append(args, codes)
		conds = append(conds, fmt.Sprintf("source_id = ANY($%d)", len(args)))
	}
	if filter.SourceType != "" {
		args = append(args, string(filter.SourceType))
		conds = append(conds, fmt.Sprintf("source_type = $%d", len(args)))
	}

	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	args = append(args, topK)
	sb.WriteString(fmt.Sprintf(" ORDER BY distance LIMIT $%d", len(args)))

	return sb.String(), args
}
