package ports

import (
	"context"
	"time"

	"courselens-backend/domain/core/entities"
	"courselens-backend/domain/core/valueobjects"
	"courselens-backend/domain/versioning"
)

// SearchFilter restricts a vector search by chunk metadata. A zero filter
// means unfiltered search across the whole store.
type SearchFilter struct {
	// CourseCodes limits results to chunks whose source course is one of
	// the given codes. Review chunks match on the course they review.
	CourseCodes []valueobjects.CourseCode

	// SourceType limits results to one source type when non-empty.
	SourceType entities.SourceType
}

// IsZero reports whether the filter imposes no restriction
func (f SearchFilter) IsZero() bool {
	return len(f.CourseCodes) == 0 && f.SourceType == ""
}

// EvidenceSearcher is the query contract of the Evidence Store collaborator.
// This is a port in hexagonal architecture - the application doesn't know
// about the implementation.
type EvidenceSearcher interface {
	// Search returns up to topK chunks ordered by descending similarity to
	// the given embedding, each carrying its score and source descriptor.
	Search(ctx context.Context, embedding []float32, filter SearchFilter, topK int) ([]entities.EvidenceChunk, error)
}

// Embedder produces the query embedding used for vector search
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator is the generation capability, treated as a black box with
// unbounded latency. Callers bound it with a context deadline.
type Generator interface {
	Generate(ctx context.Context, groundedContext string, instructions string) (string, error)
}

// Cache stores small string values with a TTL, keyed by caller-built keys
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// SnapshotProvider yields the active catalog version for a query run.
// A run reads the snapshot once at its start and uses it throughout, so a
// concurrent catalog swap never affects in-flight queries.
type SnapshotProvider interface {
	Current() (*versioning.CatalogVersion, error)
}

// RateLimiter gates calls to the generation capability
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
