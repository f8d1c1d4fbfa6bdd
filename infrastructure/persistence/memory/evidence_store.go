package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"courselens-backend/application/ports"
	"courselens-backend/domain/core/entities"
)

// EvidenceStore is an in-memory evidence searcher used in development and
// tests. Similarity is cosine similarity against stored embeddings.
type EvidenceStore struct {
	mu     sync.RWMutex
	chunks []entities.EvidenceChunk
}

// NewEvidenceStore creates an empty in-memory store
func NewEvidenceStore() *EvidenceStore {
	return &EvidenceStore{}
}

// Insert adds a chunk. Chunks with a duplicate ID replace the original.
func (s *EvidenceStore) Insert(ctx context.Context, chunk entities.EvidenceChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.chunks {
		if existing.ID == chunk.ID {
			s.chunks[i] = chunk
			return nil
		}
	}
	s.chunks = append(s.chunks, chunk)
	return nil
}

// Search implements ports.EvidenceSearcher
func (s *EvidenceStore) Search(ctx context.Context, embedding []float32, filter ports.SearchFilter, topK int) ([]entities.EvidenceChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []entities.EvidenceChunk
	for _, chunk := range s.chunks {
		if !matches(chunk, filter) {
			continue
		}
		scored := chunk
		scored.Score = cosineSimilarity(embedding, chunk.Embedding)
		results = append(results, scored)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func matches(chunk entities.EvidenceChunk, filter ports.SearchFilter) bool {
	if filter.SourceType != "" && chunk.SourceType != filter.SourceType {
		return false
	}
	if len(filter.CourseCodes) == 0 {
		return true
	}
	for _, code := range filter.CourseCodes {
		if chunk.SourceID == code.String() {
			return true
		}
	}
	return false
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
