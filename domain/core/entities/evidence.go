package entities

import (
	"fmt"

	"courselens-backend/domain/core/valueobjects"
)

// SourceType identifies where an evidence chunk came from
type SourceType string

const (
	SourceCatalog SourceType = "catalog"
	SourceReview  SourceType = "review"
	// SourceGraph marks structural facts derived from graph queries rather
	// than retrieved text.
	SourceGraph SourceType = "graph"
)

// EvidenceChunk is a semantic segment of source text with its embedding.
// Chunks are immutable after creation; ID is stable across retrievals so
// deduplication and citation both key on it.
type EvidenceChunk struct {
	ID         string     `json:"id"`
	SourceType SourceType `json:"source_type"`
	// SourceID is a course code for catalog chunks, a review id for reviews.
	SourceID  string    `json:"source_id"`
	Embedding []float32 `json:"-"`
	Text      string    `json:"text"`
	// Score is the similarity score assigned by the retrieval that produced
	// this chunk. It is not part of the chunk's identity.
	Score float64 `json:"score"`
}

// FactKind categorizes a structural fact derived from a graph query
type FactKind string

const (
	FactPrerequisites FactKind = "prerequisites"
	FactUnlocks       FactKind = "unlocks"
	FactOverlap       FactKind = "overlap"
	FactPath          FactKind = "path"
)

// StructuralFact is an exact fact produced mechanically from a graph query.
// Facts are never similarity-scored and always outrank text chunks when a
// bundle must be truncated.
type StructuralFact struct {
	Kind    FactKind                  `json:"kind"`
	Courses []valueobjects.CourseCode `json:"courses"`
	Text    string                    `json:"text"`
}

// FactID returns a stable identifier for provenance tracking
func (f StructuralFact) FactID() string {
	id := "graph:" + string(f.Kind)
	for _, c := range f.Courses {
		id += ":" + c.String()
	}
	return id
}

// EvidenceBundle is the ordered evidence selected for one query: structural
// facts first, then text chunks ranked by descending similarity. Every
// element carries provenance; the grounding contract requires each claim in
// a synthesized answer to trace back to one of these elements.
type EvidenceBundle struct {
	QueryID        string           `json:"query_id"`
	CatalogVersion string           `json:"catalog_version"`
	Facts          []StructuralFact `json:"facts"`
	Chunks         []EvidenceChunk  `json:"chunks"`
	// Degraded marks a bundle assembled after evidence store retries were
	// exhausted: structural facts only, never silently treated as complete.
	Degraded bool `json:"degraded"`
	// MentionedCourses are the catalog-verified course mentions extracted
	// from the query, used for coverage computation downstream.
	MentionedCourses []valueobjects.CourseCode `json:"mentioned_courses"`
}

// IsEmpty reports whether the bundle holds no evidence at all
func (b *EvidenceBundle) IsEmpty() bool {
	return len(b.Facts) == 0 && len(b.Chunks) == 0
}

// Size returns the total character size of all included evidence text
func (b *EvidenceBundle) Size() int {
	size := 0
	for _, f := range b.Facts {
		size += len(f.Text)
	}
	for _, c := range b.Chunks {
		size += len(c.Text)
	}
	return size
}

// Citation maps a token used in generated text to its evidence source
type Citation struct {
	Token      string     `json:"token"`
	SourceType SourceType `json:"source_type"`
	SourceID   string     `json:"source_id"`
}

// Answer is the synthesis output paired with the exact evidence bundle it
// was built from. Coverage is the fraction of the question's sub-intents
// addressed by at least one evidence item.
type Answer struct {
	Text      string          `json:"text"`
	Citations []Citation      `json:"citations"`
	Coverage  float64         `json:"coverage"`
	Degraded  bool            `json:"degraded"`
	Bundle    *EvidenceBundle `json:"bundle,omitempty"`
}

// String returns a short human-readable summary for logging
func (a *Answer) String() string {
	return fmt.Sprintf("answer(%d chars, %d citations, coverage=%.2f, degraded=%t)",
		len(a.Text), len(a.Citations), a.Coverage, a.Degraded)
}
