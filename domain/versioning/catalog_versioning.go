package versioning

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"courselens-backend/domain/core/aggregates"
	pkgerrors "courselens-backend/pkg/errors"
)

// CatalogVersion is an immutable snapshot of one ingestion run: the built
// course graph plus identifying metadata. Snapshots are never mutated after
// creation; a catalog update produces a whole new snapshot.
type CatalogVersion struct {
	VersionID   string                  `json:"version_id"`
	Checksum    string                  `json:"checksum"`
	CourseCount int                     `json:"course_count"`
	EdgeCount   int                     `json:"edge_count"`
	BuiltAt     time.Time               `json:"built_at"`
	Description string                  `json:"description"`
	Graph       *aggregates.CourseGraph `json:"-"`
}

// NewCatalogVersion wraps a built graph into a version snapshot
func NewCatalogVersion(versionID, description string, graph *aggregates.CourseGraph) (*CatalogVersion, error) {
	if graph == nil {
		return nil, pkgerrors.NewValidationError("catalog version requires a built graph")
	}
	if versionID == "" {
		return nil, pkgerrors.NewValidationError("catalog version id is required")
	}

	return &CatalogVersion{
		VersionID:   versionID,
		Checksum:    checksumGraph(graph),
		CourseCount: graph.NodeCount(),
		EdgeCount:   graph.EdgeCount(),
		BuiltAt:     time.Now(),
		Description: description,
		Graph:       graph,
	}, nil
}

// checksumGraph computes a deterministic SHA256 over the graph's course
// codes and edges, in their canonical order.
func checksumGraph(graph *aggregates.CourseGraph) string {
	h := sha256.New()
	for _, code := range graph.CourseCodes() {
		fmt.Fprintf(h, "course:%s\n", code)
	}
	for _, edge := range graph.Edges() {
		fmt.Fprintf(h, "edge:%s:%s->%s:%s:%s:%s\n", edge.Kind, edge.Course, edge.Requires, edge.GroupID, edge.Logic, edge.MinGrade)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHolder publishes the current catalog version to concurrent query
// runs. Swap is atomic: in-flight queries keep whatever snapshot they read
// at the start of their run, new runs observe the new version. There is no
// in-place mutation and therefore no locking on the read path.
type SnapshotHolder struct {
	current atomic.Pointer[CatalogVersion]
}

// NewSnapshotHolder creates an empty holder; Current fails until the first
// successful catalog activation.
func NewSnapshotHolder() *SnapshotHolder {
	return &SnapshotHolder{}
}

// Current returns the active catalog snapshot
func (h *SnapshotHolder) Current() (*CatalogVersion, error) {
	v := h.current.Load()
	if v == nil {
		return nil, pkgerrors.NewNotFoundError("active catalog version")
	}
	return v, nil
}

// Swap atomically publishes a new snapshot and returns the previous one,
// which may be nil on first activation.
func (h *SnapshotHolder) Swap(next *CatalogVersion) (*CatalogVersion, error) {
	if next == nil {
		return nil, pkgerrors.NewValidationError("cannot activate a nil catalog version")
	}
	return h.current.Swap(next), nil
}
