package queries

import (
	"context"
	"errors"

	"courselens-backend/application/ports"
	"courselens-backend/domain/core/valueobjects"
)

// GetOverlapQuery asks how two courses relate: shared prerequisites,
// ordering constraints, and mutual exclusion.
type GetOverlapQuery struct {
	CourseA string `json:"course_a" validate:"required"`
	CourseB string `json:"course_b" validate:"required"`
}

// Validate validates the query
func (q GetOverlapQuery) Validate() error {
	if q.CourseA == "" || q.CourseB == "" {
		return errors.New("both course codes are required")
	}
	return nil
}

// GetOverlapHandler serves overlap reports from the active snapshot
type GetOverlapHandler struct {
	snapshots ports.SnapshotProvider
}

// NewGetOverlapHandler creates a new handler instance
func NewGetOverlapHandler(snapshots ports.SnapshotProvider) *GetOverlapHandler {
	return &GetOverlapHandler{snapshots: snapshots}
}

// Handle executes the query
func (h *GetOverlapHandler) Handle(ctx context.Context, q GetOverlapQuery) (*OverlapView, error) {
	a, err := valueobjects.NewCourseCode(q.CourseA)
	if err != nil {
		return nil, err
	}
	b, err := valueobjects.NewCourseCode(q.CourseB)
	if err != nil {
		return nil, err
	}

	snapshot, err := h.snapshots.Current()
	if err != nil {
		return nil, err
	}

	report, err := snapshot.Graph.Overlap(a, b)
	if err != nil {
		return nil, err
	}

	view := newOverlapView(report, snapshot.VersionID)
	return &view, nil
}
