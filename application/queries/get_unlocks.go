package queries

import (
	"context"
	"errors"

	"courselens-backend/application/ports"
	"courselens-backend/domain/core/valueobjects"
)

// GetUnlocksQuery asks which courses a given course unlocks, directly or
// through the full downstream closure.
type GetUnlocksQuery struct {
	CourseCode string `json:"course_code" validate:"required"`
	Transitive bool   `json:"transitive"`
}

// Validate validates the query
func (q GetUnlocksQuery) Validate() error {
	if q.CourseCode == "" {
		return errors.New("course code is required")
	}
	return nil
}

// GetUnlocksHandler serves downstream lookups from the active snapshot
type GetUnlocksHandler struct {
	snapshots ports.SnapshotProvider
}

// NewGetUnlocksHandler creates a new handler instance
func NewGetUnlocksHandler(snapshots ports.SnapshotProvider) *GetUnlocksHandler {
	return &GetUnlocksHandler{snapshots: snapshots}
}

// Handle executes the query
func (h *GetUnlocksHandler) Handle(ctx context.Context, q GetUnlocksQuery) (*CourseListView, error) {
	code, err := valueobjects.NewCourseCode(q.CourseCode)
	if err != nil {
		return nil, err
	}

	snapshot, err := h.snapshots.Current()
	if err != nil {
		return nil, err
	}

	courses, err := snapshot.Graph.UnlocksOf(code, q.Transitive)
	if err != nil {
		return nil, err
	}

	return &CourseListView{
		Course:         code.String(),
		Transitive:     q.Transitive,
		Courses:        newCourseViews(courses),
		CatalogVersion: snapshot.VersionID,
	}, nil
}
