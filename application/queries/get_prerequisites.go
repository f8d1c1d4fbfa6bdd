package queries

import (
	"context"
	"errors"

	"courselens-backend/application/ports"
	"courselens-backend/domain/core/valueobjects"
)

// GetPrerequisitesQuery asks for the prerequisites of one course, either
// direct only or the full transitive closure.
type GetPrerequisitesQuery struct {
	CourseCode string `json:"course_code" validate:"required"`
	Transitive bool   `json:"transitive"`
}

// Validate validates the query
func (q GetPrerequisitesQuery) Validate() error {
	if q.CourseCode == "" {
		return errors.New("course code is required")
	}
	return nil
}

// GetPrerequisitesHandler serves prerequisite lookups from the active
// catalog snapshot.
type GetPrerequisitesHandler struct {
	snapshots ports.SnapshotProvider
}

// NewGetPrerequisitesHandler creates a new handler instance
func NewGetPrerequisitesHandler(snapshots ports.SnapshotProvider) *GetPrerequisitesHandler {
	return &GetPrerequisitesHandler{snapshots: snapshots}
}

// Handle executes the query
func (h *GetPrerequisitesHandler) Handle(ctx context.Context, q GetPrerequisitesQuery) (*CourseListView, error) {
	code, err := valueobjects.NewCourseCode(q.CourseCode)
	if err != nil {
		return nil, err
	}

	snapshot, err := h.snapshots.Current()
	if err != nil {
		return nil, err
	}

	courses, err := snapshot.Graph.PrerequisitesOf(code, q.Transitive)
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
