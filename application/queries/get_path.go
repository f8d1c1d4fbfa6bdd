package queries

import (
	"context"
	"errors"

	"courselens-backend/application/ports"
	"courselens-backend/domain/core/valueobjects"
)

// GetPathQuery asks for the shortest prerequisite chain from one course to
// another over the directed prerequisite edges.
type GetPathQuery struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

// Validate validates the query
func (q GetPathQuery) Validate() error {
	if q.From == "" || q.To == "" {
		return errors.New("both endpoints are required")
	}
	return nil
}

// GetPathHandler serves prerequisite chain lookups from the active snapshot
type GetPathHandler struct {
	snapshots ports.SnapshotProvider
}

// NewGetPathHandler creates a new handler instance
func NewGetPathHandler(snapshots ports.SnapshotProvider) *GetPathHandler {
	return &GetPathHandler{snapshots: snapshots}
}

// Handle executes the query
func (h *GetPathHandler) Handle(ctx context.Context, q GetPathQuery) (*PathView, error) {
	from, err := valueobjects.NewCourseCode(q.From)
	if err != nil {
		return nil, err
	}
	to, err := valueobjects.NewCourseCode(q.To)
	if err != nil {
		return nil, err
	}

	snapshot, err := h.snapshots.Current()
	if err != nil {
		return nil, err
	}

	courses, err := snapshot.Graph.ShortestPath(from, to)
	if err != nil {
		return nil, err
	}

	view := &PathView{
		From:           from.String(),
		To:             to.String(),
		Exists:         courses != nil,
		CatalogVersion: snapshot.VersionID,
	}
	for _, course := range courses {
		view.Path = append(view.Path, course.Code().String())
	}
	return view, nil
}
