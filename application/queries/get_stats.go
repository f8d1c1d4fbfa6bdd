package queries

import (
	"context"
	"time"

	"courselens-backend/application/ports"
)

// GetStatsQuery asks for a summary of the active catalog version
type GetStatsQuery struct{}

// Validate validates the query
func (q GetStatsQuery) Validate() error { return nil }

// StatsView summarizes the active catalog version for operators
type StatsView struct {
	CatalogVersion string    `json:"catalog_version"`
	Checksum       string    `json:"checksum"`
	Description    string    `json:"description,omitempty"`
	CourseCount    int       `json:"course_count"`
	EdgeCount      int       `json:"edge_count"`
	BuiltAt        time.Time `json:"built_at"`
}

// GetStatsHandler serves catalog statistics from the active snapshot
type GetStatsHandler struct {
	snapshots ports.SnapshotProvider
}

// NewGetStatsHandler creates a new handler instance
func NewGetStatsHandler(snapshots ports.SnapshotProvider) *GetStatsHandler {
	return &GetStatsHandler{snapshots: snapshots}
}

// Handle executes the query
func (h *GetStatsHandler) Handle(ctx context.Context, q GetStatsQuery) (*StatsView, error) {
	snapshot, err := h.snapshots.Current()
	if err != nil {
		return nil, err
	}
	return &StatsView{
		CatalogVersion: snapshot.VersionID,
		Checksum:       snapshot.Checksum,
		Description:    snapshot.Description,
		CourseCount:    snapshot.CourseCount,
		EdgeCount:      snapshot.EdgeCount,
		BuiltAt:        snapshot.BuiltAt,
	}, nil
}
