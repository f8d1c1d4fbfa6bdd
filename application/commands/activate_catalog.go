package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"courselens-backend/domain/core/aggregates"
	"courselens-backend/domain/core/entities"
	"courselens-backend/domain/core/valueobjects"
	"courselens-backend/domain/versioning"
	pkgerrors "courselens-backend/pkg/errors"
	"courselens-backend/pkg/observability"
)

// CourseRecord is one course row of a catalog submission
type CourseRecord struct {
	Code           string   `json:"code" validate:"required"`
	Title          string   `json:"title" validate:"required,min=1,max=300"`
	CreditWeight   float64  `json:"credit_weight" validate:"gte=0"`
	TermOfferings  []string `json:"term_offerings" validate:"dive,oneof=fall winter spring summer"`
	Description    string   `json:"description" validate:"max=10000"`
	AssessmentTags []string `json:"assessment_tags" validate:"max=20,dive,min=1,max=40"`
}

// EdgeRecord is one prerequisite or exclusion row of a catalog submission
type EdgeRecord struct {
	Course   string `json:"course" validate:"required"`
	Requires string `json:"requires" validate:"required"`
	Kind     string `json:"kind" validate:"required,oneof=PREREQ EXCLUDES"`
	GroupID  string `json:"group_id"`
	Logic    string `json:"logic" validate:"omitempty,oneof=AND OR"`
	MinGrade string `json:"min_grade"`
}

// ActivateCatalogCommand submits a full catalog for validation and, if it
// passes every integrity check, atomic activation as the serving version.
type ActivateCatalogCommand struct {
	Description string         `json:"description" validate:"max=500"`
	Courses     []CourseRecord `json:"courses" validate:"required,min=1"`
	Edges       []EdgeRecord   `json:"edges"`
}

// Validate validates the command shape. Graph integrity is checked by the
// handler; this only rejects submissions too malformed to attempt a build.
func (cmd ActivateCatalogCommand) Validate() error {
	if len(cmd.Courses) == 0 {
		return errors.New("catalog must contain at least one course")
	}
	return nil
}

// ActivateCatalogHandler builds a course graph from a submission and swaps
// it in as the active snapshot. Activation is all-or-nothing: any integrity
// violation fails the command and the previous version keeps serving.
type ActivateCatalogHandler struct {
	holder  *versioning.SnapshotHolder
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewActivateCatalogHandler creates a new handler instance
func NewActivateCatalogHandler(
	holder *versioning.SnapshotHolder,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ActivateCatalogHandler {
	return &ActivateCatalogHandler{
		holder:  holder,
		metrics: metrics,
		logger:  logger,
	}
}

// Handle executes the activate catalog command
func (h *ActivateCatalogHandler) Handle(ctx context.Context, cmd ActivateCatalogCommand) (*versioning.CatalogVersion, error) {
	// Record-level parse failures are collected the same way graph-level
	// violations are: all of them, so one rejection names every problem.
	var violations []string

	courses := make([]*entities.Course, 0, len(cmd.Courses))
	for _, record := range cmd.Courses {
		course, err := buildCourse(record)
		if err != nil {
			violations = append(violations, fmt.Sprintf("course record %q: %s", record.Code, errorMessage(err)))
			continue
		}
		courses = append(courses, course)
	}

	edges := make([]entities.PrerequisiteEdge, 0, len(cmd.Edges))
	for _, record := range cmd.Edges {
		edge, err := buildEdge(record)
		if err != nil {
			violations = append(violations, fmt.Sprintf("edge record %q -> %q: %s", record.Course, record.Requires, errorMessage(err)))
			continue
		}
		edges = append(edges, edge)
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		h.logger.Warn("Catalog activation rejected",
			zap.Int("violationCount", len(violations)),
			zap.Strings("violations", violations),
		)
		return nil, pkgerrors.NewGraphIntegrityError(violations)
	}

	graph, err := aggregates.BuildCourseGraph(courses, edges)
	if err != nil {
		h.logger.Warn("Catalog activation rejected",
			zap.Int("courseCount", len(courses)),
			zap.Int("edgeCount", len(edges)),
			zap.Error(err),
		)
		return nil, err
	}

	version, err := versioning.NewCatalogVersion(uuid.New().String(), cmd.Description, graph)
	if err != nil {
		return nil, err
	}

	previous, err := h.holder.Swap(version)
	if err != nil {
		return nil, err
	}
	h.metrics.CatalogActivations.Inc()

	previousID := "none"
	if previous != nil {
		previousID = previous.VersionID
	}
	h.logger.Info("Catalog version activated",
		zap.String("versionID", version.VersionID),
		zap.String("previousVersionID", previousID),
		zap.String("checksum", version.Checksum),
		zap.Int("courseCount", version.CourseCount),
		zap.Int("edgeCount", version.EdgeCount),
	)

	return version, nil
}

// errorMessage strips the error-type prefix so violation strings read as
// plain catalog problems rather than nested error chains.
func errorMessage(err error) string {
	var appErr *pkgerrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func buildCourse(record CourseRecord) (*entities.Course, error) {
	code, err := valueobjects.NewCourseCode(record.Code)
	if err != nil {
		return nil, err
	}
	terms := make([]entities.Term, 0, len(record.TermOfferings))
	for _, t := range record.TermOfferings {
		terms = append(terms, entities.Term(t))
	}
	return entities.NewCourse(code, record.Title, record.CreditWeight, terms, record.Description, record.AssessmentTags)
}

func buildEdge(record EdgeRecord) (entities.PrerequisiteEdge, error) {
	course, err := valueobjects.NewCourseCode(record.Course)
	if err != nil {
		return entities.PrerequisiteEdge{}, err
	}
	requires, err := valueobjects.NewCourseCode(record.Requires)
	if err != nil {
		return entities.PrerequisiteEdge{}, err
	}

	var minGrade valueobjects.MinGrade
	if record.MinGrade != "" {
		minGrade, err = valueobjects.NewMinGrade(record.MinGrade)
		if err != nil {
			return entities.PrerequisiteEdge{}, err
		}
	}

	edge := entities.PrerequisiteEdge{
		Course:   course,
		Requires: requires,
		Kind:     entities.EdgeKind(record.Kind),
		GroupID:  record.GroupID,
		Logic:    entities.GroupLogic(record.Logic),
		MinGrade: minGrade,
	}
	if err := edge.Validate(); err != nil {
		return entities.PrerequisiteEdge{}, err
	}
	return edge, nil
}
