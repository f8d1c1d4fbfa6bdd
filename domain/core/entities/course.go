package entities

import (
	"courselens-backend/domain/core/valueobjects"
	pkgerrors "courselens-backend/pkg/errors"
)

// Term represents a term in which a course is offered
type Term string

const (
	TermFall   Term = "fall"
	TermWinter Term = "winter"
	TermSpring Term = "spring"
	TermSummer Term = "summer"
)

// Course is an immutable catalog entry. Courses are created by catalog
// ingestion and never mutated within a catalog version; identity is the
// course code within that version.
type Course struct {
	code           valueobjects.CourseCode
	title          string
	creditWeight   float64
	termOfferings  []Term
	description    string
	assessmentTags []string
}

// NewCourse creates a course entity with validation
func NewCourse(
	code valueobjects.CourseCode,
	title string,
	creditWeight float64,
	termOfferings []Term,
	description string,
	assessmentTags []string,
) (*Course, error) {
	if code.IsZero() {
		return nil, pkgerrors.NewValidationError("course code is required")
	}
	if title == "" {
		return nil, pkgerrors.NewValidationError("course title is required")
	}
	if creditWeight < 0 {
		return nil, pkgerrors.NewValidationError("credit weight cannot be negative")
	}

	// Copy slices so the entity stays immutable even if callers reuse theirs.
	terms := make([]Term, len(termOfferings))
	copy(terms, termOfferings)
	tags := make([]string, len(assessmentTags))
	copy(tags, assessmentTags)

	return &Course{
		code:           code,
		title:          title,
		creditWeight:   creditWeight,
		termOfferings:  terms,
		description:    description,
		assessmentTags: tags,
	}, nil
}

// Code returns the course code
func (c *Course) Code() valueobjects.CourseCode {
	return c.code
}

// Title returns the course title
func (c *Course) Title() string {
	return c.title
}

// CreditWeight returns the credit weight
func (c *Course) CreditWeight() float64 {
	return c.creditWeight
}

// TermOfferings returns the terms in which the course is offered
func (c *Course) TermOfferings() []Term {
	terms := make([]Term, len(c.termOfferings))
	copy(terms, c.termOfferings)
	return terms
}

// Description returns the free-text catalog description
func (c *Course) Description() string {
	return c.description
}

// AssessmentTags returns the assessment-style tags
func (c *Course) AssessmentTags() []string {
	tags := make([]string, len(c.assessmentTags))
	copy(tags, c.assessmentTags)
	return tags
}

// EdgeKind categorizes the relationship a prerequisite edge expresses
type EdgeKind string

const (
	// EdgeKindPrereq means the course requires the target course.
	EdgeKindPrereq EdgeKind = "PREREQ"
	// EdgeKindExcludes means the course cannot be taken with the target.
	EdgeKindExcludes EdgeKind = "EXCLUDES"
)

// GroupLogic expresses how edges sharing a group combine
type GroupLogic string

const (
	GroupLogicAnd GroupLogic = "AND"
	GroupLogicOr  GroupLogic = "OR"
)

// PrerequisiteEdge is a directed relation: Course requires (or excludes)
// Requires. Edges sharing a non-empty GroupID combine under GroupLogic,
// which models requirements like "B AND (C OR D)".
type PrerequisiteEdge struct {
	Course   valueobjects.CourseCode
	Requires valueobjects.CourseCode
	Kind     EdgeKind
	GroupID  string
	Logic    GroupLogic
	MinGrade valueobjects.MinGrade
}

// Validate checks structural validity of a single edge record
func (e PrerequisiteEdge) Validate() error {
	if e.Course.IsZero() || e.Requires.IsZero() {
		return pkgerrors.NewValidationError("edge endpoints are required")
	}
	switch e.Kind {
	case EdgeKindPrereq, EdgeKindExcludes:
	case "":
		return pkgerrors.NewValidationError("edge kind is required")
	default:
		return pkgerrors.NewValidationError("unrecognized edge kind: " + string(e.Kind))
	}
	if e.GroupID != "" && e.Logic != GroupLogicAnd && e.Logic != GroupLogicOr {
		return pkgerrors.NewValidationError("grouped edges require AND or OR logic")
	}
	return nil
}
