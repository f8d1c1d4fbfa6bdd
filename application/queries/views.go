package queries

import (
	"courselens-backend/domain/core/aggregates"
	"courselens-backend/domain/core/entities"
)

// CourseView is the read-model projection of a catalog course
type CourseView struct {
	Code           string   `json:"code"`
	Title          string   `json:"title"`
	CreditWeight   float64  `json:"credit_weight"`
	TermOfferings  []string `json:"term_offerings"`
	Description    string   `json:"description,omitempty"`
	AssessmentTags []string `json:"assessment_tags,omitempty"`
}

func newCourseView(course *entities.Course) CourseView {
	terms := make([]string, 0, len(course.TermOfferings()))
	for _, t := range course.TermOfferings() {
		terms = append(terms, string(t))
	}
	return CourseView{
		Code:           course.Code().String(),
		Title:          course.Title(),
		CreditWeight:   course.CreditWeight(),
		TermOfferings:  terms,
		Description:    course.Description(),
		AssessmentTags: course.AssessmentTags(),
	}
}

func newCourseViews(courses []*entities.Course) []CourseView {
	views := make([]CourseView, 0, len(courses))
	for _, course := range courses {
		views = append(views, newCourseView(course))
	}
	return views
}

// CourseListView is a list of courses for one subject course
type CourseListView struct {
	Course         string       `json:"course"`
	Transitive     bool         `json:"transitive"`
	Courses        []CourseView `json:"courses"`
	CatalogVersion string       `json:"catalog_version"`
}

// OverlapView is the read-model projection of an overlap report
type OverlapView struct {
	CourseA             string   `json:"course_a"`
	CourseB             string   `json:"course_b"`
	SharedPrerequisites []string `json:"shared_prerequisites"`
	AIsPrerequisiteOfB  bool     `json:"a_is_prerequisite_of_b"`
	BIsPrerequisiteOfA  bool     `json:"b_is_prerequisite_of_a"`
	MutuallyExclusive   bool     `json:"mutually_exclusive"`
	CatalogVersion      string   `json:"catalog_version"`
}

func newOverlapView(report *aggregates.OverlapReport, catalogVersion string) OverlapView {
	shared := make([]string, 0, len(report.SharedPrerequisites))
	for _, code := range report.SharedPrerequisites {
		shared = append(shared, code.String())
	}
	return OverlapView{
		CourseA:             report.CourseA.String(),
		CourseB:             report.CourseB.String(),
		SharedPrerequisites: shared,
		AIsPrerequisiteOfB:  report.AIsPrerequisiteOfB,
		BIsPrerequisiteOfA:  report.BIsPrerequisiteOfA,
		MutuallyExclusive:   report.MutuallyExclusive,
		CatalogVersion:      catalogVersion,
	}
}

// PathView is the read-model projection of a prerequisite chain
type PathView struct {
	From           string   `json:"from"`
	To             string   `json:"to"`
	Exists         bool     `json:"exists"`
	Path           []string `json:"path,omitempty"`
	CatalogVersion string   `json:"catalog_version"`
}
