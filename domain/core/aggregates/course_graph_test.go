package aggregates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courselens-backend/domain/core/entities"
	"courselens-backend/domain/core/valueobjects"
	pkgerrors "courselens-backend/pkg/errors"
)

func mustCourse(t *testing.T, code string) *entities.Course {
	t.Helper()
	course, err := entities.NewCourse(
		valueobjects.MustCourseCode(code),
		"Title for "+code,
		3.0,
		[]entities.Term{entities.TermFall, entities.TermWinter},
		"Description for "+code,
		nil,
	)
	require.NoError(t, err)
	return course
}

func prereq(course, requires string) entities.PrerequisiteEdge {
	return entities.PrerequisiteEdge{
		Course:   valueobjects.MustCourseCode(course),
		Requires: valueobjects.MustCourseCode(requires),
		Kind:     entities.EdgeKindPrereq,
	}
}

func excludes(course, requires string) entities.PrerequisiteEdge {
	return entities.PrerequisiteEdge{
		Course:   valueobjects.MustCourseCode(course),
		Requires: valueobjects.MustCourseCode(requires),
		Kind:     entities.EdgeKindExcludes,
	}
}

func codesOf(courses []*entities.Course) []string {
	codes := make([]string, len(courses))
	for i, c := range courses {
		codes[i] = c.Code().String()
	}
	return codes
}

func codeStrings(codes []valueobjects.CourseCode) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = c.String()
	}
	return out
}

// catalogFixture builds a small computing-science catalog slice:
//
//	CMPUT 174 <- CMPUT 175 <- {CMPUT 201, CMPUT 204}
//	CMPUT 301 requires CMPUT 201 and CMPUT 204
//	CMPUT 366 requires CMPUT 204 and STAT 151
//	CMPUT 365 requires CMPUT 204 and excludes CMPUT 366
func catalogFixture(t *testing.T) *CourseGraph {
	t.Helper()
	courses := []*entities.Course{
		mustCourse(t, "CMPUT 174"),
		mustCourse(t, "CMPUT 175"),
		mustCourse(t, "CMPUT 201"),
		mustCourse(t, "CMPUT 204"),
		mustCourse(t, "CMPUT 301"),
		mustCourse(t, "CMPUT 365"),
		mustCourse(t, "CMPUT 366"),
		mustCourse(t, "STAT 151"),
	}
	edges := []entities.PrerequisiteEdge{
		prereq("CMPUT 175", "CMPUT 174"),
		prereq("CMPUT 201", "CMPUT 175"),
		prereq("CMPUT 204", "CMPUT 175"),
		prereq("CMPUT 301", "CMPUT 201"),
		prereq("CMPUT 301", "CMPUT 204"),
		prereq("CMPUT 366", "CMPUT 204"),
		prereq("CMPUT 366", "STAT 151"),
		prereq("CMPUT 365", "CMPUT 204"),
		excludes("CMPUT 365", "CMPUT 366"),
	}

	graph, err := BuildCourseGraph(courses, edges)
	require.NoError(t, err)
	return graph
}

func TestBuildCourseGraph_CollectsAllViolations(t *testing.T) {
	courses := []*entities.Course{
		mustCourse(t, "CMPUT 101"),
		mustCourse(t, "CMPUT 101"), // duplicate
		mustCourse(t, "CMPUT 102"),
	}
	edges := []entities.PrerequisiteEdge{
		prereq("CMPUT 102", "MATH 999"), // unknown target
		prereq("CMPUT 102", "CMPUT 102"), // self-requirement
		{Course: valueobjects.MustCourseCode("CMPUT 101"), Requires: valueobjects.MustCourseCode("CMPUT 102")}, // missing kind
	}

	graph, err := BuildCourseGraph(courses, edges)

	assert.Nil(t, graph)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsGraphIntegrity(err))

	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	violations, ok := appErr.Details["violations"].([]string)
	require.True(t, ok)
	require.Len(t, violations, 4)
	assert.Contains(t, violations[0], "course CMPUT 102 cannot require itself")
	assert.Contains(t, violations[1], "duplicate course code CMPUT 101")
	assert.Contains(t, violations[2], "edge references unknown course MATH 999")
	assert.Contains(t, violations[3], "invalid edge CMPUT 101 -> CMPUT 102")
}

func TestBuildCourseGraph_SelfRequirement(t *testing.T) {
	courses := []*entities.Course{mustCourse(t, "CMPUT 101")}
	edges := []entities.PrerequisiteEdge{prereq("CMPUT 101", "CMPUT 101")}

	graph, err := BuildCourseGraph(courses, edges)

	assert.Nil(t, graph)
	require.True(t, pkgerrors.IsGraphIntegrity(err))
	appErr := pkgerrors.GetAppError(err)
	violations := appErr.Details["violations"].([]string)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "cannot require itself")
}

func TestBuildCourseGraph_DetectsCycle(t *testing.T) {
	courses := []*entities.Course{
		mustCourse(t, "CMPUT 101"),
		mustCourse(t, "CMPUT 102"),
		mustCourse(t, "CMPUT 103"),
	}
	edges := []entities.PrerequisiteEdge{
		prereq("CMPUT 101", "CMPUT 102"),
		prereq("CMPUT 102", "CMPUT 103"),
		prereq("CMPUT 103", "CMPUT 101"),
	}

	graph, err := BuildCourseGraph(courses, edges)

	assert.Nil(t, graph)
	require.True(t, pkgerrors.IsGraphIntegrity(err))
	appErr := pkgerrors.GetAppError(err)
	violations := appErr.Details["violations"].([]string)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "prerequisite cycle")
	assert.Contains(t, violations[0], "CMPUT 101")
	assert.Contains(t, violations[0], "CMPUT 102")
	assert.Contains(t, violations[0], "CMPUT 103")
}

func TestBuildCourseGraph_DropsDuplicateEdges(t *testing.T) {
	courses := []*entities.Course{
		mustCourse(t, "CMPUT 101"),
		mustCourse(t, "CMPUT 102"),
	}
	edges := []entities.PrerequisiteEdge{
		prereq("CMPUT 102", "CMPUT 101"),
		prereq("CMPUT 102", "CMPUT 101"),
	}

	graph, err := BuildCourseGraph(courses, edges)

	require.NoError(t, err)
	assert.Equal(t, 1, graph.EdgeCount())
}

func TestPrerequisitesOf_Direct(t *testing.T) {
	graph := catalogFixture(t)

	direct, err := graph.PrerequisitesOf(valueobjects.MustCourseCode("CMPUT 301"), false)

	require.NoError(t, err)
	assert.Equal(t, []string{"CMPUT 201", "CMPUT 204"}, codesOf(direct))
}

func TestPrerequisitesOf_TransitiveOrderedByDistance(t *testing.T) {
	graph := catalogFixture(t)

	closure, err := graph.PrerequisitesOf(valueobjects.MustCourseCode("CMPUT 301"), true)

	require.NoError(t, err)
	// Distance one first, then two, then three. Lexical order within a level.
	assert.Equal(t, []string{"CMPUT 201", "CMPUT 204", "CMPUT 175", "CMPUT 174"}, codesOf(closure))
}

func TestPrerequisitesOf_UnknownCourse(t *testing.T) {
	graph := catalogFixture(t)

	_, err := graph.PrerequisitesOf(valueobjects.MustCourseCode("MATH 999"), true)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsUnknownCourse(err))
}

func TestUnlocksOf_Transitive(t *testing.T) {
	graph := catalogFixture(t)

	unlocked, err := graph.UnlocksOf(valueobjects.MustCourseCode("CMPUT 175"), true)

	require.NoError(t, err)
	assert.Equal(t, []string{"CMPUT 201", "CMPUT 204", "CMPUT 301", "CMPUT 365", "CMPUT 366"}, codesOf(unlocked))
}

func TestUnlocksOf_IsInverseOfPrerequisitesOf(t *testing.T) {
	graph := catalogFixture(t)

	for _, code := range graph.CourseCodes() {
		prereqs, err := graph.PrerequisitesOf(code, true)
		require.NoError(t, err)
		for _, p := range prereqs {
			unlocked, err := graph.UnlocksOf(p.Code(), true)
			require.NoError(t, err)
			assert.Contains(t, codesOf(unlocked), code.String(),
				"%s requires %s, so %s must unlock %s", code, p.Code(), p.Code(), code)
		}
	}
}

func TestOverlap_SharedPrerequisites(t *testing.T) {
	graph := catalogFixture(t)

	report, err := graph.Overlap(
		valueobjects.MustCourseCode("CMPUT 301"),
		valueobjects.MustCourseCode("CMPUT 366"),
	)

	require.NoError(t, err)
	assert.Equal(t, []string{"CMPUT 174", "CMPUT 175", "CMPUT 204"}, codeStrings(report.SharedPrerequisites))
	assert.False(t, report.AIsPrerequisiteOfB)
	assert.False(t, report.BIsPrerequisiteOfA)
	assert.False(t, report.MutuallyExclusive)
}

func TestOverlap_OrderingRelation(t *testing.T) {
	graph := catalogFixture(t)

	report, err := graph.Overlap(
		valueobjects.MustCourseCode("CMPUT 175"),
		valueobjects.MustCourseCode("CMPUT 301"),
	)

	require.NoError(t, err)
	assert.True(t, report.AIsPrerequisiteOfB)
	assert.False(t, report.BIsPrerequisiteOfA)
}

func TestOverlap_MutualExclusion(t *testing.T) {
	graph := catalogFixture(t)

	report, err := graph.Overlap(
		valueobjects.MustCourseCode("CMPUT 366"),
		valueobjects.MustCourseCode("CMPUT 365"),
	)

	require.NoError(t, err)
	// The EXCLUDES edge is declared on CMPUT 365; exclusion is symmetric.
	assert.True(t, report.MutuallyExclusive)
}

func TestOverlap_UnknownCourse(t *testing.T) {
	graph := catalogFixture(t)

	_, err := graph.Overlap(
		valueobjects.MustCourseCode("CMPUT 301"),
		valueobjects.MustCourseCode("MATH 999"),
	)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsUnknownCourse(err))
}

func TestShortestPath_PicksLexicallySmallestAmongEqualLengths(t *testing.T) {
	graph := catalogFixture(t)

	// Both CMPUT 301 -> 201 -> 175 -> 174 and 301 -> 204 -> 175 -> 174 have
	// three edges; the 201 branch sorts first.
	path, err := graph.ShortestPath(
		valueobjects.MustCourseCode("CMPUT 301"),
		valueobjects.MustCourseCode("CMPUT 174"),
	)

	require.NoError(t, err)
	assert.Equal(t, []string{"CMPUT 301", "CMPUT 201", "CMPUT 175", "CMPUT 174"}, codesOf(path))
}

func TestShortestPath_SameCourse(t *testing.T) {
	graph := catalogFixture(t)

	path, err := graph.ShortestPath(
		valueobjects.MustCourseCode("CMPUT 301"),
		valueobjects.MustCourseCode("CMPUT 301"),
	)

	require.NoError(t, err)
	assert.Equal(t, []string{"CMPUT 301"}, codesOf(path))
}

func TestShortestPath_NoPath(t *testing.T) {
	graph := catalogFixture(t)

	// Prerequisite edges point upstream; nothing leads from 174 to 301.
	path, err := graph.ShortestPath(
		valueobjects.MustCourseCode("CMPUT 174"),
		valueobjects.MustCourseCode("CMPUT 301"),
	)

	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestPathExists_MatchesShortestPath(t *testing.T) {
	graph := catalogFixture(t)
	codes := graph.CourseCodes()

	for _, from := range codes {
		for _, to := range codes {
			path, err := graph.ShortestPath(from, to)
			require.NoError(t, err)
			exists, err := graph.PathExists(from, to)
			require.NoError(t, err)
			assert.Equal(t, path != nil, exists, "%s -> %s", from, to)
		}
	}
}

func TestCourseGraph_Accessors(t *testing.T) {
	graph := catalogFixture(t)

	assert.Equal(t, 8, graph.NodeCount())
	assert.Equal(t, 9, graph.EdgeCount())
	assert.True(t, graph.HasCourse(valueobjects.MustCourseCode("STAT 151")))
	assert.False(t, graph.HasCourse(valueobjects.MustCourseCode("MATH 999")))

	course, err := graph.Course(valueobjects.MustCourseCode("CMPUT 366"))
	require.NoError(t, err)
	assert.Equal(t, "CMPUT 366", course.Code().String())

	_, err = graph.Course(valueobjects.MustCourseCode("MATH 999"))
	assert.True(t, pkgerrors.IsUnknownCourse(err))
}
