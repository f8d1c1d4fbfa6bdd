package aggregates

import (
	"fmt"
	"sort"

	"courselens-backend/domain/core/entities"
	"courselens-backend/domain/core/valueobjects"
	pkgerrors "courselens-backend/pkg/errors"
)

// CourseGraph is the aggregate root for one catalog version's prerequisite
// structure. It holds an explicit node table (code to Course) plus the edge
// list, with derived forward and reverse adjacency indices. The graph is
// built once per catalog version and is read-only afterwards, so concurrent
// queries need no locking.
type CourseGraph struct {
	courses map[valueobjects.CourseCode]*entities.Course
	edges   []entities.PrerequisiteEdge

	// forward maps a course to the courses it requires; reverse maps a
	// course to the courses it unlocks. Both hold PREREQ edges only and are
	// kept lexically sorted for deterministic traversal.
	forward  map[valueobjects.CourseCode][]valueobjects.CourseCode
	reverse  map[valueobjects.CourseCode][]valueobjects.CourseCode
	excludes map[valueobjects.CourseCode][]valueobjects.CourseCode
}

// OverlapReport describes the structural relationship between two courses
type OverlapReport struct {
	CourseA             valueobjects.CourseCode   `json:"course_a"`
	CourseB             valueobjects.CourseCode   `json:"course_b"`
	SharedPrerequisites []valueobjects.CourseCode `json:"shared_prerequisites"`
	// AIsPrerequisiteOfB is true when A appears in B's transitive
	// prerequisite closure, and symmetrically for BIsPrerequisiteOfA.
	AIsPrerequisiteOfB bool `json:"a_is_prerequisite_of_b"`
	BIsPrerequisiteOfA bool `json:"b_is_prerequisite_of_a"`
	// MutuallyExclusive is true when either course carries an EXCLUDES
	// edge naming the other.
	MutuallyExclusive bool `json:"mutually_exclusive"`
}

// BuildCourseGraph validates and indexes a catalog's courses and edges.
// Every integrity violation found is collected and reported together in a
// single GraphIntegrityError: duplicate codes, malformed edges, edges
// referencing unknown courses, self-requirements, and prerequisite cycles
// (each reported as the minimal list of course codes forming it). A graph
// with any violation must never serve queries.
func BuildCourseGraph(courses []*entities.Course, edges []entities.PrerequisiteEdge) (*CourseGraph, error) {
	g := &CourseGraph{
		courses:  make(map[valueobjects.CourseCode]*entities.Course, len(courses)),
		forward:  make(map[valueobjects.CourseCode][]valueobjects.CourseCode),
		reverse:  make(map[valueobjects.CourseCode][]valueobjects.CourseCode),
		excludes: make(map[valueobjects.CourseCode][]valueobjects.CourseCode),
	}

	var violations []string

	for _, course := range courses {
		if course == nil {
			violations = append(violations, "nil course record")
			continue
		}
		if _, exists := g.courses[course.Code()]; exists {
			violations = append(violations, fmt.Sprintf("duplicate course code %s", course.Code()))
			continue
		}
		g.courses[course.Code()] = course
	}

	seenEdges := make(map[string]bool, len(edges))
	for _, edge := range edges {
		if err := edge.Validate(); err != nil {
			violations = append(violations, fmt.Sprintf("invalid edge %s -> %s: %v", edge.Course, edge.Requires, err))
			continue
		}
		if _, ok := g.courses[edge.Course]; !ok {
			violations = append(violations, fmt.Sprintf("edge references unknown course %s", edge.Course))
			continue
		}
		if _, ok := g.courses[edge.Requires]; !ok {
			violations = append(violations, fmt.Sprintf("edge references unknown course %s", edge.Requires))
			continue
		}
		if edge.Course.Equals(edge.Requires) {
			violations = append(violations, fmt.Sprintf("course %s cannot require itself", edge.Course))
			continue
		}

		key := string(edge.Kind) + ":" + edge.Course.String() + "->" + edge.Requires.String()
		if seenEdges[key] {
			continue // duplicates are harmless, keep the first
		}
		seenEdges[key] = true

		g.edges = append(g.edges, edge)
		switch edge.Kind {
		case entities.EdgeKindPrereq:
			g.forward[edge.Course] = append(g.forward[edge.Course], edge.Requires)
			g.reverse[edge.Requires] = append(g.reverse[edge.Requires], edge.Course)
		case entities.EdgeKindExcludes:
			g.excludes[edge.Course] = append(g.excludes[edge.Course], edge.Requires)
		}
	}

	for _, adj := range []map[valueobjects.CourseCode][]valueobjects.CourseCode{g.forward, g.reverse, g.excludes} {
		for code := range adj {
			sortCodes(adj[code])
		}
	}

	for _, cycle := range g.findCycles() {
		codes := make([]string, len(cycle))
		for i, c := range cycle {
			codes[i] = c.String()
		}
		violations = append(violations, fmt.Sprintf("prerequisite cycle: %v", codes))
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		return nil, pkgerrors.NewGraphIntegrityError(violations)
	}

	return g, nil
}

// Course returns the course for a code, failing with UnknownCourseError
// rather than returning nil so callers cannot fabricate answers about
// nonexistent courses.
func (g *CourseGraph) Course(code valueobjects.CourseCode) (*entities.Course, error) {
	course, ok := g.courses[code]
	if !ok {
		return nil, pkgerrors.NewUnknownCourseError(code.String())
	}
	return course, nil
}

// HasCourse checks membership without error
func (g *CourseGraph) HasCourse(code valueobjects.CourseCode) bool {
	_, ok := g.courses[code]
	return ok
}

// CourseCodes returns all course codes in lexical order
func (g *CourseGraph) CourseCodes() []valueobjects.CourseCode {
	codes := make([]valueobjects.CourseCode, 0, len(g.courses))
	for code := range g.courses {
		codes = append(codes, code)
	}
	sortCodes(codes)
	return codes
}

// NodeCount returns the number of courses in the graph
func (g *CourseGraph) NodeCount() int {
	return len(g.courses)
}

// EdgeCount returns the number of edges in the graph
func (g *CourseGraph) EdgeCount() int {
	return len(g.edges)
}

// Edges returns a copy of the edge list
func (g *CourseGraph) Edges() []entities.PrerequisiteEdge {
	edges := make([]entities.PrerequisiteEdge, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// PrerequisitesOf returns the direct prerequisites of a course, or the full
// upstream closure when transitive is true. Results are ordered by graph
// distance (closest first), ties broken by lexical course code order.
func (g *CourseGraph) PrerequisitesOf(code valueobjects.CourseCode, transitive bool) ([]*entities.Course, error) {
	return g.traverse(code, g.forward, transitive)
}

// UnlocksOf is the symmetric downstream query: the courses for which this
// course is a (transitive) prerequisite, via the reverse index.
func (g *CourseGraph) UnlocksOf(code valueobjects.CourseCode, transitive bool) ([]*entities.Course, error) {
	return g.traverse(code, g.reverse, transitive)
}

// Overlap reports shared prerequisites, ordering relations, and explicit
// exclusion constraints between two courses.
func (g *CourseGraph) Overlap(a, b valueobjects.CourseCode) (*OverlapReport, error) {
	if _, err := g.Course(a); err != nil {
		return nil, err
	}
	if _, err := g.Course(b); err != nil {
		return nil, err
	}

	ancestorsA := g.closure(a, g.forward)
	ancestorsB := g.closure(b, g.forward)

	var shared []valueobjects.CourseCode
	for code := range ancestorsA {
		if ancestorsB[code] {
			shared = append(shared, code)
		}
	}
	sortCodes(shared)

	return &OverlapReport{
		CourseA:             a,
		CourseB:             b,
		SharedPrerequisites: shared,
		AIsPrerequisiteOfB:  ancestorsB[a],
		BIsPrerequisiteOfA:  ancestorsA[b],
		MutuallyExclusive:   g.isExcluded(a, b) || g.isExcluded(b, a),
	}, nil
}

// PathExists reports whether a directed prerequisite path leads from one
// course to another.
func (g *CourseGraph) PathExists(from, to valueobjects.CourseCode) (bool, error) {
	path, err := g.ShortestPath(from, to)
	if err != nil {
		return false, err
	}
	return path != nil, nil
}

// ShortestPath returns the fewest-edges path between two courses over the
// directed prerequisite edges, or nil when no path exists. Among equally
// short paths, the one whose course code sequence is lexically smallest is
// returned for determinism.
func (g *CourseGraph) ShortestPath(from, to valueobjects.CourseCode) ([]*entities.Course, error) {
	if _, err := g.Course(from); err != nil {
		return nil, err
	}
	if _, err := g.Course(to); err != nil {
		return nil, err
	}

	if from.Equals(to) {
		course := g.courses[from]
		return []*entities.Course{course}, nil
	}

	// Level-synchronized BFS keeping, per discovered node, the lexically
	// smallest path among those of minimal length.
	bestPath := map[valueobjects.CourseCode][]valueobjects.CourseCode{
		from: {from},
	}
	frontier := []valueobjects.CourseCode{from}

	for len(frontier) > 0 {
		next := make(map[valueobjects.CourseCode][]valueobjects.CourseCode)

		for _, current := range frontier {
			for _, neighbor := range g.forward[current] {
				if _, visited := bestPath[neighbor]; visited {
					continue
				}
				candidate := appendPath(bestPath[current], neighbor)
				if existing, ok := next[neighbor]; !ok || lessPath(candidate, existing) {
					next[neighbor] = candidate
				}
			}
		}

		if len(next) == 0 {
			return nil, nil
		}

		frontier = frontier[:0]
		for code, path := range next {
			bestPath[code] = path
			frontier = append(frontier, code)
		}
		sortCodes(frontier)

		if path, ok := bestPath[to]; ok {
			return g.resolveCourses(path), nil
		}
	}

	return nil, nil
}

// traverse walks one adjacency direction from a course. Direct mode returns
// distance-1 neighbors; transitive mode returns the full closure ordered by
// BFS distance with lexical tie-breaks.
func (g *CourseGraph) traverse(
	code valueobjects.CourseCode,
	adjacency map[valueobjects.CourseCode][]valueobjects.CourseCode,
	transitive bool,
) ([]*entities.Course, error) {
	if _, err := g.Course(code); err != nil {
		return nil, err
	}

	if !transitive {
		return g.resolveCourses(adjacency[code]), nil
	}

	visited := map[valueobjects.CourseCode]bool{code: true}
	var ordered []valueobjects.CourseCode
	frontier := []valueobjects.CourseCode{code}

	for len(frontier) > 0 {
		var next []valueobjects.CourseCode
		for _, current := range frontier {
			for _, neighbor := range adjacency[current] {
				if visited[neighbor] {
					continue
				}
				visited[neighbor] = true
				next = append(next, neighbor)
			}
		}
		sortCodes(next)
		ordered = append(ordered, next...)
		frontier = next
	}

	return g.resolveCourses(ordered), nil
}

// closure returns the set of codes reachable from a course via one
// adjacency direction, excluding the course itself.
func (g *CourseGraph) closure(
	code valueobjects.CourseCode,
	adjacency map[valueobjects.CourseCode][]valueobjects.CourseCode,
) map[valueobjects.CourseCode]bool {
	reached := make(map[valueobjects.CourseCode]bool)
	stack := append([]valueobjects.CourseCode(nil), adjacency[code]...)
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[current] {
			continue
		}
		reached[current] = true
		stack = append(stack, adjacency[current]...)
	}
	return reached
}

func (g *CourseGraph) isExcluded(a, b valueobjects.CourseCode) bool {
	for _, code := range g.excludes[a] {
		if code.Equals(b) {
			return true
		}
	}
	return false
}

// findCycles runs an iterative depth-first search over the prerequisite
// edges tracking in-progress (gray) and finished (black) nodes. A neighbor
// in the gray state is a back edge; the minimal cycle is the slice of the
// DFS stack from that neighbor onward.
func (g *CourseGraph) findCycles() [][]valueobjects.CourseCode {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	state := make(map[valueobjects.CourseCode]int, len(g.courses))
	var cycles [][]valueobjects.CourseCode

	roots := g.CourseCodes()
	for _, root := range roots {
		if state[root] != white {
			continue
		}

		type frame struct {
			code valueobjects.CourseCode
			next int
		}
		stack := []frame{{code: root}}
		state[root] = gray
		onStack := []valueobjects.CourseCode{root}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			neighbors := g.forward[top.code]

			if top.next < len(neighbors) {
				neighbor := neighbors[top.next]
				top.next++

				switch state[neighbor] {
				case white:
					state[neighbor] = gray
					stack = append(stack, frame{code: neighbor})
					onStack = append(onStack, neighbor)
				case gray:
					// Back edge: the cycle is the stack segment starting at
					// the revisited node.
					start := 0
					for i, code := range onStack {
						if code.Equals(neighbor) {
							start = i
							break
						}
					}
					cycle := make([]valueobjects.CourseCode, len(onStack)-start)
					copy(cycle, onStack[start:])
					cycles = append(cycles, cycle)
				}
				continue
			}

			state[top.code] = black
			stack = stack[:len(stack)-1]
			onStack = onStack[:len(onStack)-1]
		}
	}

	return cycles
}

func (g *CourseGraph) resolveCourses(codes []valueobjects.CourseCode) []*entities.Course {
	courses := make([]*entities.Course, 0, len(codes))
	for _, code := range codes {
		if course, ok := g.courses[code]; ok {
			courses = append(courses, course)
		}
	}
	return courses
}

func sortCodes(codes []valueobjects.CourseCode) {
	sort.Slice(codes, func(i, j int) bool {
		return codes[i].String() < codes[j].String()
	})
}

func appendPath(path []valueobjects.CourseCode, code valueobjects.CourseCode) []valueobjects.CourseCode {
	out := make([]valueobjects.CourseCode, len(path)+1)
	copy(out, path)
	out[len(path)] = code
	return out
}

func lessPath(a, b []valueobjects.CourseCode) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if !a[i].Equals(b[i]) {
			return a[i].String() < b[i].String()
		}
	}
	return len(a) < len(b)
}
