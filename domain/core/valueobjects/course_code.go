package valueobjects

import (
	"regexp"
	"strings"

	pkgerrors "courselens-backend/pkg/errors"
)

// courseCodePattern matches a department mnemonic followed by a course
// number, with optional separators ("CMPUT 301", "cmput-301", "CMPUT301").
var courseCodePattern = regexp.MustCompile(`(?i)\b([A-Z]{2,8})[\s-]?([0-9]{2,4}[A-Z]?)\b`)

// CourseCode is a value object identifying a course within a catalog version.
// The canonical form is "DEPT NUM" with an upper-case department mnemonic,
// e.g. "CMPUT 301". Value objects are immutable and compared by value.
type CourseCode struct {
	value string
}

// NewCourseCode creates a CourseCode from a raw string, normalizing case
// and separator so that "cmput-301" and "CMPUT 301" are the same code.
func NewCourseCode(raw string) (CourseCode, error) {
	trimmed := strings.Join(strings.Fields(raw), " ")
	if trimmed == "" {
		return CourseCode{}, pkgerrors.NewValidationError("course code cannot be empty")
	}

	m := courseCodePattern.FindStringSubmatch(trimmed)
	if m == nil || len(m[0]) != len(trimmed) {
		return CourseCode{}, pkgerrors.NewValidationError("course code must be a department mnemonic followed by a number, e.g. \"CMPUT 301\"")
	}

	return CourseCode{value: strings.ToUpper(m[1]) + " " + strings.ToUpper(m[2])}, nil
}

// MustCourseCode creates a CourseCode and panics on invalid input.
// Intended for tests and static fixtures only.
func MustCourseCode(raw string) CourseCode {
	code, err := NewCourseCode(raw)
	if err != nil {
		panic(err)
	}
	return code
}

// String returns the canonical string representation
func (c CourseCode) String() string {
	return c.value
}

// Department returns the department mnemonic, e.g. "CMPUT"
func (c CourseCode) Department() string {
	if i := strings.IndexByte(c.value, ' '); i >= 0 {
		return c.value[:i]
	}
	return c.value
}

// Number returns the course number portion, e.g. "301"
func (c CourseCode) Number() string {
	if i := strings.IndexByte(c.value, ' '); i >= 0 {
		return c.value[i+1:]
	}
	return ""
}

// Equals checks if two CourseCodes are equal
func (c CourseCode) Equals(other CourseCode) bool {
	return c.value == other.value
}

// IsZero checks if the CourseCode is the zero value
func (c CourseCode) IsZero() bool {
	return c.value == ""
}

// MarshalJSON implements json.Marshaler
func (c CourseCode) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (c *CourseCode) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return pkgerrors.NewValidationError("course code must be a JSON string")
	}
	code, err := NewCourseCode(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*c = code
	return nil
}

// ExtractCourseCodes scans free text for anything shaped like a course code
// and returns the normalized candidates in order of first appearance, without
// duplicates. Callers are expected to verify candidates against the active
// catalog; the extractor only recognizes the shape.
func ExtractCourseCodes(text string) []CourseCode {
	matches := courseCodePattern.FindAllStringSubmatch(text, -1)
	if matches == nil {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	codes := make([]CourseCode, 0, len(matches))
	for _, m := range matches {
		normalized := strings.ToUpper(m[1]) + " " + strings.ToUpper(m[2])
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		codes = append(codes, CourseCode{value: normalized})
	}
	return codes
}
