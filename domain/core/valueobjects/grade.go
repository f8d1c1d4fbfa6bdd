package valueobjects

import (
	pkgerrors "courselens-backend/pkg/errors"
)

// gradeRank orders letter grades from lowest to highest passing value.
// Only grades that appear as minimum-grade constraints in catalog data
// are modeled.
var gradeRank = map[string]int{
	"D":  1,
	"D+": 2,
	"C-": 3,
	"C":  4,
	"C+": 5,
	"B-": 6,
	"B":  7,
	"B+": 8,
	"A-": 9,
	"A":  10,
	"A+": 11,
}

// MinGrade is an optional minimum-grade constraint on a prerequisite edge.
type MinGrade struct {
	letter string
}

// NewMinGrade creates a MinGrade from a letter grade string.
func NewMinGrade(letter string) (MinGrade, error) {
	if letter == "" {
		return MinGrade{}, nil
	}
	if _, ok := gradeRank[letter]; !ok {
		return MinGrade{}, pkgerrors.NewValidationError("unrecognized letter grade: " + letter)
	}
	return MinGrade{letter: letter}, nil
}

// String returns the letter grade, empty when no constraint applies
func (g MinGrade) String() string {
	return g.letter
}

// IsZero reports whether no minimum-grade constraint applies
func (g MinGrade) IsZero() bool {
	return g.letter == ""
}

// AtLeast reports whether this grade meets or exceeds another
func (g MinGrade) AtLeast(other MinGrade) bool {
	if other.IsZero() {
		return true
	}
	if g.IsZero() {
		return false
	}
	return gradeRank[g.letter] >= gradeRank[other.letter]
}
