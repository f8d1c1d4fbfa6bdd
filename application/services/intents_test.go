package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"courselens-backend/domain/core/valueobjects"
)

func mentions(codes ...string) []valueobjects.CourseCode {
	out := make([]valueobjects.CourseCode, len(codes))
	for i, c := range codes {
		out[i] = valueobjects.MustCourseCode(c)
	}
	return out
}

func TestDetectIntents(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		mentions []valueobjects.CourseCode
		want     IntentSet
	}{
		{
			name:     "prerequisite phrasing",
			query:    "What are the prerequisites for CMPUT 301?",
			mentions: mentions("CMPUT 301"),
			want:     IntentSet{Prerequisites: true},
		},
		{
			name:     "unlock phrasing",
			query:    "What does CMPUT 204 unlock?",
			mentions: mentions("CMPUT 204"),
			want:     IntentSet{Unlocks: true},
		},
		{
			name:     "overlap phrasing with one mention",
			query:    "Is CMPUT 301 manageable alongside a full course load?",
			mentions: mentions("CMPUT 301"),
			want:     IntentSet{Overlap: true},
		},
		{
			name:     "two mentions force overlap",
			query:    "Tell me about CMPUT 301 and CMPUT 366",
			mentions: mentions("CMPUT 301", "CMPUT 366"),
			want:     IntentSet{Overlap: true},
		},
		{
			name:     "path phrasing",
			query:    "What is the fastest sequence from CMPUT 174 to CMPUT 301?",
			mentions: mentions("CMPUT 174", "CMPUT 301"),
			want:     IntentSet{Path: true, Overlap: true},
		},
		{
			name:     "mention with no phrasing defaults to prerequisites",
			query:    "Thoughts on CMPUT 366?",
			mentions: mentions("CMPUT 366"),
			want:     IntentSet{Prerequisites: true},
		},
		{
			name:  "no mentions and no phrasing",
			query: "Which computing courses are good for beginners?",
			want:  IntentSet{},
		},
		{
			name:     "combined phrasing",
			query:    "What do I need before taking CMPUT 301, and what does it lead to?",
			mentions: mentions("CMPUT 301"),
			want:     IntentSet{Prerequisites: true, Unlocks: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectIntents(tt.query, tt.mentions)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubIntents(t *testing.T) {
	tests := []struct {
		name         string
		intents      IntentSet
		mentionCount int
		want         int
	}{
		{"no mentions is one topical sub-intent", IntentSet{}, 0, 1},
		{"single mention", IntentSet{Prerequisites: true}, 1, 1},
		{"overlap adds a comparison", IntentSet{Overlap: true}, 2, 3},
		{"path adds a comparison", IntentSet{Path: true}, 2, 3},
		{"overlap and path both add", IntentSet{Overlap: true, Path: true}, 2, 4},
		{"comparisons need two mentions", IntentSet{Overlap: true, Path: true}, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.intents.SubIntents(tt.mentionCount))
		})
	}
}
