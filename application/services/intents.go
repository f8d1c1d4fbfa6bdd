package services

import (
	"strings"

	"courselens-backend/domain/core/valueobjects"
)

// IntentSet captures which structural queries a question's phrasing calls
// for. The vector search always runs regardless of intents.
type IntentSet struct {
	Prerequisites bool
	Unlocks       bool
	Overlap       bool
	Path          bool
}

var (
	overlapPhrases = []string{
		"together", "both", "same time", "same term", "overlap",
		"conflict", "alongside", "combine", "manageable with", "pair",
	}
	prereqPhrases = []string{
		"prerequisite", "prereq", "require", "before taking",
		"what do i need", "ready for",
	}
	unlockPhrases = []string{
		"unlock", "lead to", "open up", "needed for", "build toward",
		"take next", "take after",
	}
	pathPhrases = []string{
		"path", "sequence", "what order", "route", "get from",
	}
)

// DetectIntents derives the intent set from a question's phrasing and its
// verified course mentions. A question mentioning a course with no
// structural phrasing still gets its prerequisite context, and two or more
// mentions always trigger an overlap check.
func DetectIntents(query string, mentions []valueobjects.CourseCode) IntentSet {
	lowered := strings.ToLower(query)

	intents := IntentSet{
		Prerequisites: containsAny(lowered, prereqPhrases),
		Unlocks:       containsAny(lowered, unlockPhrases),
		Overlap:       containsAny(lowered, overlapPhrases),
		Path:          containsAny(lowered, pathPhrases),
	}

	if len(mentions) >= 2 {
		intents.Overlap = true
	}

	if len(mentions) > 0 && !intents.Prerequisites && !intents.Unlocks && !intents.Overlap && !intents.Path {
		intents.Prerequisites = true
	}

	return intents
}

// SubIntents counts the question's sub-intents for coverage: one per
// mentioned course plus one per requested structural comparison. A question
// with no mentions has a single topical sub-intent.
func (s IntentSet) SubIntents(mentionCount int) int {
	if mentionCount == 0 {
		return 1
	}
	count := mentionCount
	if s.Overlap && mentionCount >= 2 {
		count++
	}
	if s.Path && mentionCount >= 2 {
		count++
	}
	return count
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
