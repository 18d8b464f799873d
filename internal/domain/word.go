package domain

import (
	"fmt"
	"time"
)

// Direction is the translation direction a review question covers.
// Statistics are tracked independently per direction.
type Direction string

const (
	StudyToNative Direction = "study_to_native"
	NativeToStudy Direction = "native_to_study"
)

// Directions lists every supported direction.
var Directions = []Direction{StudyToNative, NativeToStudy}

// ParseDirection converts user input into a Direction.
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown direction %q", s)
	}
	return d, nil
}

// Valid reports whether d is a supported direction.
func (d Direction) Valid() bool {
	return d == StudyToNative || d == NativeToStudy
}

// QuestionMode selects between multiple-choice and free-text questions.
type QuestionMode string

const (
	Objective  QuestionMode = "objective"
	Subjective QuestionMode = "subjective"
)

// DirectionStats holds the review statistics of a word for one direction.
// A nil NextReviewAt means the word was never scheduled in that direction.
type DirectionStats struct {
	CorrectCount   int
	IncorrectCount int
	QuestionMode   QuestionMode
	LastReviewedAt *time.Time
	NextReviewAt   *time.Time
}

// Total returns the number of answers recorded for the direction.
func (s DirectionStats) Total() int {
	return s.CorrectCount + s.IncorrectCount
}

// IsDue reports whether the stats are scheduled at or before now.
func (s DirectionStats) IsDue(now time.Time) bool {
	return s.NextReviewAt != nil && !s.NextReviewAt.After(now)
}

// NewStats returns zeroed stats scheduled at due.
func NewStats(due time.Time) DirectionStats {
	return DirectionStats{
		QuestionMode: Objective,
		NextReviewAt: &due,
	}
}

// WordEntry is one vocabulary item within a deck. Term is the primary key.
type WordEntry struct {
	Term        string   `validate:"required"`
	Meanings    []string `validate:"min=1,dive,required"`
	Example     string
	CreatedAt   time.Time
	ReviewStats map[Direction]DirectionStats
}

// NewWordEntry registers a term with stats for every direction, first due at now+delay.
func NewWordEntry(term string, meanings []string, example string, now time.Time, delay time.Duration) WordEntry {
	w := WordEntry{
		Term:        term,
		Meanings:    append([]string(nil), meanings...),
		Example:     example,
		CreatedAt:   now,
		ReviewStats: make(map[Direction]DirectionStats, len(Directions)),
	}
	for _, d := range Directions {
		w.ReviewStats[d] = NewStats(now.Add(delay))
	}
	return w
}

// EnsureStats returns the stats for d, creating zeroed stats due at now if
// the entry has none for that direction.
func (w *WordEntry) EnsureStats(d Direction, now time.Time) DirectionStats {
	if w.ReviewStats == nil {
		w.ReviewStats = make(map[Direction]DirectionStats, len(Directions))
	}
	s, ok := w.ReviewStats[d]
	if !ok {
		s = NewStats(now)
		w.ReviewStats[d] = s
	}
	return s
}

// MergeMeanings appends meanings not already present and returns how many were added.
func (w *WordEntry) MergeMeanings(meanings []string) int {
	seen := make(map[string]bool, len(w.Meanings))
	for _, m := range w.Meanings {
		seen[m] = true
	}
	added := 0
	for _, m := range meanings {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		w.Meanings = append(w.Meanings, m)
		added++
	}
	return added
}

// CorrectAnswers returns the accepted answers when the word is asked in direction d.
func (w WordEntry) CorrectAnswers(d Direction) []string {
	if d == StudyToNative {
		return w.Meanings
	}
	return []string{w.Term}
}

// DeckSettings is the language pair of a deck.
type DeckSettings struct {
	NativeLanguage string `json:"native_lang" validate:"required"`
	StudyLanguage  string `json:"study_lang" validate:"required"`
}

// Language returns the language tag of prompts asked in direction d.
func (s DeckSettings) Language(d Direction) string {
	if d == StudyToNative {
		return s.StudyLanguage
	}
	return s.NativeLanguage
}
