package review

import "github.com/conorfennell/vocadeck/internal/domain"

// MasteryRule promotes a word to free-text questions once enough answers were
// recorded with a high enough accuracy.
type MasteryRule struct {
	MinReviews int
	Accuracy   float64
}

// DefaultMasteryRule requires 10 answers at 85% accuracy.
var DefaultMasteryRule = MasteryRule{MinReviews: 10, Accuracy: 0.85}

// Classify returns the question mode for the stats snapshot. It must be called
// each time a word is drawn, since later answers can demote a word again.
func (r MasteryRule) Classify(stats domain.DirectionStats) domain.QuestionMode {
	total := stats.Total()
	if total < r.MinReviews || total == 0 {
		return domain.Objective
	}
	if float64(stats.CorrectCount)/float64(total) >= r.Accuracy {
		return domain.Subjective
	}
	return domain.Objective
}

// Classify applies DefaultMasteryRule.
func Classify(stats domain.DirectionStats) domain.QuestionMode {
	return DefaultMasteryRule.Classify(stats)
}
