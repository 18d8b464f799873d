package review

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/conorfennell/vocadeck/internal/domain"
)

// DefaultNearMissThreshold is the similarity at which a wrong free-text answer
// is reported as a near miss.
const DefaultNearMissThreshold = 0.8

// Outcome classifies an answer.
type Outcome int

const (
	Incorrect Outcome = iota
	Correct
	NearMiss
)

func (o Outcome) String() string {
	switch o {
	case Correct:
		return "correct"
	case NearMiss:
		return "near_miss"
	default:
		return "incorrect"
	}
}

// Verdict is the result of evaluating an answer. Suggestion is only set for near misses.
type Verdict struct {
	Outcome    Outcome
	Suggestion string
}

// IsCorrect reports whether the verdict counts as correct. Near misses do not.
func (v Verdict) IsCorrect() bool {
	return v.Outcome == Correct
}

// MatchPolicy controls how a response is compared with the accepted answers.
type MatchPolicy struct {
	Mode domain.QuestionMode
	// FoldCase compares case-insensitively; used when the answer is a term.
	FoldCase  bool
	Threshold float64
}

// PolicyFor returns the policy used for a question asked in direction d.
func PolicyFor(mode domain.QuestionMode, d domain.Direction, threshold float64) MatchPolicy {
	return MatchPolicy{Mode: mode, FoldCase: d == domain.NativeToStudy, Threshold: threshold}
}

// Evaluate classifies response against answers. It has no side effects.
func Evaluate(response string, answers []string, p MatchPolicy) Verdict {
	if p.Mode == domain.Objective {
		for _, a := range answers {
			if response == a {
				return Verdict{Outcome: Correct}
			}
		}
		return Verdict{Outcome: Incorrect}
	}

	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultNearMissThreshold
	}

	input := normalize(response, p.FoldCase)
	for _, a := range answers {
		if input == normalize(a, p.FoldCase) {
			return Verdict{Outcome: Correct}
		}
	}

	best, bestScore := "", 0.0
	for _, a := range answers {
		score := Similarity(input, normalize(a, p.FoldCase))
		if score >= threshold && score > bestScore {
			best, bestScore = a, score
		}
	}
	if best != "" {
		return Verdict{Outcome: NearMiss, Suggestion: best}
	}
	return Verdict{Outcome: Incorrect}
}

func normalize(s string, fold bool) string {
	s = strings.TrimSpace(s)
	if fold {
		s = cases.Fold().String(s)
	}
	return s
}
