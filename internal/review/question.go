package review

import (
	"math/rand"

	"github.com/conorfennell/vocadeck/internal/domain"
)

// DefaultMaxDistractors is the number of wrong options offered in objective mode.
const DefaultMaxDistractors = 3

// Question is what the learner is asked about one word.
type Question struct {
	Term      string
	Direction domain.Direction
	Mode      domain.QuestionMode
	// Prompt is the term for StudyToNative, one of the meanings otherwise.
	Prompt   string
	Language string
	// Answers are every accepted answer. Choices is only set in objective mode.
	Answers []string
	Choices []string
}

// Generator builds questions. It is not safe for concurrent use.
type Generator struct {
	rng            *rand.Rand
	maxDistractors int
}

// NewGenerator returns a Generator drawing randomness from rng.
func NewGenerator(rng *rand.Rand, maxDistractors int) *Generator {
	if maxDistractors <= 0 {
		maxDistractors = DefaultMaxDistractors
	}
	return &Generator{rng: rng, maxDistractors: maxDistractors}
}

// Generate builds a question for word in direction d. deck is the pool other
// words' meanings or terms are sampled from as distractors; a deck of one word
// yields a single-option objective question.
func (g *Generator) Generate(word domain.WordEntry, deck []domain.WordEntry, d domain.Direction, mode domain.QuestionMode) Question {
	q := Question{
		Term:      word.Term,
		Direction: d,
		Mode:      mode,
		Answers:   word.CorrectAnswers(d),
	}

	if d == domain.StudyToNative || len(word.Meanings) == 0 {
		q.Prompt = word.Term
	} else {
		q.Prompt = word.Meanings[g.rng.Intn(len(word.Meanings))]
	}

	if mode == domain.Objective {
		q.Choices = g.choices(word, deck, d, q.Answers)
	}
	return q
}

func (g *Generator) choices(word domain.WordEntry, deck []domain.WordEntry, d domain.Direction, answers []string) []string {
	choices := g.distractors(word, deck, d, answers)
	if len(answers) > 0 {
		choices = append(choices, answers[g.rng.Intn(len(answers))])
	}
	g.rng.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})
	return choices
}

// distractors samples up to maxDistractors unique values from the other words,
// never equal to an accepted answer.
func (g *Generator) distractors(word domain.WordEntry, deck []domain.WordEntry, d domain.Direction, answers []string) []string {
	excluded := make(map[string]bool, len(answers))
	for _, a := range answers {
		excluded[a] = true
	}

	var pool []string
	add := func(v string) {
		if v == "" || excluded[v] {
			return
		}
		excluded[v] = true
		pool = append(pool, v)
	}
	for _, other := range deck {
		if other.Term == word.Term {
			continue
		}
		if d == domain.StudyToNative {
			for _, m := range other.Meanings {
				add(m)
			}
		} else {
			add(other.Term)
		}
	}

	g.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	if len(pool) > g.maxDistractors {
		pool = pool[:g.maxDistractors]
	}
	return pool
}
