package review

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/conorfennell/vocadeck/internal/domain"
	"github.com/conorfennell/vocadeck/internal/interval"
	"github.com/conorfennell/vocadeck/internal/studylog"
)

// State is the position of a Session in its lifecycle.
type State int

const (
	Idle State = iota
	Active
	MistakeReviewPrompt
	MistakeReviewActive
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case MistakeReviewPrompt:
		return "mistake_review_prompt"
	case MistakeReviewActive:
		return "mistake_review_active"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// AnswerResult reports the outcome of one submitted answer.
type AnswerResult struct {
	Term    string
	Verdict Verdict
	// Answers are the accepted answers, for showing the learner.
	Answers []string
	Stats   domain.DirectionStats
	// NextQuestionAvailable is false once the current pass is used up.
	NextQuestionAvailable bool
	// MistakeReviewOffered is set when the primary pass ended with mistakes.
	MistakeReviewOffered bool
	// SaveErr is a failed write-back of the word. The session continues regardless.
	SaveErr error
}

// Summary is returned once a session finishes.
type Summary struct {
	StudiedCount int
	Correct      int
	Incorrect    int
	StartedAt    time.Time
	FinishedAt   time.Time
	Log          domain.DailyLog
}

type pending struct {
	word     *domain.WordEntry
	question Question
}

// Session is one review run over the due words of a deck in one direction.
// A Session is driven by one caller at a time and is not safe for concurrent use.
type Session struct {
	ID string

	svc       *Service
	deck      string
	settings  domain.DeckSettings
	direction domain.Direction
	words     []domain.WordEntry
	queue     []*domain.WordEntry
	mistakes  []*domain.WordEntry

	mistakePass bool
	studied     map[string]bool
	order       []string
	correct     int
	incorrect   int
	startedAt   time.Time
	state       State
	current     *pending
	rng         *rand.Rand
	generator   *Generator
}

// Deck returns the deck the session reviews.
func (s *Session) Deck() string { return s.deck }

// Direction returns the reviewed direction.
func (s *Session) Direction() domain.Direction { return s.direction }

// State returns the current lifecycle state. A session only becomes Finished
// through Finish or an aborting save error: a used-up pass leaves it Active or
// MistakeReviewActive, and Exhausted reports that case.
func (s *Session) State() State { return s.state }

// Exhausted reports whether the session has nothing left to ask and no mistake
// review on offer, so the only remaining step is Finish.
func (s *Session) Exhausted() bool {
	if s.state != Active && s.state != MistakeReviewActive {
		return false
	}
	return s.current == nil && len(s.queue) == 0 && (s.mistakePass || len(s.mistakes) == 0)
}

// Remaining returns the number of words left in the current pass.
func (s *Session) Remaining() int { return len(s.queue) }

// Mistakes returns the number of words missed in the primary pass so far.
func (s *Session) Mistakes() int { return len(s.mistakes) }

// NextQuestion draws the next word and returns its question. Calling it again
// before answering returns the same question. It returns ErrSessionExhausted
// when the current pass is used up.
func (s *Session) NextQuestion() (*Question, error) {
	switch s.state {
	case Finished:
		return nil, ErrSessionFinished
	case MistakeReviewPrompt:
		return nil, ErrSessionExhausted
	case Active, MistakeReviewActive:
	default:
		return nil, ErrInvalidState
	}

	if s.current != nil {
		q := s.current.question
		return &q, nil
	}
	if len(s.queue) == 0 {
		s.exhaust()
		return nil, ErrSessionExhausted
	}

	word := s.queue[len(s.queue)-1]
	s.queue = s.queue[:len(s.queue)-1]

	stats := word.EnsureStats(s.direction, s.startedAt)
	stats.QuestionMode = s.svc.mastery.Classify(stats)
	word.ReviewStats[s.direction] = stats

	q := s.generator.Generate(*word, s.words, s.direction, stats.QuestionMode)
	q.Language = s.settings.Language(s.direction)
	s.current = &pending{word: word, question: q}
	return &q, nil
}

// SubmitAnswer evaluates response against the pending question, reschedules the
// word, and writes it back to the store. Answering the last question of a pass
// does not finish the session; the caller still calls Finish once Exhausted. A failed write is reported in
// AnswerResult.SaveErr without interrupting the session, except for
// ErrUnknownDeck and ErrUnknownWord, which abort it.
func (s *Session) SubmitAnswer(ctx context.Context, response string, now time.Time) (*AnswerResult, error) {
	if s.state == Finished {
		return nil, ErrSessionFinished
	}
	if s.current == nil {
		return nil, ErrNoPendingQuestion
	}
	word, q := s.current.word, s.current.question
	s.current = nil

	verdict := Evaluate(response, q.Answers, PolicyFor(q.Mode, s.direction, s.svc.threshold))

	stats := interval.Apply(s.svc.policy, word.EnsureStats(s.direction, now), verdict.IsCorrect(), now)
	word.ReviewStats[s.direction] = stats

	if verdict.IsCorrect() {
		s.correct++
	} else {
		s.incorrect++
		if !s.mistakePass {
			s.mistakes = append(s.mistakes, word)
		}
	}
	if !s.studied[word.Term] {
		s.studied[word.Term] = true
		s.order = append(s.order, word.Term)
	}

	res := &AnswerResult{
		Term:    word.Term,
		Verdict: verdict,
		Answers: q.Answers,
		Stats:   stats,
	}

	if err := s.svc.store.SaveWordEntry(ctx, s.deck, *word); err != nil {
		if errors.Is(err, ErrUnknownDeck) || errors.Is(err, ErrUnknownWord) {
			s.state = Finished
			s.svc.log.Warn("review session aborted",
				zap.String("session", s.ID),
				zap.String("deck", s.deck),
				zap.String("term", word.Term),
				zap.Error(err),
			)
			return res, fmt.Errorf("failed to save word %s: %w", word.Term, err)
		}
		s.svc.log.Warn("failed to save reviewed word",
			zap.String("deck", s.deck),
			zap.String("term", word.Term),
			zap.Error(err),
		)
		res.SaveErr = err
	}

	if len(s.queue) > 0 {
		res.NextQuestionAvailable = true
	} else {
		s.exhaust()
		res.MistakeReviewOffered = s.state == MistakeReviewPrompt
	}
	return res, nil
}

// RetryMistakes accepts the mistake-review prompt and starts a pass over the
// words missed in the primary pass. Declining is done by calling Finish.
func (s *Session) RetryMistakes() error {
	if s.state != MistakeReviewPrompt {
		return fmt.Errorf("%w: cannot retry mistakes in state %s", ErrInvalidState, s.state)
	}
	s.queue = s.mistakes
	s.mistakes = nil
	s.rng.Shuffle(len(s.queue), func(i, j int) {
		s.queue[i], s.queue[j] = s.queue[j], s.queue[i]
	})
	s.mistakePass = true
	s.state = MistakeReviewActive
	return nil
}

// Finish ends the session and folds its totals, across both passes, into the
// deck's study log for the day of now. It may be called at any point, but only
// once; the summary is returned even if the log could not be saved.
func (s *Session) Finish(ctx context.Context, now time.Time) (Summary, error) {
	if s.state == Finished {
		return Summary{}, ErrSessionFinished
	}
	s.state = Finished
	s.current = nil

	summary := Summary{
		StudiedCount: len(s.order),
		Correct:      s.correct,
		Incorrect:    s.incorrect,
		StartedAt:    s.startedAt,
		FinishedAt:   now,
	}

	log, err := studylog.Record(ctx, s.svc.store, s.deck, studylog.Result{
		Terms:      s.order,
		Correct:    s.correct,
		Incorrect:  s.incorrect,
		StartedAt:  s.startedAt,
		FinishedAt: now,
	})
	summary.Log = log
	if err != nil {
		s.svc.log.Warn("failed to record study log", zap.String("deck", s.deck), zap.Error(err))
		return summary, err
	}

	s.svc.log.Info("review session finished",
		zap.String("session", s.ID),
		zap.String("deck", s.deck),
		zap.Int("studied", summary.StudiedCount),
		zap.Int("correct", summary.Correct),
		zap.Int("incorrect", summary.Incorrect),
	)
	return summary, nil
}

// exhaust is called when the queue of the current pass is empty.
func (s *Session) exhaust() {
	if s.state == Active && !s.mistakePass && len(s.mistakes) > 0 {
		s.state = MistakeReviewPrompt
	}
}
