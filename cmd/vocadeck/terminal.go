package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/vocadeck/internal/domain"
	"github.com/conorfennell/vocadeck/internal/review"
)

// quitCommand ends a review early; the answers given so far are kept.
const quitCommand = ":q"

// terminal drives a review session over line-based input and output.
type terminal struct {
	in  *bufio.Scanner
	out io.Writer
	now func() time.Time
}

func newTerminal(in io.Reader, out io.Writer, now func() time.Time) *terminal {
	return &terminal{in: bufio.NewScanner(in), out: out, now: now}
}

// readLine returns the next trimmed input line, or false at end of input.
func (t *terminal) readLine() (string, bool) {
	if !t.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(t.in.Text()), true
}

// Run asks questions until the session is used up, the learner quits, or input
// ends, then finishes the session and prints its summary.
func (t *terminal) Run(ctx context.Context, sess *review.Session) error {
	fmt.Fprintf(t.out, "Reviewing %d word(s) in %s. Type %s to stop.\n", sess.Remaining(), sess.Deck(), quitCommand)

	for {
		q, err := sess.NextQuestion()
		if errors.Is(err, review.ErrSessionExhausted) {
			if sess.State() != review.MistakeReviewPrompt || !t.confirmRetry(sess.Mistakes()) {
				break
			}
			if err := sess.RetryMistakes(); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		t.printQuestion(q, sess.Remaining())
		line, ok := t.readLine()
		if !ok || line == quitCommand {
			break
		}

		res, err := sess.SubmitAnswer(ctx, t.resolveChoice(q, line), t.now())
		if err != nil {
			return err
		}
		t.printResult(res)
	}

	summary, err := sess.Finish(ctx, t.now())
	fmt.Fprintf(t.out, "\nStudied %d word(s): %d correct, %d incorrect.\n", summary.StudiedCount, summary.Correct, summary.Incorrect)
	if err != nil {
		return fmt.Errorf("failed to record study log: %w", err)
	}
	return nil
}

func (t *terminal) confirmRetry(mistakes int) bool {
	fmt.Fprintf(t.out, "\nYou missed %d word(s). Review them again? [y/N] ", mistakes)
	line, ok := t.readLine()
	return ok && strings.EqualFold(line, "y")
}

func (t *terminal) printQuestion(q *review.Question, remaining int) {
	fmt.Fprintf(t.out, "\n[%d left] %s\n", remaining, q.Prompt)
	if q.Mode == domain.Objective {
		for i, c := range q.Choices {
			fmt.Fprintf(t.out, "  %d) %s\n", i+1, c)
		}
	}
	fmt.Fprint(t.out, "> ")
}

// resolveChoice maps a choice number typed for an objective question to its text.
func (t *terminal) resolveChoice(q *review.Question, line string) string {
	if q.Mode != domain.Objective {
		return line
	}
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(q.Choices) {
		return q.Choices[n-1]
	}
	return line
}

func (t *terminal) printResult(res *review.AnswerResult) {
	switch res.Verdict.Outcome {
	case review.Correct:
		fmt.Fprintln(t.out, "Correct!")
	case review.NearMiss:
		fmt.Fprintf(t.out, "Almost. Did you mean %q? Answer: %s\n", res.Verdict.Suggestion, strings.Join(res.Answers, "; "))
	default:
		fmt.Fprintf(t.out, "Incorrect. Answer: %s\n", strings.Join(res.Answers, "; "))
	}
	if res.Stats.NextReviewAt != nil {
		fmt.Fprintf(t.out, "Next review: %s\n", res.Stats.NextReviewAt.Format(time.DateTime))
	}
	if res.SaveErr != nil {
		fmt.Fprintf(t.out, "Warning: progress for %s was not saved: %v\n", res.Term, res.SaveErr)
	}
}
