// Package studylog folds finished review sessions into per-day counters.
package studylog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/conorfennell/vocadeck/internal/domain"
)

// Result is what one finished session contributes to its day.
type Result struct {
	Terms      []string
	Correct    int
	Incorrect  int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store is the part of the word store the aggregator reads and writes.
type Store interface {
	GetDailyLog(ctx context.Context, deck, date string) (*domain.DailyLog, error)
	SaveDailyLog(ctx context.Context, deck, date string, log domain.DailyLog) error
}

// Fold adds r to log. Terms already studied that day are not counted twice.
func Fold(log *domain.DailyLog, r Result) {
	for _, term := range r.Terms {
		log.AddStudiedWord(term)
	}
	log.StudiedWordCount = len(log.StudiedWords)
	log.CorrectCount += r.Correct
	log.IncorrectCount += r.Incorrect
	log.StudyMinutes += Minutes(r.StartedAt, r.FinishedAt)
	log.Sessions = append(log.Sessions, domain.SessionSpan{
		Start: r.StartedAt.Format(domain.SpanLayout),
		End:   r.FinishedAt.Format(domain.SpanLayout),
	})
}

// Minutes is the whole number of minutes between start and end, at least 1.
func Minutes(start, end time.Time) int {
	m := int(end.Sub(start) / time.Minute)
	if m < 1 {
		return 1
	}
	return m
}

// Record folds r into the deck's log for the day r finished on and saves it.
func Record(ctx context.Context, store Store, deck string, r Result) (domain.DailyLog, error) {
	date := r.FinishedAt.Format(domain.DateLayout)

	existing, err := store.GetDailyLog(ctx, deck, date)
	if err != nil {
		return domain.DailyLog{}, fmt.Errorf("failed to load study log for %s on %s: %w", deck, date, err)
	}
	var log domain.DailyLog
	if existing != nil {
		log = *existing
	}

	Fold(&log, r)

	if err := store.SaveDailyLog(ctx, deck, date, log); err != nil {
		return log, fmt.Errorf("failed to save study log for %s on %s: %w", deck, date, err)
	}
	return log, nil
}

// Day is one dated entry of a Report.
type Day struct {
	Date string
	domain.DailyLog
}

// Report summarises a deck's whole study log.
type Report struct {
	TotalMinutes   int
	TotalCorrect   int
	TotalIncorrect int
	// Accuracy is in [0, 1]; zero when nothing was answered.
	Accuracy float64
	Days     []Day
}

// Summarize totals log and lists its days in date order.
func Summarize(log domain.StudyLog) Report {
	var r Report
	for date, day := range log {
		r.TotalMinutes += day.StudyMinutes
		r.TotalCorrect += day.CorrectCount
		r.TotalIncorrect += day.IncorrectCount
		r.Days = append(r.Days, Day{Date: date, DailyLog: day})
	}
	sort.Slice(r.Days, func(i, j int) bool { return r.Days[i].Date < r.Days[j].Date })
	if total := r.TotalCorrect + r.TotalIncorrect; total > 0 {
		r.Accuracy = float64(r.TotalCorrect) / float64(total)
	}
	return r
}
