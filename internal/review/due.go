package review

import (
	"time"

	"github.com/conorfennell/vocadeck/internal/domain"
)

// SelectDue returns the words due in direction d at now. Words that were never
// scheduled in d are skipped. A word missing its stats record for d counts as
// due at now. words is not modified. The order of the result is unspecified.
func SelectDue(words []domain.WordEntry, d domain.Direction, now time.Time) []domain.WordEntry {
	var due []domain.WordEntry
	for _, w := range selectDue(words, d, now) {
		due = append(due, *w)
	}
	return due
}

// selectDue returns pointers into words, so callers can mutate the entries in place.
func selectDue(words []domain.WordEntry, d domain.Direction, now time.Time) []*domain.WordEntry {
	var due []*domain.WordEntry
	for i := range words {
		w := &words[i]
		if isDue(w, d, now) {
			due = append(due, w)
		}
	}
	return due
}

func isDue(w *domain.WordEntry, d domain.Direction, now time.Time) bool {
	stats, ok := w.ReviewStats[d]
	if !ok {
		return true
	}
	return stats.IsDue(now)
}
