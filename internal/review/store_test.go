package review

import (
	"context"
	"time"

	"github.com/conorfennell/vocadeck/internal/domain"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.Local)

// memStore is an in-memory WordStore. Entries are deep-copied on the way in and
// out, so tests observe only what was explicitly saved.
type memStore struct {
	settings map[string]domain.DeckSettings
	words    map[string][]domain.WordEntry
	logs     map[string]map[string]domain.DailyLog

	saveErr  error
	saves    int
	logSaves int
}

func newMemStore() *memStore {
	return &memStore{
		settings: make(map[string]domain.DeckSettings),
		words:    make(map[string][]domain.WordEntry),
		logs:     make(map[string]map[string]domain.DailyLog),
	}
}

func (m *memStore) addDeck(deck string, words ...domain.WordEntry) {
	m.settings[deck] = domain.DeckSettings{NativeLanguage: "ko", StudyLanguage: "en"}
	for _, w := range words {
		m.words[deck] = append(m.words[deck], clone(w))
	}
}

func (m *memStore) word(deck, term string) (domain.WordEntry, bool) {
	for _, w := range m.words[deck] {
		if w.Term == term {
			return clone(w), true
		}
	}
	return domain.WordEntry{}, false
}

func (m *memStore) GetWordsForDeck(_ context.Context, deck string) ([]domain.WordEntry, error) {
	if _, ok := m.settings[deck]; !ok {
		return nil, ErrUnknownDeck
	}
	out := make([]domain.WordEntry, 0, len(m.words[deck]))
	for _, w := range m.words[deck] {
		out = append(out, clone(w))
	}
	return out, nil
}

func (m *memStore) SaveWordEntry(_ context.Context, deck string, word domain.WordEntry) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.settings[deck]; !ok {
		return ErrUnknownDeck
	}
	for i, w := range m.words[deck] {
		if w.Term == word.Term {
			m.words[deck][i] = clone(word)
			m.saves++
			return nil
		}
	}
	return ErrUnknownWord
}

func (m *memStore) GetDeckSettings(_ context.Context, deck string) (domain.DeckSettings, error) {
	s, ok := m.settings[deck]
	if !ok {
		return domain.DeckSettings{}, ErrUnknownDeck
	}
	return s, nil
}

func (m *memStore) GetDailyLog(_ context.Context, deck, date string) (*domain.DailyLog, error) {
	l, ok := m.logs[deck][date]
	if !ok {
		return nil, nil
	}
	l.StudiedWords = append([]string(nil), l.StudiedWords...)
	return &l, nil
}

func (m *memStore) SaveDailyLog(_ context.Context, deck, date string, log domain.DailyLog) error {
	if m.logs[deck] == nil {
		m.logs[deck] = make(map[string]domain.DailyLog)
	}
	m.logs[deck][date] = log
	m.logSaves++
	return nil
}

func clone(w domain.WordEntry) domain.WordEntry {
	c := w
	c.Meanings = append([]string(nil), w.Meanings...)
	c.ReviewStats = make(map[domain.Direction]domain.DirectionStats, len(w.ReviewStats))
	for d, s := range w.ReviewStats {
		c.ReviewStats[d] = s
	}
	return c
}

// dueWord returns a word due an hour before t0 in both directions.
func dueWord(term string, meanings ...string) domain.WordEntry {
	return domain.NewWordEntry(term, meanings, "", t0.Add(-2*time.Hour), time.Hour)
}

func withStats(w domain.WordEntry, d domain.Direction, correct, incorrect int) domain.WordEntry {
	s := w.ReviewStats[d]
	s.CorrectCount = correct
	s.IncorrectCount = incorrect
	w.ReviewStats[d] = s
	return w
}
