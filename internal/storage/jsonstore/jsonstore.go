// Package jsonstore is a word store backed by a single JSON document of the
// form decks → deck → words → term → fields, with minute-precision local timestamps.
package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/conorfennell/vocadeck/internal/domain"
	"github.com/conorfennell/vocadeck/internal/review"
	"github.com/conorfennell/vocadeck/internal/storage"
)

// TimeLayout is the on-disk timestamp format.
const TimeLayout = "2006-01-02 15:04"

type minute struct {
	time.Time
}

func (m minute) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Local().Format(TimeLayout))
}

func (m *minute) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		return err
	}
	m.Time = t
	return nil
}

func toMinute(t *time.Time) *minute {
	if t == nil {
		return nil
	}
	return &minute{Time: t.Truncate(time.Minute)}
}

func fromMinute(m *minute) *time.Time {
	if m == nil {
		return nil
	}
	t := m.Time
	return &t
}

type statsDoc struct {
	CorrectCount   int     `json:"correct_cnt"`
	IncorrectCount int     `json:"incorrect_cnt"`
	QuestionMode   string  `json:"prob_mode"`
	LastReviewed   *minute `json:"last_reviewed"`
	NextReview     *minute `json:"next_review"`
}

type wordDoc struct {
	Word        string              `json:"word"`
	Meanings    []string            `json:"meaning"`
	Example     string              `json:"example"`
	CreatedAt   minute              `json:"created_at"`
	ReviewStats map[string]statsDoc `json:"review_stats"`
}

type deckDoc struct {
	Settings domain.DeckSettings        `json:"settings"`
	Words    map[string]wordDoc         `json:"words"`
	StudyLog map[string]domain.DailyLog `json:"study_log"`
}

type sourceDoc struct {
	ID          int64   `json:"id"`
	Deck        string  `json:"deck"`
	Path        string  `json:"path"`
	Type        string  `json:"type"`
	LastScanned *minute `json:"last_scanned"`
}

type document struct {
	Decks   map[string]*deckDoc `json:"decks"`
	Sources []sourceDoc         `json:"sources"`
}

// Store keeps the whole document in memory and rewrites the file on every change.
type Store struct {
	mu   sync.Mutex
	path string
	doc  document
}

var _ storage.Store = (*Store)(nil)

// Open loads the document at path, starting empty if the file does not exist.
func Open(path string) (*Store, error) {
	s := &Store{path: path, doc: document{Decks: map[string]*deckDoc{}}}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &s.doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if s.doc.Decks == nil {
		s.doc.Decks = map[string]*deckDoc{}
	}
	return s, nil
}

// Close is a no-op; every change is already on disk.
func (s *Store) Close() error { return nil }

// flush writes the document through a temporary file so a crash never leaves it half written.
func (s *Store) flush() error {
	b, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) deck(name string) (*deckDoc, error) {
	d, ok := s.doc.Decks[name]
	if !ok {
		return nil, fmt.Errorf("deck %s: %w", name, review.ErrUnknownDeck)
	}
	return d, nil
}

func encodeWord(w domain.WordEntry) wordDoc {
	doc := wordDoc{
		Word:        w.Term,
		Meanings:    append([]string(nil), w.Meanings...),
		Example:     w.Example,
		CreatedAt:   minute{Time: w.CreatedAt.Truncate(time.Minute)},
		ReviewStats: make(map[string]statsDoc, len(w.ReviewStats)),
	}
	for d, st := range w.ReviewStats {
		mode := string(st.QuestionMode)
		if mode == "" {
			mode = string(domain.Objective)
		}
		doc.ReviewStats[string(d)] = statsDoc{
			CorrectCount:   st.CorrectCount,
			IncorrectCount: st.IncorrectCount,
			QuestionMode:   mode,
			LastReviewed:   toMinute(st.LastReviewedAt),
			NextReview:     toMinute(st.NextReviewAt),
		}
	}
	return doc
}

func decodeWord(doc wordDoc) domain.WordEntry {
	w := domain.WordEntry{
		Term:        doc.Word,
		Meanings:    append([]string(nil), doc.Meanings...),
		Example:     doc.Example,
		CreatedAt:   doc.CreatedAt.Time,
		ReviewStats: make(map[domain.Direction]domain.DirectionStats, len(doc.ReviewStats)),
	}
	for d, st := range doc.ReviewStats {
		w.ReviewStats[domain.Direction(d)] = domain.DirectionStats{
			CorrectCount:   st.CorrectCount,
			IncorrectCount: st.IncorrectCount,
			QuestionMode:   domain.QuestionMode(st.QuestionMode),
			LastReviewedAt: fromMinute(st.LastReviewed),
			NextReviewAt:   fromMinute(st.NextReview),
		}
	}
	return w
}

// CreateDeck creates a deck, or updates the language pair of an existing one.
func (s *Store) CreateDeck(_ context.Context, name string, settings domain.DeckSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.doc.Decks[name]; ok {
		d.Settings = settings
	} else {
		s.doc.Decks[name] = &deckDoc{
			Settings: settings,
			Words:    map[string]wordDoc{},
			StudyLog: map[string]domain.DailyLog{},
		}
	}
	return s.flush()
}

// ListDecks returns every deck name in alphabetical order.
func (s *Store) ListDecks(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.doc.Decks))
	for name := range s.doc.Decks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) GetDeckSettings(_ context.Context, deck string) (domain.DeckSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.deck(deck)
	if err != nil {
		return domain.DeckSettings{}, err
	}
	return d.Settings, nil
}

// GetWordsForDeck returns the words of deck ordered by creation time, then term.
func (s *Store) GetWordsForDeck(_ context.Context, deck string) ([]domain.WordEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.deck(deck)
	if err != nil {
		return nil, err
	}
	words := make([]domain.WordEntry, 0, len(d.Words))
	for _, doc := range d.Words {
		words = append(words, decodeWord(doc))
	}
	sort.Slice(words, func(i, j int) bool {
		if !words[i].CreatedAt.Equal(words[j].CreatedAt) {
			return words[i].CreatedAt.Before(words[j].CreatedAt)
		}
		return words[i].Term < words[j].Term
	})
	return words, nil
}

func (s *Store) GetWord(_ context.Context, deck, term string) (*domain.WordEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.deck(deck)
	if err != nil {
		return nil, err
	}
	doc, ok := d.Words[term]
	if !ok {
		return nil, nil
	}
	w := decodeWord(doc)
	return &w, nil
}

func (s *Store) InsertWordEntry(_ context.Context, deck string, w domain.WordEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.deck(deck)
	if err != nil {
		return err
	}
	if _, ok := d.Words[w.Term]; ok {
		return fmt.Errorf("word %s: %w", w.Term, storage.ErrWordExists)
	}
	if d.Words == nil {
		d.Words = map[string]wordDoc{}
	}
	d.Words[w.Term] = encodeWord(w)
	return s.flush()
}

func (s *Store) SaveWordEntry(_ context.Context, deck string, w domain.WordEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.deck(deck)
	if err != nil {
		return err
	}
	if _, ok := d.Words[w.Term]; !ok {
		return fmt.Errorf("word %s: %w", w.Term, review.ErrUnknownWord)
	}
	d.Words[w.Term] = encodeWord(w)
	return s.flush()
}

// ListWords returns the words of deck sorted by term.
func (s *Store) ListWords(ctx context.Context, deck string) ([]domain.WordEntry, error) {
	words, err := s.GetWordsForDeck(ctx, deck)
	if err != nil {
		return nil, err
	}
	sort.Slice(words, func(i, j int) bool { return words[i].Term < words[j].Term })
	return words, nil
}

// UpdateWord replaces the meanings and example of a word, keeping its stats.
func (s *Store) UpdateWord(_ context.Context, deck string, w domain.WordEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.deck(deck)
	if err != nil {
		return err
	}
	doc, ok := d.Words[w.Term]
	if !ok {
		return fmt.Errorf("word %s: %w", w.Term, review.ErrUnknownWord)
	}
	doc.Meanings = append([]string(nil), w.Meanings...)
	doc.Example = w.Example
	d.Words[w.Term] = doc
	return s.flush()
}

func (s *Store) DeleteWord(_ context.Context, deck, term string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.deck(deck)
	if err != nil {
		return err
	}
	if _, ok := d.Words[term]; !ok {
		return fmt.Errorf("word %s: %w", term, review.ErrUnknownWord)
	}
	delete(d.Words, term)
	return s.flush()
}

// DeleteDeck removes the deck and every source attached to it.
func (s *Store) DeleteDeck(_ context.Context, deck string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.deck(deck); err != nil {
		return err
	}
	delete(s.doc.Decks, deck)
	kept := s.doc.Sources[:0]
	for _, src := range s.doc.Sources {
		if src.Deck != deck {
			kept = append(kept, src)
		}
	}
	s.doc.Sources = kept
	return s.flush()
}

func (s *Store) GetDailyLog(_ context.Context, deck, date string) (*domain.DailyLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.deck(deck)
	if err != nil {
		return nil, err
	}
	l, ok := d.StudyLog[date]
	if !ok {
		return nil, nil
	}
	l.StudiedWords = append([]string(nil), l.StudiedWords...)
	l.Sessions = append([]domain.SessionSpan(nil), l.Sessions...)
	return &l, nil
}

func (s *Store) SaveDailyLog(_ context.Context, deck, date string, l domain.DailyLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.deck(deck)
	if err != nil {
		return err
	}
	if d.StudyLog == nil {
		d.StudyLog = map[string]domain.DailyLog{}
	}
	d.StudyLog[date] = l
	return s.flush()
}

func (s *Store) GetStudyLog(_ context.Context, deck string) (domain.StudyLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.deck(deck)
	if err != nil {
		return nil, err
	}
	log := make(domain.StudyLog, len(d.StudyLog))
	for date, l := range d.StudyLog {
		log[date] = l
	}
	return log, nil
}

func (s *Store) InsertSource(_ context.Context, deck, path string, typ domain.SourceType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.deck(deck); err != nil {
		return 0, err
	}
	var id int64
	for _, src := range s.doc.Sources {
		if src.Path == path {
			return 0, fmt.Errorf("source %s already exists", path)
		}
		if src.ID > id {
			id = src.ID
		}
	}
	id++
	s.doc.Sources = append(s.doc.Sources, sourceDoc{ID: id, Deck: deck, Path: path, Type: string(typ)})
	return id, s.flush()
}

func (s *Store) ListSources(_ context.Context) ([]domain.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sources := make([]domain.Source, 0, len(s.doc.Sources))
	for _, src := range s.doc.Sources {
		sources = append(sources, domain.Source{
			ID:          src.ID,
			Deck:        src.Deck,
			Path:        src.Path,
			Type:        domain.SourceType(src.Type),
			LastScanned: fromMinute(src.LastScanned),
		})
	}
	return sources, nil
}

func (s *Store) UpdateSourceLastScanned(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Sources {
		if s.doc.Sources[i].ID == id {
			s.doc.Sources[i].LastScanned = toMinute(&at)
			return s.flush()
		}
	}
	return fmt.Errorf("source ID %d not found", id)
}

func (s *Store) DeleteSource(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Sources {
		if s.doc.Sources[i].ID == id {
			s.doc.Sources = append(s.doc.Sources[:i], s.doc.Sources[i+1:]...)
			return s.flush()
		}
	}
	return nil
}
