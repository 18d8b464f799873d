package jsonstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/vocadeck/internal/domain"
	"github.com/conorfennell/vocadeck/internal/review"
	"github.com/conorfennell/vocadeck/internal/storage"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.Local)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "words.json")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.CreateDeck(context.Background(), "english", domain.DeckSettings{NativeLanguage: "ko", StudyLanguage: "en"}))
	return s, path
}

func TestOpenMissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	names, err := s.ListDecks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Open(path)
	assert.Error(t, err)
}

func TestWordsPersist(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStore(t)

	apple := domain.NewWordEntry("apple", []string{"사과"}, "An apple a day.", t0, time.Minute)
	require.NoError(t, s.InsertWordEntry(ctx, "english", apple))
	assert.ErrorIs(t, s.InsertWordEntry(ctx, "english", apple), storage.ErrWordExists)

	next := t0.Add(time.Hour + 30*time.Second)
	apple.ReviewStats[domain.StudyToNative] = domain.DirectionStats{
		CorrectCount:   1,
		QuestionMode:   domain.Objective,
		LastReviewedAt: &t0,
		NextReviewAt:   &next,
	}
	require.NoError(t, s.SaveWordEntry(ctx, "english", apple))

	reopened, err := Open(path)
	require.NoError(t, err)
	words, err := reopened.GetWordsForDeck(ctx, "english")
	require.NoError(t, err)
	require.Len(t, words, 1)

	st := words[0].ReviewStats[domain.StudyToNative]
	assert.Equal(t, 1, st.CorrectCount)
	require.NotNil(t, st.NextReviewAt)
	// Timestamps are stored at minute precision.
	assert.True(t, t0.Add(time.Hour).Equal(*st.NextReviewAt))
	assert.True(t, t0.Equal(words[0].CreatedAt))
	assert.Nil(t, words[0].ReviewStats[domain.NativeToStudy].LastReviewedAt)
}

func TestOnDiskFormat(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStore(t)
	require.NoError(t, s.InsertWordEntry(ctx, "english", domain.NewWordEntry("apple", []string{"사과"}, "", t0, 0)))

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]map[string]map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	words := raw["decks"]["english"]["words"].(map[string]any)
	apple := words["apple"].(map[string]any)
	assert.Equal(t, "2025-06-15 10:00", apple["created_at"])
	assert.Equal(t, []any{"사과"}, apple["meaning"])

	stats := apple["review_stats"].(map[string]any)["study_to_native"].(map[string]any)
	assert.Equal(t, "objective", stats["prob_mode"])
	assert.Nil(t, stats["last_reviewed"])
	assert.Equal(t, "2025-06-15 10:00", stats["next_review"])
}

func TestUnknownDeckAndWord(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	w := domain.NewWordEntry("ghost", []string{"유령"}, "", t0, 0)
	assert.ErrorIs(t, s.SaveWordEntry(ctx, "english", w), review.ErrUnknownWord)
	assert.ErrorIs(t, s.SaveWordEntry(ctx, "french", w), review.ErrUnknownDeck)

	_, err := s.GetDeckSettings(ctx, "french")
	assert.ErrorIs(t, err, review.ErrUnknownDeck)

	got, err := s.GetWord(ctx, "english", "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDailyLogAndSources(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStore(t)

	l, err := s.GetDailyLog(ctx, "english", "2025-06-15")
	require.NoError(t, err)
	assert.Nil(t, l)

	want := domain.DailyLog{
		StudiedWordCount: 1,
		CorrectCount:     1,
		StudiedWords:     []string{"apple"},
		StudyMinutes:     1,
		Sessions:         []domain.SessionSpan{{Start: "10:00", End: "10:00"}},
	}
	require.NoError(t, s.SaveDailyLog(ctx, "english", "2025-06-15", want))

	id, err := s.InsertSource(ctx, "english", "/tmp/words", domain.LocalSource)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	_, err = s.InsertSource(ctx, "english", "/tmp/words", domain.LocalSource)
	assert.Error(t, err)
	require.NoError(t, s.UpdateSourceLastScanned(ctx, id, t0))

	reopened, err := Open(path)
	require.NoError(t, err)

	l, err = reopened.GetDailyLog(ctx, "english", "2025-06-15")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, want, *l)

	sources, err := reopened.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.NotNil(t, sources[0].LastScanned)
	assert.True(t, t0.Equal(*sources[0].LastScanned))

	require.NoError(t, reopened.DeleteSource(ctx, id))
	sources, err = reopened.ListSources(ctx)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestWordManagement(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStore(t)

	for i, term := range []string{"cherry", "apple", "banana"} {
		w := domain.NewWordEntry(term, []string{term + "?"}, "", t0.Add(time.Duration(i)*time.Minute), 0)
		require.NoError(t, s.InsertWordEntry(ctx, "english", w))
	}
	apple, err := s.GetWord(ctx, "english", "apple")
	require.NoError(t, err)
	stats := apple.ReviewStats[domain.StudyToNative]
	stats.CorrectCount = 3
	apple.ReviewStats[domain.StudyToNative] = stats
	require.NoError(t, s.SaveWordEntry(ctx, "english", *apple))

	words, err := s.ListWords(ctx, "english")
	require.NoError(t, err)
	var terms []string
	for _, w := range words {
		terms = append(terms, w.Term)
	}
	assert.Equal(t, []string{"apple", "banana", "cherry"}, terms)

	require.NoError(t, s.UpdateWord(ctx, "english", domain.WordEntry{Term: "apple", Meanings: []string{"사과"}, Example: "Red apple."}))
	require.NoError(t, s.DeleteWord(ctx, "english", "cherry"))

	// Changes are on disk.
	reopened, err := Open(path)
	require.NoError(t, err)
	apple, err = reopened.GetWord(ctx, "english", "apple")
	require.NoError(t, err)
	require.NotNil(t, apple)
	assert.Equal(t, []string{"사과"}, apple.Meanings)
	assert.Equal(t, "Red apple.", apple.Example)
	assert.Equal(t, 3, apple.ReviewStats[domain.StudyToNative].CorrectCount, "stats survive an edit")
	cherry, err := reopened.GetWord(ctx, "english", "cherry")
	require.NoError(t, err)
	assert.Nil(t, cherry)

	assert.ErrorIs(t, s.DeleteWord(ctx, "english", "cherry"), review.ErrUnknownWord)
	assert.ErrorIs(t, s.UpdateWord(ctx, "english", domain.WordEntry{Term: "cherry"}), review.ErrUnknownWord)
	assert.ErrorIs(t, s.DeleteWord(ctx, "french", "apple"), review.ErrUnknownDeck)
	_, err = s.ListWords(ctx, "french")
	assert.ErrorIs(t, err, review.ErrUnknownDeck)
}

func TestDeleteDeck(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStore(t)
	require.NoError(t, s.CreateDeck(ctx, "german", domain.DeckSettings{NativeLanguage: "ko", StudyLanguage: "de"}))
	require.NoError(t, s.InsertWordEntry(ctx, "english", domain.NewWordEntry("apple", []string{"사과"}, "", t0, 0)))
	_, err := s.InsertSource(ctx, "english", "/tmp/english", domain.LocalSource)
	require.NoError(t, err)
	_, err = s.InsertSource(ctx, "german", "/tmp/german", domain.LocalSource)
	require.NoError(t, err)

	require.NoError(t, s.DeleteDeck(ctx, "english"))
	assert.ErrorIs(t, s.DeleteDeck(ctx, "english"), review.ErrUnknownDeck)

	reopened, err := Open(path)
	require.NoError(t, err)
	names, err := reopened.ListDecks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"german"}, names)

	sources, err := reopened.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "german", sources[0].Deck)

	_, err = reopened.GetWordsForDeck(ctx, "english")
	assert.ErrorIs(t, err, review.ErrUnknownDeck)
}
