package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func TestNewWordEntry(t *testing.T) {
	w := NewWordEntry("apple", []string{"사과"}, "An apple a day", t0, time.Minute)

	require.Len(t, w.ReviewStats, len(Directions))
	for _, d := range Directions {
		s := w.ReviewStats[d]
		assert.Equal(t, 0, s.Total())
		assert.Equal(t, Objective, s.QuestionMode)
		assert.Nil(t, s.LastReviewedAt)
		require.NotNil(t, s.NextReviewAt)
		assert.True(t, s.NextReviewAt.Equal(t0.Add(time.Minute)))
	}
	assert.False(t, w.ReviewStats[StudyToNative].IsDue(t0))
	assert.True(t, w.ReviewStats[StudyToNative].IsDue(t0.Add(time.Minute)))
}

func TestEnsureStats(t *testing.T) {
	w := WordEntry{Term: "apple", Meanings: []string{"사과"}}

	s := w.EnsureStats(NativeToStudy, t0)
	assert.True(t, s.IsDue(t0))
	assert.Contains(t, w.ReviewStats, NativeToStudy)

	s.CorrectCount = 3
	w.ReviewStats[NativeToStudy] = s
	assert.Equal(t, 3, w.EnsureStats(NativeToStudy, t0.Add(time.Hour)).CorrectCount, "existing stats are kept")
}

func TestMergeMeanings(t *testing.T) {
	w := WordEntry{Term: "bank", Meanings: []string{"은행"}}

	added := w.MergeMeanings([]string{"은행", "둑", "", "둑"})
	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"은행", "둑"}, w.Meanings)

	assert.Equal(t, 0, w.MergeMeanings([]string{"둑"}))
}

func TestCorrectAnswers(t *testing.T) {
	w := WordEntry{Term: "bank", Meanings: []string{"은행", "둑"}}
	assert.Equal(t, []string{"은행", "둑"}, w.CorrectAnswers(StudyToNative))
	assert.Equal(t, []string{"bank"}, w.CorrectAnswers(NativeToStudy))
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("native_to_study")
	require.NoError(t, err)
	assert.Equal(t, NativeToStudy, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}

func TestDailyLogAddStudiedWord(t *testing.T) {
	var l DailyLog
	assert.True(t, l.AddStudiedWord("apple"))
	assert.True(t, l.AddStudiedWord("pear"))
	assert.False(t, l.AddStudiedWord("apple"))
	assert.Equal(t, 2, l.StudiedWordCount)
}

func TestDetectSourceType(t *testing.T) {
	assert.Equal(t, GitSource, DetectSourceType("git@github.com:me/words.git"))
	assert.Equal(t, GitSource, DetectSourceType("https://github.com/me/words"))
	assert.Equal(t, LocalSource, DetectSourceType("./decks/english"))
}
