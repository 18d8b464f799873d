package domain

// DateLayout is the calendar-date key format of a StudyLog.
const DateLayout = "2006-01-02"

// SpanLayout is the clock format of session spans.
const SpanLayout = "15:04"

// SessionSpan records when a finished session started and ended.
type SessionSpan struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DailyLog aggregates every finished session of one calendar day.
// StudiedWords is an ordered set; StudiedWordCount always equals its length.
type DailyLog struct {
	StudiedWordCount int           `json:"studied_word_count"`
	CorrectCount     int           `json:"correct_count"`
	IncorrectCount   int           `json:"incorrect_count"`
	StudiedWords     []string      `json:"studied_words_today"`
	StudyMinutes     int           `json:"study_minutes"`
	Sessions         []SessionSpan `json:"study_sessions"`
}

// AddStudiedWord adds term to the set. It reports false if term was already present.
func (l *DailyLog) AddStudiedWord(term string) bool {
	for _, t := range l.StudiedWords {
		if t == term {
			return false
		}
	}
	l.StudiedWords = append(l.StudiedWords, term)
	l.StudiedWordCount = len(l.StudiedWords)
	return true
}

// StudyLog maps a calendar date (DateLayout) to its DailyLog.
type StudyLog map[string]DailyLog
