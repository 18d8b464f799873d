package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/conorfennell/vocadeck/internal/domain"
)

type dailyLogRow struct {
	Date           string `db:"date"`
	CorrectCount   int    `db:"correct_count"`
	IncorrectCount int    `db:"incorrect_count"`
	StudyMinutes   int    `db:"study_minutes"`
	StudiedWords   string `db:"studied_words"`
	Sessions       string `db:"sessions"`
}

func (r dailyLogRow) log() (domain.DailyLog, error) {
	l := domain.DailyLog{
		CorrectCount:   r.CorrectCount,
		IncorrectCount: r.IncorrectCount,
		StudyMinutes:   r.StudyMinutes,
	}
	if err := json.Unmarshal([]byte(r.StudiedWords), &l.StudiedWords); err != nil {
		return l, fmt.Errorf("failed to decode studied words for %s: %w", r.Date, err)
	}
	if err := json.Unmarshal([]byte(r.Sessions), &l.Sessions); err != nil {
		return l, fmt.Errorf("failed to decode sessions for %s: %w", r.Date, err)
	}
	l.StudiedWordCount = len(l.StudiedWords)
	return l, nil
}

// GetDailyLog returns the log of deck for date, or nil if nothing was studied that day.
func (db *DB) GetDailyLog(ctx context.Context, deck, date string) (*domain.DailyLog, error) {
	var row dailyLogRow
	err := db.conn.GetContext(ctx, &row, `
		SELECT date, correct_count, incorrect_count, study_minutes, studied_words, sessions
		FROM study_log WHERE deck = ? AND date = ?
	`, deck, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get study log for %s on %s: %w", deck, date, err)
	}
	l, err := row.log()
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// SaveDailyLog replaces the log of deck for date.
func (db *DB) SaveDailyLog(ctx context.Context, deck, date string, l domain.DailyLog) error {
	if err := db.deckExists(ctx, db.conn, deck); err != nil {
		return err
	}
	words, err := json.Marshal(nonNil(l.StudiedWords))
	if err != nil {
		return fmt.Errorf("failed to encode studied words: %w", err)
	}
	sessions, err := json.Marshal(l.Sessions)
	if err != nil {
		return fmt.Errorf("failed to encode sessions: %w", err)
	}
	if l.Sessions == nil {
		sessions = []byte("[]")
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO study_log (deck, date, correct_count, incorrect_count, study_minutes, studied_words, sessions)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (deck, date) DO UPDATE SET
			correct_count = excluded.correct_count,
			incorrect_count = excluded.incorrect_count,
			study_minutes = excluded.study_minutes,
			studied_words = excluded.studied_words,
			sessions = excluded.sessions
	`, deck, date, l.CorrectCount, l.IncorrectCount, l.StudyMinutes, string(words), string(sessions))
	if err != nil {
		return fmt.Errorf("failed to save study log for %s on %s: %w", deck, date, err)
	}
	return nil
}

// GetStudyLog returns every daily log of deck.
func (db *DB) GetStudyLog(ctx context.Context, deck string) (domain.StudyLog, error) {
	if err := db.deckExists(ctx, db.conn, deck); err != nil {
		return nil, err
	}
	var rows []dailyLogRow
	if err := db.conn.SelectContext(ctx, &rows, `
		SELECT date, correct_count, incorrect_count, study_minutes, studied_words, sessions
		FROM study_log WHERE deck = ?
	`, deck); err != nil {
		return nil, fmt.Errorf("failed to get study log for %s: %w", deck, err)
	}
	log := make(domain.StudyLog, len(rows))
	for _, r := range rows {
		l, err := r.log()
		if err != nil {
			return nil, err
		}
		log[r.Date] = l
	}
	return log, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
