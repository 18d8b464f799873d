package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/vocadeck/internal/domain"
	"github.com/conorfennell/vocadeck/internal/review"
)

// ErrWordExists is returned when inserting a term that is already in the deck.
var ErrWordExists = errors.New("storage: word already exists")

// DB is the SQLite word store.
type DB struct {
	conn *sqlx.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers; a single connection avoids SQLITE_BUSY under the HTTP server.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

type deckRow struct {
	Name           string    `db:"name"`
	NativeLanguage string    `db:"native_lang"`
	StudyLanguage  string    `db:"study_lang"`
	CreatedAt      time.Time `db:"created_at"`
}

// CreateDeck creates a deck, or updates the language pair of an existing one.
func (db *DB) CreateDeck(ctx context.Context, name string, settings domain.DeckSettings) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO decks (name, native_lang, study_lang, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET native_lang = excluded.native_lang, study_lang = excluded.study_lang
	`, name, settings.NativeLanguage, settings.StudyLanguage, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create deck %s: %w", name, err)
	}
	return nil
}

// ListDecks returns every deck name in alphabetical order.
func (db *DB) ListDecks(ctx context.Context) ([]string, error) {
	var names []string
	if err := db.conn.SelectContext(ctx, &names, `SELECT name FROM decks ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	return names, nil
}

// GetDeckSettings returns the language pair of deck.
func (db *DB) GetDeckSettings(ctx context.Context, deck string) (domain.DeckSettings, error) {
	var row deckRow
	err := db.conn.GetContext(ctx, &row, `
		SELECT name, native_lang, study_lang, created_at FROM decks WHERE name = ?
	`, deck)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DeckSettings{}, fmt.Errorf("deck %s: %w", deck, review.ErrUnknownDeck)
	}
	if err != nil {
		return domain.DeckSettings{}, fmt.Errorf("failed to get settings for deck %s: %w", deck, err)
	}
	return domain.DeckSettings{NativeLanguage: row.NativeLanguage, StudyLanguage: row.StudyLanguage}, nil
}

func (db *DB) deckExists(ctx context.Context, q sqlx.QueryerContext, deck string) error {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM decks WHERE name = ?`, deck); err != nil {
		return fmt.Errorf("failed to check deck %s: %w", deck, err)
	}
	if n == 0 {
		return fmt.Errorf("deck %s: %w", deck, review.ErrUnknownDeck)
	}
	return nil
}

type wordRow struct {
	Term      string    `db:"term"`
	Meanings  string    `db:"meanings"`
	Example   string    `db:"example"`
	CreatedAt time.Time `db:"created_at"`
}

type statsRow struct {
	Term           string       `db:"term"`
	Direction      string       `db:"direction"`
	CorrectCount   int          `db:"correct_cnt"`
	IncorrectCount int          `db:"incorrect_cnt"`
	QuestionMode   string       `db:"prob_mode"`
	LastReviewed   sql.NullTime `db:"last_reviewed"`
	NextReview     sql.NullTime `db:"next_review"`
}

func (r statsRow) stats() domain.DirectionStats {
	s := domain.DirectionStats{
		CorrectCount:   r.CorrectCount,
		IncorrectCount: r.IncorrectCount,
		QuestionMode:   domain.QuestionMode(r.QuestionMode),
	}
	if r.LastReviewed.Valid {
		t := r.LastReviewed.Time
		s.LastReviewedAt = &t
	}
	if r.NextReview.Valid {
		t := r.NextReview.Time
		s.NextReviewAt = &t
	}
	return s
}

func (r wordRow) entry() (domain.WordEntry, error) {
	w := domain.WordEntry{
		Term:        r.Term,
		Example:     r.Example,
		CreatedAt:   r.CreatedAt,
		ReviewStats: make(map[domain.Direction]domain.DirectionStats, len(domain.Directions)),
	}
	if err := json.Unmarshal([]byte(r.Meanings), &w.Meanings); err != nil {
		return w, fmt.Errorf("failed to decode meanings of %s: %w", r.Term, err)
	}
	return w, nil
}

// GetWordsForDeck returns every word of deck, in insertion order, with its stats.
func (db *DB) GetWordsForDeck(ctx context.Context, deck string) ([]domain.WordEntry, error) {
	if err := db.deckExists(ctx, db.conn, deck); err != nil {
		return nil, err
	}

	var rows []wordRow
	if err := db.conn.SelectContext(ctx, &rows, `
		SELECT term, meanings, example, created_at FROM words WHERE deck = ? ORDER BY rowid
	`, deck); err != nil {
		return nil, fmt.Errorf("failed to get words for deck %s: %w", deck, err)
	}

	var stats []statsRow
	if err := db.conn.SelectContext(ctx, &stats, `
		SELECT term, direction, correct_cnt, incorrect_cnt, prob_mode, last_reviewed, next_review
		FROM word_stats WHERE deck = ?
	`, deck); err != nil {
		return nil, fmt.Errorf("failed to get word stats for deck %s: %w", deck, err)
	}

	words := make([]domain.WordEntry, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, r := range rows {
		w, err := r.entry()
		if err != nil {
			return nil, err
		}
		index[w.Term] = len(words)
		words = append(words, w)
	}
	for _, s := range stats {
		if i, ok := index[s.Term]; ok {
			words[i].ReviewStats[domain.Direction(s.Direction)] = s.stats()
		}
	}
	return words, nil
}

// GetWord returns one word of deck, or nil if the term is not registered.
func (db *DB) GetWord(ctx context.Context, deck, term string) (*domain.WordEntry, error) {
	var row wordRow
	err := db.conn.GetContext(ctx, &row, `
		SELECT term, meanings, example, created_at FROM words WHERE deck = ? AND term = ?
	`, deck, term)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get word %s: %w", term, err)
	}
	w, err := row.entry()
	if err != nil {
		return nil, err
	}

	var stats []statsRow
	if err := db.conn.SelectContext(ctx, &stats, `
		SELECT term, direction, correct_cnt, incorrect_cnt, prob_mode, last_reviewed, next_review
		FROM word_stats WHERE deck = ? AND term = ?
	`, deck, term); err != nil {
		return nil, fmt.Errorf("failed to get stats for word %s: %w", term, err)
	}
	for _, s := range stats {
		w.ReviewStats[domain.Direction(s.Direction)] = s.stats()
	}
	return &w, nil
}

// InsertWordEntry registers a new word in deck.
func (db *DB) InsertWordEntry(ctx context.Context, deck string, w domain.WordEntry) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.deckExists(ctx, tx, deck); err != nil {
			return err
		}
		var n int
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM words WHERE deck = ? AND term = ?`, deck, w.Term); err != nil {
			return fmt.Errorf("failed to check word %s: %w", w.Term, err)
		}
		if n > 0 {
			return fmt.Errorf("word %s: %w", w.Term, ErrWordExists)
		}
		meanings, err := json.Marshal(w.Meanings)
		if err != nil {
			return fmt.Errorf("failed to encode meanings of %s: %w", w.Term, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO words (deck, term, meanings, example, created_at) VALUES (?, ?, ?, ?, ?)
		`, deck, w.Term, string(meanings), w.Example, w.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert word %s: %w", w.Term, err)
		}
		return upsertStats(ctx, tx, deck, w)
	})
}

// SaveWordEntry writes back an existing word and all of its stats.
func (db *DB) SaveWordEntry(ctx context.Context, deck string, w domain.WordEntry) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.deckExists(ctx, tx, deck); err != nil {
			return err
		}
		meanings, err := json.Marshal(w.Meanings)
		if err != nil {
			return fmt.Errorf("failed to encode meanings of %s: %w", w.Term, err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE words SET meanings = ?, example = ? WHERE deck = ? AND term = ?
		`, string(meanings), w.Example, deck, w.Term)
		if err != nil {
			return fmt.Errorf("failed to update word %s: %w", w.Term, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to update word %s: %w", w.Term, err)
		} else if n == 0 {
			return fmt.Errorf("word %s: %w", w.Term, review.ErrUnknownWord)
		}
		return upsertStats(ctx, tx, deck, w)
	})
}

func upsertStats(ctx context.Context, tx *sqlx.Tx, deck string, w domain.WordEntry) error {
	for d, s := range w.ReviewStats {
		row := statsRow{
			Term:           w.Term,
			Direction:      string(d),
			CorrectCount:   s.CorrectCount,
			IncorrectCount: s.IncorrectCount,
			QuestionMode:   string(s.QuestionMode),
		}
		if row.QuestionMode == "" {
			row.QuestionMode = string(domain.Objective)
		}
		if s.LastReviewedAt != nil {
			row.LastReviewed = sql.NullTime{Time: *s.LastReviewedAt, Valid: true}
		}
		if s.NextReviewAt != nil {
			row.NextReview = sql.NullTime{Time: *s.NextReviewAt, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO word_stats (deck, term, direction, correct_cnt, incorrect_cnt, prob_mode, last_reviewed, next_review)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (deck, term, direction) DO UPDATE SET
				correct_cnt = excluded.correct_cnt,
				incorrect_cnt = excluded.incorrect_cnt,
				prob_mode = excluded.prob_mode,
				last_reviewed = excluded.last_reviewed,
				next_review = excluded.next_review
		`, deck, row.Term, row.Direction, row.CorrectCount, row.IncorrectCount, row.QuestionMode, row.LastReviewed, row.NextReview); err != nil {
			return fmt.Errorf("failed to save %s stats for word %s: %w", d, w.Term, err)
		}
	}
	return nil
}

func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
