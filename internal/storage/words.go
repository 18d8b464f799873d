package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/conorfennell/vocadeck/internal/domain"
	"github.com/conorfennell/vocadeck/internal/review"
)

// ListWords returns every word of deck with its stats, sorted by term.
func (db *DB) ListWords(ctx context.Context, deck string) ([]domain.WordEntry, error) {
	words, err := db.GetWordsForDeck(ctx, deck)
	if err != nil {
		return nil, err
	}
	sort.Slice(words, func(i, j int) bool { return words[i].Term < words[j].Term })
	return words, nil
}

// UpdateWord replaces the meanings and example of an existing word. Review
// stats and the creation time are left as they are.
func (db *DB) UpdateWord(ctx context.Context, deck string, w domain.WordEntry) error {
	if err := db.deckExists(ctx, db.conn, deck); err != nil {
		return err
	}
	meanings, err := json.Marshal(w.Meanings)
	if err != nil {
		return fmt.Errorf("failed to encode meanings of %s: %w", w.Term, err)
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE words SET meanings = ?, example = ? WHERE deck = ? AND term = ?
	`, string(meanings), w.Example, deck, w.Term)
	return expectOne(res, err, "update word", w.Term)
}

// DeleteWord removes a word and, through the foreign key, its stats.
func (db *DB) DeleteWord(ctx context.Context, deck, term string) error {
	if err := db.deckExists(ctx, db.conn, deck); err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx, `DELETE FROM words WHERE deck = ? AND term = ?`, deck, term)
	return expectOne(res, err, "delete word", term)
}

// DeleteDeck removes a deck together with its words, study log and sources.
func (db *DB) DeleteDeck(ctx context.Context, deck string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM decks WHERE name = ?`, deck)
	if err != nil {
		return fmt.Errorf("failed to delete deck %s: %w", deck, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete deck %s: %w", deck, err)
	}
	if n == 0 {
		return fmt.Errorf("deck %s: %w", deck, review.ErrUnknownDeck)
	}
	return nil
}

// expectOne maps a statement that touched no word row to review.ErrUnknownWord.
func expectOne(res sql.Result, err error, action, term string) error {
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", action, term, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", action, term, err)
	}
	if n == 0 {
		return fmt.Errorf("word %s: %w", term, review.ErrUnknownWord)
	}
	return nil
}
