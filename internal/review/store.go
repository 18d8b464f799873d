package review

import (
	"context"

	"github.com/conorfennell/vocadeck/internal/domain"
)

// WordStore is the persistence boundary of the review engine. Implementations
// return ErrUnknownDeck for decks that do not exist and ErrUnknownWord when
// saving a word that is not part of its deck.
type WordStore interface {
	GetWordsForDeck(ctx context.Context, deck string) ([]domain.WordEntry, error)
	SaveWordEntry(ctx context.Context, deck string, word domain.WordEntry) error
	GetDeckSettings(ctx context.Context, deck string) (domain.DeckSettings, error)

	// GetDailyLog returns nil, nil when no log exists for date.
	GetDailyLog(ctx context.Context, deck, date string) (*domain.DailyLog, error)
	SaveDailyLog(ctx context.Context, deck, date string, log domain.DailyLog) error
}
