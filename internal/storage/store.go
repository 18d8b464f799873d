package storage

import (
	"context"
	"time"

	"github.com/conorfennell/vocadeck/internal/domain"
	"github.com/conorfennell/vocadeck/internal/review"
)

// Store is the full word store: the review engine boundary plus the deck,
// word registration, reporting and source management used around it.
type Store interface {
	review.WordStore

	CreateDeck(ctx context.Context, name string, settings domain.DeckSettings) error
	ListDecks(ctx context.Context) ([]string, error)
	// GetWord returns nil, nil when term is not registered.
	GetWord(ctx context.Context, deck, term string) (*domain.WordEntry, error)
	InsertWordEntry(ctx context.Context, deck string, w domain.WordEntry) error
	// ListWords returns the words of deck sorted by term.
	ListWords(ctx context.Context, deck string) ([]domain.WordEntry, error)
	// UpdateWord replaces the meanings and example of a word, keeping its stats.
	UpdateWord(ctx context.Context, deck string, w domain.WordEntry) error
	DeleteWord(ctx context.Context, deck, term string) error
	// DeleteDeck removes the deck with its words, study log and sources.
	DeleteDeck(ctx context.Context, deck string) error
	GetStudyLog(ctx context.Context, deck string) (domain.StudyLog, error)

	InsertSource(ctx context.Context, deck, path string, typ domain.SourceType) (int64, error)
	ListSources(ctx context.Context) ([]domain.Source, error)
	UpdateSourceLastScanned(ctx context.Context, id int64, at time.Time) error
	DeleteSource(ctx context.Context, id int64) error

	Close() error
}

var _ Store = (*DB)(nil)
