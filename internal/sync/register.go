package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/conorfennell/vocadeck/internal/domain"
	"github.com/conorfennell/vocadeck/internal/parser"
	"github.com/conorfennell/vocadeck/pkg/validator"
)

// Outcome is what registering one entry did to the deck.
type Outcome int

const (
	// Added means the term was new.
	Added Outcome = iota
	// Merged means the term existed and gained at least one meaning.
	Merged
	// Duplicate means the term existed with all of the given meanings.
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Merged:
		return "merged"
	default:
		return "duplicate"
	}
}

// WordRegistry is the part of the word store registration needs.
type WordRegistry interface {
	GetWord(ctx context.Context, deck, term string) (*domain.WordEntry, error)
	InsertWordEntry(ctx context.Context, deck string, w domain.WordEntry) error
	SaveWordEntry(ctx context.Context, deck string, w domain.WordEntry) error
}

// Register adds e to deck. A new term gets stats for every direction first
// due at now+delay; an existing term keeps its stats and gains any new meanings.
func Register(ctx context.Context, store WordRegistry, deck string, e parser.Entry, now time.Time, delay time.Duration) (Outcome, error) {
	entry := domain.NewWordEntry(e.Term, e.Meanings, e.Example, now, delay)
	if err := validator.ValidateStruct(entry); err != nil {
		return Duplicate, fmt.Errorf("invalid word %q: %w", e.Term, err)
	}

	existing, err := store.GetWord(ctx, deck, e.Term)
	if err != nil {
		return Duplicate, fmt.Errorf("failed to look up word %s: %w", e.Term, err)
	}
	if existing == nil {
		if err := store.InsertWordEntry(ctx, deck, entry); err != nil {
			return Duplicate, fmt.Errorf("failed to register word %s: %w", e.Term, err)
		}
		return Added, nil
	}

	added := existing.MergeMeanings(e.Meanings)
	if existing.Example == "" && e.Example != "" {
		existing.Example = e.Example
		added++
	}
	if added == 0 {
		return Duplicate, nil
	}
	if err := store.SaveWordEntry(ctx, deck, *existing); err != nil {
		return Duplicate, fmt.Errorf("failed to merge word %s: %w", e.Term, err)
	}
	return Merged, nil
}
