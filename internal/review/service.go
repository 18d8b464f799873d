package review

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conorfennell/vocadeck/internal/domain"
	"github.com/conorfennell/vocadeck/internal/interval"
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	Policy            interval.Policy // nil → interval.Exponential
	Mastery           MasteryRule     // zero → DefaultMasteryRule
	MaxDistractors    int             // zero → DefaultMaxDistractors
	NearMissThreshold float64         // zero → DefaultNearMissThreshold
	Seed              int64           // zero → seeded from the clock
}

// Service selects due words and starts review sessions against a WordStore.
type Service struct {
	store     WordStore
	policy    interval.Policy
	mastery   MasteryRule
	maxDistr  int
	threshold float64
	log       *zap.Logger

	mu   sync.Mutex
	seed *rand.Rand
}

// NewService creates a Service.
func NewService(store WordStore, opts Options, log *zap.Logger) *Service {
	if opts.Policy == nil {
		opts.Policy = interval.Exponential{}
	}
	if opts.Mastery == (MasteryRule{}) {
		opts.Mastery = DefaultMasteryRule
	}
	if opts.MaxDistractors <= 0 {
		opts.MaxDistractors = DefaultMaxDistractors
	}
	if opts.NearMissThreshold <= 0 {
		opts.NearMissThreshold = DefaultNearMissThreshold
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:     store,
		policy:    opts.Policy,
		mastery:   opts.Mastery,
		maxDistr:  opts.MaxDistractors,
		threshold: opts.NearMissThreshold,
		log:       log,
		seed:      rand.New(rand.NewSource(opts.Seed)),
	}
}

// Policy returns the interval policy in use.
func (s *Service) Policy() interval.Policy {
	return s.policy
}

// SelectDueWords returns the words of deck due in direction d at now.
func (s *Service) SelectDueWords(ctx context.Context, deck string, d domain.Direction, now time.Time) ([]domain.WordEntry, error) {
	words, err := s.store.GetWordsForDeck(ctx, deck)
	if err != nil {
		return nil, fmt.Errorf("failed to load words for deck %s: %w", deck, err)
	}
	return SelectDue(words, d, now), nil
}

// StartSession loads deck and starts a session over the words due at now.
// It returns ErrNoWordsDue, and no session, when nothing is due.
func (s *Service) StartSession(ctx context.Context, deck string, d domain.Direction, now time.Time) (*Session, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("failed to start session: unknown direction %q", d)
	}
	settings, err := s.store.GetDeckSettings(ctx, deck)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings for deck %s: %w", deck, err)
	}
	words, err := s.store.GetWordsForDeck(ctx, deck)
	if err != nil {
		return nil, fmt.Errorf("failed to load words for deck %s: %w", deck, err)
	}

	queue := selectDue(words, d, now)
	if len(queue) == 0 {
		return nil, ErrNoWordsDue
	}

	rng := s.newRand()
	rng.Shuffle(len(queue), func(i, j int) {
		queue[i], queue[j] = queue[j], queue[i]
	})

	sess := &Session{
		ID:        uuid.NewString(),
		svc:       s,
		deck:      deck,
		settings:  settings,
		direction: d,
		words:     words,
		queue:     queue,
		studied:   make(map[string]bool),
		startedAt: now,
		state:     Active,
		rng:       rng,
		generator: NewGenerator(rng, s.maxDistr),
	}
	s.log.Info("review session started",
		zap.String("session", sess.ID),
		zap.String("deck", deck),
		zap.String("direction", string(d)),
		zap.Int("due", len(queue)),
	)
	return sess, nil
}

func (s *Service) newRand() *rand.Rand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rand.New(rand.NewSource(s.seed.Int63()))
}
