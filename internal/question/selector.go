package question

import (
	"math/rand/v2"
	"sync"

	"github.com/abhisek/tutor/internal/apperr"
	"github.com/abhisek/tutor/internal/difficulty"
	"github.com/abhisek/tutor/internal/logger"
)

// SelectorOptions configures a Selector.
type SelectorOptions struct {
	// Rand is the source for uniform choice. Tests pass a seeded one.
	Rand *rand.Rand

	// AllowRepeats falls back to already-served questions once every
	// candidate has been served.
	AllowRepeats bool

	// KnownConcept reports whether a concept exists. Nil accepts any concept.
	KnownConcept func(conceptID string) bool

	Logger *logger.Logger
}

// Selector picks the next question for a concept and difficulty.
type Selector struct {
	bank         *Bank
	allowRepeats bool
	known        func(string) bool
	log          *logger.Logger

	mu  sync.Mutex // rand.Rand is not safe for concurrent use
	rng *rand.Rand
}

// NewSelector creates a selector over bank.
func NewSelector(bank *Bank, opts SelectorOptions) *Selector {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{
		bank:         bank,
		allowRepeats: opts.AllowRepeats,
		known:        opts.KnownConcept,
		log:          logger.OrNop(opts.Logger),
		rng:          rng,
	}
}

// Bank returns the underlying bank.
func (s *Selector) Bank() *Bank { return s.bank }

// SelectNext picks uniformly among questions for conceptID at level that are
// not in excluded. When all were served and repeats are allowed it picks
// among the served ones instead. A pair with no questions at all yields a
// NoQuestionAvailableError; with repeats disabled, running out of unserved
// questions yields one with Exhausted set.
func (s *Selector) SelectNext(conceptID string, level difficulty.Level, excluded map[string]bool) (Question, error) {
	if s.known != nil && !s.known(conceptID) {
		return Question{}, apperr.NotFound(apperr.KindConcept, conceptID)
	}
	if !level.Valid() {
		return Question{}, apperr.InvalidState("invalid difficulty %d", int(level))
	}

	all := s.bank.Candidates(conceptID, level)
	if len(all) == 0 {
		return Question{}, &apperr.NoQuestionAvailableError{ConceptID: conceptID, Difficulty: level.String()}
	}

	fresh := make([]Question, 0, len(all))
	for _, q := range all {
		if !excluded[q.ID] {
			fresh = append(fresh, q)
		}
	}
	if len(fresh) > 0 {
		return s.pick(fresh), nil
	}

	if !s.allowRepeats {
		return Question{}, &apperr.NoQuestionAvailableError{ConceptID: conceptID, Difficulty: level.String(), Exhausted: true}
	}
	s.log.Warn("all questions served, repeating",
		"concept", conceptID,
		"difficulty", level.String(),
		"candidates", len(all),
	)
	return s.pick(all), nil
}

func (s *Selector) pick(qs []Question) Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return qs[s.rng.IntN(len(qs))]
}
