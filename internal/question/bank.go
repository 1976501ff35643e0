package question

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/abhisek/tutor/internal/apperr"
	"github.com/abhisek/tutor/internal/difficulty"
)

type key struct {
	conceptID string
	level     difficulty.Level
}

// Bank is an immutable set of questions indexed by concept and difficulty.
// Only the per-question statistics change after construction.
type Bank struct {
	questions []Question
	byID      map[string]Question
	byKey     map[key][]Question
	concepts  map[string]bool

	mu    sync.Mutex
	stats map[string]*Stats
}

// NewBank validates every question and indexes the set. All problems are
// reported together.
func NewBank(questions []Question) (*Bank, error) {
	var problems []string
	b := &Bank{
		byID:     make(map[string]Question, len(questions)),
		byKey:    make(map[key][]Question),
		concepts: make(map[string]bool),
		stats:    make(map[string]*Stats, len(questions)),
	}

	for _, raw := range questions {
		q, err := New(raw)
		if err != nil {
			var cfgErr *apperr.ConfigurationError
			if errors.As(err, &cfgErr) {
				problems = append(problems, cfgErr.Problems...)
			} else {
				problems = append(problems, err.Error())
			}
			continue
		}
		if _, dup := b.byID[q.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate question ID %q", q.ID))
			continue
		}
		b.byID[q.ID] = q
		b.questions = append(b.questions, q)
	}
	if len(problems) > 0 {
		return nil, &apperr.ConfigurationError{Problems: problems}
	}

	sort.Slice(b.questions, func(i, j int) bool { return b.questions[i].ID < b.questions[j].ID })
	for _, q := range b.questions {
		k := key{q.ConceptID, q.Difficulty}
		b.byKey[k] = append(b.byKey[k], q)
		b.concepts[q.ConceptID] = true
		b.stats[q.ID] = &Stats{}
	}
	return b, nil
}

// Len returns the number of questions.
func (b *Bank) Len() int { return len(b.questions) }

// All returns every question ordered by ID.
func (b *Bank) All() []Question {
	out := make([]Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// Get returns a question by ID.
func (b *Bank) Get(id string) (Question, error) {
	q, ok := b.byID[id]
	if !ok {
		return Question{}, apperr.NotFound(apperr.KindQuestion, id)
	}
	return q, nil
}

// Candidates returns the questions for a concept and difficulty, ordered by ID.
func (b *Bank) Candidates(conceptID string, level difficulty.Level) []Question {
	qs := b.byKey[key{conceptID, level}]
	out := make([]Question, len(qs))
	copy(out, qs)
	return out
}

// HasConcept reports whether any question covers conceptID.
func (b *Bank) HasConcept(conceptID string) bool {
	return b.concepts[conceptID]
}

// Concepts returns the IDs of all concepts with at least one question, sorted.
func (b *Bank) Concepts() []string {
	ids := make([]string, 0, len(b.concepts))
	for id := range b.concepts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RecordAttempt updates the statistics of a question.
func (b *Bank) RecordAttempt(id string, correct bool, timeSpent time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.stats[id]
	if !ok {
		return apperr.NotFound(apperr.KindQuestion, id)
	}
	s.Attempts++
	if correct {
		s.Correct++
	}
	s.TotalTime += timeSpent
	return nil
}

// Stats returns a copy of a question's statistics.
func (b *Bank) Stats(id string) (Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.stats[id]
	if !ok {
		return Stats{}, apperr.NotFound(apperr.KindQuestion, id)
	}
	return *s, nil
}

// Aggregate summarises a group of questions.
type Aggregate struct {
	Count              int
	AvgDifficultyIndex float64
}

// Summary is bank-wide statistics grouped by difficulty and by concept.
type Summary struct {
	Total        int
	ByDifficulty map[difficulty.Level]Aggregate
	ByConcept    map[string]Aggregate
}

// Summary computes bank-wide statistics.
func (b *Bank) Summary() Summary {
	b.mu.Lock()
	defer b.mu.Unlock()

	sum := Summary{
		Total:        len(b.questions),
		ByDifficulty: make(map[difficulty.Level]Aggregate),
		ByConcept:    make(map[string]Aggregate),
	}
	for _, q := range b.questions {
		idx := b.stats[q.ID].DifficultyIndex()
		d := sum.ByDifficulty[q.Difficulty]
		d.Count++
		d.AvgDifficultyIndex += idx
		sum.ByDifficulty[q.Difficulty] = d

		c := sum.ByConcept[q.ConceptID]
		c.Count++
		c.AvgDifficultyIndex += idx
		sum.ByConcept[q.ConceptID] = c
	}
	for k, a := range sum.ByDifficulty {
		a.AvgDifficultyIndex /= float64(a.Count)
		sum.ByDifficulty[k] = a
	}
	for k, a := range sum.ByConcept {
		a.AvgDifficultyIndex /= float64(a.Count)
		sum.ByConcept[k] = a
	}
	return sum
}
