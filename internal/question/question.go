// Package question holds the read-only question bank and the policy for
// picking the next question for a concept and difficulty.
package question

import (
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/tutor/internal/apperr"
	"github.com/abhisek/tutor/internal/concept"
	"github.com/abhisek/tutor/internal/difficulty"
)

// DefaultSolveTime is used when a question has no average solve time.
const DefaultSolveTime = 30 * time.Second

// Question is reference metadata for one quiz item.
type Question struct {
	ID           string
	ConceptID    string
	Difficulty   difficulty.Level
	Bloom        concept.BloomLevel
	AvgSolveTime time.Duration
}

// New validates q and fills defaults.
func New(q Question) (Question, error) {
	q.ID = strings.TrimSpace(q.ID)
	q.ConceptID = strings.TrimSpace(q.ConceptID)

	var problems []string
	if q.ID == "" {
		problems = append(problems, "question ID is empty")
	}
	if q.ConceptID == "" {
		problems = append(problems, fmt.Sprintf("question %q: concept is empty", q.ID))
	}
	if !q.Difficulty.Valid() {
		problems = append(problems, fmt.Sprintf("question %q: invalid difficulty %d", q.ID, int(q.Difficulty)))
	}
	if q.Bloom == concept.BloomUnknown {
		q.Bloom = concept.BloomUnderstand
	} else if !q.Bloom.Valid() {
		problems = append(problems, fmt.Sprintf("question %q: invalid bloom level %d", q.ID, int(q.Bloom)))
	}
	if q.AvgSolveTime < 0 {
		problems = append(problems, fmt.Sprintf("question %q: negative solve time", q.ID))
	}
	if len(problems) > 0 {
		return Question{}, &apperr.ConfigurationError{Problems: problems}
	}
	if q.AvgSolveTime == 0 {
		q.AvgSolveTime = DefaultSolveTime
	}
	return q, nil
}

// Stats is the running record of answers to one question.
type Stats struct {
	Attempts  int
	Correct   int
	TotalTime time.Duration
}

// DifficultyIndex is the fraction of wrong answers, 0.5 when unseen.
func (s Stats) DifficultyIndex() float64 {
	if s.Attempts == 0 {
		return 0.5
	}
	return 1 - float64(s.Correct)/float64(s.Attempts)
}

// AvgTime is the mean time spent, or 0 when unseen.
func (s Stats) AvgTime() time.Duration {
	if s.Attempts == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.Attempts)
}
