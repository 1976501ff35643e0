// Package quiz runs an adaptive quiz session for one student and concept.
package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/tutor/internal/apperr"
	"github.com/abhisek/tutor/internal/difficulty"
	"github.com/abhisek/tutor/internal/knowledge"
	"github.com/abhisek/tutor/internal/logger"
	"github.com/abhisek/tutor/internal/mastery"
	"github.com/abhisek/tutor/internal/question"
	"github.com/abhisek/tutor/internal/store"
)

const (
	// MaxQuestions caps a session.
	MaxQuestions = 10

	// MinQuestions are always asked before convergence is considered.
	MinQuestions = 3

	// recentResponses is how many answers ShouldContinue looks at.
	recentResponses = 5
)

// EventLog receives every recorded interaction.
type EventLog interface {
	AppendInteraction(ctx context.Context, data store.InteractionEventData) (int64, error)
}

// Options configures a Session.
type Options struct {
	// Window is the difficulty window. Ignored when Adaptor is set.
	Window int

	// Adaptor seeds the session, e.g. from a previous session's Continue.
	Adaptor *difficulty.Adaptor

	// MaxQuestions overrides the package default when positive.
	MaxQuestions int

	// Events may be nil, in which case nothing is logged.
	Events EventLog

	Logger *logger.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// response is one answered question.
type response struct {
	QuestionID string
	ConceptID  string
	Correct    bool
	TimeSpent  time.Duration
	Difficulty difficulty.Level
}

// Session is the ephemeral state of one quiz run. It is not safe for
// concurrent use.
type Session struct {
	ID        string
	StudentID string
	ConceptID string

	engine   *knowledge.Engine
	selector *question.Selector
	adaptor  *difficulty.Adaptor
	events   EventLog
	log      *logger.Logger
	now      func() time.Time
	maxQ     int

	served     map[string]bool
	attempts   map[string]int
	responses  []response
	streak     int
	bestStreak int
	startedAt  time.Time
}

// Start begins a session for studentID on conceptID.
func Start(studentID, conceptID string, engine *knowledge.Engine, selector *question.Selector, opts Options) (*Session, error) {
	if studentID == "" {
		return nil, apperr.InvalidState("quiz requires a student ID")
	}
	if !engine.Catalog().Has(conceptID) {
		return nil, apperr.NotFound(apperr.KindConcept, conceptID)
	}

	adaptor := opts.Adaptor
	if adaptor == nil {
		var err error
		adaptor, err = difficulty.New(opts.Window)
		if err != nil {
			return nil, err
		}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	maxQ := opts.MaxQuestions
	if maxQ <= 0 {
		maxQ = MaxQuestions
	}

	s := &Session{
		ID:        uuid.NewString(),
		StudentID: studentID,
		ConceptID: conceptID,
		engine:    engine,
		selector:  selector,
		adaptor:   adaptor,
		events:    opts.Events,
		now:       now,
		maxQ:      maxQ,
		served:    make(map[string]bool),
		attempts:  make(map[string]int),
		startedAt: now(),
	}
	s.log = logger.OrNop(opts.Logger).With("session", s.ID, "student", studentID, "concept", conceptID)
	s.log.Info("quiz session started", "difficulty", adaptor.Level().String())
	return s, nil
}

// Difficulty is the level the next question will be drawn from.
func (s *Session) Difficulty() difficulty.Level { return s.adaptor.Level() }

// Adaptor exposes the difficulty state, e.g. to Continue into a new session.
func (s *Session) Adaptor() *difficulty.Adaptor { return s.adaptor }

// Next selects a question for the session's concept at the current difficulty.
func (s *Session) Next() (question.Question, error) {
	q, err := s.selector.SelectNext(s.ConceptID, s.adaptor.Level(), s.served)
	if err != nil {
		return question.Question{}, err
	}
	s.log.Debug("question selected", "question", q.ID, "difficulty", q.Difficulty.String())
	return q, nil
}

// Result is returned by RecordResponse.
type Result struct {
	Sequence   int64
	Accuracy   float64
	Streak     int
	Difficulty difficulty.Level
	Mastery    mastery.Probability
	Feedback   string
}

// RecordResponse logs an answer, updates mastery and re-evaluates difficulty.
// The interaction is appended to the event log first; if that fails nothing
// else changes.
func (s *Session) RecordResponse(ctx context.Context, questionID string, correct bool, timeSpent time.Duration) (Result, error) {
	q, err := s.selector.Bank().Get(questionID)
	if err != nil {
		return Result{}, err
	}
	if !s.engine.Catalog().Has(q.ConceptID) {
		return Result{}, apperr.NotFound(apperr.KindConcept, q.ConceptID)
	}
	if timeSpent < 0 {
		return Result{}, apperr.InvalidState("negative time spent on %s", questionID)
	}
	attemptNo := s.attempts[questionID] + 1

	var seq int64
	if s.events != nil {
		seq, err = s.events.AppendInteraction(ctx, store.InteractionEventData{
			StudentID:  s.StudentID,
			ConceptID:  q.ConceptID,
			QuestionID: q.ID,
			Correct:    correct,
			TimeSpent:  timeSpent,
			AttemptNo:  attemptNo,
			Timestamp:  s.now(),
			SessionID:  s.ID,
			Difficulty: q.Difficulty.String(),
		})
		if err != nil {
			return Result{}, fmt.Errorf("log interaction: %w", err)
		}
	}

	p, err := s.engine.Apply(s.StudentID, q.ConceptID, correct)
	if err != nil {
		return Result{}, err
	}

	s.served[q.ID] = true
	s.attempts[q.ID] = attemptNo
	s.responses = append(s.responses, response{
		QuestionID: q.ID,
		ConceptID:  q.ConceptID,
		Correct:    correct,
		TimeSpent:  timeSpent,
		Difficulty: q.Difficulty,
	})
	if correct {
		s.streak++
		if s.streak > s.bestStreak {
			s.bestStreak = s.streak
		}
	} else {
		s.streak = 0
	}
	level := s.adaptor.Record(correct)
	if err := s.selector.Bank().RecordAttempt(q.ID, correct, timeSpent); err != nil {
		return Result{}, err
	}

	res := Result{
		Sequence:   seq,
		Accuracy:   s.adaptor.Accuracy(),
		Streak:     s.streak,
		Difficulty: level,
		Mastery:    p,
		Feedback:   Feedback(q, correct, timeSpent),
	}
	s.log.Info("response recorded",
		"question", q.ID,
		"correct", correct,
		"attempt", attemptNo,
		"mastery", p.Float(),
		"next_difficulty", level.String(),
	)
	return res, nil
}

// Feedback is the message shown after an answer.
func Feedback(q question.Question, correct bool, timeSpent time.Duration) string {
	msg := "Incorrect. Keep practicing!"
	if correct {
		msg = "Correct! Well done!"
	}
	switch {
	case float64(timeSpent) > float64(q.AvgSolveTime)*1.5:
		msg += " (You spent extra time on this; consider reviewing the concept.)"
	case float64(timeSpent) < float64(q.AvgSolveTime)*0.5:
		msg += " (Fast attempt; make sure you understand the concept.)"
	}
	return msg
}

// ShouldContinue reports whether another question should be asked. The
// session always asks MinQuestions, stops at the cap, and otherwise keeps
// going while recent accuracy is still unsettled in (0.3, 0.8).
func (s *Session) ShouldContinue() bool {
	n := len(s.responses)
	if n < MinQuestions {
		return true
	}
	if n >= s.maxQ {
		return false
	}
	recent := s.responses
	if len(recent) > recentResponses {
		recent = recent[len(recent)-recentResponses:]
	}
	correct := 0
	for _, r := range recent {
		if r.Correct {
			correct++
		}
	}
	acc := float64(correct) / float64(len(recent))
	return acc > 0.3 && acc < 0.8
}

// Summary describes a finished or in-progress session.
type Summary struct {
	SessionID       string
	StudentID       string
	ConceptID       string
	Total           int
	Correct         int
	Accuracy        float64
	AvgTime         time.Duration
	BestStreak      int
	ByDifficulty    map[difficulty.Level]int
	FinalDifficulty difficulty.Level
	Duration        time.Duration
}

// Summary aggregates the session's responses.
func (s *Session) Summary() Summary {
	sum := Summary{
		SessionID:       s.ID,
		StudentID:       s.StudentID,
		ConceptID:       s.ConceptID,
		Total:           len(s.responses),
		BestStreak:      s.bestStreak,
		ByDifficulty:    make(map[difficulty.Level]int),
		FinalDifficulty: s.adaptor.Level(),
		Duration:        s.now().Sub(s.startedAt),
	}
	var total time.Duration
	for _, r := range s.responses {
		if r.Correct {
			sum.Correct++
		}
		total += r.TimeSpent
		sum.ByDifficulty[r.Difficulty]++
	}
	if sum.Total > 0 {
		sum.Accuracy = float64(sum.Correct) / float64(sum.Total)
		sum.AvgTime = total / time.Duration(sum.Total)
	}
	return sum
}

// End logs the summary and returns it. The session should not be used after.
func (s *Session) End() Summary {
	sum := s.Summary()
	s.log.Info("quiz session ended",
		"questions", sum.Total,
		"correct", sum.Correct,
		"accuracy", sum.Accuracy,
		"final_difficulty", sum.FinalDifficulty.String(),
	)
	return sum
}
