package quiz

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/tutor/internal/apperr"
	"github.com/abhisek/tutor/internal/concept"
	"github.com/abhisek/tutor/internal/difficulty"
	"github.com/abhisek/tutor/internal/knowledge"
	"github.com/abhisek/tutor/internal/mastery"
	"github.com/abhisek/tutor/internal/question"
	"github.com/abhisek/tutor/internal/store"
)

type mockEventLog struct {
	events []store.InteractionEventData
	err    error
}

func (m *mockEventLog) AppendInteraction(_ context.Context, data store.InteractionEventData) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.events = append(m.events, data)
	return int64(len(m.events)), nil
}

type fixture struct {
	engine   *knowledge.Engine
	store    *mastery.MemoryStore
	selector *question.Selector
	events   *mockEventLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := concept.NewCatalog([]concept.Concept{
		{ID: "loops", Difficulty: 0.4, Bloom: concept.BloomApply},
		{ID: "recursion", Difficulty: 0.8, Bloom: concept.BloomAnalyze, Prerequisites: []string{"loops"}},
	})
	require.NoError(t, err)

	st := mastery.NewMemoryStore()
	eng, err := knowledge.New(knowledge.DefaultParams(), cat, st, nil)
	require.NoError(t, err)

	var qs []question.Question
	for _, lvl := range difficulty.AllLevels() {
		for _, suffix := range []string{"1", "2", "3"} {
			qs = append(qs, question.Question{
				ID:           "loops-" + lvl.String() + suffix,
				ConceptID:    "loops",
				Difficulty:   lvl,
				AvgSolveTime: 30 * time.Second,
			})
		}
	}
	bank, err := question.NewBank(qs)
	require.NoError(t, err)

	sel := question.NewSelector(bank, question.SelectorOptions{
		Rand:         rand.New(rand.NewPCG(1, 2)),
		AllowRepeats: true,
		KnownConcept: cat.Has,
	})
	return &fixture{engine: eng, store: st, selector: sel, events: &mockEventLog{}}
}

func (f *fixture) start(t *testing.T, opts Options) *Session {
	t.Helper()
	if opts.Events == nil {
		opts.Events = f.events
	}
	s, err := Start("s1", "loops", f.engine, f.selector, opts)
	require.NoError(t, err)
	return s
}

func TestStart_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := Start("s1", "calculus", f.engine, f.selector, Options{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = Start("", "loops", f.engine, f.selector, Options{})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestSession_StartsAtMedium(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, Options{Window: 5})
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, difficulty.Medium, s.Difficulty())

	q, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, difficulty.Medium, q.Difficulty)
}

func TestSession_RecordResponse(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, Options{Window: 5})
	ctx := context.Background()

	q, err := s.Next()
	require.NoError(t, err)

	res, err := s.RecordResponse(ctx, q.ID, true, 20*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Accuracy)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, difficulty.Hard, res.Difficulty)
	assert.InDelta(t, 0.1, res.Mastery.Float(), 1e-12)
	assert.Equal(t, int64(1), res.Sequence)
	assert.Contains(t, res.Feedback, "Correct")

	snap, err := f.store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, res.Mastery, snap.Of("loops"))

	require.Len(t, f.events.events, 1)
	ev := f.events.events[0]
	assert.Equal(t, "s1", ev.StudentID)
	assert.Equal(t, q.ID, ev.QuestionID)
	assert.Equal(t, 1, ev.AttemptNo)
	assert.Equal(t, s.ID, ev.SessionID)
	assert.Equal(t, "Medium", ev.Difficulty)

	stats, err := f.selector.Bank().Stats(q.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Attempts)
}

func TestSession_AttemptNumbers(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.RecordResponse(ctx, "loops-Easy1", false, 30*time.Second)
		require.NoError(t, err)
	}
	_, err := s.RecordResponse(ctx, "loops-Easy2", false, 30*time.Second)
	require.NoError(t, err)

	var attempts []int
	for _, ev := range f.events.events {
		attempts = append(attempts, ev.AttemptNo)
	}
	assert.Equal(t, []int{1, 2, 3, 1}, attempts)
}

func TestSession_ServedQuestionsNotRepeated(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, Options{Adaptor: mustAdaptor(t, difficulty.Easy, 0)})
	ctx := context.Background()

	// Three wrong answers keep the session on Easy and exhaust the fresh pool.
	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		q, err := s.Next()
		require.NoError(t, err)
		require.Equal(t, difficulty.Easy, q.Difficulty)
		assert.False(t, seen[q.ID], "question %s repeated while fresh ones remained", q.ID)
		seen[q.ID] = true
		_, err = s.RecordResponse(ctx, q.ID, false, 30*time.Second)
		require.NoError(t, err)
	}

	// All Easy questions served: the selector degrades to repeats.
	q, err := s.Next()
	require.NoError(t, err)
	assert.True(t, seen[q.ID])
}

func TestSession_UnknownQuestion(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, Options{})
	_, err := s.RecordResponse(context.Background(), "nope", true, time.Second)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, f.events.events)
}

func TestSession_QuestionOnUnknownConceptNotLogged(t *testing.T) {
	f := newFixture(t)
	bank, err := question.NewBank([]question.Question{
		{ID: "loops-1", ConceptID: "loops", Difficulty: difficulty.Medium},
		{ID: "g1", ConceptID: "ghost", Difficulty: difficulty.Medium},
	})
	require.NoError(t, err)
	sel := question.NewSelector(bank, question.SelectorOptions{Rand: rand.New(rand.NewPCG(1, 2))})

	s, err := Start("s1", "loops", f.engine, sel, Options{Events: f.events})
	require.NoError(t, err)

	_, err = s.RecordResponse(context.Background(), "g1", true, time.Second)
	var nf *apperr.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, apperr.KindConcept, nf.Kind)
	assert.Equal(t, "ghost", nf.ID)

	assert.Empty(t, f.events.events)
	assert.Equal(t, 0, s.Summary().Total)
	stats, err := bank.Stats("g1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Attempts)
}

func TestSession_EventLogFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("disk full")
	s := f.start(t, Options{Events: &mockEventLog{err: boom}})

	_, err := s.RecordResponse(context.Background(), "loops-Medium1", true, time.Second)
	require.ErrorIs(t, err, boom)

	_, err = f.store.Get("s1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 0, s.Summary().Total)
	assert.Equal(t, difficulty.Medium, s.Difficulty())
}

func TestSession_DifficultyFollowsWindow(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, Options{Window: 5})
	ctx := context.Background()

	var last Result
	for _, correct := range []bool{true, true, false, true, true} {
		var err error
		last, err = s.RecordResponse(ctx, "loops-Medium1", correct, 30*time.Second)
		require.NoError(t, err)
	}
	assert.InDelta(t, 0.8, last.Accuracy, 1e-12)
	assert.Equal(t, difficulty.Hard, last.Difficulty)
	assert.Equal(t, 2, last.Streak)
}

func TestFeedback(t *testing.T) {
	q := question.Question{AvgSolveTime: 60 * time.Second}
	assert.Equal(t, "Correct! Well done!", Feedback(q, true, 60*time.Second))
	assert.Contains(t, Feedback(q, false, 100*time.Second), "extra time")
	assert.Contains(t, Feedback(q, true, 10*time.Second), "Fast attempt")
	assert.Equal(t, "Incorrect. Keep practicing!", Feedback(q, false, 45*time.Second))
}

func TestShouldContinue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("minimum questions", func(t *testing.T) {
		s := f.start(t, Options{})
		assert.True(t, s.ShouldContinue())
		_, _ = s.RecordResponse(ctx, "loops-Easy1", true, time.Second)
		_, _ = s.RecordResponse(ctx, "loops-Easy1", true, time.Second)
		assert.True(t, s.ShouldContinue())
		_, _ = s.RecordResponse(ctx, "loops-Easy1", true, time.Second)
		assert.False(t, s.ShouldContinue(), "3/3 correct has converged")
	})

	t.Run("unsettled accuracy continues", func(t *testing.T) {
		s := f.start(t, Options{})
		for _, c := range []bool{true, false, true, false} {
			_, _ = s.RecordResponse(ctx, "loops-Easy1", c, time.Second)
		}
		assert.True(t, s.ShouldContinue())
	})

	t.Run("cap", func(t *testing.T) {
		s := f.start(t, Options{MaxQuestions: 4})
		for _, c := range []bool{true, false, true, false} {
			_, _ = s.RecordResponse(ctx, "loops-Easy1", c, time.Second)
		}
		assert.False(t, s.ShouldContinue())
	})
}

func TestSummaryAndContinue(t *testing.T) {
	f := newFixture(t)
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := f.start(t, Options{Now: func() time.Time { return clock }})
	ctx := context.Background()

	_, _ = s.RecordResponse(ctx, "loops-Easy1", true, 10*time.Second)
	_, _ = s.RecordResponse(ctx, "loops-Hard1", true, 30*time.Second)
	_, _ = s.RecordResponse(ctx, "loops-Hard2", false, 20*time.Second)
	clock = clock.Add(5 * time.Minute)

	sum := s.End()
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.Correct)
	assert.InDelta(t, 2.0/3.0, sum.Accuracy, 1e-12)
	assert.Equal(t, 20*time.Second, sum.AvgTime)
	assert.Equal(t, 2, sum.BestStreak)
	assert.Equal(t, 1, sum.ByDifficulty[difficulty.Easy])
	assert.Equal(t, 2, sum.ByDifficulty[difficulty.Hard])
	assert.Equal(t, 5*time.Minute, sum.Duration)

	next := f.start(t, Options{Adaptor: s.Adaptor().Continue()})
	assert.Equal(t, s.Difficulty(), next.Difficulty())
	assert.NotEqual(t, s.ID, next.ID)
}

func mustAdaptor(t *testing.T, lvl difficulty.Level, window int) *difficulty.Adaptor {
	t.Helper()
	a, err := difficulty.NewAt(lvl, window)
	require.NoError(t, err)
	return a
}
