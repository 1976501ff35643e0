package mastery

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/tutor/internal/apperr"
)

func TestNewProbability(t *testing.T) {
	for _, v := range []float64{0, 0.5, 1} {
		p, err := NewProbability(v)
		require.NoError(t, err)
		assert.Equal(t, v, p.Float())
	}
	for _, v := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		_, err := NewProbability(v)
		assert.ErrorIs(t, err, apperr.ErrInvalidState, "value %v", v)
	}
}

func TestSnapshot_OfDefaultsToZero(t *testing.T) {
	s := Snapshot{"a": 0.4}
	assert.Equal(t, Probability(0.4), s.Of("a"))
	assert.Equal(t, Probability(0), s.Of("b"))
}

func TestSnapshotFromFloats(t *testing.T) {
	s, err := SnapshotFromFloats(map[string]float64{"a": 0.3})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 0.3}, s.Floats())

	_, err = SnapshotFromFloats(map[string]float64{"a": 2})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestMemoryStore_GetUnknownStudent(t *testing.T) {
	st := NewMemoryStore()
	_, err := st.Get("nobody")
	var nf *apperr.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, apperr.KindStudent, nf.Kind)
}

func TestMemoryStore_PutGetIsolation(t *testing.T) {
	st := NewMemoryStore()
	in := Snapshot{"a": 0.2}
	require.NoError(t, st.Put("s1", in))

	in["a"] = 0.9 // caller's map must not alias the stored record
	got, err := st.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, Probability(0.2), got.Of("a"))

	got["a"] = 0.7
	again, _ := st.Get("s1")
	assert.Equal(t, Probability(0.2), again.Of("a"))
}

func TestMemoryStore_PutRejectsInvalid(t *testing.T) {
	st := NewMemoryStore()
	assert.ErrorIs(t, st.Put("s1", Snapshot{"a": 1.5}), apperr.ErrInvalidState)
	assert.ErrorIs(t, st.Put("", Snapshot{}), apperr.ErrInvalidState)
	assert.Empty(t, st.Students())
}

func TestMemoryStore_UpdateRollsBackOnError(t *testing.T) {
	st := NewMemoryStore()
	require.NoError(t, st.Put("s1", Snapshot{"a": 0.5}))

	err := st.Update("s1", func(s Snapshot) error {
		s["a"] = 0.9
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	err = st.Update("s1", func(s Snapshot) error {
		s["a"] = 1.2
		return nil
	})
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	got, _ := st.Get("s1")
	assert.Equal(t, Probability(0.5), got.Of("a"))
}

func TestMemoryStore_UpdateCreatesRecord(t *testing.T) {
	st := NewMemoryStore()
	require.NoError(t, st.Update("s2", func(s Snapshot) error {
		s["x"] = 0.1
		return nil
	}))
	assert.Equal(t, []string{"s2"}, st.Students())
}

func TestMemoryStore_ConcurrentUpdatesPerStudent(t *testing.T) {
	st := NewMemoryStore()
	const students, perStudent = 8, 200

	var wg sync.WaitGroup
	for s := 0; s < students; s++ {
		id := fmt.Sprintf("s%d", s)
		for i := 0; i < perStudent; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = st.Update(id, func(snap Snapshot) error {
					snap["count"] += 0.001
					return nil
				})
			}()
		}
	}
	wg.Wait()

	require.Len(t, st.Students(), students)
	for _, id := range st.Students() {
		snap, err := st.Get(id)
		require.NoError(t, err)
		assert.InDelta(t, 0.2, snap.Of("count").Float(), 1e-9, "student %s lost an update", id)
	}
}
