package concept

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/tutor/internal/apperr"
)

func c(id string, difficulty float64, prereqs ...string) Concept {
	return Concept{ID: id, Difficulty: difficulty, Bloom: BloomUnderstand, Prerequisites: prereqs}
}

func sampleCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := NewCatalog([]Concept{
		c("counting", 0.1),
		c("addition", 0.3, "counting"),
		c("subtraction", 0.3, "counting"),
		c("multiplication", 0.5, "addition"),
		c("division", 0.6, "multiplication", "subtraction"),
	})
	require.NoError(t, err)
	return cat
}

func TestCatalog_Get(t *testing.T) {
	cat := sampleCatalog(t)

	got, err := cat.Get("addition")
	require.NoError(t, err)
	assert.Equal(t, []string{"counting"}, got.Prerequisites)
	assert.Equal(t, DefaultEstimatedMins, got.EstimatedMins)

	_, err = cat.Get("calculus")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCatalog_TopologicalOrder(t *testing.T) {
	cat := sampleCatalog(t)
	order := cat.TopologicalOrder()
	require.Len(t, order, 5)

	pos := make(map[string]int)
	for i, con := range order {
		pos[con.ID] = i
	}
	for _, con := range cat.All() {
		for _, p := range con.Prerequisites {
			assert.Less(t, pos[p], pos[con.ID], "%s must come before %s", p, con.ID)
		}
	}
	assert.Equal(t, "counting", order[0].ID)
}

func TestCatalog_Prerequisites(t *testing.T) {
	cat := sampleCatalog(t)

	prereqs := cat.Prerequisites("division")
	require.Len(t, prereqs, 2)
	assert.Equal(t, "multiplication", prereqs[0].ID)

	assert.Len(t, cat.Roots(), 1)
	assert.Nil(t, cat.Prerequisites("missing"))
}

func TestNewCatalog_DetectsCycle(t *testing.T) {
	_, err := NewCatalog([]Concept{
		c("root", 0.1),
		c("a", 0.2, "b"),
		c("b", 0.2, "a"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.Contains(t, err.Error(), "cycle")
	assert.Contains(t, err.Error(), "a, b")
}

func TestNewCatalog_DetectsSelfLoop(t *testing.T) {
	_, err := NewCatalog([]Concept{c("a", 0.2, "a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestNewCatalog_CollectsAllProblems(t *testing.T) {
	_, err := NewCatalog([]Concept{
		c("a", 0.2),
		c("a", 0.2),
		c("b", 1.5, "ghost"),
		{ID: "c", Difficulty: 0.5},
	})
	require.Error(t, err)

	var cfgErr *apperr.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	joined := strings.Join(cfgErr.Problems, "\n")
	assert.Contains(t, joined, "duplicate")
	assert.Contains(t, joined, "difficulty")
	assert.Contains(t, joined, "bloom")
}

func TestNewCatalog_DanglingPrerequisite(t *testing.T) {
	_, err := NewCatalog([]Concept{c("a", 0.2, "nonexistent")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent")
}

func TestNewCatalog_Empty(t *testing.T) {
	cat, err := NewCatalog(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Len())
	assert.Empty(t, cat.TopologicalOrder())
}

func TestNew_DedupesPrerequisites(t *testing.T) {
	got, err := New(c("b", 0.2, "a", "a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Prerequisites)
}

func TestParseBloom(t *testing.T) {
	b, err := ParseBloom(" analyze ")
	require.NoError(t, err)
	assert.Equal(t, BloomAnalyze, b)

	_, err = ParseBloom("memorize")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	for i, lvl := range AllBloomLevels() {
		if i > 0 {
			assert.Less(t, AllBloomLevels()[i-1], lvl)
		}
	}
}

func TestBloomForMastery(t *testing.T) {
	tests := []struct {
		mastery float64
		want    BloomLevel
	}{
		{0.0, BloomRemember},
		{0.2, BloomUnderstand},
		{0.5, BloomApply},
		{0.6, BloomAnalyze},
		{0.75, BloomEvaluate},
		{0.95, BloomCreate},
	}
	for _, tt := range tests {
		if got := BloomForMastery(tt.mastery); got != tt.want {
			t.Errorf("BloomForMastery(%v) = %s, want %s", tt.mastery, got, tt.want)
		}
	}
}
