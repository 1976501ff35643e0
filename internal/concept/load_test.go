package concept

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/tutor/internal/apperr"
)

const sampleYAML = `
concepts:
  - id: variables
    name: Variables
    difficulty: 0.2
    bloom: Remember
  - id: loops
    name: Loops
    prerequisites: [variables]
    difficulty: 0.5
    bloom: apply
    estimated_mins: 45
    resources: [Kata, Screencast]
  - id: recursion
    prerequisites: [loops]
    difficulty: 0.8
`

func TestParse_Valid(t *testing.T) {
	cat, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.Equal(t, 3, cat.Len())

	loops, err := cat.Get("loops")
	require.NoError(t, err)
	assert.Equal(t, BloomApply, loops.Bloom)
	assert.Equal(t, 45, loops.EstimatedMins)
	assert.Equal(t, []string{"Kata", "Screencast"}, loops.Resources)

	rec, err := cat.Get("recursion")
	require.NoError(t, err)
	assert.Equal(t, BloomUnderstand, rec.Bloom, "missing bloom defaults to Understand")
	assert.Equal(t, "recursion", rec.DisplayName())
}

func TestParse_FieldValidation(t *testing.T) {
	_, err := Parse([]byte(`
concepts:
  - id: ""
    difficulty: 1.4
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.Contains(t, err.Error(), "ID")
	assert.Contains(t, err.Error(), "Difficulty")
}

func TestParse_BadBloom(t *testing.T) {
	_, err := Parse([]byte(`
concepts:
  - id: a
    difficulty: 0.4
    bloom: Memorize
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Memorize")
}

func TestParse_Cycle(t *testing.T) {
	_, err := Parse([]byte(`
concepts:
  - id: a
    prerequisites: [b]
  - id: b
    prerequisites: [a]
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.Contains(t, err.Error(), "cycle")
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("concepts: [unterminated"))
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cat, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cat.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
