// Package mastery owns per-(student, concept) mastery probabilities.
package mastery

import (
	"math"
	"sort"

	"github.com/abhisek/tutor/internal/apperr"
)

// Probability is a mastery value in [0, 1]. Build it with NewProbability.
type Probability float64

// NewProbability returns v as a Probability, rejecting NaN and values
// outside [0, 1] with an InvalidStateError.
func NewProbability(v float64) (Probability, error) {
	if err := CheckRange(v); err != nil {
		return 0, err
	}
	return Probability(v), nil
}

// CheckRange returns an InvalidStateError unless v is in [0, 1].
func CheckRange(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return apperr.InvalidState("mastery %v outside [0, 1]", v)
	}
	return nil
}

// Float returns p as a float64.
func (p Probability) Float() float64 {
	return float64(p)
}

// Snapshot is one student's mastery by concept ID. Concepts never
// interacted with are absent and read as 0.
type Snapshot map[string]Probability

// Of returns the mastery of conceptID, or 0 when absent.
func (s Snapshot) Of(conceptID string) Probability {
	return s[conceptID]
}

// Clone returns an independent copy of s.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Floats converts s to a plain map, e.g. for persistence.
func (s Snapshot) Floats() map[string]float64 {
	out := make(map[string]float64, len(s))
	for k, v := range s {
		out[k] = float64(v)
	}
	return out
}

// Validate checks every value is within [0, 1].
func (s Snapshot) Validate() error {
	for _, id := range s.sortedKeys() {
		if err := CheckRange(float64(s[id])); err != nil {
			return apperr.InvalidState("concept %q: mastery %v outside [0, 1]", id, float64(s[id]))
		}
	}
	return nil
}

// SnapshotFromFloats validates and converts a plain map into a Snapshot.
func SnapshotFromFloats(m map[string]float64) (Snapshot, error) {
	s := make(Snapshot, len(m))
	for k, v := range m {
		s[k] = Probability(v)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s Snapshot) sortedKeys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
