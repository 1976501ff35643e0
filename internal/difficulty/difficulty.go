// Package difficulty adapts quiz difficulty to a learner's recent accuracy.
package difficulty

import (
	"math"
	"strings"

	"github.com/abhisek/tutor/internal/apperr"
)

// Level is a question difficulty.
type Level int

const (
	Easy Level = iota + 1
	Medium
	Hard
)

const (
	// HardAbove is the accuracy strictly above which the level becomes Hard.
	HardAbove = 0.75
	// MediumAbove is the accuracy strictly above which the level is at least Medium.
	MediumAbove = 0.50

	// DefaultWindow is the number of recent responses used for accuracy.
	DefaultWindow = 5
)

// AllLevels returns the levels from easiest to hardest.
func AllLevels() []Level {
	return []Level{Easy, Medium, Hard}
}

func (l Level) String() string {
	switch l {
	case Easy:
		return "Easy"
	case Medium:
		return "Medium"
	case Hard:
		return "Hard"
	default:
		return "Unknown"
	}
}

// Valid reports whether l is one of Easy, Medium or Hard.
func (l Level) Valid() bool {
	return l >= Easy && l <= Hard
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return Easy, nil
	case "medium":
		return Medium, nil
	case "hard":
		return Hard, nil
	}
	return 0, apperr.InvalidState("unknown difficulty %q", s)
}

// ForAccuracy maps an accuracy to a level. The boundaries are exclusive:
// exactly 0.75 is Medium and exactly 0.50 is Easy.
func ForAccuracy(accuracy float64) Level {
	switch {
	case accuracy > HardAbove:
		return Hard
	case accuracy > MediumAbove:
		return Medium
	default:
		return Easy
	}
}

// Adaptor is the per-session difficulty state machine.
type Adaptor struct {
	window    int // 0 means the whole session
	level     Level
	responses []bool
}

// New returns an adaptor starting at Medium. A window of 0 uses every
// response in the session.
func New(window int) (*Adaptor, error) {
	return NewAt(Medium, window)
}

// NewAt returns an adaptor seeded at level.
func NewAt(level Level, window int) (*Adaptor, error) {
	if !level.Valid() {
		return nil, apperr.InvalidState("invalid seed difficulty %d", int(level))
	}
	if window < 0 {
		return nil, &apperr.ConfigurationError{Problems: []string{"difficulty window must be >= 0"}}
	}
	return &Adaptor{window: window, level: level}, nil
}

// FromAssessment seeds an adaptor from an initial assessment score in [0, 1]
// using the same thresholds as accuracy.
func FromAssessment(score float64, window int) (*Adaptor, error) {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return nil, apperr.InvalidState("assessment score %v outside [0, 1]", score)
	}
	return NewAt(ForAccuracy(score), window)
}

// Continue starts a fresh adaptor for the next session seeded at a's
// current level. Responses are not carried over.
func (a *Adaptor) Continue() *Adaptor {
	return &Adaptor{window: a.window, level: a.level}
}

// Record adds a response and returns the recomputed level.
func (a *Adaptor) Record(correct bool) Level {
	a.responses = append(a.responses, correct)
	if a.window > 0 && len(a.responses) > a.window {
		a.responses = a.responses[len(a.responses)-a.window:]
	}
	a.level = ForAccuracy(a.Accuracy())
	return a.level
}

// Level returns the current difficulty.
func (a *Adaptor) Level() Level { return a.level }

// Window returns the configured window size.
func (a *Adaptor) Window() int { return a.window }

// Accuracy is the fraction correct within the window, or 0 with no
// responses.
func (a *Adaptor) Accuracy() float64 {
	if len(a.responses) == 0 {
		return 0
	}
	correct := 0
	for _, r := range a.responses {
		if r {
			correct++
		}
	}
	return float64(correct) / float64(len(a.responses))
}

// Recent returns a copy of the responses in the window, oldest first.
func (a *Adaptor) Recent() []bool {
	out := make([]bool, len(a.responses))
	copy(out, a.responses)
	return out
}
