package concept

import (
	"fmt"
	"math"
	"strings"

	"github.com/abhisek/tutor/internal/apperr"
)

// BloomLevel is the ordinal cognitive-complexity level of a concept or question.
type BloomLevel int

const (
	BloomUnknown BloomLevel = iota
	BloomRemember
	BloomUnderstand
	BloomApply
	BloomAnalyze
	BloomEvaluate
	BloomCreate
)

// AllBloomLevels returns the valid levels in ascending order.
func AllBloomLevels() []BloomLevel {
	return []BloomLevel{
		BloomRemember,
		BloomUnderstand,
		BloomApply,
		BloomAnalyze,
		BloomEvaluate,
		BloomCreate,
	}
}

// String returns the display name of a Bloom level.
func (b BloomLevel) String() string {
	switch b {
	case BloomRemember:
		return "Remember"
	case BloomUnderstand:
		return "Understand"
	case BloomApply:
		return "Apply"
	case BloomAnalyze:
		return "Analyze"
	case BloomEvaluate:
		return "Evaluate"
	case BloomCreate:
		return "Create"
	default:
		return "Unknown"
	}
}

// Valid reports whether b is one of the six defined levels.
func (b BloomLevel) Valid() bool {
	return b >= BloomRemember && b <= BloomCreate
}

// ParseBloom parses a level name case-insensitively.
func ParseBloom(s string) (BloomLevel, error) {
	name := strings.TrimSpace(s)
	for _, b := range AllBloomLevels() {
		if strings.EqualFold(name, b.String()) {
			return b, nil
		}
	}
	return BloomUnknown, apperr.InvalidState("unknown bloom level %q", s)
}

// BloomForMastery suggests the level a learner should work at given their
// current mastery of a concept.
func BloomForMastery(mastery float64) BloomLevel {
	switch {
	case mastery < 0.2:
		return BloomRemember
	case mastery < 0.4:
		return BloomUnderstand
	case mastery < 0.6:
		return BloomApply
	case mastery < 0.75:
		return BloomAnalyze
	case mastery < 0.9:
		return BloomEvaluate
	default:
		return BloomCreate
	}
}

// DefaultEstimatedMins is the study time assumed when a concept has none.
const DefaultEstimatedMins = 30

// Concept is a single learning topic in the catalog.
type Concept struct {
	ID            string
	Name          string
	Prerequisites []string
	Difficulty    float64 // intrinsic difficulty in [0, 1]
	Bloom         BloomLevel
	EstimatedMins int
	Resources     []string
}

// DisplayName returns Name, or ID when no name is set.
func (c Concept) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// New validates c and returns a normalized copy: duplicate prerequisites are
// dropped and a zero EstimatedMins becomes DefaultEstimatedMins.
func New(c Concept) (Concept, error) {
	if problems := conceptProblems(c); len(problems) > 0 {
		return Concept{}, &apperr.ConfigurationError{Problems: problems}
	}

	seen := make(map[string]bool, len(c.Prerequisites))
	prereqs := make([]string, 0, len(c.Prerequisites))
	for _, p := range c.Prerequisites {
		if !seen[p] {
			seen[p] = true
			prereqs = append(prereqs, p)
		}
	}
	c.Prerequisites = prereqs
	if c.EstimatedMins == 0 {
		c.EstimatedMins = DefaultEstimatedMins
	}
	c.Resources = append([]string(nil), c.Resources...)
	return c, nil
}

// conceptProblems returns the field-level problems of a single concept.
func conceptProblems(c Concept) []string {
	var errs []string
	if strings.TrimSpace(c.ID) == "" {
		errs = append(errs, "concept ID must not be empty")
	}
	if math.IsNaN(c.Difficulty) || c.Difficulty < 0 || c.Difficulty > 1 {
		errs = append(errs, fmt.Sprintf("concept %q: difficulty must be in [0, 1], got %v", c.ID, c.Difficulty))
	}
	if !c.Bloom.Valid() {
		errs = append(errs, fmt.Sprintf("concept %q: bloom level must be set", c.ID))
	}
	if c.EstimatedMins < 0 {
		errs = append(errs, fmt.Sprintf("concept %q: estimated minutes must be >= 0, got %d", c.ID, c.EstimatedMins))
	}
	for _, p := range c.Prerequisites {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Sprintf("concept %q: empty prerequisite ID", c.ID))
		}
	}
	return errs
}
