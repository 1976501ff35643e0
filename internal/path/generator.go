// Package path builds prerequisite-gated study paths from a student's
// mastery and keeps the current path per student.
package path

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/abhisek/tutor/internal/apperr"
	"github.com/abhisek/tutor/internal/concept"
	"github.com/abhisek/tutor/internal/logger"
	"github.com/abhisek/tutor/internal/mastery"
)

// Preference adjusts how candidates are ranked.
type Preference string

const (
	// Balanced ranks by the weighted priority score.
	Balanced Preference = "balanced"
	// Progressive favours harder concepts and ignores the weak list.
	Progressive Preference = "progressive"
	// Review moves weak concepts ahead of everything else.
	Review Preference = "review"
)

// ParsePreference parses a preference name. Empty means Balanced.
func ParsePreference(s string) (Preference, error) {
	switch p := Preference(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return Balanced, nil
	case Balanced, Progressive, Review:
		return p, nil
	}
	return "", &apperr.ConfigurationError{Problems: []string{fmt.Sprintf("unknown learning preference %q", s)}}
}

// Weights are the priority coefficients.
type Weights struct {
	Gap         float64 `yaml:"gap" validate:"gte=0"`          // α, applied to 1 - mastery
	Difficulty  float64 `yaml:"difficulty" validate:"gte=0"`   // β
	UnmetPrereq float64 `yaml:"unmet_prereq" validate:"gte=0"` // γ
	Weak        float64 `yaml:"weak" validate:"gte=0"`         // δ
}

// DefaultWeights are α=0.5, β=0.3, γ=0.1, δ=1.3.
func DefaultWeights() Weights {
	return Weights{Gap: 0.5, Difficulty: 0.3, UnmetPrereq: 0.1, Weak: 1.3}
}

// progressiveWeights replace Gap and Difficulty under Progressive.
var progressiveWeights = Weights{Gap: 0.4, Difficulty: 0.6}

var (
	defaultResources  = []string{"Video Lecture", "Reading Material", "Practice Problems"}
	advancedResources = []string{"Expert Explanation", "Step-by-step Tutorial"}
)

// AdvancedDifficulty is the concept difficulty above which advanced
// resources are suggested.
const AdvancedDifficulty = 0.7

// Options configures a Generator.
type Options struct {
	Weights               Weights
	NumConcepts           int     // default 5
	MasteryThreshold      float64 // concepts at or above are excluded
	PrerequisiteThreshold float64 // prerequisites below this block a concept
	MaxDifficulty         float64 // concepts above are excluded; 0 means 1
}

// DefaultOptions returns the stock generator settings.
func DefaultOptions() Options {
	return Options{
		Weights:               DefaultWeights(),
		NumConcepts:           5,
		MasteryThreshold:      0.85,
		PrerequisiteThreshold: 0.60,
		MaxDifficulty:         1,
	}
}

func (o Options) validate() error {
	var problems []string
	w := o.Weights
	for name, v := range map[string]float64{"gap": w.Gap, "difficulty": w.Difficulty, "unmet_prereq": w.UnmetPrereq, "weak": w.Weak} {
		if math.IsNaN(v) || v < 0 {
			problems = append(problems, fmt.Sprintf("weight %s must be >= 0, got %v", name, v))
		}
	}
	if o.NumConcepts < 0 {
		problems = append(problems, "num concepts must be >= 0")
	}
	for name, v := range map[string]float64{"mastery threshold": o.MasteryThreshold, "prerequisite threshold": o.PrerequisiteThreshold, "max difficulty": o.MaxDifficulty} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			problems = append(problems, fmt.Sprintf("%s must be in [0, 1], got %v", name, v))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return &apperr.ConfigurationError{Problems: problems}
	}
	return nil
}

// Node is one step of a study path.
type Node struct {
	Position      int
	ConceptID     string
	Name          string
	Bloom         concept.BloomLevel // the concept's own level
	TargetBloom   concept.BloomLevel // level suited to the student's mastery
	Mastery       mastery.Probability
	Difficulty    float64
	EstimatedMins int
	Resources     []string
	Priority      float64
	Weak          bool
}

// Request is the input to Generate.
type Request struct {
	Knowledge   mastery.Snapshot
	Weak        []string
	NumConcepts int // 0 uses the generator default
	Preference  Preference
}

// Generator ranks concepts into study paths. It is stateless and safe for
// concurrent use.
type Generator struct {
	catalog *concept.Catalog
	opts    Options
	log     *logger.Logger
}

// NewGenerator validates opts and returns a generator over catalog.
func NewGenerator(catalog *concept.Catalog, opts Options, log *logger.Logger) (*Generator, error) {
	if catalog == nil {
		return nil, &apperr.ConfigurationError{Problems: []string{"path generator requires a concept catalog"}}
	}
	if opts.MaxDifficulty == 0 {
		opts.MaxDifficulty = 1
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Generator{catalog: catalog, opts: opts, log: logger.OrNop(log)}, nil
}

// Options returns the generator's settings.
func (g *Generator) Options() Options { return g.opts }

// Catalog returns the concept catalog.
func (g *Generator) Catalog() *concept.Catalog { return g.catalog }

type candidate struct {
	c        concept.Concept
	mastery  mastery.Probability
	priority float64
	weak     bool
}

// Generate filters, scores, ranks and annotates concepts. Concepts with an
// unmet prerequisite or already mastered are never emitted. An empty path is
// a valid result.
func (g *Generator) Generate(req Request) ([]Node, error) {
	if err := req.Knowledge.Validate(); err != nil {
		return nil, err
	}
	pref := req.Preference
	if pref == "" {
		pref = Balanced
	}
	if _, err := ParsePreference(string(pref)); err != nil {
		return nil, err
	}
	weak := make(map[string]bool, len(req.Weak))
	for _, id := range req.Weak {
		if !g.catalog.Has(id) {
			return nil, apperr.NotFound(apperr.KindConcept, id)
		}
		weak[id] = true
	}
	n := req.NumConcepts
	if n == 0 {
		n = g.opts.NumConcepts
	}
	if n < 0 {
		return nil, apperr.InvalidState("num concepts must be >= 0, got %d", n)
	}

	var cands []candidate
	for _, c := range g.catalog.All() {
		m := req.Knowledge.Of(c.ID)
		if m.Float() >= g.opts.MasteryThreshold {
			continue
		}
		if c.Difficulty > g.opts.MaxDifficulty {
			continue
		}
		if g.unmetPrerequisites(c, req.Knowledge) > 0 {
			continue
		}
		cand := candidate{c: c, mastery: m, weak: weak[c.ID]}
		cand.priority = g.score(cand, pref)
		cands = append(cands, cand)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		if a.c.Bloom != b.c.Bloom {
			return a.c.Bloom < b.c.Bloom
		}
		return a.c.ID < b.c.ID
	})

	if pref == Review {
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].weak && !cands[j].weak })
	}

	if len(cands) > n {
		cands = cands[:n]
	}

	nodes := make([]Node, len(cands))
	for i, cand := range cands {
		nodes[i] = Node{
			Position:      i + 1,
			ConceptID:     cand.c.ID,
			Name:          cand.c.DisplayName(),
			Bloom:         cand.c.Bloom,
			TargetBloom:   concept.BloomForMastery(cand.mastery.Float()),
			Mastery:       cand.mastery,
			Difficulty:    cand.c.Difficulty,
			EstimatedMins: cand.c.EstimatedMins,
			Resources:     resourcesFor(cand.c),
			Priority:      cand.priority,
			Weak:          cand.weak,
		}
	}
	g.log.Debug("path generated",
		"preference", string(pref),
		"candidates", len(cands),
		"nodes", len(nodes),
	)
	return nodes, nil
}

func (g *Generator) score(cand candidate, pref Preference) float64 {
	w := g.opts.Weights
	gap := 1 - cand.mastery.Float()

	if pref == Progressive {
		return progressiveWeights.Gap*gap + progressiveWeights.Difficulty*cand.c.Difficulty
	}

	// Filtered candidates have no unmet prerequisites, so penalty is always 0.
	var penalty float64
	var boost float64
	if cand.weak {
		boost = 1
	}
	return w.Gap*gap + w.Difficulty*cand.c.Difficulty + w.UnmetPrereq*penalty + w.Weak*boost
}

func (g *Generator) unmetPrerequisites(c concept.Concept, knowledge mastery.Snapshot) int {
	unmet := 0
	for _, pre := range c.Prerequisites {
		if knowledge.Of(pre).Float() < g.opts.PrerequisiteThreshold {
			unmet++
		}
	}
	return unmet
}

func resourcesFor(c concept.Concept) []string {
	if len(c.Resources) > 0 {
		out := make([]string, len(c.Resources))
		copy(out, c.Resources)
		return out
	}
	out := append([]string(nil), defaultResources...)
	if c.Difficulty > AdvancedDifficulty {
		out = append(out, advancedResources...)
	}
	return out
}

// Duration is the total estimated minutes of a path.
func Duration(nodes []Node) int {
	total := 0
	for _, n := range nodes {
		total += n.EstimatedMins
	}
	return total
}

// NextNode returns the first node whose concept is still below threshold in
// knowledge, or false when the path is complete.
func NextNode(nodes []Node, knowledge mastery.Snapshot, threshold float64) (Node, bool) {
	for _, n := range nodes {
		if knowledge.Of(n.ConceptID).Float() < threshold {
			return n, true
		}
	}
	return Node{}, false
}
