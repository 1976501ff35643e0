// Package knowledge applies the knowledge-tracing update rule to student
// mastery and answers readiness questions about the concept graph.
package knowledge

import (
	"fmt"
	"math"
	"sort"

	"github.com/abhisek/tutor/internal/apperr"
	"github.com/abhisek/tutor/internal/concept"
	"github.com/abhisek/tutor/internal/logger"
	"github.com/abhisek/tutor/internal/mastery"
)

const (
	// MaxSimulationSteps bounds StepsToMastery.
	MaxSimulationSteps = 1000

	// Unreachable is returned by StepsToMastery when the threshold is not
	// reached within MaxSimulationSteps.
	Unreachable = -1
)

// Params are the tracing constants.
type Params struct {
	LearningRate          float64 `yaml:"learning_rate" validate:"gt=0,lt=1"`
	ForgetRate            float64 `yaml:"forget_rate" validate:"gt=0,lt=1"`
	PKnow                 float64 `yaml:"p_know" validate:"gte=0,lte=1"`
	PGuess                float64 `yaml:"p_guess" validate:"gte=0,lte=1"`
	MasteryThreshold      float64 `yaml:"mastery_threshold" validate:"gt=0,lte=1"`
	PrerequisiteThreshold float64 `yaml:"prerequisite_threshold" validate:"gte=0,lte=1"`
}

// DefaultParams returns the stock tracing constants.
func DefaultParams() Params {
	return Params{
		LearningRate:          0.1,
		ForgetRate:            0.05,
		PKnow:                 0.9,
		PGuess:                0.1,
		MasteryThreshold:      0.85,
		PrerequisiteThreshold: 0.60,
	}
}

// Validate reports every out-of-range parameter.
func (p Params) Validate() error {
	var problems []string
	open := func(name string, v float64) {
		if math.IsNaN(v) || v <= 0 || v >= 1 {
			problems = append(problems, fmt.Sprintf("%s must be in (0, 1), got %v", name, v))
		}
	}
	closed := func(name string, v float64) {
		if math.IsNaN(v) || v < 0 || v > 1 {
			problems = append(problems, fmt.Sprintf("%s must be in [0, 1], got %v", name, v))
		}
	}
	open("learning rate", p.LearningRate)
	open("forget rate", p.ForgetRate)
	closed("p_know", p.PKnow)
	closed("p_guess", p.PGuess)
	closed("mastery threshold", p.MasteryThreshold)
	closed("prerequisite threshold", p.PrerequisiteThreshold)
	if len(problems) > 0 {
		return &apperr.ConfigurationError{Problems: problems}
	}
	return nil
}

// Engine is the only writer of mastery values.
type Engine struct {
	params  Params
	catalog *concept.Catalog
	store   mastery.Store
	log     *logger.Logger
}

// New creates an engine over the given catalog and store.
func New(params Params, catalog *concept.Catalog, store mastery.Store, log *logger.Logger) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		return nil, &apperr.ConfigurationError{Problems: []string{"knowledge engine requires a concept catalog"}}
	}
	if store == nil {
		store = mastery.NewMemoryStore()
	}
	return &Engine{
		params:  params,
		catalog: catalog,
		store:   store,
		log:     logger.OrNop(log),
	}, nil
}

// Params returns the engine's tracing constants.
func (e *Engine) Params() Params { return e.params }

// Catalog returns the concept catalog the engine was built with.
func (e *Engine) Catalog() *concept.Catalog { return e.catalog }

// Store returns the backing knowledge-state store.
func (e *Engine) Store() mastery.Store { return e.store }

// Trace applies one observation to p.
func (e *Engine) Trace(p mastery.Probability, correct bool) (mastery.Probability, error) {
	return trace(e.params, p, correct)
}

func trace(params Params, p mastery.Probability, correct bool) (mastery.Probability, error) {
	if err := mastery.CheckRange(p.Float()); err != nil {
		return 0, err
	}
	v := p.Float()
	if correct {
		v = v + (1-v)*params.LearningRate
	} else {
		v = v * (1 - params.ForgetRate)
	}
	next, err := mastery.NewProbability(v)
	if err != nil {
		return 0, fmt.Errorf("trace update produced %v from %v: %w", v, p.Float(), err)
	}
	return next, nil
}

// PredictCorrect returns the probability the next answer is correct.
func (e *Engine) PredictCorrect(p mastery.Probability) float64 {
	return e.params.PKnow*p.Float() + e.params.PGuess*(1-p.Float())
}

// StepsToMastery counts the consecutive correct answers needed to lift p to
// threshold. It returns Unreachable if MaxSimulationSteps is not enough.
func (e *Engine) StepsToMastery(p mastery.Probability, threshold float64) (int, error) {
	if err := mastery.CheckRange(p.Float()); err != nil {
		return 0, err
	}
	if err := mastery.CheckRange(threshold); err != nil {
		return 0, apperr.InvalidState("threshold %v outside [0, 1]", threshold)
	}

	cur := p
	for steps := 0; steps < MaxSimulationSteps; steps++ {
		if cur.Float() >= threshold {
			return steps, nil
		}
		next, err := e.Trace(cur, true)
		if err != nil {
			return 0, err
		}
		cur = next
	}
	if cur.Float() >= threshold {
		return MaxSimulationSteps, nil
	}
	return Unreachable, nil
}

// Mastery returns a student's current mastery of a concept.
func (e *Engine) Mastery(studentID, conceptID string) (mastery.Probability, error) {
	if !e.catalog.Has(conceptID) {
		return 0, apperr.NotFound(apperr.KindConcept, conceptID)
	}
	snap, err := e.store.Get(studentID)
	if err != nil {
		return 0, err
	}
	return snap.Of(conceptID), nil
}

// Ready reports whether every prerequisite of conceptID has mastery at or
// above the prerequisite threshold in snap.
func (e *Engine) Ready(conceptID string, snap mastery.Snapshot) (bool, error) {
	c, err := e.catalog.Get(conceptID)
	if err != nil {
		return false, err
	}
	for _, pre := range c.Prerequisites {
		if snap.Of(pre).Float() < e.params.PrerequisiteThreshold {
			return false, nil
		}
	}
	return true, nil
}

// IsReady is Ready against the student's stored state.
func (e *Engine) IsReady(studentID, conceptID string) (bool, error) {
	if !e.catalog.Has(conceptID) {
		return false, apperr.NotFound(apperr.KindConcept, conceptID)
	}
	snap, err := e.store.Get(studentID)
	if err != nil {
		return false, err
	}
	return e.Ready(conceptID, snap)
}

// ReadyConcepts lists concepts whose prerequisites are met and which are not
// yet mastered, in topological order.
func (e *Engine) ReadyConcepts(snap mastery.Snapshot) []string {
	var out []string
	for _, c := range e.catalog.TopologicalOrder() {
		if snap.Of(c.ID).Float() >= e.params.MasteryThreshold {
			continue
		}
		if ok, _ := e.Ready(c.ID, snap); ok {
			out = append(out, c.ID)
		}
	}
	return out
}

// Apply traces one observation into the student's stored state and returns
// the new mastery. Writes for the same student are serialised by the store.
func (e *Engine) Apply(studentID, conceptID string, correct bool) (mastery.Probability, error) {
	if !e.catalog.Has(conceptID) {
		return 0, apperr.NotFound(apperr.KindConcept, conceptID)
	}

	var before, after mastery.Probability
	err := e.store.Update(studentID, func(s mastery.Snapshot) error {
		before = s.Of(conceptID)
		next, err := e.Trace(before, correct)
		if err != nil {
			return err
		}
		s[conceptID] = next
		after = next
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("apply interaction for %s/%s: %w", studentID, conceptID, err)
	}

	e.log.Debug("mastery updated",
		"student", studentID,
		"concept", conceptID,
		"correct", correct,
		"before", before.Float(),
		"after", after.Float(),
	)
	return after, nil
}

// Observation is the subset of an interaction record that drives tracing.
type Observation struct {
	Sequence  int64
	StudentID string
	ConceptID string
	Correct   bool
}

// Rebuild reconstructs a student's state from their interaction history,
// starting from the default state. See Replay.
func (e *Engine) Rebuild(studentID string, history []Observation) (mastery.Snapshot, error) {
	return e.Replay(studentID, nil, history)
}

// Replay applies history on top of base (nil means no prior state) in
// sequence order and stores the result. Nothing is stored if any record is
// malformed.
func (e *Engine) Replay(studentID string, base mastery.Snapshot, history []Observation) (mastery.Snapshot, error) {
	if studentID == "" {
		return nil, apperr.InvalidState("rebuild requires a student ID")
	}
	state := base.Clone()
	if err := state.Validate(); err != nil {
		return nil, err
	}

	for i, obs := range ordered(history) {
		if err := e.checkObservation(studentID, obs); err != nil {
			return nil, fmt.Errorf("replay record %d (seq %d): %w", i, obs.Sequence, err)
		}
		next, err := e.Trace(state.Of(obs.ConceptID), obs.Correct)
		if err != nil {
			return nil, fmt.Errorf("replay record %d (seq %d): %w", i, obs.Sequence, err)
		}
		state[obs.ConceptID] = next
	}

	if err := e.store.Put(studentID, state); err != nil {
		return nil, err
	}
	e.log.Info("knowledge state rebuilt",
		"student", studentID,
		"interactions", len(history),
		"concepts", len(state),
	)
	return state.Clone(), nil
}

// Step is one entry of a mastery trajectory.
type Step struct {
	Observation
	Before mastery.Probability
	After  mastery.Probability
}

// Trajectory replays history without touching the store and reports the
// mastery before and after each interaction.
func (e *Engine) Trajectory(studentID string, history []Observation) ([]Step, error) {
	state := make(mastery.Snapshot)
	steps := make([]Step, 0, len(history))
	for i, obs := range ordered(history) {
		if err := e.checkObservation(studentID, obs); err != nil {
			return nil, fmt.Errorf("trajectory record %d: %w", i, err)
		}
		before := state.Of(obs.ConceptID)
		after, err := e.Trace(before, obs.Correct)
		if err != nil {
			return nil, err
		}
		state[obs.ConceptID] = after
		steps = append(steps, Step{Observation: obs, Before: before, After: after})
	}
	return steps, nil
}

func (e *Engine) checkObservation(studentID string, obs Observation) error {
	switch {
	case obs.StudentID == "":
		return apperr.InvalidState("interaction has no student")
	case obs.StudentID != studentID:
		return apperr.InvalidState("interaction belongs to %q, not %q", obs.StudentID, studentID)
	case obs.ConceptID == "":
		return apperr.InvalidState("interaction has no concept")
	case !e.catalog.Has(obs.ConceptID):
		return apperr.NotFound(apperr.KindConcept, obs.ConceptID)
	}
	return nil
}

// ordered returns history sorted by sequence, keeping input order for ties.
func ordered(history []Observation) []Observation {
	out := make([]Observation, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}
