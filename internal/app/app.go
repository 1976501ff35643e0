// Package app wires the catalog, question bank, knowledge engine, path
// manager and interaction log into one value the CLI drives.
package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/tutor/internal/apperr"
	"github.com/abhisek/tutor/internal/concept"
	"github.com/abhisek/tutor/internal/config"
	"github.com/abhisek/tutor/internal/difficulty"
	"github.com/abhisek/tutor/internal/knowledge"
	"github.com/abhisek/tutor/internal/logger"
	"github.com/abhisek/tutor/internal/mastery"
	"github.com/abhisek/tutor/internal/path"
	"github.com/abhisek/tutor/internal/question"
	"github.com/abhisek/tutor/internal/quiz"
	"github.com/abhisek/tutor/internal/store"
)

// snapshotVersion is written into every saved knowledge snapshot.
const snapshotVersion = 1

// Options configures New. Zero values fall back to loading from Config.
type Options struct {
	Config config.Config
	Logger *logger.Logger

	// Catalog and Bank skip loading from Config paths when set.
	Catalog *concept.Catalog
	Bank    *question.Bank

	// Store skips opening the database at Config.DBPath. The caller keeps
	// ownership.
	Store *store.Store

	// Rand drives question selection.
	Rand *rand.Rand

	Now func() time.Time
}

// App is the assembled engine.
type App struct {
	Config    config.Config
	Log       *logger.Logger
	Catalog   *concept.Catalog
	Bank      *question.Bank
	Mastery   *mastery.MemoryStore
	Engine    *knowledge.Engine
	Selector  *question.Selector
	Generator *path.Generator
	Paths     *path.Manager

	db        *store.Store
	ownsDB    bool
	events    store.EventRepo
	snapshots store.SnapshotRepo
	now       func() time.Time
}

// New builds an App from opts.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.OrNop(opts.Logger)

	cat := opts.Catalog
	if cat == nil {
		if cfg.CatalogPath == "" {
			return nil, &apperr.ConfigurationError{Problems: []string{"no concept catalog configured (set catalog_path or " + config.EnvCatalog + ")"}}
		}
		var err error
		cat, err = concept.LoadFile(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
	}

	bank := opts.Bank
	if bank == nil {
		var err error
		if cfg.BankPath != "" {
			bank, err = question.LoadFile(cfg.BankPath)
		} else {
			bank, err = question.NewBank(nil)
		}
		if err != nil {
			return nil, fmt.Errorf("load question bank: %w", err)
		}
	}
	for _, id := range bank.Concepts() {
		if !cat.Has(id) {
			log.Warn("question bank references unknown concept", "concept", id)
		}
	}

	states := mastery.NewMemoryStore()
	engine, err := knowledge.New(cfg.Tracing, cat, states, log)
	if err != nil {
		return nil, err
	}
	gen, err := path.NewGenerator(cat, cfg.GeneratorOptions(), log)
	if err != nil {
		return nil, err
	}
	mopts := cfg.ManagerOptions()
	mopts.Now = opts.Now
	paths, err := path.NewManager(gen, mopts, log)
	if err != nil {
		return nil, err
	}

	db, owns := opts.Store, false
	if db == nil {
		dbPath := cfg.DBPath
		if dbPath == "" {
			if dbPath, err = store.DefaultDBPath(); err != nil {
				return nil, err
			}
		} else if err := store.EnsureDir(dbPath); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		if db, err = store.Open(dbPath); err != nil {
			return nil, err
		}
		owns = true
		log.Debug("interaction log opened", "path", dbPath)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	selector := question.NewSelector(bank, question.SelectorOptions{
		Rand:         opts.Rand,
		AllowRepeats: cfg.Quiz.AllowRepeats,
		KnownConcept: cat.Has,
		Logger:       log,
	})

	return &App{
		Config:    cfg,
		Log:       log,
		Catalog:   cat,
		Bank:      bank,
		Mastery:   states,
		Engine:    engine,
		Selector:  selector,
		Generator: gen,
		Paths:     paths,
		db:        db,
		ownsDB:    owns,
		events:    db.EventRepo(),
		snapshots: db.SnapshotRepo(),
		now:       now,
	}, nil
}

// Close flushes the logger and releases the database if New opened it.
func (a *App) Close() error {
	a.Log.Sync()
	if a.ownsDB {
		return a.db.Close()
	}
	return nil
}

// Events is the interaction log.
func (a *App) Events() store.EventRepo { return a.events }

// LoadStudent rebuilds a student's knowledge from the interaction log,
// starting from their latest snapshot when one exists. Interactions on
// concepts no longer in the catalog are skipped.
func (a *App) LoadStudent(ctx context.Context, studentID string) (mastery.Snapshot, error) {
	snap, _, err := a.load(ctx, studentID)
	return snap, err
}

func (a *App) load(ctx context.Context, studentID string) (mastery.Snapshot, int64, error) {
	if studentID == "" {
		return nil, 0, apperr.InvalidState("student ID is required")
	}

	var (
		base  mastery.Snapshot
		after int64
	)
	latest, err := a.snapshots.Latest(ctx, studentID)
	if err != nil {
		return nil, 0, err
	}
	if latest != nil {
		base, err = mastery.SnapshotFromFloats(latest.Data.Mastery)
		if err != nil {
			return nil, 0, fmt.Errorf("snapshot %d: %w", latest.ID, err)
		}
		after = latest.Sequence
	}

	records, err := a.events.QueryInteractions(ctx, studentID, store.QueryOpts{After: after})
	if err != nil {
		return nil, 0, err
	}

	lastSeq := after
	for _, r := range records {
		lastSeq = max(lastSeq, r.Sequence)
	}
	history := a.observations(studentID, records)

	state, err := a.Engine.Replay(studentID, base, history)
	if err != nil {
		return nil, 0, err
	}

	a.Log.Debug("student loaded", "student", studentID, "from_snapshot", latest != nil, "replayed", len(history))
	return state, lastSeq, nil
}

// observations converts log records to tracing input, dropping those on
// concepts no longer in the catalog.
func (a *App) observations(studentID string, records []store.InteractionRecord) []knowledge.Observation {
	history := make([]knowledge.Observation, 0, len(records))
	for _, r := range records {
		if !a.Catalog.Has(r.ConceptID) {
			a.Log.Warn("skipping interaction on unknown concept", "student", studentID, "concept", r.ConceptID, "seq", r.Sequence)
			continue
		}
		history = append(history, knowledge.Observation{
			Sequence:  r.Sequence,
			StudentID: r.StudentID,
			ConceptID: r.ConceptID,
			Correct:   r.Correct,
		})
	}
	return history
}

// History replays a student's full interaction log, ignoring snapshots, and
// returns mastery before and after every answer. Stored state is untouched.
func (a *App) History(ctx context.Context, studentID string) ([]knowledge.Step, error) {
	if studentID == "" {
		return nil, apperr.InvalidState("student ID is required")
	}
	records, err := a.events.QueryInteractions(ctx, studentID, store.QueryOpts{})
	if err != nil {
		return nil, err
	}
	return a.Engine.Trajectory(studentID, a.observations(studentID, records))
}

// ReadyToLearn loads the student and lists unmastered concepts whose
// prerequisites are met, in topological order.
func (a *App) ReadyToLearn(ctx context.Context, studentID string) ([]string, error) {
	state, err := a.LoadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return a.Engine.ReadyConcepts(state), nil
}

// ColdStartAll loads every student in the interaction log concurrently and
// returns their IDs.
func (a *App) ColdStartAll(ctx context.Context) ([]string, error) {
	students, err := a.events.Students(ctx)
	if err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency())
	for _, id := range students {
		g.Go(func() error {
			_, err := a.LoadStudent(ctx, id)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	a.Log.Info("cold start complete", "students", len(students))
	return students, nil
}

func (a *App) concurrency() int {
	if n := a.Config.Path.Concurrency; n > 0 {
		return n
	}
	return 1
}

// SaveSnapshot reloads the student from the log and stores their knowledge
// as a snapshot, keeping only the configured number of recent ones. It is a
// no-op when snapshots are disabled.
func (a *App) SaveSnapshot(ctx context.Context, studentID string) error {
	if !a.Config.Snapshots.Enabled {
		return nil
	}
	state, seq, err := a.load(ctx, studentID)
	if err != nil {
		return err
	}
	snap := &store.Snapshot{
		StudentID: studentID,
		Sequence:  seq,
		Timestamp: a.now(),
		Data: store.SnapshotData{
			Version: snapshotVersion,
			Mastery: state.Floats(),
		},
	}
	if err := a.snapshots.Save(ctx, snap); err != nil {
		return err
	}
	if err := a.snapshots.Prune(ctx, studentID, a.Config.Snapshots.Keep); err != nil {
		return err
	}
	a.Log.Debug("snapshot saved", "student", studentID, "seq", seq)
	return nil
}

// StartQuiz loads the student and opens a quiz session on conceptID. A
// non-nil prev continues at that adaptor's level.
func (a *App) StartQuiz(ctx context.Context, studentID, conceptID string, prev *difficulty.Adaptor) (*quiz.Session, error) {
	if _, err := a.LoadStudent(ctx, studentID); err != nil {
		return nil, err
	}
	opts := quiz.Options{
		Window:       a.Config.Quiz.Window,
		MaxQuestions: a.Config.Quiz.MaxQuestions,
		Events:       a.events,
		Logger:       a.Log,
		Now:          a.now,
	}
	if prev != nil {
		opts.Adaptor = prev.Continue()
	}
	return quiz.Start(studentID, conceptID, a.Engine, a.Selector, opts)
}

// PathOptions adjusts one BuildPath call.
type PathOptions struct {
	// Preference overrides the configured preference when set.
	Preference path.Preference
	// Weak overrides the computed weak concepts when non-nil.
	Weak []string
	// NumConcepts overrides the configured length when positive.
	NumConcepts int
}

// BuildPath loads the student and recomputes their path through the path
// manager. With overrides in opts the path is generated directly and the
// manager is left untouched.
func (a *App) BuildPath(ctx context.Context, studentID string, opts PathOptions) (path.Path, error) {
	state, err := a.LoadStudent(ctx, studentID)
	if err != nil {
		return path.Path{}, err
	}
	if opts.Preference == "" && opts.Weak == nil && opts.NumConcepts <= 0 {
		return a.Paths.UpdatePath(studentID, state)
	}

	weak := opts.Weak
	if weak == nil {
		weak = a.Paths.WeakConcepts(state)
	}
	pref := opts.Preference
	if pref == "" {
		pref = path.Preference(a.Config.Path.Preference)
	}
	nodes, err := a.Generator.Generate(path.Request{
		Knowledge:   state,
		Weak:        weak,
		NumConcepts: opts.NumConcepts,
		Preference:  pref,
	})
	if err != nil {
		return path.Path{}, err
	}
	return path.Path{
		StudentID:   studentID,
		Version:     1,
		Nodes:       nodes,
		Weak:        weak,
		Preference:  pref,
		GeneratedAt: a.now(),
	}, nil
}

// RefreshPaths recomputes paths for every student in the interaction log.
func (a *App) RefreshPaths(ctx context.Context) error {
	students, err := a.events.Students(ctx)
	if err != nil {
		return err
	}
	return a.Paths.RefreshAll(ctx, students, a.LoadStudent)
}

// NextConcept returns the first node of the student's current path that
// they have not yet mastered. It reads the state and path already held in
// memory; false means the path is complete.
func (a *App) NextConcept(studentID string) (path.Node, bool, error) {
	p, err := a.Paths.Path(studentID)
	if err != nil {
		return path.Node{}, false, err
	}
	state, err := a.Mastery.Get(studentID)
	if err != nil {
		return path.Node{}, false, err
	}
	n, ok := path.NextNode(p.Nodes, state, a.Engine.Params().MasteryThreshold)
	return n, ok, nil
}

// ConceptReport summarises one concept for a student.
type ConceptReport struct {
	Concept        concept.Concept
	Mastery        mastery.Probability
	PredictCorrect float64
	StepsToMastery int
	Ready          bool
	Accuracy       float64
	Answers        int
}

// Report loads the student and describes every concept in topological
// order.
func (a *App) Report(ctx context.Context, studentID string) ([]ConceptReport, error) {
	state, err := a.LoadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	threshold := a.Engine.Params().MasteryThreshold

	var out []ConceptReport
	for _, c := range a.Catalog.TopologicalOrder() {
		p := state.Of(c.ID)
		steps, err := a.Engine.StepsToMastery(p, threshold)
		if err != nil {
			return nil, err
		}
		ready, err := a.Engine.Ready(c.ID, state)
		if err != nil {
			return nil, err
		}
		acc, n, err := a.events.ConceptAccuracy(ctx, studentID, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, ConceptReport{
			Concept:        c,
			Mastery:        p,
			PredictCorrect: a.Engine.PredictCorrect(p),
			StepsToMastery: steps,
			Ready:          ready,
			Accuracy:       acc,
			Answers:        n,
		})
	}
	return out, nil
}
