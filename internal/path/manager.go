package path

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/tutor/internal/apperr"
	"github.com/abhisek/tutor/internal/logger"
	"github.com/abhisek/tutor/internal/mastery"
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Preference   Preference
	NumConcepts  int // 0 uses the generator default
	WeakCount    int // bottom-N concepts treated as weak; default 3
	HistoryLimit int // paths kept per student; default 20
	Concurrency  int // RefreshAll workers; default 4
	Now          func() time.Time
}

const (
	defaultWeakCount    = 3
	defaultHistoryLimit = 20
	defaultConcurrency  = 4
)

// Path is a generated path for one student.
type Path struct {
	StudentID   string
	Version     int
	Nodes       []Node
	Weak        []string
	Preference  Preference
	GeneratedAt time.Time
}

// Duration is the total estimated minutes of the path.
func (p Path) Duration() int { return Duration(p.Nodes) }

type studentPaths struct {
	mu      sync.Mutex
	current *Path
	history []Path
}

// Manager keeps the current path per student and recomputes it wholesale on
// request. Each student has their own lock.
type Manager struct {
	gen  *Generator
	opts ManagerOptions
	log  *logger.Logger

	mu       sync.Mutex // guards students only
	students map[string]*studentPaths
}

// NewManager creates a manager around gen.
func NewManager(gen *Generator, opts ManagerOptions, log *logger.Logger) (*Manager, error) {
	if opts.Preference == "" {
		opts.Preference = Balanced
	}
	if _, err := ParsePreference(string(opts.Preference)); err != nil {
		return nil, err
	}
	if opts.WeakCount <= 0 {
		opts.WeakCount = defaultWeakCount
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		gen:      gen,
		opts:     opts,
		log:      logger.OrNop(log),
		students: make(map[string]*studentPaths),
	}, nil
}

func (m *Manager) entry(studentID string) *studentPaths {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.students[studentID]
	if !ok {
		e = &studentPaths{}
		m.students[studentID] = e
	}
	return e
}

// WeakConcepts returns up to the configured number of concepts with the
// lowest mastery below the prerequisite threshold, lowest first. Only
// concepts the student has state for are considered: a concept never
// attempted is not weak, even though Generate reads its mastery as 0.
func (m *Manager) WeakConcepts(knowledge mastery.Snapshot) []string {
	threshold := m.gen.opts.PrerequisiteThreshold
	type scored struct {
		id string
		p  float64
	}
	var low []scored
	for id, p := range knowledge {
		if !m.gen.catalog.Has(id) || p.Float() >= threshold {
			continue
		}
		low = append(low, scored{id, p.Float()})
	}
	sort.Slice(low, func(i, j int) bool {
		if low[i].p != low[j].p {
			return low[i].p < low[j].p
		}
		return low[i].id < low[j].id
	})
	if len(low) > m.opts.WeakCount {
		low = low[:m.opts.WeakCount]
	}
	out := make([]string, len(low))
	for i, s := range low {
		out[i] = s.id
	}
	return out
}

func (m *Manager) build(studentID string, knowledge mastery.Snapshot, version int) (Path, error) {
	weak := m.WeakConcepts(knowledge)
	nodes, err := m.gen.Generate(Request{
		Knowledge:   knowledge,
		Weak:        weak,
		NumConcepts: m.opts.NumConcepts,
		Preference:  m.opts.Preference,
	})
	if err != nil {
		return Path{}, err
	}
	return Path{
		StudentID:   studentID,
		Version:     version,
		Nodes:       nodes,
		Weak:        weak,
		Preference:  m.opts.Preference,
		GeneratedAt: m.opts.Now(),
	}, nil
}

// CreateInitialPath generates a student's first path, discarding any
// previous path and history.
func (m *Manager) CreateInitialPath(studentID string, knowledge mastery.Snapshot) (Path, error) {
	if studentID == "" {
		return Path{}, apperr.InvalidState("path requires a student ID")
	}
	e := m.entry(studentID)
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := m.build(studentID, knowledge, 1)
	if err != nil {
		return Path{}, err
	}
	e.current = &p
	e.history = []Path{p}
	m.log.Info("initial path created", "student", studentID, "nodes", len(p.Nodes), "weak", p.Weak)
	return p, nil
}

// UpdatePath recomputes the student's path from scratch and replaces the
// current one. The replaced path stays in history.
func (m *Manager) UpdatePath(studentID string, knowledge mastery.Snapshot) (Path, error) {
	if studentID == "" {
		return Path{}, apperr.InvalidState("path requires a student ID")
	}
	e := m.entry(studentID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return m.updateLocked(studentID, e, knowledge)
}

func (m *Manager) updateLocked(studentID string, e *studentPaths, knowledge mastery.Snapshot) (Path, error) {
	version := 1
	if e.current != nil {
		version = e.current.Version + 1
	}
	p, err := m.build(studentID, knowledge, version)
	if err != nil {
		return Path{}, err
	}
	e.current = &p
	e.history = append(e.history, p)
	if len(e.history) > m.opts.HistoryLimit {
		e.history = e.history[len(e.history)-m.opts.HistoryLimit:]
	}
	m.log.Debug("path updated", "student", studentID, "version", version, "nodes", len(p.Nodes))
	return p, nil
}

// Path returns the student's current path.
func (m *Manager) Path(studentID string) (Path, error) {
	m.mu.Lock()
	e, ok := m.students[studentID]
	m.mu.Unlock()
	if !ok {
		return Path{}, apperr.NotFound(apperr.KindStudent, studentID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return Path{}, apperr.NotFound(apperr.KindStudent, studentID)
	}
	return *e.current, nil
}

// History returns the student's paths, oldest first.
func (m *Manager) History(studentID string) []Path {
	m.mu.Lock()
	e, ok := m.students[studentID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Path, len(e.history))
	copy(out, e.history)
	return out
}

// KnowledgeLoader returns a student's current knowledge.
type KnowledgeLoader func(ctx context.Context, studentID string) (mastery.Snapshot, error)

// RefreshAll recomputes paths for many students concurrently. The first
// error cancels the remaining work and is returned.
func (m *Manager) RefreshAll(ctx context.Context, studentIDs []string, load KnowledgeLoader) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Concurrency)

	for _, id := range studentIDs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			knowledge, err := load(ctx, id)
			if err != nil {
				return err
			}
			_, err = m.UpdatePath(id, knowledge)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	m.log.Info("paths refreshed", "students", len(studentIDs))
	return nil
}
