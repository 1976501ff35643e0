package mastery

import (
	"sort"
	"sync"

	"github.com/abhisek/tutor/internal/apperr"
)

// Store is the authoritative holder of knowledge state, addressed by
// student ID. Implementations must serialise writers per student and must
// not hold a lock across students.
type Store interface {
	// Get returns a copy of the student's mastery, or a NotFoundError if the
	// student has no record.
	Get(studentID string) (Snapshot, error)

	// Put replaces the student's record wholesale, creating it if needed.
	Put(studentID string, snap Snapshot) error

	// Update runs fn on a working copy of the student's record under that
	// student's lock and commits the copy only if fn succeeds and every value
	// is still within [0, 1]. The record is created empty if missing.
	Update(studentID string, fn func(Snapshot) error) error

	// Students returns the IDs of all students with a record, sorted.
	Students() []string
}

// record is a single student's state guarded by its own mutex.
type record struct {
	mu    sync.Mutex
	state Snapshot
}

// MemoryStore is an in-memory Store with one lock per student.
type MemoryStore struct {
	mu      sync.Mutex // guards the records map only
	records map[string]*record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*record)}
}

func (m *MemoryStore) lookup(studentID string) (*record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[studentID]
	return r, ok
}

func (m *MemoryStore) lookupOrCreate(studentID string) *record {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[studentID]
	if !ok {
		r = &record{state: make(Snapshot)}
		m.records[studentID] = r
	}
	return r
}

func (m *MemoryStore) Get(studentID string) (Snapshot, error) {
	r, ok := m.lookup(studentID)
	if !ok {
		return nil, apperr.NotFound(apperr.KindStudent, studentID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone(), nil
}

func (m *MemoryStore) Put(studentID string, snap Snapshot) error {
	if studentID == "" {
		return apperr.InvalidState("empty student ID")
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	r := m.lookupOrCreate(studentID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = snap.Clone()
	return nil
}

func (m *MemoryStore) Update(studentID string, fn func(Snapshot) error) error {
	if studentID == "" {
		return apperr.InvalidState("empty student ID")
	}
	r := m.lookupOrCreate(studentID)
	r.mu.Lock()
	defer r.mu.Unlock()

	working := r.state.Clone()
	if err := fn(working); err != nil {
		return err
	}
	if err := working.Validate(); err != nil {
		return err
	}
	r.state = working
	return nil
}

func (m *MemoryStore) Students() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
