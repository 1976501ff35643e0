package store

import (
	"context"
	"time"
)

// QueryOpts configures interaction queries with filtering and pagination.
type QueryOpts struct {
	Limit int   // max results (0 = unlimited)
	After int64 // sequence > After
}

// InteractionEventData is one observed answer. Interactions are written once
// and never mutated.
type InteractionEventData struct {
	StudentID  string
	ConceptID  string
	QuestionID string
	Correct    bool
	TimeSpent  time.Duration
	AttemptNo  int
	Timestamp  time.Time // zero means now
	SessionID  string    // empty for imported history
	Difficulty string
}

// InteractionRecord is a stored interaction with its global sequence.
type InteractionRecord struct {
	Sequence int64
	InteractionEventData
}

// EventRepo is the append-only interaction log.
type EventRepo interface {
	// AppendInteraction records an interaction and returns its sequence.
	AppendInteraction(ctx context.Context, data InteractionEventData) (int64, error)

	// QueryInteractions returns a student's interactions in sequence order.
	QueryInteractions(ctx context.Context, studentID string, opts QueryOpts) ([]InteractionRecord, error)

	// Students returns every student with at least one interaction, sorted.
	Students(ctx context.Context) ([]string, error)

	// ConceptAccuracy is the fraction of a student's answers on a concept
	// that were correct, and the number of answers.
	ConceptAccuracy(ctx context.Context, studentID, conceptID string) (float64, int, error)
}

// SnapshotData captures one student's knowledge state at a point in time.
type SnapshotData struct {
	Version int                `json:"version"`
	Mastery map[string]float64 `json:"mastery"`
}

// Snapshot represents a point-in-time capture of a student's state. Sequence
// is the last interaction folded into Data.
type Snapshot struct {
	ID        int
	StudentID string
	Sequence  int64
	Timestamp time.Time
	Data      SnapshotData
}

// SnapshotRepo manages per-student state snapshots.
type SnapshotRepo interface {
	// Save stores a new snapshot.
	Save(ctx context.Context, snap *Snapshot) error

	// Latest returns the student's most recent snapshot, or nil if none exist.
	Latest(ctx context.Context, studentID string) (*Snapshot, error)

	// Prune deletes all but the student's N most recent snapshots.
	Prune(ctx context.Context, studentID string, keep int) error
}
