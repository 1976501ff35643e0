package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abhisek/tutor/internal/apperr"
)

// sequenceCounter hands out the global, strictly increasing sequence number
// stamped on every interaction. Cold-start replay and snapshot catch-up both
// rely on it: a snapshot records the last sequence it folded in, and replay
// resumes with sequence > snapshot.Sequence.
//
// The mutex serializes within the process; the RETURNING clause makes the
// increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

// newSequenceCounter creates a counter and ensures the tracking table exists.
func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// eventRepo implements EventRepo with raw SQL and the global sequence counter.
type eventRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func validateInteraction(data InteractionEventData) error {
	var missing []string
	if strings.TrimSpace(data.StudentID) == "" {
		missing = append(missing, "student")
	}
	if strings.TrimSpace(data.ConceptID) == "" {
		missing = append(missing, "concept")
	}
	if len(missing) > 0 {
		return apperr.InvalidState("interaction missing %s", strings.Join(missing, " and "))
	}
	if data.TimeSpent < 0 {
		return apperr.InvalidState("interaction has negative time spent")
	}
	if data.AttemptNo < 0 {
		return apperr.InvalidState("interaction has negative attempt number")
	}
	return nil
}

func (r *eventRepo) AppendInteraction(ctx context.Context, data InteractionEventData) (int64, error) {
	if err := validateInteraction(data); err != nil {
		return 0, err
	}
	if data.Timestamp.IsZero() {
		data.Timestamp = time.Now()
	}
	if data.AttemptNo == 0 {
		data.AttemptNo = 1
	}

	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO interactions
			(sequence, student_id, concept_id, question_id, correct, time_ms, attempt_no, timestamp, session_id, difficulty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seqNum,
		data.StudentID,
		data.ConceptID,
		data.QuestionID,
		boolToInt(data.Correct),
		data.TimeSpent.Milliseconds(),
		data.AttemptNo,
		data.Timestamp.UTC().Format(time.RFC3339Nano),
		data.SessionID,
		data.Difficulty,
	)
	if err != nil {
		return 0, fmt.Errorf("save interaction: %w", err)
	}
	return seqNum, nil
}

func (r *eventRepo) QueryInteractions(ctx context.Context, studentID string, opts QueryOpts) ([]InteractionRecord, error) {
	query := `SELECT sequence, student_id, concept_id, question_id, correct, time_ms, attempt_no, timestamp, session_id, difficulty
		FROM interactions WHERE student_id = ? AND sequence > ? ORDER BY sequence ASC`
	args := []any{studentID, opts.After}
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []InteractionRecord
	for rows.Next() {
		var (
			rec     InteractionRecord
			correct int
			timeMs  int64
			ts      string
		)
		if err := rows.Scan(
			&rec.Sequence,
			&rec.StudentID,
			&rec.ConceptID,
			&rec.QuestionID,
			&correct,
			&timeMs,
			&rec.AttemptNo,
			&ts,
			&rec.SessionID,
			&rec.Difficulty,
		); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		rec.Correct = correct != 0
		rec.TimeSpent = time.Duration(timeMs) * time.Millisecond
		rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, apperr.InvalidState("interaction %d: bad timestamp %q", rec.Sequence, ts)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *eventRepo) Students(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT student_id FROM interactions ORDER BY student_id`)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *eventRepo) ConceptAccuracy(ctx context.Context, studentID, conceptID string) (float64, int, error) {
	var total, correct int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(correct), 0) FROM interactions WHERE student_id = ? AND concept_id = ?`,
		studentID, conceptID,
	).Scan(&total, &correct)
	if err != nil {
		return 0, 0, fmt.Errorf("query concept accuracy: %w", err)
	}
	if total == 0 {
		return 0, 0, nil
	}
	return float64(correct) / float64(total), total, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
