package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/tutor/internal/apperr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so journal_mode is checked with a file-based DB below.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestFileDatabaseUsesWAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tutor.db")
	if err := EnsureDir(path); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	var mode string
	if err := s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{"interactions", "snapshots", "global_sequence"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Fatalf("table %s: %v", table, err)
		}
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var seqs []int64
	for i := 0; i < 5; i++ {
		seq, err := s.seq.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		seqs = append(seqs, seq)
	}

	for i, seq := range seqs {
		expected := int64(i + 1)
		if seq != expected {
			t.Errorf("seq[%d] = %d, want %d", i, seq, expected)
		}
	}
}

func TestAppendAndQueryInteractions(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	events := []InteractionEventData{
		{StudentID: "s1", ConceptID: "loops", QuestionID: "q1", Correct: true, TimeSpent: 25 * time.Second, Timestamp: base},
		{StudentID: "s2", ConceptID: "loops", QuestionID: "q1", Correct: false, Timestamp: base.Add(time.Minute)},
		{StudentID: "s1", ConceptID: "loops", QuestionID: "q2", Correct: false, AttemptNo: 2, Timestamp: base.Add(2 * time.Minute), SessionID: "sess", Difficulty: "Hard"},
	}
	for i, e := range events {
		seq, err := repo.AppendInteraction(ctx, e)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if seq != int64(i+1) {
			t.Errorf("append %d: seq = %d, want %d", i, seq, i+1)
		}
	}

	got, err := repo.QueryInteractions(ctx, "s1", QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d interactions, want 2", len(got))
	}
	if got[0].Sequence != 1 || got[1].Sequence != 3 {
		t.Errorf("sequences = %d,%d, want 1,3", got[0].Sequence, got[1].Sequence)
	}
	if !got[0].Correct || got[0].TimeSpent != 25*time.Second || got[0].AttemptNo != 1 {
		t.Errorf("first record = %+v", got[0])
	}
	if !got[0].Timestamp.Equal(base) {
		t.Errorf("timestamp = %v, want %v", got[0].Timestamp, base)
	}
	if got[1].SessionID != "sess" || got[1].Difficulty != "Hard" || got[1].AttemptNo != 2 {
		t.Errorf("second record = %+v", got[1])
	}

	after, err := repo.QueryInteractions(ctx, "s1", QueryOpts{After: 1})
	if err != nil {
		t.Fatalf("query after: %v", err)
	}
	if len(after) != 1 || after[0].QuestionID != "q2" {
		t.Errorf("after=1 returned %+v", after)
	}

	limited, err := repo.QueryInteractions(ctx, "s1", QueryOpts{Limit: 1})
	if err != nil {
		t.Fatalf("query limit: %v", err)
	}
	if len(limited) != 1 || limited[0].Sequence != 1 {
		t.Errorf("limit=1 returned %+v", limited)
	}

	students, err := repo.Students(ctx)
	if err != nil {
		t.Fatalf("students: %v", err)
	}
	if strings.Join(students, ",") != "s1,s2" {
		t.Errorf("students = %v", students)
	}

	acc, n, err := repo.ConceptAccuracy(ctx, "s1", "loops")
	if err != nil {
		t.Fatalf("accuracy: %v", err)
	}
	if n != 2 || acc != 0.5 {
		t.Errorf("accuracy = %v over %d, want 0.5 over 2", acc, n)
	}
}

func TestAppendInteraction_Invalid(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()

	_, err := repo.AppendInteraction(context.Background(), InteractionEventData{ConceptID: "x"})
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("err = %v, want invalid state", err)
	}
	_, err = repo.AppendInteraction(context.Background(), InteractionEventData{StudentID: "s", ConceptID: "x", TimeSpent: -time.Second})
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("err = %v, want invalid state", err)
	}
}

func TestSnapshotSaveAndLatest(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	snap, err := repo.Latest(ctx, "s1")
	if err != nil {
		t.Fatalf("latest (empty): %v", err)
	}
	if snap != nil {
		t.Fatal("expected nil snapshot when none exist")
	}

	now := time.Now().UTC().Truncate(time.Second)
	err = repo.Save(ctx, &Snapshot{
		StudentID: "s1",
		Sequence:  42,
		Timestamp: now,
		Data:      SnapshotData{Version: 1, Mastery: map[string]float64{"loops": 0.55}},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	snap, err = repo.Latest(ctx, "s1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if snap == nil {
		t.Fatal("expected non-nil snapshot")
	}
	if snap.Sequence != 42 {
		t.Errorf("sequence = %d, want 42", snap.Sequence)
	}
	if snap.Data.Mastery["loops"] != 0.55 {
		t.Errorf("mastery = %v", snap.Data.Mastery)
	}
	if !snap.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", snap.Timestamp, now)
	}

	other, err := repo.Latest(ctx, "s2")
	if err != nil || other != nil {
		t.Errorf("other student: snap=%v err=%v", other, err)
	}
}

func TestSnapshotPrune(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	for _, student := range []string{"s1", "s2"} {
		for i := 0; i < 7; i++ {
			err := repo.Save(ctx, &Snapshot{
				StudentID: student,
				Sequence:  int64(i + 1),
				Data:      SnapshotData{Version: 1},
			})
			if err != nil {
				t.Fatalf("save %s/%d: %v", student, i, err)
			}
		}
	}

	if err := repo.Prune(ctx, "s1", 5); err != nil {
		t.Fatalf("prune: %v", err)
	}

	count := func(student string) int {
		var n int
		if err := s.DB().QueryRow(`SELECT COUNT(*) FROM snapshots WHERE student_id = ?`, student).Scan(&n); err != nil {
			t.Fatalf("count: %v", err)
		}
		return n
	}
	if n := count("s1"); n != 5 {
		t.Errorf("s1 snapshots = %d, want 5", n)
	}
	if n := count("s2"); n != 7 {
		t.Errorf("s2 snapshots = %d, want 7 (untouched)", n)
	}

	snap, err := repo.Latest(ctx, "s1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if snap.Sequence != 7 {
		t.Errorf("latest sequence = %d, want 7", snap.Sequence)
	}
}

func TestImportCSV(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	data := `student_id,question_id,concept,difficulty,score,time_spent,attempt_no,timestamp
1,10,Concept_1,Easy,1,42,1,2024-01-01 10:00:00
1,11,Concept_1,Hard,0,120.5,2,2024-01-01 10:05:00
2,10,Concept_1,Easy,maybe,10,1,2024-01-01 10:06:00
,10,Concept_1,Easy,1,10,1,2024-01-01 10:07:00
2,12,Concept_2,Medium,1,15,1,2024-01-02T08:00:00Z
`
	res, err := ImportCSV(ctx, repo, strings.NewReader(data))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Imported != 3 {
		t.Errorf("imported = %d, want 3", res.Imported)
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("skipped = %v, want 2 entries", res.Skipped)
	}
	if !strings.HasPrefix(res.Skipped[0], "line 4") {
		t.Errorf("first skip = %q, want line 4", res.Skipped[0])
	}

	got, err := repo.QueryInteractions(ctx, "1", QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("student 1 interactions = %d, want 2", len(got))
	}
	if got[1].Correct || got[1].TimeSpent != 120500*time.Millisecond || got[1].AttemptNo != 2 {
		t.Errorf("second row = %+v", got[1])
	}
	want := time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)
	if !got[1].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", got[1].Timestamp, want)
	}
}

func TestImportCSV_AppendsInTimestampOrder(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	data := `student_id,question_id,concept,difficulty,score,time_spent,attempt_no,timestamp
1,11,Concept_1,Medium,0,30,2,2024-01-02 09:00:00
1,12,Concept_1,Medium,1,30,1,
1,10,Concept_1,Medium,1,30,1,2024-01-01 09:00:00
`
	res, err := ImportCSV(ctx, repo, strings.NewReader(data))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Imported != 3 || len(res.Skipped) != 0 {
		t.Fatalf("result = %+v, want 3 imported", res)
	}

	got, err := repo.QueryInteractions(ctx, "1", QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var order []string
	for _, r := range got {
		order = append(order, r.QuestionID)
	}
	if strings.Join(order, ",") != "10,11,12" {
		t.Errorf("append order = %v, want [10 11 12]", order)
	}
	if !got[0].Correct || got[1].Correct {
		t.Errorf("first two rows = %+v, %+v", got[0], got[1])
	}
}

func TestImportCSV_SkipsReportedInLineOrder(t *testing.T) {
	s := openTestStore(t)
	data := `student_id,question_id,concept,difficulty,score,time_spent,attempt_no,timestamp
,10,Concept_1,Easy,1,10,1,2024-01-01 10:00:00
1,10,Concept_1,Easy,maybe,10,1,2024-01-01 10:01:00
`
	res, err := ImportCSV(context.Background(), s.EventRepo(), strings.NewReader(data))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(res.Skipped) != 2 || !strings.HasPrefix(res.Skipped[0], "line 2") || !strings.HasPrefix(res.Skipped[1], "line 3") {
		t.Errorf("skipped = %v, want lines 2 and 3", res.Skipped)
	}
}

func TestImportCSV_MissingColumn(t *testing.T) {
	s := openTestStore(t)
	_, err := ImportCSV(context.Background(), s.EventRepo(), strings.NewReader("student_id,concept\n1,a\n"))
	if !errors.Is(err, apperr.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}
