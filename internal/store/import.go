package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abhisek/tutor/internal/apperr"
)

// timestampLayouts are tried in order when importing interaction history.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ImportResult reports the outcome of ImportCSV.
type ImportResult struct {
	Imported int
	Skipped  []string // one entry per rejected line
}

// ImportCSV appends interactions from CSV with the header
// student_id,question_id,concept,difficulty,score,time_spent,attempt_no,timestamp.
// score is 1 for correct, time_spent is in seconds. Every row is parsed
// before anything is written; valid rows are then appended in timestamp
// order, ties and untimestamped rows keeping file order with untimestamped
// rows last. Malformed rows are skipped and reported in line order.
func ImportCSV(ctx context.Context, repo EventRepo, r io.Reader) (ImportResult, error) {
	var res ImportResult

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return res, fmt.Errorf("read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"student_id", "concept", "score"} {
		if _, ok := col[required]; !ok {
			return res, &apperr.ConfigurationError{Problems: []string{fmt.Sprintf("CSV missing column %q", required)}}
		}
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	type row struct {
		line int
		data InteractionEventData
	}
	var rows []row
	skips := map[int]string{}
	skip := func(line int, err error) {
		skips[line] = fmt.Sprintf("line %d: %v", line, err)
	}

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			skip(line, err)
			continue
		}
		data, err := parseInteractionRow(func(name string) string { return field(rec, name) })
		if err != nil {
			skip(line, err)
			continue
		}
		rows = append(rows, row{line, data})
	}

	// Untimestamped rows are stamped with the current time on append.
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].data.Timestamp, rows[j].data.Timestamp
		if a.IsZero() {
			return false
		}
		return b.IsZero() || a.Before(b)
	})

	for _, r := range rows {
		if _, err := repo.AppendInteraction(ctx, r.data); err != nil {
			if errors.Is(err, apperr.ErrInvalidState) {
				skip(r.line, err)
				continue
			}
			return res, fmt.Errorf("line %d: %w", r.line, err)
		}
		res.Imported++
	}

	lines := make([]int, 0, len(skips))
	for l := range skips {
		lines = append(lines, l)
	}
	sort.Ints(lines)
	for _, l := range lines {
		res.Skipped = append(res.Skipped, skips[l])
	}
	return res, nil
}

func parseInteractionRow(field func(string) string) (InteractionEventData, error) {
	data := InteractionEventData{
		StudentID:  field("student_id"),
		ConceptID:  field("concept"),
		QuestionID: field("question_id"),
		Difficulty: field("difficulty"),
	}

	switch s := field("score"); s {
	case "1", "1.0", "true", "True", "TRUE":
		data.Correct = true
	case "0", "0.0", "false", "False", "FALSE":
	default:
		return data, fmt.Errorf("score %q is not 0 or 1", s)
	}

	if s := field("time_spent"); s != "" {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return data, fmt.Errorf("time_spent %q: %w", s, err)
		}
		data.TimeSpent = time.Duration(secs * float64(time.Second))
	}
	if s := field("attempt_no"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return data, fmt.Errorf("attempt_no %q: %w", s, err)
		}
		data.AttemptNo = n
	}
	if s := field("timestamp"); s != "" {
		ts, err := parseTimestamp(s)
		if err != nil {
			return data, err
		}
		data.Timestamp = ts
	}
	return data, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
