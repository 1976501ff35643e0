package question

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/abhisek/tutor/internal/apperr"
	"github.com/abhisek/tutor/internal/concept"
	"github.com/abhisek/tutor/internal/difficulty"
)

// bankSchema is the JSON schema for question bank files.
var bankSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"questions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":      map[string]any{"type": "string", "minLength": 1},
					"concept": map[string]any{"type": "string", "minLength": 1},
					"difficulty": map[string]any{
						"type": "string",
						"enum": []any{"Easy", "Medium", "Hard", "easy", "medium", "hard"},
					},
					"bloom_level":    map[string]any{"type": "string"},
					"avg_solve_time": map[string]any{"type": "number", "minimum": 0},
				},
				"required":             []any{"id", "concept", "difficulty"},
				"additionalProperties": false,
			},
		},
	},
	"required": []any{"questions"},
}

const bankSchemaURL = "schema://question-bank.json"

var (
	compiledOnce   sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		// The compiler wants a decoded JSON value, so round-trip the map.
		raw, err := json.Marshal(bankSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal bank schema: %w", err)
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			compileErr = fmt.Errorf("parse bank schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(bankSchemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add bank schema: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(bankSchemaURL)
	})
	return compiledSchema, compileErr
}

type bankFile struct {
	Questions []bankEntry `json:"questions"`
}

type bankEntry struct {
	ID           string  `json:"id"`
	Concept      string  `json:"concept"`
	Difficulty   string  `json:"difficulty"`
	BloomLevel   string  `json:"bloom_level"`
	AvgSolveTime float64 `json:"avg_solve_time"` // seconds
}

// ParseJSON validates data against the bank schema and builds a Bank.
func ParseJSON(data []byte) (*Bank, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &apperr.ConfigurationError{Problems: []string{fmt.Sprintf("invalid JSON: %v", err)}}
	}
	sch, err := schema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(doc); err != nil {
		return nil, &apperr.ConfigurationError{Problems: []string{fmt.Sprintf("schema validation failed: %v", err)}}
	}

	var f bankFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &apperr.ConfigurationError{Problems: []string{err.Error()}}
	}
	qs := make([]Question, 0, len(f.Questions))
	var problems []string
	for _, e := range f.Questions {
		q, err := fromFields(e.ID, e.Concept, e.Difficulty, e.BloomLevel, e.AvgSolveTime)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		qs = append(qs, q)
	}
	if len(problems) > 0 {
		return nil, &apperr.ConfigurationError{Problems: problems}
	}
	return NewBank(qs)
}

var csvColumns = []string{"question_id", "concept", "difficulty", "bloom_level", "avg_solve_time"}

// ParseCSV reads a bank with the header
// question_id,concept,difficulty[,bloom_level][,avg_solve_time].
func ParseCSV(r io.Reader) (*Bank, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, &apperr.ConfigurationError{Problems: []string{fmt.Sprintf("read CSV header: %v", err)}}
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range csvColumns[:3] {
		if _, ok := col[required]; !ok {
			return nil, &apperr.ConfigurationError{Problems: []string{fmt.Sprintf("CSV missing column %q", required)}}
		}
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var (
		qs       []Question
		problems []string
		line     = 1
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			problems = append(problems, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		var secs float64
		if s := field(rec, "avg_solve_time"); s != "" {
			secs, err = strconv.ParseFloat(s, 64)
			if err != nil {
				problems = append(problems, fmt.Sprintf("line %d: avg_solve_time %q: %v", line, s, err))
				continue
			}
		}
		q, err := fromFields(field(rec, "question_id"), field(rec, "concept"), field(rec, "difficulty"), field(rec, "bloom_level"), secs)
		if err != nil {
			problems = append(problems, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		qs = append(qs, q)
	}
	if len(problems) > 0 {
		return nil, &apperr.ConfigurationError{Problems: problems}
	}
	return NewBank(qs)
}

// LoadFile loads a bank from a .json or .csv file.
func LoadFile(path string) (*Bank, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open question bank: %w", err)
		}
		defer f.Close()
		return ParseCSV(f)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read question bank: %w", err)
		}
		return ParseJSON(data)
	}
}

func fromFields(id, conceptID, level, bloom string, solveSecs float64) (Question, error) {
	lvl, err := difficulty.ParseLevel(level)
	if err != nil {
		return Question{}, fmt.Errorf("question %q: %w", id, err)
	}
	b := concept.BloomUnderstand
	if strings.TrimSpace(bloom) != "" {
		b, err = concept.ParseBloom(bloom)
		if err != nil {
			return Question{}, fmt.Errorf("question %q: %w", id, err)
		}
	}
	if solveSecs < 0 {
		return Question{}, fmt.Errorf("question %q: negative avg_solve_time", id)
	}
	return Question{
		ID:           id,
		ConceptID:    conceptID,
		Difficulty:   lvl,
		Bloom:        b,
		AvgSolveTime: time.Duration(solveSecs * float64(time.Second)),
	}, nil
}
