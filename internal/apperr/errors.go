// Package apperr defines the error taxonomy shared by the learning engine.
// Each typed error unwraps to a sentinel so callers can test with errors.Is
// and recover details with errors.As.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is the sentinel for references to unknown ids.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is the sentinel for out-of-range mastery values and
	// malformed interaction records.
	ErrInvalidState = errors.New("invalid state")

	// ErrNoQuestionAvailable is the sentinel for a (concept, difficulty) pair
	// with no questions at all.
	ErrNoQuestionAvailable = errors.New("no question available")

	// ErrConfiguration is the sentinel for invalid static configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Kind names the type of entity a NotFoundError refers to.
type Kind string

const (
	KindStudent  Kind = "student"
	KindConcept  Kind = "concept"
	KindQuestion Kind = "question"
)

// NotFoundError reports a reference to an unknown student, concept or question.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %q", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound is shorthand for &NotFoundError{Kind: kind, ID: id}.
func NotFound(kind Kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// InvalidStateError reports a value or record that violates an invariant.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return "invalid state: " + e.Reason
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// InvalidState builds an InvalidStateError from a format string.
func InvalidState(format string, args ...any) error {
	return &InvalidStateError{Reason: fmt.Sprintf(format, args...)}
}

// NoQuestionAvailableError is returned when no question can be served for
// the requested concept and difficulty. Exhausted is set when questions
// exist but all were served and repeats are disabled; otherwise the bank
// holds none for the pair.
type NoQuestionAvailableError struct {
	ConceptID  string
	Difficulty string
	Exhausted  bool
}

func (e *NoQuestionAvailableError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("all questions served (concept=%s difficulty=%s)", e.ConceptID, e.Difficulty)
	}
	return fmt.Sprintf("no question available (concept=%s difficulty=%s)", e.ConceptID, e.Difficulty)
}

func (e *NoQuestionAvailableError) Unwrap() error { return ErrNoQuestionAvailable }

// ConfigurationError collects every problem found while validating static
// configuration such as the concept catalog.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration invalid:\n  %s", strings.Join(e.Problems, "\n  "))
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }
