package concept

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/tutor/internal/apperr"
)

var validate = validator.New()

// catalogFile is the on-disk YAML layout of a concept catalog.
type catalogFile struct {
	Concepts []conceptEntry `yaml:"concepts" validate:"dive"`
}

type conceptEntry struct {
	ID            string   `yaml:"id" validate:"required"`
	Name          string   `yaml:"name"`
	Prerequisites []string `yaml:"prerequisites" validate:"dive,required"`
	Difficulty    float64  `yaml:"difficulty" validate:"gte=0,lte=1"`
	Bloom         string   `yaml:"bloom"`
	EstimatedMins int      `yaml:"estimated_mins" validate:"gte=0"`
	Resources     []string `yaml:"resources"`
}

// LoadFile reads and validates a YAML concept catalog from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes a YAML concept catalog. Field validation, Bloom level
// parsing and graph validation problems are all returned together as a
// *apperr.ConfigurationError. A missing bloom level defaults to Understand.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &apperr.ConfigurationError{Problems: []string{fmt.Sprintf("parse yaml: %v", err)}}
	}

	if err := validate.Struct(f); err != nil {
		return nil, &apperr.ConfigurationError{Problems: validationProblems(err)}
	}

	concepts := make([]Concept, 0, len(f.Concepts))
	var problems []string
	for _, e := range f.Concepts {
		bloom := BloomUnderstand
		if e.Bloom != "" {
			b, err := ParseBloom(e.Bloom)
			if err != nil {
				problems = append(problems, fmt.Sprintf("concept %q: %v", e.ID, err))
				continue
			}
			bloom = b
		}
		concepts = append(concepts, Concept{
			ID:            e.ID,
			Name:          e.Name,
			Prerequisites: e.Prerequisites,
			Difficulty:    e.Difficulty,
			Bloom:         bloom,
			EstimatedMins: e.EstimatedMins,
			Resources:     e.Resources,
		})
	}
	if len(problems) > 0 {
		return nil, &apperr.ConfigurationError{Problems: problems}
	}

	return NewCatalog(concepts)
}

// validationProblems flattens validator errors into readable lines.
func validationProblems(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s: failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			problems = append(problems, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return problems
}
