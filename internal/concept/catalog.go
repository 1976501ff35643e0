// Package concept holds the static concept catalog: concepts, their
// prerequisite DAG, and the indices built over it at load time.
package concept

import (
	"errors"
	"slices"
	"sort"

	"github.com/abhisek/tutor/internal/apperr"
)

// Catalog is an immutable, validated prerequisite DAG of concepts.
type Catalog struct {
	concepts   []Concept
	byID       map[string]*Concept
	dependents map[string][]string
	roots      []Concept
	topoOrder  []Concept
}

// NewCatalog validates the concepts and builds the catalog indices.
// Cycles, dangling prerequisites and duplicate IDs are reported together as
// a single *apperr.ConfigurationError; nothing is built in that case.
func NewCatalog(concepts []Concept) (*Catalog, error) {
	normalized := make([]Concept, 0, len(concepts))
	var problems []string
	for _, c := range concepts {
		n, err := New(c)
		if err != nil {
			var cfgErr *apperr.ConfigurationError
			if errors.As(err, &cfgErr) {
				problems = append(problems, cfgErr.Problems...)
			} else {
				problems = append(problems, err.Error())
			}
			continue
		}
		normalized = append(normalized, n)
	}
	problems = append(problems, graphProblems(normalized)...)
	if len(problems) > 0 {
		return nil, &apperr.ConfigurationError{Problems: problems}
	}
	return buildCatalog(normalized), nil
}

// buildCatalog constructs indices including topological order (Kahn's
// algorithm). The input must already be validated.
func buildCatalog(concepts []Concept) *Catalog {
	c := &Catalog{
		concepts:   concepts,
		byID:       make(map[string]*Concept, len(concepts)),
		dependents: make(map[string][]string),
	}

	for i := range c.concepts {
		c.byID[c.concepts[i].ID] = &c.concepts[i]
	}
	for i := range c.concepts {
		for _, prereqID := range c.concepts[i].Prerequisites {
			c.dependents[prereqID] = append(c.dependents[prereqID], c.concepts[i].ID)
		}
	}

	inDegree := make(map[string]int, len(concepts))
	var queue []string
	for i := range c.concepts {
		inDegree[c.concepts[i].ID] = len(c.concepts[i].Prerequisites)
		if len(c.concepts[i].Prerequisites) == 0 {
			queue = append(queue, c.concepts[i].ID)
			c.roots = append(c.roots, c.concepts[i])
		}
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		c.topoOrder = append(c.topoOrder, *c.byID[id])

		deps := slices.Clone(c.dependents[id])
		sort.Strings(deps)
		for _, depID := range deps {
			inDegree[depID]--
			if inDegree[depID] == 0 {
				queue = append(queue, depID)
			}
		}
	}

	return c
}

// Len returns the number of concepts.
func (c *Catalog) Len() int {
	return len(c.concepts)
}

// Get returns a concept by ID, or a NotFoundError.
func (c *Catalog) Get(id string) (Concept, error) {
	p, ok := c.byID[id]
	if !ok {
		return Concept{}, apperr.NotFound(apperr.KindConcept, id)
	}
	return *p, nil
}

// Has reports whether the catalog defines id.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// All returns all concepts in declaration order.
func (c *Catalog) All() []Concept {
	return slices.Clone(c.concepts)
}

// IDs returns all concept IDs, sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.concepts))
	for _, con := range c.concepts {
		ids = append(ids, con.ID)
	}
	sort.Strings(ids)
	return ids
}

// Roots returns concepts with no prerequisites.
func (c *Catalog) Roots() []Concept {
	return slices.Clone(c.roots)
}

// Prerequisites returns the direct prerequisites of id.
func (c *Catalog) Prerequisites(id string) []Concept {
	con, ok := c.byID[id]
	if !ok {
		return nil
	}
	result := make([]Concept, 0, len(con.Prerequisites))
	for _, prereqID := range con.Prerequisites {
		result = append(result, *c.byID[prereqID])
	}
	return result
}

// TopologicalOrder returns all concepts with every prerequisite before its
// dependents; ties are broken by ID.
func (c *Catalog) TopologicalOrder() []Concept {
	return slices.Clone(c.topoOrder)
}
