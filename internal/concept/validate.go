package concept

import (
	"fmt"
	"strings"
)

// graphProblems performs the structural checks over a concept set: duplicate
// IDs, dangling prerequisites and cycles. It returns every problem found.
func graphProblems(concepts []Concept) []string {
	var errs []string

	idSet := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		if idSet[c.ID] {
			errs = append(errs, fmt.Sprintf("duplicate concept ID: %q", c.ID))
		}
		idSet[c.ID] = true
	}

	for _, c := range concepts {
		for _, prereqID := range c.Prerequisites {
			if !idSet[prereqID] {
				errs = append(errs, fmt.Sprintf("concept %q references nonexistent prerequisite %q", c.ID, prereqID))
			}
		}
	}

	// Cycle check with Kahn's algorithm; only edges between known IDs count.
	inDegree := make(map[string]int, len(concepts))
	adjList := make(map[string][]string)
	for _, c := range concepts {
		if _, seen := inDegree[c.ID]; !seen {
			inDegree[c.ID] = 0
		}
		for _, prereqID := range c.Prerequisites {
			if !idSet[prereqID] {
				continue
			}
			inDegree[c.ID]++
			adjList[prereqID] = append(adjList[prereqID], c.ID)
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, depID := range adjList[id] {
			inDegree[depID]--
			if inDegree[depID] == 0 {
				queue = append(queue, depID)
			}
		}
	}

	if visited < len(inDegree) {
		var cycleNodes []string
		for _, c := range concepts {
			if inDegree[c.ID] > 0 {
				cycleNodes = append(cycleNodes, c.ID)
				inDegree[c.ID] = 0 // report each ID once even if duplicated
			}
		}
		errs = append(errs, fmt.Sprintf("cycle detected involving concepts: %s", strings.Join(cycleNodes, ", ")))
	}

	return errs
}
