package task

import (
	"fmt"
	"sort"
)

// Graph is the dependency graph over a discovered task pool.
type Graph struct {
	tasks map[string]*Task
}

// BuildGraph indexes tasks by id and validates the dependency structure:
// every blockedBy edge must point at a known task and the graph must be
// acyclic. A broken graph is an operator error that surfaces immediately
// rather than silently starving tasks.
func BuildGraph(tasks []*Task) (*Graph, error) {
	g := &Graph{tasks: make(map[string]*Task, len(tasks))}
	for _, t := range tasks {
		g.tasks[t.ID] = t
	}

	for _, t := range tasks {
		for _, dep := range t.BlockedBy {
			if _, ok := g.tasks[dep]; !ok {
				return nil, fmt.Errorf("task %s depends on non-existent task %s", t.ID, dep)
			}
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, fmt.Errorf("circular dependency: %v", cycle)
	}
	return g, nil
}

// findCycle runs a three-color DFS over blockedBy edges.
func (g *Graph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.tasks))

	var stack []string
	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = gray
		stack = append(stack, id)
		for _, dep := range g.tasks[id].BlockedBy {
			switch color[dep] {
			case gray:
				// Trim the stack to the cycle start.
				for i, s := range stack {
					if s == dep {
						return append(append([]string{}, stack[i:]...), dep)
					}
				}
			case white:
				if c := visit(dep); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			if c := visit(id); c != nil {
				return c
			}
		}
	}
	return nil
}

// Task returns the task for an id, or nil.
func (g *Graph) Task(id string) *Task {
	return g.tasks[id]
}

// depsSatisfied reports whether every blockedBy dependency is completed.
func (g *Graph) depsSatisfied(t *Task) bool {
	for _, dep := range t.BlockedBy {
		d := g.tasks[dep]
		if d == nil || d.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// Eligible returns the pending tasks whose dependencies are all completed,
// sorted by priority then id for deterministic scheduling.
func (g *Graph) Eligible() []*Task {
	var out []*Task
	for _, t := range g.tasks {
		if t.Status == StatusPending && t.Owner == "" && g.depsSatisfied(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority() != out[j].Priority() {
			return out[i].Priority() < out[j].Priority()
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PickBest selects the best eligible task not excluded by label mutual
// exclusion or the excluded set. Tasks whose label is currently active are
// skipped so two workers never hold the same label; among the rest the
// lowest priority value wins, then the lexicographically smallest id.
func PickBest(eligible []*Task, activeLabels map[string]bool, excluded map[string]bool) *Task {
	for _, t := range eligible {
		if excluded[t.ID] {
			continue
		}
		if label := t.Label(); label != "" && activeLabels[label] {
			continue
		}
		return t
	}
	return nil
}
