package workflow

import (
	"fmt"
	"sort"

	"github.com/giantswarm/fedctl/internal/errkind"
)

// Validate enforces invariants 1 and 2 of the data model: every step's
// dependency ids refer to existing steps within the same Plan, and the
// graph is acyclic. It is grounded on the teacher's small dependency-graph
// helper, generalized from a flat node list to a depth-first search with
// visiting/done marks so that depth-ordering (used for dispatch
// tie-breaks) falls out for free.
func (p *Plan) Validate() error {
	seen := make(map[string]bool, len(p.Steps))
	for _, s := range p.Steps {
		if s.ID == "" {
			return errkind.New(errkind.Invalid, "plan step has empty id")
		}
		if seen[s.ID] {
			return errkind.New(errkind.Invalid, fmt.Sprintf("duplicate step id %q", s.ID))
		}
		seen[s.ID] = true
	}

	for _, s := range p.Steps {
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return errkind.New(errkind.Invalid, fmt.Sprintf("step %q depends on unknown step %q", s.ID, dep))
			}
		}
	}

	if _, err := p.topologicalDepths(); err != nil {
		return err
	}
	return nil
}

// topologicalDepths computes, for every step, its longest-path depth from
// a root (a step with no dependencies). It returns an Invalid error if the
// graph contains a cycle. Depth is used for the Engine's dispatch
// tie-break order: ascending (depth, step_id).
func (p *Plan) topologicalDepths() (map[string]int, error) {
	depth := make(map[string]int, len(p.Steps))
	state := make(map[string]int, len(p.Steps)) // 0=unvisited 1=visiting 2=done

	var visit func(id string) (int, error)
	visit = func(id string) (int, error) {
		switch state[id] {
		case 2:
			return depth[id], nil
		case 1:
			return 0, errkind.New(errkind.Invalid, fmt.Sprintf("cycle detected at step %q", id))
		}

		state[id] = 1
		step, ok := p.StepByID(id)
		if !ok {
			return 0, errkind.New(errkind.Invalid, fmt.Sprintf("unknown step %q", id))
		}

		maxDep := -1
		for _, dep := range step.DependsOn {
			d, err := visit(dep)
			if err != nil {
				return 0, err
			}
			if d > maxDep {
				maxDep = d
			}
		}

		depth[id] = maxDep + 1
		state[id] = 2
		return depth[id], nil
	}

	for _, s := range p.Steps {
		if _, err := visit(s.ID); err != nil {
			return nil, err
		}
	}
	return depth, nil
}

// Depths is the exported form of topologicalDepths, used by the Engine to
// order the ready set.
func (p *Plan) Depths() map[string]int {
	depths, err := p.topologicalDepths()
	if err != nil {
		// Validate() must be called before Depths(); a cycle here is a
		// programmer error, not a runtime condition to recover from.
		panic(err)
	}
	return depths
}

// Dependents returns the ids of steps that directly depend on id.
func (p *Plan) Dependents(id string) []string {
	var out []string
	for _, s := range p.Steps {
		for _, dep := range s.DependsOn {
			if dep == id {
				out = append(out, s.ID)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Descendants returns every step id reachable by following DependsOn
// edges backward (i.e. every step that transitively depends on id).
// DeriveState is what actually derives each of those steps' Skipped
// state; the driver calls this to report which steps a fatal failure
// took down with it.
func (p *Plan) Descendants(id string) []string {
	visited := make(map[string]bool)
	var walk func(string)
	walk = func(cur string) {
		for _, d := range p.Dependents(cur) {
			if !visited[d] {
				visited[d] = true
				walk(d)
			}
		}
	}
	walk(id)

	out := make([]string, 0, len(visited))
	for id := range visited {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
