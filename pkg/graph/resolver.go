// Package graph resolves a skill's action list into a deterministic
// execution plan.
//
// The resolver builds a directed graph with an edge from each dependency
// to its dependent, rejects cycles and dependencies that exist nowhere in
// the manifest, and produces a topological order whose ties are broken by
// declaration order. Re-resolving the same action list always yields the
// same plan, which keeps execution reproducible and auditable.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/skilld/pkg/manifest"
)

// ErrDuplicateAction indicates two actions share an ID. The manifest
// validator reports these per occurrence; the resolver refuses to build
// a graph over them at all.
var ErrDuplicateAction = errors.New("duplicate action id")

// CycleError indicates the depends_on graph contains a cycle.
type CycleError struct {
	// Participants are the ids of actions on or reachable only through
	// the cycle, in declaration order.
	Participants []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle involving actions: %s", strings.Join(e.Participants, ", "))
}

// UnknownDependencyError indicates a depends_on entry references an
// action id that exists nowhere in the manifest. This is the hard-failure
// counterpart to the validator's soft ordering warning.
type UnknownDependencyError struct {
	ActionID   string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("action %q depends on %q which does not exist", e.ActionID, e.Dependency)
}

// Plan is a resolved execution plan for one skill's actions.
type Plan struct {
	// Ordered is the full topological order, declaration-order tie-broken.
	Ordered []manifest.Action

	// Batches groups actions into waves: every action in a batch depends
	// only on actions in earlier batches, so a batch may execute
	// concurrently when the caller opts in. Batch contents preserve
	// declaration order.
	Batches [][]manifest.Action
}

// Resolve builds an execution plan from an action list.
//
// Resolve is a pure function over its input: no side effects, and
// identical input always produces an identical plan. It fails with
// *CycleError or *UnknownDependencyError.
func Resolve(actions []manifest.Action) (*Plan, error) {
	index := make(map[string]int, len(actions))
	for i, a := range actions {
		if _, exists := index[a.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAction, a.ID)
		}
		index[a.ID] = i
	}

	// indegree counts unmet dependencies; dependents is the edge list
	// from each dependency to the actions that wait on it.
	indegree := make([]int, len(actions))
	dependents := make([][]int, len(actions))

	for i, a := range actions {
		for _, dep := range a.DependsOn {
			from, ok := index[dep]
			if !ok {
				return nil, &UnknownDependencyError{ActionID: a.ID, Dependency: dep}
			}
			dependents[from] = append(dependents[from], i)
			indegree[i]++
		}
	}

	plan := &Plan{Ordered: make([]manifest.Action, 0, len(actions))}
	done := make([]bool, len(actions))

	// Kahn's algorithm in waves. Each wave collects every currently
	// unblocked action in declaration order, which gives both the
	// deterministic tie-break and the parallel batches for free.
	ready := make([]int, 0, len(actions))
	for i := range actions {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	for len(ready) > 0 {
		sort.Ints(ready)

		batch := make([]manifest.Action, 0, len(ready))
		var next []int
		for _, i := range ready {
			done[i] = true
			batch = append(batch, actions[i])
			plan.Ordered = append(plan.Ordered, actions[i])
			for _, dep := range dependents[i] {
				indegree[dep]--
				if indegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		plan.Batches = append(plan.Batches, batch)
		ready = next
	}

	if len(plan.Ordered) != len(actions) {
		cycle := &CycleError{}
		for i, a := range actions {
			if !done[i] {
				cycle.Participants = append(cycle.Participants, a.ID)
			}
		}
		return nil, cycle
	}

	return plan, nil
}
