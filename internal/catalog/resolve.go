package catalog

import (
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// ErrDuplicateID reports two statements sharing an ID in one resolution.
var ErrDuplicateID = errors.New("duplicate statement ID")

// CycleError names the statements of a dependency cycle, in dependency
// order, starting from the one that appears first in the input.
type CycleError struct {
	IDs []string
}

func (e *CycleError) Error() string {
	if len(e.IDs) == 0 {
		return types.ErrDependencyCycle.Error()
	}
	path := append(append([]string{}, e.IDs...), e.IDs[0])
	return fmt.Sprintf("%v: %s", types.ErrDependencyCycle, strings.Join(path, " -> "))
}

func (e *CycleError) Unwrap() error { return types.ErrDependencyCycle }

// Resolve orders stmts so that every statement comes after the statements it
// depends on. Dependencies on statements outside stmts are ignored. Among
// statements with no constraint between them, input order wins, so the
// result is deterministic. A cycle yields a *CycleError and no order.
func Resolve(stmts []*Statement) ([]*Statement, error) {
	index := make(map[string]int, len(stmts))
	for i, s := range stmts {
		if _, dup := index[s.ID()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, s.ID())
		}
		index[s.ID()] = i
	}

	// deps[i] holds the in-set dependencies of stmts[i], dependents the reverse.
	deps := make([][]int, len(stmts))
	dependents := make([][]int, len(stmts))
	indegree := make([]int, len(stmts))
	for i, s := range stmts {
		seen := mapset.NewThreadUnsafeSet[int]()
		for _, dep := range s.deps {
			j, ok := index[dep]
			if !ok || !seen.Add(j) {
				continue
			}
			deps[i] = append(deps[i], j)
			dependents[j] = append(dependents[j], i)
			indegree[i]++
		}
	}

	// Kahn's algorithm. The ready list is kept sorted by input index.
	var ready []int
	for i := range stmts {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]*Statement, 0, len(stmts))
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		order = append(order, stmts[i])
		for _, d := range dependents[i] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = insertSorted(ready, d)
			}
		}
	}

	if len(order) < len(stmts) {
		left := mapset.NewThreadUnsafeSet[int]()
		for i := range stmts {
			if indegree[i] > 0 {
				left.Add(i)
			}
		}
		cycle := shortestCycle(deps, left)
		ids := make([]string, len(cycle))
		for k, i := range cycle {
			ids[k] = stmts[i].ID()
		}
		return nil, &CycleError{IDs: ids}
	}
	return order, nil
}

func insertSorted(xs []int, x int) []int {
	pos := len(xs)
	for k, v := range xs {
		if v > x {
			pos = k
			break
		}
	}
	xs = append(xs, 0)
	copy(xs[pos+1:], xs[pos:])
	xs[pos] = x
	return xs
}

// shortestCycle finds the shortest cycle among the unresolved nodes by a
// breadth-first search from each of them. Ties go to the cycle through the
// lowest input index. The cycle is returned starting at its lowest index.
func shortestCycle(deps [][]int, left mapset.Set[int]) []int {
	var best []int
	for start := 0; start < len(deps); start++ {
		if !left.Contains(start) {
			continue
		}
		cycle := cycleThrough(deps, left, start)
		if cycle != nil && (best == nil || len(cycle) < len(best)) {
			best = cycle
		}
	}
	return rotateToMin(best)
}

// cycleThrough returns the shortest path start -> ... -> start, without the
// closing repetition of start, or nil.
func cycleThrough(deps [][]int, left mapset.Set[int], start int) []int {
	parent := map[int]int{start: -1}
	queue := []int{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, next := range deps[n] {
			if !left.Contains(next) {
				continue
			}
			if next == start {
				var path []int
				for p := n; p != -1; p = parent[p] {
					path = append([]int{p}, path...)
				}
				return path
			}
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = n
			queue = append(queue, next)
		}
	}
	return nil
}

func rotateToMin(cycle []int) []int {
	if len(cycle) == 0 {
		return cycle
	}
	m := 0
	for k, v := range cycle {
		if v < cycle[m] {
			m = k
		}
	}
	return append(append([]int{}, cycle[m:]...), cycle[:m]...)
}
