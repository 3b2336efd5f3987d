package workspace

import (
	"fmt"
	"sort"
)

// SortByDependencies orders resources so every resource appears after the
// resources it depends on. Ordering is deterministic: ties break on name.
// Returns an error when the dependency graph has a cycle.
//
// Dependencies outside the given set (filtered out or pinned to another
// environment) are assumed satisfied and ignored.
func SortByDependencies(resources []*Resource) ([]*Resource, error) {
	byName := make(map[string]*Resource, len(resources))
	for _, r := range resources {
		byName[r.Name] = r
	}

	inDegree := make(map[string]int, len(resources))
	dependents := make(map[string][]string, len(resources))
	for _, r := range resources {
		inDegree[r.Name] = 0
	}
	for _, r := range resources {
		for _, dep := range r.DependsOn {
			if _, ok := byName[dep]; !ok {
				continue
			}
			inDegree[r.Name]++
			dependents[dep] = append(dependents[dep], r.Name)
		}
	}

	var ready []string
	for name, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	ordered := make([]*Resource, 0, len(resources))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byName[name])

		released := false
		for _, dependent := range dependents[name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
				released = true
			}
		}
		if released {
			sort.Strings(ready)
		}
	}

	if len(ordered) != len(resources) {
		var stuck []string
		for name, deg := range inDegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("dependency cycle involving resources: %v", stuck)
	}
	return ordered, nil
}

// Reverse returns the resources in reverse order, used for teardown.
func Reverse(resources []*Resource) []*Resource {
	reversed := make([]*Resource, len(resources))
	for i, r := range resources {
		reversed[len(resources)-1-i] = r
	}
	return reversed
}
