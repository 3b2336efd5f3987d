package workspace

import (
	"fmt"
	"strings"
)

// Filter narrows workspace operations to matching resources. The string form
// is "ENV:GROUP:NAME" where empty segments match everything: "dev::" targets
// all dev resources, "::postgres" a single resource by name, ":db:" a group.
type Filter struct {
	Env   string
	Group string
	Name  string
}

// ParseFilter parses the ENV:GROUP:NAME form. Trailing segments may be
// omitted: "dev" is equivalent to "dev::".
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return Filter{}, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return Filter{}, fmt.Errorf("invalid filter %q: expected ENV:GROUP:NAME", s)
	}
	var f Filter
	f.Env = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		f.Group = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		f.Name = strings.TrimSpace(parts[2])
	}
	return f, nil
}

// Matches reports whether a resource in the given active environment passes
// the filter.
func (f Filter) Matches(activeEnv string, r *Resource) bool {
	if f.Env != "" && f.Env != activeEnv {
		return false
	}
	if f.Group != "" && f.Group != r.Group {
		return false
	}
	if f.Name != "" && f.Name != r.Name {
		return false
	}
	return true
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.Env == "" && f.Group == "" && f.Name == ""
}

func (f Filter) String() string {
	if f.IsZero() {
		return "*"
	}
	return f.Env + ":" + f.Group + ":" + f.Name
}
