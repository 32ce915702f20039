package rewrite

import (
	"fmt"
	"strings"

	"scriptlib/internal/shared/util"
)

// DefaultReserved is the host's ambient API root. Directives naming it are
// commented out but never aliased.
var DefaultReserved = []string{"system"}

type Strategy string

const (
	// StrategySubstitute rewrites every use of an imported name to its
	// qualified path.
	StrategySubstitute Strategy = "substitute"
	// StrategyAlias emits `name = qualified.path` statements after each
	// commented directive and leaves uses alone.
	StrategyAlias Strategy = "alias"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategySubstitute, "":
		return StrategySubstitute, nil
	case StrategyAlias:
		return StrategyAlias, nil
	}
	return "", fmt.Errorf("unknown strategy %q (want %q or %q)", s, StrategySubstitute, StrategyAlias)
}

func (s Strategy) String() string { return string(s) }

// RootSet is the set of root modules whose directives are rewritten.
type RootSet struct {
	targets  map[string]bool
	reserved map[string]bool
}

func NewRootSet(targets, reserved []string) RootSet {
	rs := RootSet{targets: make(map[string]bool), reserved: make(map[string]bool)}
	for _, r := range reserved {
		if r = strings.TrimSpace(r); r != "" {
			rs.reserved[r] = true
		}
	}
	for _, t := range targets {
		if t = strings.TrimSpace(t); t != "" && !rs.reserved[t] {
			rs.targets[t] = true
		}
	}
	return rs
}

// Contains reports whether directives on root are rewritten.
func (r RootSet) Contains(root string) bool {
	return r.targets[root] || r.reserved[root]
}

func (r RootSet) Reserved(root string) bool {
	return r.reserved[root]
}

// Targets lists the non-reserved roots in sorted order.
func (r RootSet) Targets() []string {
	return util.SortedStringKeys(r.targets)
}

func (r RootSet) ReservedRoots() []string {
	return util.SortedStringKeys(r.reserved)
}
