// Package usage implements the per-variable usage lattice the pre-parser
// threads through every scope to decide which locals must be
// heap-allocated (spec.md §3 "Usage lattice", §4.5).
package usage

import (
	"sort"

	"github.com/sourceror/compiler/internal/varloc"
)

// Level is a point in the three-element usage lattice:
// Used ⊑ UsedAndModified ⊑ AddressTaken.
type Level byte

const (
	Used Level = iota
	UsedAndModified
	AddressTaken
)

func (l Level) String() string {
	switch l {
	case Used:
		return "Used"
	case UsedAndModified:
		return "UsedAndModified"
	case AddressTaken:
		return "AddressTaken"
	}
	return "unknown"
}

// join returns the lattice join (the upper bound) of two levels.
func join(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}

// Map is an ordered map from varloc.Id to Level. The zero value is an
// empty map ready to use.
type Map struct {
	entries map[varloc.Id]Level
}

// New returns an empty usage Map.
func New() Map {
	return Map{entries: map[varloc.Id]Level{}}
}

// FromUsed returns the singleton map {v: Used}.
func FromUsed(v varloc.Id) Map {
	m := New()
	m.entries[v] = Used
	return m
}

// FromModified returns the singleton map {v: UsedAndModified}.
func FromModified(v varloc.Id) Map {
	m := New()
	m.entries[v] = UsedAndModified
	return m
}

// Len reports the number of tracked variables.
func (m Map) Len() int { return len(m.entries) }

// Get returns v's level and whether it is tracked at all.
func (m Map) Get(v varloc.Id) (Level, bool) {
	l, ok := m.entries[v]
	return l, ok
}

// Keys returns the tracked variable ids in lexicographic (Depth, then
// Index) order, matching the ordering the lattice composition relies on.
func (m Map) Keys() []varloc.Id {
	keys := make([]varloc.Id, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// clone returns a deep copy so callers can mutate without aliasing.
func (m Map) clone() Map {
	out := New()
	for k, v := range m.entries {
		out.entries[k] = v
	}
	return out
}

// MergeSeries composes two usage maps produced by code that runs in
// sequence, first then second. Per spec.md §3: the result is the lattice
// join, except that a first==Modified followed by second==Used never
// demotes back to Used — sequential composition only ever grows.
func MergeSeries(first, second Map) Map {
	out := first.clone()
	for _, k := range second.Keys() {
		sl, _ := second.Get(k)
		if fl, ok := out.entries[k]; ok {
			out.entries[k] = join(fl, sl)
		} else {
			out.entries[k] = sl
		}
	}
	return out
}

// MergeParallel composes two usage maps produced by mutually exclusive
// control-flow branches (e.g. if/else). On this three-element chain the
// lattice join is monotonic regardless of evaluation order, so this is
// defined identically to MergeSeries; the separate name exists for
// semantic clarity at branch joins (spec.md §4.5).
func MergeParallel(a, b Map) Map {
	return MergeSeries(a, b)
}

// WrapClosure is applied when usage crosses a function boundary: every
// tracked variable is raised to AddressTaken, describing the enclosing
// scope's view of what the nested function captured (spec.md §3, §4.6).
func WrapClosure(m Map) Map {
	out := New()
	for k := range m.entries {
		out.entries[k] = AddressTaken
	}
	return out
}

// SplitOffAddressTaken removes every entry at depth or deeper from m —
// by construction, any deeper entry has already passed through its own
// owning scope's SplitOffAddressTaken call on the way up, so only
// entries at exactly depth should remain at this point — and returns
// the indices of the ones that were AddressTaken, sorted. Entries that
// are merely Used/UsedAndModified at depth are discarded along with the
// rest: they become ordinary Wasm locals and need no further tracking in
// the usage lattice (spec.md §4.5, §4.6; ported from split_off_address_taken_vars,
// which works the same way against a BTreeMap keyed by VarLocId).
func SplitOffAddressTaken(m *Map, depth uint32) []varloc.Id {
	var removed []varloc.Id
	for k, l := range m.entries {
		if k.Depth < depth {
			continue
		}
		delete(m.entries, k)
		if l == AddressTaken {
			removed = append(removed, k)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Less(removed[j]) })
	return removed
}
