package order

import "github.com/potassco/clingcon-core/pkg/clausecreator"

// Dir tells the engine which bound a reverse-map entry tightens once its
// literal becomes true: Upper for "lit -> var <= value" (the direction
// GetLiteral's own literal encodes), Lower for "lit -> var > value" (the
// direction the same literal's negation encodes). Keeping both directions
// as separate reverse-map entries means Solver.Propagate never has to
// re-derive polarity from the order literal's own sign bit (spec §4.4.1
// "If lit corresponds to var <= value... / If lit corresponds to var >
// value...").
type Dir int

const (
	Upper Dir = iota
	Lower
)

// Entry is one (variable, value, direction) fact a literal encodes (spec §3
// VarState invariants).
type Entry struct {
	Var   Var
	Value Val
	Dir   Dir
}

// ReverseMap is the multimap solver_literal -> (var, value, dir) of spec §3:
// a single literal may encode bounds for several variables (reused on
// demand). Entries for the permanently-fixed TrueLit/FalseLit are appended
// without deduplication (many variables legitimately share them); for any
// other literal, each (var, value) pair is kept at most once regardless of
// direction, since a literal's two directions always live in different
// buckets (lit and lit.Negation()).
type ReverseMap struct {
	byLit map[clausecreator.Lit][]Entry
}

// NewReverseMap creates an empty reverse map.
func NewReverseMap() *ReverseMap {
	return &ReverseMap{byLit: make(map[clausecreator.Lit][]Entry)}
}

// Add records that lit, if true, implies the given (var, value, dir) fact.
func (m *ReverseMap) Add(lit clausecreator.Lit, v Var, value Val, dir Dir) {
	if lit != clausecreator.TrueLit && lit != clausecreator.FalseLit {
		for _, e := range m.byLit[lit] {
			if e.Var == v && e.Value == value && e.Dir == dir {
				return
			}
		}
	}
	m.byLit[lit] = append(m.byLit[lit], Entry{Var: v, Value: value, Dir: dir})
}

// Lookup returns every fact lit encodes.
func (m *ReverseMap) Lookup(lit clausecreator.Lit) []Entry {
	return m.byLit[lit]
}

// Remove deletes one (var, value, dir) entry from lit's bucket — used to
// retire order literals that were marked local to the current solve step
// (spec §3 Lifecycles: "removed in update").
func (m *ReverseMap) Remove(lit clausecreator.Lit, v Var, value Val, dir Dir) {
	entries := m.byLit[lit]
	for i, e := range entries {
		if e.Var == v && e.Value == value && e.Dir == dir {
			m.byLit[lit] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// Clone returns an independent deep copy, used when a worker thread's
// Solver is spun up from the master's state (spec §9 "Stateful copy for
// worker threads").
func (m *ReverseMap) Clone() *ReverseMap {
	out := NewReverseMap()
	for lit, entries := range m.byLit {
		cp := make([]Entry, len(entries))
		copy(cp, entries)
		out.byLit[lit] = cp
	}
	return out
}
