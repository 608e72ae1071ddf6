// Package order implements the order-literal machinery of spec §3/§4.3: the
// lazy bidirectional mapping between solver literals and integer-bound facts
// "var <= value" that bridges the Boolean layer and the CP layer.
package order

import (
	"github.com/potassco/clingcon-core/pkg/clausecreator"
	"github.com/potassco/clingcon-core/pkg/covar"
	"github.com/potassco/clingcon-core/pkg/intval"
)

// Var and Val alias the shared leaf types so callers can mix covar pairs and
// engine variable indices without conversions at every call site.
type Var = covar.Var
type Val = intval.Val

// boundEntry is one (level, previous bound) entry pushed onto a VarState's
// lower/upper stack — spec §3 Level record: "at each decision level a bound
// is pushed at most once".
type boundEntry struct {
	level int
	prev  Val
}

// VarState is the per-variable bound/literal-map state of spec §3: current
// bounds, the trailed bound history used to undo them, and the ordered map
// from value to the order literal witnessing "var <= value".
type VarState struct {
	Var Var

	lowerBound Val
	upperBound Val
	minBound   Val // bound before any decision (Config.min_int)
	maxBound   Val // bound before any decision (Config.max_int)

	lowerStack []boundEntry
	upperStack []boundEntry

	// literals maps value -> literal such that the literal is true iff
	// Var <= value. Kept sorted ascending by value; entries only ever exist
	// for minBound <= value < maxBound (spec §3 invariant).
	values []Val
	lits   []clausecreator.Lit

	reverse *ReverseMap
}

// NewVarState creates a VarState with bounds [minVal, maxVal], matching
// spec §3 "initially [Config.min_int, Config.max_int]".
func NewVarState(v Var, minVal, maxVal Val, reverse *ReverseMap) *VarState {
	return &VarState{
		Var:        v,
		lowerBound: minVal,
		upperBound: maxVal,
		minBound:   minVal,
		maxBound:   maxVal,
		reverse:    reverse,
	}
}

// LowerBound and UpperBound return the variable's current bounds.
func (vs *VarState) LowerBound() Val { return vs.lowerBound }
func (vs *VarState) UpperBound() Val { return vs.upperBound }

// SetLowerBound / SetUpperBound tighten a bound directly; callers (the
// engine's propagate) are responsible for bookkeeping via PushLower/PushUpper
// first and for never loosening a bound.
func (vs *VarState) SetLowerBound(v Val) { vs.lowerBound = v }
func (vs *VarState) SetUpperBound(v Val) { vs.upperBound = v }

// PushLower records the current lower bound on the undo stack the first
// time Var is touched at level, so a later PopLower restores it. Returns
// true iff a new stack entry was pushed (spec §3 "a bound is pushed at most
// once" per level).
func (vs *VarState) PushLower(level int) bool {
	if n := len(vs.lowerStack); n > 0 && vs.lowerStack[n-1].level == level {
		return false
	}
	vs.lowerStack = append(vs.lowerStack, boundEntry{level: level, prev: vs.lowerBound})
	return true
}

// PushUpper is the upper-bound counterpart of PushLower.
func (vs *VarState) PushUpper(level int) bool {
	if n := len(vs.upperStack); n > 0 && vs.upperStack[n-1].level == level {
		return false
	}
	vs.upperStack = append(vs.upperStack, boundEntry{level: level, prev: vs.upperBound})
	return true
}

// PopLower restores the lower bound pushed most recently and returns the
// delta (new - old) that the caller must feed to watchers' Undo. ok is
// false if nothing was pushed (nothing to undo).
func (vs *VarState) PopLower() (delta Val, ok bool) {
	n := len(vs.lowerStack)
	if n == 0 {
		return 0, false
	}
	entry := vs.lowerStack[n-1]
	vs.lowerStack = vs.lowerStack[:n-1]
	delta = entry.prev - vs.lowerBound
	vs.lowerBound = entry.prev
	return delta, true
}

// PopUpper is the upper-bound counterpart of PopLower.
func (vs *VarState) PopUpper() (delta Val, ok bool) {
	n := len(vs.upperStack)
	if n == 0 {
		return 0, false
	}
	entry := vs.upperStack[n-1]
	vs.upperStack = vs.upperStack[:n-1]
	delta = entry.prev - vs.upperBound
	vs.upperBound = entry.prev
	return delta, true
}

func (vs *VarState) search(value Val) int {
	lo, hi := 0, len(vs.values)
	for lo < hi {
		mid := (lo + hi) / 2
		if vs.values[mid] < value {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// lookup returns the literal mapped at value, if any.
func (vs *VarState) lookup(value Val) (clausecreator.Lit, bool) {
	i := vs.search(value)
	if i < len(vs.values) && vs.values[i] == value {
		return vs.lits[i], true
	}
	return 0, false
}

func (vs *VarState) insert(value Val, lit clausecreator.Lit) {
	i := vs.search(value)
	vs.values = append(vs.values, 0)
	vs.lits = append(vs.lits, 0)
	copy(vs.values[i+1:], vs.values[i:])
	copy(vs.lits[i+1:], vs.lits[i:])
	vs.values[i] = value
	vs.lits[i] = lit
	vs.reverse.Add(lit, vs.Var, value, Upper)
	vs.reverse.Add(lit.Negation(), vs.Var, value, Lower)
}

func (vs *VarState) replace(value Val, lit clausecreator.Lit) (old clausecreator.Lit) {
	i := vs.search(value)
	old = vs.lits[i]
	vs.reverse.Remove(old, vs.Var, value, Upper)
	vs.reverse.Remove(old.Negation(), vs.Var, value, Lower)
	vs.lits[i] = lit
	vs.reverse.Add(lit, vs.Var, value, Upper)
	vs.reverse.Add(lit.Negation(), vs.Var, value, Lower)
	return old
}

// GetLiteral implements spec §4.3 get_literal: returns the literal for
// "Var <= value". Values below the variable's min bound are permanently
// false; values at or above the max bound are permanently true — both
// without allocating. Otherwise the cached literal is returned, or a fresh
// one is allocated: watches are added on both polarities, the literal is
// inserted into this VarState's map and the reverse map, and — the
// small-magnitude tie-break of spec §4.3 — the allocated literal is negated
// iff value >= 0 (so that the "natural" reading var<=value for small,
// likely-relevant values stays a positive literal less often, matching the
// bias the C++ source applies to favor small DIMACS magnitudes).
func (vs *VarState) GetLiteral(cc clausecreator.Creator, value Val) clausecreator.Lit {
	if value < vs.minBound {
		return clausecreator.FalseLit
	}
	if value >= vs.maxBound {
		return clausecreator.TrueLit
	}
	if lit, ok := vs.lookup(value); ok {
		return lit
	}
	lit := cc.AddLiteral()
	if value >= 0 {
		lit = lit.Negation()
	}
	cc.AddWatch(lit)
	cc.AddWatch(lit.Negation())
	vs.insert(value, lit)
	return lit
}

// UpdateLiteral implements spec §4.3 update_literal: like GetLiteral, but at
// decision level 0 only, truth may attach a known fact. If truth is set, the
// permanent true/false literal is returned; if a non-fact literal already
// existed for this value, an equivalence clause {~old, new} & {old, ~new}
// (collapsed to unit clauses against the fact) is posted before the
// replacement, per spec §4.3 "posts an equivalence clause before replacing
// it".
func (vs *VarState) UpdateLiteral(cc clausecreator.Creator, level int, value Val, truth *bool) (ok bool, lit clausecreator.Lit) {
	if truth == nil || level != 0 {
		return true, vs.GetLiteral(cc, value)
	}
	fact := clausecreator.FalseLit
	if *truth {
		fact = clausecreator.TrueLit
	}
	if value < vs.minBound || value >= vs.maxBound {
		return true, fact
	}
	if old, existed := vs.lookup(value); existed && old != fact {
		if !cc.AddClause([]clausecreator.Lit{old.Negation(), fact}, clausecreator.KindInit) {
			return false, fact
		}
		if !cc.AddClause([]clausecreator.Lit{old, fact.Negation()}, clausecreator.KindInit) {
			return false, fact
		}
		vs.replace(value, fact)
		return true, fact
	}
	if _, existed := vs.lookup(value); !existed {
		vs.insert(value, fact)
	}
	return true, fact
}

// Literal returns the literal already mapped at value, if any, without
// allocating.
func (vs *VarState) Literal(value Val) (clausecreator.Lit, bool) {
	if value < vs.minBound {
		return clausecreator.FalseLit, true
	}
	if value >= vs.maxBound {
		return clausecreator.TrueLit, true
	}
	return vs.lookup(value)
}

// BindLiteral binds an externally-owned literal to the bound fact
// "Var <= value" (negate false) or "Var > value" (negate true) — the
// add_simple integration of spec §4.4.5. Strict bindings make lit equivalent
// to the fact: if the map has no literal at value yet, lit (or its negation,
// for a negated fact) becomes the order literal itself, watched on both
// polarities; if one already exists, equivalence clauses are posted instead.
// Non-strict bindings only post the single implication lit -> fact. Values
// outside [minBound, maxBound) collapse against the permanent true/false
// literals, again via clauses.
func (vs *VarState) BindLiteral(cc clausecreator.Creator, value Val, lit clausecreator.Lit, negate, strict bool) bool {
	orderLit := lit
	if negate {
		orderLit = lit.Negation()
	}
	existing, ok := vs.Literal(value)
	if !ok && strict {
		cc.AddWatch(orderLit)
		cc.AddWatch(orderLit.Negation())
		vs.insert(value, orderLit)
		return true
	}
	if !ok {
		existing = vs.GetLiteral(cc, value)
	}
	fact := existing
	if negate {
		fact = existing.Negation()
	}
	if !cc.AddClause([]clausecreator.Lit{lit.Negation(), fact}, clausecreator.KindInit) {
		return false
	}
	if strict {
		return cc.AddClause([]clausecreator.Lit{fact.Negation(), lit}, clausecreator.KindInit)
	}
	return true
}

// Entry2 is a (value, literal) pair returned by the With* range iterators.
type Entry2 struct {
	Value Val
	Lit   clausecreator.Lit
}

// With returns every (value, literal) pair in the map, ascending.
func (vs *VarState) With() []Entry2 { return vs.withRange(0, len(vs.values)) }

// WithLt returns pairs with value < v.
func (vs *VarState) WithLt(v Val) []Entry2 { return vs.withRange(0, vs.search(v)) }

// WithLe returns pairs with value <= v.
func (vs *VarState) WithLe(v Val) []Entry2 {
	i := vs.search(v)
	if i < len(vs.values) && vs.values[i] == v {
		i++
	}
	return vs.withRange(0, i)
}

// WithGt returns pairs with value > v.
func (vs *VarState) WithGt(v Val) []Entry2 {
	i := vs.search(v)
	if i < len(vs.values) && vs.values[i] == v {
		i++
	}
	return vs.withRange(i, len(vs.values))
}

// WithGe returns pairs with value >= v.
func (vs *VarState) WithGe(v Val) []Entry2 { return vs.withRange(vs.search(v), len(vs.values)) }

func (vs *VarState) withRange(lo, hi int) []Entry2 {
	out := make([]Entry2, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, Entry2{Value: vs.values[i], Lit: vs.lits[i]})
	}
	return out
}

// ChainAbove returns the smallest value' > value already present in the
// map — the literal that must become true alongside an upper-bound
// tightening so that intermediate order literals stay consistent (spec
// §4.4.1 "the smallest value' > value... must become true"). Used by the
// engine's order-literal propagation.
func (vs *VarState) ChainAbove(value Val) (Entry2, bool) {
	i := vs.search(value)
	if i < len(vs.values) && vs.values[i] == value {
		i++
	}
	if i < len(vs.values) {
		return Entry2{Value: vs.values[i], Lit: vs.lits[i]}, true
	}
	return Entry2{}, false
}

// ChainBelow returns the largest value' < value already present in the map.
func (vs *VarState) ChainBelow(value Val) (Entry2, bool) {
	i := vs.search(value)
	if i > 0 {
		return Entry2{Value: vs.values[i-1], Lit: vs.lits[i-1]}, true
	}
	return Entry2{}, false
}

// Clone returns an independent deep copy for spinning up a worker thread's
// Solver from the master's VarState table (spec §9 "Stateful copy for
// worker threads").
func (vs *VarState) Clone(reverse *ReverseMap) *VarState {
	out := &VarState{
		Var:        vs.Var,
		lowerBound: vs.lowerBound,
		upperBound: vs.upperBound,
		minBound:   vs.minBound,
		maxBound:   vs.maxBound,
		values:     append([]Val(nil), vs.values...),
		lits:       append([]clausecreator.Lit(nil), vs.lits...),
		reverse:    reverse,
	}
	for i, v := range out.values {
		reverse.Add(out.lits[i], out.Var, v, Upper)
		reverse.Add(out.lits[i].Negation(), out.Var, v, Lower)
	}
	return out
}
