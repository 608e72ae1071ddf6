package engine

import (
	"github.com/potassco/clingcon-core/pkg/clausecreator"
	"github.com/potassco/clingcon-core/pkg/interval"
)

// AddSimple integrates "lit <-> co*v <= rhs" without creating a constraint
// state (spec §4.4.5): the corresponding order literal of v is bound
// directly to lit, with sign-aware rounding of rhs/co. If strict, both
// implication directions are posted; otherwise only lit -> (co*v <= rhs).
// ok is false on an unresolvable init-time conflict.
func (s *Solver) AddSimple(cc clausecreator.Creator, lit clausecreator.Lit, co Val, v Var, rhs Val, strict bool) bool {
	if co == 0 {
		// 0 <= rhs is decided outright.
		if rhs >= 0 {
			if strict {
				return cc.AddClause([]clausecreator.Lit{lit}, clausecreator.KindInit)
			}
			return true
		}
		return cc.AddClause([]clausecreator.Lit{lit.Negation()}, clausecreator.KindInit)
	}
	vs := s.vars[v]
	if co > 0 {
		// co*v <= rhs  <=>  v <= floor(rhs/co)
		value := Val(floorDiv64(int64(rhs), int64(co)))
		return vs.BindLiteral(cc, value, lit, false, strict)
	}
	// co*v <= rhs  <=>  v >= ceil(rhs/co)  <=>  not(v <= ceil(rhs/co)-1)
	value := Val(ceilDiv64(int64(rhs), int64(co)) - 1)
	return vs.BindLiteral(cc, value, lit, true, strict)
}

func floorDiv64(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv64(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) == (b < 0)) {
		q++
	}
	return q
}

// AddDom encodes "lit -> v ∈ values" as a conjunction of ordered-literal
// implications (spec §4.4.6): the endpoints clamp v into [min, max] and each
// interior gap is forbidden by a chain step "lit & (v <= gapHi-1) ->
// (v <= gapLo-1)". A single-interval domain emits exactly the two endpoint
// implications. ok is false on an unresolvable init-time conflict.
func (s *Solver) AddDom(cc clausecreator.Creator, lit clausecreator.Lit, v Var, values interval.Set) bool {
	if values.Empty() {
		return cc.AddClause([]clausecreator.Lit{lit.Negation()}, clausecreator.KindInit)
	}
	vs := s.vars[v]
	ranges := values.Ranges()

	// v >= min: the literal for min-1 must be false.
	if !cc.AddClause([]clausecreator.Lit{lit.Negation(), vs.GetLiteral(cc, values.Min()-1).Negation()}, clausecreator.KindInit) {
		return false
	}
	// v <= max.
	if !cc.AddClause([]clausecreator.Lit{lit.Negation(), vs.GetLiteral(cc, values.Max())}, clausecreator.KindInit) {
		return false
	}
	for i := 1; i < len(ranges); i++ {
		gapLo, gapHi := ranges[i-1].Hi, ranges[i].Lo
		clause := []clausecreator.Lit{
			lit.Negation(),
			vs.GetLiteral(cc, gapHi-1).Negation(), // v > gapHi-1, or...
			vs.GetLiteral(cc, gapLo-1),            // ...v <= gapLo-1
		}
		if !cc.AddClause(clause, clausecreator.KindInit) {
			return false
		}
	}
	return true
}

// States returns every registered constraint state, in registration order.
// The translation driver iterates this; callers must not reorder it.
func (s *Solver) States() []ConstraintState { return s.states }

// RemoveConstraint permanently detaches cs: every watch it holds is removed
// without Level bookkeeping (translation runs before search, so there is
// nothing to undo to) and the state is dropped from the state table. Used by
// the translation hook when a constraint was fully lowered to clauses (spec
// §4.5.4 "request removal").
func (s *Solver) RemoveConstraint(cs ConstraintState) {
	for v, entries := range s.watch {
		kept := entries[:0]
		for _, e := range entries {
			if e.State != cs {
				kept = append(kept, e)
			}
		}
		s.watch[v] = kept
	}
	for lit, entries := range s.reifWatch {
		kept := entries[:0]
		for _, e := range entries {
			if e != cs {
				kept = append(kept, e)
			}
		}
		s.reifWatch[lit] = kept
	}
	for i, st := range s.states {
		if st == cs {
			s.states = append(s.states[:i], s.states[i+1:]...)
			break
		}
	}
}

// EnqueueAll puts every active constraint state on the todo queue — used
// right after init and whenever a worker thread is brought up, so the first
// Check reaches a fixpoint from scratch.
func (s *Solver) EnqueueAll() {
	for _, cs := range s.states {
		if cs.Hdr().Active() {
			s.Enqueue(cs)
		}
	}
}
