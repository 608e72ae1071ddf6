package constraints

import (
	"github.com/potassco/clingcon-core/internal/engine"
	"github.com/potassco/clingcon-core/pkg/clausecreator"
	"github.com/potassco/clingcon-core/pkg/covar"
	"github.com/potassco/clingcon-core/pkg/intval"
)

// DistinctExpr is one element of a distinct constraint: a linear expression
// plus its implicit right-hand-side offset (spec §4.5.3 "each xᵢ is itself
// a linear expression with an implicit rhs offset, stored as (CoVarVec,
// val_t)").
type DistinctExpr struct {
	Terms covar.CoVarVec
	Rhs   intval.Val
}

// distinctExpr is the incremental form of a DistinctExpr: minSum/maxSum
// bracket the expression's current possible value the same way Sum tracks
// its own bounds.
type distinctExpr struct {
	Terms covar.CoVarVec
	Rhs   intval.Val

	minSum *intval.Sum64
	maxSum *intval.Sum64
}

// DistinctState implements x₁ ≠ x₂ ≠ … ≠ xₙ (spec §4.5.3) over n >= 3
// expressions via the pigeonhole principle on current singleton domains.
// Binary distinct is always rewritten at registration into a Sum
// disequality instead (spec §9, decided in DESIGN.md): a DistinctState for
// n == 2 must never be constructed, since the two code paths produce
// differently-sized reason clauses and the spec calls out not mixing them.
type DistinctState struct {
	header engine.Header

	Exprs []distinctExpr

	// watchIndex maps a watched variable and the coefficient it is watched
	// under to the indices of every expression containing that (var,
	// coeff) term, since several expressions may legitimately share a
	// variable.
	watchIndex map[engine.Var]map[intval.Val][]int
}

var _ engine.ConstraintState = (*DistinctState)(nil)

// NewDistinct creates a Distinct constraint state over exprs, reified by
// lit (lit == 0 means unconditional). Callers must rewrite len(exprs) == 2
// into a Sum disequality instead of calling this constructor.
func NewDistinct(lit clausecreator.Lit, exprs []DistinctExpr) *DistinctState {
	st := &DistinctState{
		header: engine.Header{Literal: lit},
		Exprs:  make([]distinctExpr, len(exprs)),
	}
	for i, e := range exprs {
		st.Exprs[i] = distinctExpr{Terms: covar.SortByVar(e.Terms), Rhs: e.Rhs}
	}
	return st
}

// Hdr implements engine.ConstraintState.
func (st *DistinctState) Hdr() *engine.Header { return &st.header }

// Init seeds every expression's minSum/maxSum and registers one watch per
// distinct (variable, coefficient) pair actually used across all
// expressions.
func (st *DistinctState) Init(s *engine.Solver) error {
	st.watchIndex = make(map[engine.Var]map[intval.Val][]int)
	for i := range st.Exprs {
		e := &st.Exprs[i]
		e.minSum = intval.NewSum64()
		e.maxSum = intval.NewSum64()
		for _, t := range e.Terms {
			vs := s.VarState(t.Var)
			minSide, maxSide := sides(t.Coeff, vs.LowerBound(), vs.UpperBound())
			if err := e.minSum.AddTerm(t.Coeff, minSide); err != nil {
				return err
			}
			if err := e.maxSum.AddTerm(t.Coeff, maxSide); err != nil {
				return err
			}
			byCoeff := st.watchIndex[t.Var]
			if byCoeff == nil {
				byCoeff = make(map[intval.Val][]int)
				st.watchIndex[t.Var] = byCoeff
			}
			byCoeff[t.Coeff] = append(byCoeff[t.Coeff], i)
		}
		if err := e.minSum.AddTerm(1, e.Rhs); err != nil {
			return err
		}
		if err := e.maxSum.AddTerm(1, e.Rhs); err != nil {
			return err
		}
	}
	for v, byCoeff := range st.watchIndex {
		for coeff := range byCoeff {
			s.AddWatch(v, coeff, st)
		}
	}
	if st.header.Literal != 0 {
		s.AddReifWatch(st.header.Literal, st)
	}
	return nil
}

// Update implements engine.ConstraintState: a (minSum==maxSum) termwise
// invariant (each term's own gap is non-negative, so the expression total
// is singleton iff every term is) means the same adjust used by Sum applies
// per affected expression.
func (st *DistinctState) Update(s *engine.Solver, v engine.Var, coeff, lowerDelta, upperDelta intval.Val) error {
	for _, idx := range st.watchIndex[v][coeff] {
		e := &st.Exprs[idx]
		if err := sumAdjust(e.minSum, e.maxSum, coeff, lowerDelta, upperDelta); err != nil {
			return err
		}
	}
	return nil
}

// Undo reverses Update.
func (st *DistinctState) Undo(s *engine.Solver, v engine.Var, coeff, lowerDelta, upperDelta intval.Val) {
	for _, idx := range st.watchIndex[v][coeff] {
		e := &st.Exprs[idx]
		_ = sumAdjust(e.minSum, e.maxSum, coeff, lowerDelta, upperDelta)
	}
}

// Propagate implements spec §4.5.3: refute when two expressions are pinned
// to the same fully-assigned value, otherwise exclude a singleton
// expression's value from the boundary of any other expression whose
// current range touches it, via the order literal of the single variable
// that boundary corresponds to. Expressions with more than one term only
// ever participate in the refutation half — excluding a single value from
// a multi-variable linear combination isn't expressible as one order
// literal, so that case is left for the Boolean layer to rule out directly.
func (st *DistinctState) Propagate(s *engine.Solver, cc clausecreator.Creator) (bool, error) {
	lit := st.header.Literal
	assign := cc.Assignment()

	singletons := make(map[int64][]int)
	for i, e := range st.Exprs {
		if e.minSum.Value() != e.maxSum.Value() {
			continue
		}
		singletons[e.minSum.Value()] = append(singletons[e.minSum.Value()], i)
	}

	for _, idxs := range singletons {
		if len(idxs) < 2 {
			continue
		}
		reason := negateLits(st.pinLits(s, cc, &st.Exprs[idxs[0]]))
		reason = append(reason, negateLits(st.pinLits(s, cc, &st.Exprs[idxs[1]]))...)
		var clause []clausecreator.Lit
		if lit != 0 {
			clause = append([]clausecreator.Lit{lit.Negation()}, reason...)
		} else {
			clause = reason
		}
		if !cc.AddClause(clause, clausecreator.KindSearch) {
			return false, nil
		}
		return true, nil
	}

	if lit != 0 && !assign.IsTrue(lit) {
		return true, nil
	}

	for value, idxs := range singletons {
		ownerReason := negateLits(st.pinLits(s, cc, &st.Exprs[idxs[0]]))
		for i := range st.Exprs {
			if containsInt(idxs, i) {
				continue
			}
			e := &st.Exprs[i]
			lo, hi := e.minSum.Value(), e.maxSum.Value()
			if lo == hi || len(e.Terms) != 1 {
				continue
			}
			if value != lo && value != hi {
				continue
			}
			term := e.Terms[0]
			varVal, ok := valueToVar(term.Coeff, e.Rhs, intval.Val(value))
			if !ok {
				continue
			}
			vs := s.VarState(term.Var)
			var newLit clausecreator.Lit
			switch {
			case term.Coeff > 0 && value == lo:
				newLit = vs.GetLiteral(cc, varVal).Negation()
			case term.Coeff > 0:
				newLit = vs.GetLiteral(cc, varVal-1)
			case value == lo:
				newLit = vs.GetLiteral(cc, varVal-1)
			default:
				newLit = vs.GetLiteral(cc, varVal).Negation()
			}
			clause := make([]clausecreator.Lit, 0, len(ownerReason)+2)
			if lit != 0 {
				clause = append(clause, lit.Negation())
			}
			clause = append(clause, ownerReason...)
			clause = append(clause, newLit)
			if !cc.AddClause(clause, clausecreator.KindSearch) {
				return false, nil
			}
		}
	}
	return true, nil
}

// pinLits returns the pair of order literals pinning each of e's (already
// fixed) term variables to its current value.
func (st *DistinctState) pinLits(s *engine.Solver, cc clausecreator.Creator, e *distinctExpr) []clausecreator.Lit {
	lits := make([]clausecreator.Lit, 0, len(e.Terms)*2)
	for _, t := range e.Terms {
		vs := s.VarState(t.Var)
		val := vs.LowerBound()
		lits = append(lits, vs.GetLiteral(cc, val), vs.GetLiteral(cc, val-1).Negation())
	}
	return lits
}

func negateLits(lits []clausecreator.Lit) []clausecreator.Lit {
	out := make([]clausecreator.Lit, len(lits))
	for i, l := range lits {
		out[i] = l.Negation()
	}
	return out
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// valueToVar inverts coeff*var+rhs == exprValue, returning ok == false when
// exprValue isn't reachable by an integer var (in which case there is
// nothing to exclude: the value was already unreachable).
func valueToVar(coeff, rhs, exprValue intval.Val) (intval.Val, bool) {
	num := int64(exprValue) - int64(rhs)
	den := int64(coeff)
	if num%den != 0 {
		return 0, false
	}
	q := num / den
	if q > int64(intval.MaxVal) || q < int64(intval.MinVal) {
		return 0, false
	}
	return intval.Val(q), true
}

// Translate implements spec §4.5.4 for Distinct: only removable once every
// expression is already pinned to a distinct value (nothing left to
// propagate), since lowering the general pigeonhole rule to pure clauses
// would need a full pairwise not-equal encoding this hook's budget check
// isn't meant to gate.
func (st *DistinctState) Translate(s *engine.Solver, cc clausecreator.Creator) (bool, []engine.ConstraintState, bool, error) {
	seen := make(map[int64]bool)
	for _, e := range st.Exprs {
		if e.minSum.Value() != e.maxSum.Value() {
			return true, nil, false, nil
		}
		if seen[e.minSum.Value()] {
			return true, nil, false, nil
		}
		seen[e.minSum.Value()] = true
	}
	if st.header.Literal != 0 {
		if !cc.AddClause([]clausecreator.Lit{st.header.Literal}, clausecreator.KindTranslate) {
			return false, nil, false, nil
		}
	}
	return true, nil, true, nil
}
