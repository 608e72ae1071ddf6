package constraints

import (
	"github.com/potassco/clingcon-core/internal/engine"
	"github.com/potassco/clingcon-core/internal/order"
	"github.com/potassco/clingcon-core/pkg/clausecreator"
	"github.com/potassco/clingcon-core/pkg/intval"
)

// NonlinearState implements the single supported non-linear shape,
// "lit -> coAB*va*vb + coC*vc <= rhs" (builder add_nonlinear, spec §6).
// Because the product term's bounds are not a linear function of its
// variables' bounds, no incremental accumulator is kept: every propagation
// recomputes the four corner products in a 128-bit accumulator (spec §4.1
// "non-linear sum constraints use a 128-bit integer type"). Update/Undo are
// therefore no-ops; the watch entries exist purely to re-enqueue the state
// when any of the three variables moves.
type NonlinearState struct {
	header engine.Header

	CoAB   intval.Val
	VarA   engine.Var
	VarB   engine.Var
	CoC    intval.Val
	VarC   engine.Var
	Rhs    intval.Val
}

var _ engine.ConstraintState = (*NonlinearState)(nil)

// NewNonlinear creates a nonlinear constraint state. VarC may be
// covar.InvalidVar (cast to engine.Var) when the linear tail is absent, in
// which case CoC must be zero.
func NewNonlinear(lit clausecreator.Lit, coAB intval.Val, va, vb engine.Var, coC intval.Val, vc engine.Var, rhs intval.Val) *NonlinearState {
	return &NonlinearState{
		header: engine.Header{Literal: lit},
		CoAB:   coAB, VarA: va, VarB: vb,
		CoC: coC, VarC: vc,
		Rhs: rhs,
	}
}

// Hdr implements engine.ConstraintState.
func (st *NonlinearState) Hdr() *engine.Header { return &st.header }

// Init registers watches on all participating variables.
func (st *NonlinearState) Init(s *engine.Solver) error {
	s.AddWatch(st.VarA, st.CoAB, st)
	if st.VarB != st.VarA {
		s.AddWatch(st.VarB, st.CoAB, st)
	}
	if st.CoC != 0 {
		s.AddWatch(st.VarC, st.CoC, st)
	}
	if st.header.Literal != 0 {
		s.AddReifWatch(st.header.Literal, st)
	}
	return nil
}

// Update is a no-op: bounds are read live at propagation time.
func (st *NonlinearState) Update(s *engine.Solver, v engine.Var, coeff, lowerDelta, upperDelta intval.Val) error {
	return nil
}

// Undo is a no-op for the same reason.
func (st *NonlinearState) Undo(s *engine.Solver, v engine.Var, coeff, lowerDelta, upperDelta intval.Val) {
}

// productRange returns the smallest and largest value coAB*va*vb can take
// over the variables' current bounds: the extremes of the four corner
// products (va and vb range independently, so the bilinear form is extremal
// at a corner).
func (st *NonlinearState) productRange(s *engine.Solver) (lo, hi *intval.Sum128) {
	a := s.VarState(st.VarA)
	b := s.VarState(st.VarB)
	corners := [4][2]intval.Val{
		{a.LowerBound(), b.LowerBound()},
		{a.LowerBound(), b.UpperBound()},
		{a.UpperBound(), b.LowerBound()},
		{a.UpperBound(), b.UpperBound()},
	}
	if st.VarA == st.VarB {
		// va*va: the square is minimized at 0 if the range straddles it.
		corners = [4][2]intval.Val{
			{a.LowerBound(), a.LowerBound()},
			{a.UpperBound(), a.UpperBound()},
			{a.LowerBound(), a.LowerBound()},
			{a.UpperBound(), a.UpperBound()},
		}
		if a.LowerBound() <= 0 && 0 <= a.UpperBound() {
			corners[2] = [2]intval.Val{0, 0}
			corners[3] = [2]intval.Val{0, 0}
		}
	}
	for i, c := range corners {
		p := intval.NewSum128()
		p.AddProduct(st.CoAB, c[0], c[1])
		if i == 0 {
			lo, hi = p, p
			continue
		}
		if p.CompareSum(lo) < 0 {
			lo = p
		}
		if p.CompareSum(hi) > 0 {
			hi = p
		}
	}
	return lo, hi
}

// Propagate recomputes the constraint's feasible range from scratch:
// entailment and refutation against the reification literal work exactly as
// for Sum, and the linear coC*vc tail additionally supports bound derivation
// once lit is true. Derivation through the product term itself is left to
// the Boolean layer (a single order literal cannot express "va*vb avoids a
// value"), matching the conservative propagation the distilled nsum atoms
// get.
func (st *NonlinearState) Propagate(s *engine.Solver, cc clausecreator.Creator) (bool, error) {
	lit := st.header.Literal
	assign := cc.Assignment()

	prodLo, prodHi := st.productRange(s)

	minSum := prodLo.Clone()
	maxSum := prodHi.Clone()
	var c *order.VarState
	if st.CoC != 0 {
		c = s.VarState(st.VarC)
		minSide, maxSide := sides(st.CoC, c.LowerBound(), c.UpperBound())
		minSum.AddTerm(st.CoC, minSide)
		maxSum.AddTerm(st.CoC, maxSide)
	}

	if maxSum.CompareVal(st.Rhs) <= 0 {
		if lit != 0 && !assign.IsTrue(lit) {
			if !cc.AddClause([]clausecreator.Lit{lit}, clausecreator.KindSearch) {
				return false, nil
			}
		}
		s.Deactivate(st)
		return true, nil
	}

	if minSum.CompareVal(st.Rhs) > 0 {
		reason := st.reason(s, cc, true)
		var clause []clausecreator.Lit
		if lit != 0 {
			clause = append([]clausecreator.Lit{lit.Negation()}, reason...)
		} else {
			clause = reason
		}
		if !cc.AddClause(clause, clausecreator.KindSearch) {
			return false, nil
		}
		s.Deactivate(st)
		return true, nil
	}

	if st.CoC == 0 || (lit != 0 && !assign.IsTrue(lit)) {
		return true, nil
	}

	// Derive a bound for vc against the product's minimum: coC*vc <= rhs - prodLo.
	slack := prodLo.Clone()
	slack.Negate()
	slack.AddTerm(1, st.Rhs)
	newBound, err := slack.ToVal()
	if err != nil {
		return true, nil // out of representable range; nothing to post
	}
	raw := floorDiv(int64(newBound), int64(st.CoC))
	if raw > int64(intval.MaxVal) || raw < int64(intval.MinVal) {
		return true, nil
	}
	bound := intval.Val(raw)
	var newLit clausecreator.Lit
	if st.CoC > 0 {
		if bound >= c.UpperBound() {
			return true, nil
		}
		newLit = c.GetLiteral(cc, bound)
	} else {
		if bound <= c.LowerBound() {
			return true, nil
		}
		newLit = c.GetLiteral(cc, bound-1).Negation()
	}
	clause := st.reason(s, cc, false)
	if lit != 0 {
		clause = append([]clausecreator.Lit{lit.Negation()}, clause...)
	}
	clause = append(clause, newLit)
	if !cc.AddClause(clause, clausecreator.KindSearch) {
		return false, nil
	}
	return true, nil
}

// reason collects the negated bound witnesses of the product variables (both
// bounds each, since the corner extremes depend on both sides) and, when
// includeC is set, of the linear tail's min side.
func (st *NonlinearState) reason(s *engine.Solver, cc clausecreator.Creator, includeC bool) []clausecreator.Lit {
	var lits []clausecreator.Lit
	addBounds := func(v engine.Var) {
		vs := s.VarState(v)
		lits = append(lits,
			vs.GetLiteral(cc, vs.LowerBound()-1), // negation of "v >= lo"
			vs.GetLiteral(cc, vs.UpperBound()).Negation(), // negation of "v <= hi"
		)
	}
	addBounds(st.VarA)
	if st.VarB != st.VarA {
		addBounds(st.VarB)
	}
	if includeC && st.CoC != 0 {
		vs := s.VarState(st.VarC)
		minSide, _ := sides(st.CoC, vs.LowerBound(), vs.UpperBound())
		lits = append(lits, boundWitness(cc, vs, st.CoC, minSide).Negation())
	}
	return lits
}

// Translate leaves nonlinear constraints for runtime propagation: there is
// no bounded clause encoding of a product term over order literals.
func (st *NonlinearState) Translate(s *engine.Solver, cc clausecreator.Creator) (bool, []engine.ConstraintState, bool, error) {
	return true, nil, false, nil
}
