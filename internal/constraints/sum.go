// Package constraints implements the constraint state machines of spec
// §4.5: Sum, Minimize, Distinct, and Domain, each maintaining incremental
// propagation state and emitting reason clauses through the engine's
// clause-creator boundary.
package constraints

import (
	"github.com/potassco/clingcon-core/internal/engine"
	"github.com/potassco/clingcon-core/internal/order"
	"github.com/potassco/clingcon-core/pkg/clausecreator"
	"github.com/potassco/clingcon-core/pkg/covar"
	"github.com/potassco/clingcon-core/pkg/intval"
)

// SumState implements "sum(coeff_i*v_i) <= rhs", reified by Literal (spec
// §4.5.1).
type SumState struct {
	header engine.Header

	Terms covar.CoVarVec
	Rhs   intval.Val

	minSum *intval.Sum64
	maxSum *intval.Sum64
}

var _ engine.ConstraintState = (*SumState)(nil)

// NewSum creates a Sum constraint state over terms <= rhs, reified by lit
// (lit == 0 means the constraint is unconditional). Terms are sorted by
// variable (pkg/covar.SortByVar) so Translate's clause-budget estimate and
// reason construction see a stable order.
func NewSum(lit clausecreator.Lit, terms covar.CoVarVec, rhs intval.Val) *SumState {
	return &SumState{
		header: engine.Header{Literal: lit},
		Terms:  covar.SortByVar(terms),
		Rhs:    rhs,
		minSum: intval.NewSum64(),
		maxSum: intval.NewSum64(),
	}
}

// Hdr implements engine.ConstraintState.
func (st *SumState) Hdr() *engine.Header { return &st.header }

// Init seeds minSum/maxSum from the current bounds of every term's variable
// and registers a watch on each — called once, right after the constraint
// is added to a Solver (spec §3 "Sum state: cached (min_sum, max_sum) over
// currently feasible bounds").
func (st *SumState) Init(s *engine.Solver) error {
	for _, t := range st.Terms {
		vs := s.VarState(t.Var)
		minSide, maxSide := sides(t.Coeff, vs.LowerBound(), vs.UpperBound())
		if err := st.minSum.AddTerm(t.Coeff, minSide); err != nil {
			return err
		}
		if err := st.maxSum.AddTerm(t.Coeff, maxSide); err != nil {
			return err
		}
		s.AddWatch(t.Var, t.Coeff, st)
	}
	if st.header.Literal != 0 {
		s.AddReifWatch(st.header.Literal, st)
	}
	return nil
}

// sides returns (minSide, maxSide): the variable values that respectively
// minimize and maximize coeff*v given its current bounds.
func sides(coeff, lower, upper intval.Val) (minSide, maxSide intval.Val) {
	if coeff > 0 {
		return lower, upper
	}
	return upper, lower
}

// Update implements engine.ConstraintState: folds a watched variable's
// bound movement into minSum/maxSum incrementally (spec §4.5.1 "Updated
// incrementally by update(coeff_i, diff)").
func (st *SumState) Update(s *engine.Solver, v engine.Var, coeff, lowerDelta, upperDelta intval.Val) error {
	return sumAdjust(st.minSum, st.maxSum, coeff, lowerDelta, upperDelta)
}

// Undo reverses Update.
func (st *SumState) Undo(s *engine.Solver, v engine.Var, coeff, lowerDelta, upperDelta intval.Val) {
	_ = sumAdjust(st.minSum, st.maxSum, coeff, lowerDelta, upperDelta)
}

// sumAdjust folds a watched variable's bound movement into minSum/maxSum,
// shared by Sum and Minimize (which differ only in where their right-hand
// side comes from).
func sumAdjust(minSum, maxSum *intval.Sum64, coeff, lowerDelta, upperDelta intval.Val) error {
	if coeff > 0 {
		if lowerDelta != 0 {
			if err := minSum.AddTerm(coeff, lowerDelta); err != nil {
				return err
			}
		}
		if upperDelta != 0 {
			if err := maxSum.AddTerm(coeff, upperDelta); err != nil {
				return err
			}
		}
		return nil
	}
	if upperDelta != 0 {
		if err := minSum.AddTerm(coeff, upperDelta); err != nil {
			return err
		}
	}
	if lowerDelta != 0 {
		if err := maxSum.AddTerm(coeff, lowerDelta); err != nil {
			return err
		}
	}
	return nil
}

// Propagate implements spec §4.5.1's propagation rule: entailment/refutation
// against the reification literal, and per-variable bound derivation once
// the literal is known true.
func (st *SumState) Propagate(s *engine.Solver, cc clausecreator.Creator) (bool, error) {
	lit := st.header.Literal
	assign := cc.Assignment()

	if st.maxSum.CompareVal(st.Rhs) <= 0 {
		if lit != 0 && !assign.IsTrue(lit) {
			if !cc.AddClause([]clausecreator.Lit{lit}, clausecreator.KindSearch) {
				return false, nil
			}
		}
		s.Deactivate(st)
		return true, nil
	}

	if st.minSum.CompareVal(st.Rhs) > 0 {
		reason := reasonLits(s, cc, st.Terms, st.Rhs, -1, s.Cfg.RefineReasons)
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

	if lit == 0 || assign.IsTrue(lit) {
		for _, t := range st.Terms {
			ok, err := deriveBound(s, cc, st.Terms, st.Rhs, st.minSum, lit, t)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

// deriveBound implements the bound-tightening half of spec §4.5.1: "If lit
// is true and min_sum + slack_i > rhs for some variable, derive a new
// upper (or lower) bound for v_i". Shared by Sum and Minimize.
func deriveBound(s *engine.Solver, cc clausecreator.Creator, terms covar.CoVarVec, rhs intval.Val, minSum *intval.Sum64, reifLit clausecreator.Lit, t covar.Pair) (bool, error) {
	vs := s.VarState(t.Var)
	minSide, maxSide := sides(t.Coeff, vs.LowerBound(), vs.UpperBound())
	if minSide == maxSide {
		return true, nil // fixed; nothing to derive
	}
	slack := int64(t.Coeff) * int64(maxSide-minSide) // always >= 0, see sides
	if minSum.Value()+slack <= int64(rhs) {
		return true, nil
	}
	numerator := int64(rhs) - minSum.Value() + int64(t.Coeff)*int64(minSide)
	raw := floorDiv(numerator, int64(t.Coeff))
	if raw > int64(intval.MaxVal) || raw < int64(intval.MinVal) {
		return true, nil // out of representable range; no tighter bound to post
	}
	newBound := intval.Val(raw)

	reason := reasonLits(s, cc, terms, rhs, t.Var, s.Cfg.RefineReasons)
	var newLit clausecreator.Lit
	if t.Coeff > 0 {
		if newBound >= vs.UpperBound() {
			return true, nil
		}
		newLit = vs.GetLiteral(cc, newBound)
	} else {
		if newBound <= vs.LowerBound() {
			return true, nil
		}
		newLit = vs.GetLiteral(cc, newBound-1).Negation()
	}
	clause := make([]clausecreator.Lit, 0, len(reason)+2)
	if reifLit != 0 {
		clause = append(clause, reifLit.Negation())
	}
	clause = append(clause, reason...)
	clause = append(clause, newLit)
	if !cc.AddClause(clause, clausecreator.KindSearch) {
		return false, nil
	}
	return true, nil
}

// reasonLits builds the negated bound literals witnessing the current
// min-side value of every term other than excludeVar (spec §4.5.1 "the
// minimum set of current bound literals needed to justify the
// derivation"). Reason shortening itself ("refine_reasons") is approximated
// by dropping terms whose contribution is not needed once the remaining
// terms alone already exceed rhs (for a refutation) — a greedy shrink, not
// a minimal one. Shared by Sum and Minimize.
// contrib pairs a reason literal with the weight it pins to the min side.
type contrib struct {
	lit   clausecreator.Lit
	value int64
}

func reasonLits(s *engine.Solver, cc clausecreator.Creator, terms covar.CoVarVec, rhs intval.Val, excludeVar engine.Var, refine bool) []clausecreator.Lit {
	var contribs []contrib
	for _, t := range terms {
		if t.Var == excludeVar {
			continue
		}
		vs := s.VarState(t.Var)
		minSide, _ := sides(t.Coeff, vs.LowerBound(), vs.UpperBound())
		contribs = append(contribs, contrib{
			lit:   boundWitness(cc, vs, t.Coeff, minSide),
			value: int64(t.Coeff) * int64(minSide),
		})
	}
	s.Stats.IntroducedReasons++
	if !refine {
		lits := make([]clausecreator.Lit, len(contribs))
		for i, c := range contribs {
			lits[i] = c.lit.Negation()
		}
		return lits
	}
	// Greedy shrink: sort by magnitude of contribution, descending, and stop
	// as soon as the running sum alone exceeds rhs (enough to justify the
	// refutation/derivation without every term).
	sortByMagnitudeDesc(contribs)
	var acc int64
	var lits []clausecreator.Lit
	for _, c := range contribs {
		acc += c.value
		lits = append(lits, c.lit.Negation())
		if acc > int64(rhs) {
			break
		}
	}
	if len(lits) < len(contribs) {
		s.Stats.RefinedReasons++
	}
	if lits == nil {
		lits = []clausecreator.Lit{}
	}
	return lits
}

func sortByMagnitudeDesc(c []contrib) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && abs64(c[j].value) > abs64(c[j-1].value); j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// boundWitness returns the literal whose truth currently certifies that
// coeff*v is pinned to its min side.
func boundWitness(cc clausecreator.Creator, vs *order.VarState, coeff, minSide intval.Val) clausecreator.Lit {
	if coeff > 0 {
		// minSide == lower bound: "var > minSide-1" certifies it.
		return vs.GetLiteral(cc, minSide-1).Negation()
	}
	// minSide == upper bound: "var <= minSide" certifies it.
	return vs.GetLiteral(cc, minSide)
}

// Translate implements spec §4.5.4: if the constraint has at most ClauseLimit
// terms and every term's variable is already fixed, lower it to a weight
// constraint and request removal; otherwise leave it for runtime
// propagation.
func (st *SumState) Translate(s *engine.Solver, cc clausecreator.Creator) (bool, []engine.ConstraintState, bool, error) {
	if len(st.Terms) > s.Cfg.ClauseLimit {
		return true, nil, false, nil
	}
	lits := make([]clausecreator.Lit, len(st.Terms))
	weights := make([]int, len(st.Terms))
	for i, t := range st.Terms {
		// Only fixed variables translate: each term becomes TrueLit weighted
		// by its constant contribution. A single term whose variable is not
		// yet fixed leaves the whole constraint for runtime propagation.
		vs := s.VarState(t.Var)
		if vs.LowerBound() != vs.UpperBound() {
			return true, nil, false, nil
		}
		// The host's weight constraints are ">= bound"; negate weights and
		// bound to express "<= rhs".
		lits[i] = clausecreator.TrueLit
		weights[i] = -int(t.Coeff) * int(vs.LowerBound())
	}
	bound := -int(st.Rhs)
	kind := clausecreator.KindTranslate
	if st.header.Literal != 0 {
		if !cc.AddClause([]clausecreator.Lit{st.header.Literal}, kind) {
			return false, nil, false, nil
		}
	}
	if !cc.AddWeightConstraint(lits, weights, bound, kind) {
		return false, nil, false, nil
	}
	return true, nil, true, nil
}
