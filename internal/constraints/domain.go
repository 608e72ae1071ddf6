package constraints

import (
	"github.com/potassco/clingcon-core/internal/engine"
	"github.com/potassco/clingcon-core/pkg/clausecreator"
	"github.com/potassco/clingcon-core/pkg/interval"
	"github.com/potassco/clingcon-core/pkg/intval"
)

// DomainState implements the reified equivalence "lit <-> var ∈ intervals"
// (spec §4.5.3 "Domain state: reified equivalence between a literal and var
// ∈ IntervalSet"). Unlike Sum/Minimize/Distinct it watches exactly one
// variable and carries no incremental accumulator: its only per-call state
// is the (immutable) interval set itself, so Update/Undo are no-ops and the
// bounds needed at propagation time are read straight off the VarState.
type DomainState struct {
	header engine.Header

	Var    engine.Var
	Values interval.Set
}

var _ engine.ConstraintState = (*DomainState)(nil)

// NewDomain creates a Domain constraint state over "lit <-> v ∈ values".
func NewDomain(lit clausecreator.Lit, v engine.Var, values interval.Set) *DomainState {
	return &DomainState{header: engine.Header{Literal: lit}, Var: v, Values: values}
}

// Hdr implements engine.ConstraintState.
func (st *DomainState) Hdr() *engine.Header { return &st.header }

// Init registers a watch on the single variable and, if reified, on the
// literal itself.
func (st *DomainState) Init(s *engine.Solver) error {
	s.AddWatch(st.Var, 1, st)
	if st.header.Literal != 0 {
		s.AddReifWatch(st.header.Literal, st)
	}
	return nil
}

// Update is a no-op: propagation reads bounds directly from VarState rather
// than an incremental accumulator.
func (st *DomainState) Update(s *engine.Solver, v engine.Var, coeff, lowerDelta, upperDelta intval.Val) error {
	return nil
}

// Undo is a no-op for the same reason.
func (st *DomainState) Undo(s *engine.Solver, v engine.Var, coeff, lowerDelta, upperDelta intval.Val) {
}

// boundsReason returns the pair of order literals witnessing the variable's
// current [lo, hi] bounds, to be negated into a clause's reason.
func boundsReason(cc clausecreator.Creator, vs interface {
	GetLiteral(clausecreator.Creator, intval.Val) clausecreator.Lit
}, lo, hi intval.Val) []clausecreator.Lit {
	return []clausecreator.Lit{
		vs.GetLiteral(cc, lo-1).Negation(), // var >= lo
		vs.GetLiteral(cc, hi),              // var <= hi
	}
}

// Propagate implements spec §4.4.6's dom chain encoding plus the
// entailment/refutation halves spec §4.5.3 implies for a reified domain:
//   - current bounds land entirely outside the interval set: refute lit.
//   - current bounds land entirely inside the interval set: entail lit.
//   - otherwise, once lit is known true, clamp both endpoints into the
//     intersected set and forbid every interior gap with a two-literal
//     clause (sound and, once one side is resolved by the host's unit
//     propagation, equivalent to the chain of per-step implications the
//     spec describes — just without the intermediate short-reason
//     literals propagate_chain would add).
func (st *DomainState) Propagate(s *engine.Solver, cc clausecreator.Creator) (bool, error) {
	lit := st.header.Literal
	assign := cc.Assignment()
	vs := s.VarState(st.Var)
	lo, hi := vs.LowerBound(), vs.UpperBound()

	inter := st.Values.Intersect(lo, hi)

	if inter.Empty() {
		reason := negateLits(boundsReason(cc, vs, lo, hi))
		var clause []clausecreator.Lit
		if lit != 0 {
			clause = append(reason, lit.Negation())
		} else {
			clause = reason
		}
		if !cc.AddClause(clause, clausecreator.KindSearch) {
			return false, nil
		}
		s.Deactivate(st)
		return true, nil
	}

	if inter.Min() == lo && inter.Max() == hi && len(inter.Ranges()) == 1 {
		if lit != 0 && !assign.IsTrue(lit) {
			reason := negateLits(boundsReason(cc, vs, lo, hi))
			clause := append(reason, lit)
			if !cc.AddClause(clause, clausecreator.KindSearch) {
				return false, nil
			}
		}
		s.Deactivate(st)
		return true, nil
	}

	if lit != 0 && !assign.IsTrue(lit) {
		return true, nil
	}

	ranges := inter.Ranges()
	reason := negateLits(boundsReason(cc, vs, lo, hi))

	if ranges[0].Lo > lo {
		clause := append([]clausecreator.Lit{}, reason...)
		if lit != 0 {
			clause = append(clause, lit.Negation())
		}
		clause = append(clause, vs.GetLiteral(cc, ranges[0].Lo-1).Negation())
		if !cc.AddClause(clause, clausecreator.KindSearch) {
			return false, nil
		}
	}
	if last := ranges[len(ranges)-1]; last.Hi-1 < hi {
		clause := append([]clausecreator.Lit{}, reason...)
		if lit != 0 {
			clause = append(clause, lit.Negation())
		}
		clause = append(clause, vs.GetLiteral(cc, last.Hi-1))
		if !cc.AddClause(clause, clausecreator.KindSearch) {
			return false, nil
		}
	}

	for i := 1; i < len(ranges); i++ {
		gapLo, gapHi := ranges[i-1].Hi, ranges[i].Lo
		clause := append([]clausecreator.Lit{}, reason...)
		if lit != 0 {
			clause = append(clause, lit.Negation())
		}
		clause = append(clause, vs.GetLiteral(cc, gapLo-1), vs.GetLiteral(cc, gapHi-1).Negation())
		if !cc.AddClause(clause, clausecreator.KindSearch) {
			return false, nil
		}
	}
	return true, nil
}

// Translate implements spec §4.5.4 for Domain: a dom constraint is already
// nothing more than clauses over order literals, so once it's reified by a
// known-true (or unconditional) literal it can always be lowered directly —
// the same chain this Propagate posts, just emitted once instead of kept
// live.
func (st *DomainState) Translate(s *engine.Solver, cc clausecreator.Creator) (bool, []engine.ConstraintState, bool, error) {
	lit := st.header.Literal
	if lit != 0 && !cc.Assignment().IsTrue(lit) {
		return true, nil, false, nil
	}
	ok, err := st.Propagate(s, cc)
	if err != nil || !ok {
		return ok, nil, false, err
	}
	return true, nil, true, nil
}
