package propagator

import (
	"time"

	"github.com/pkg/errors"

	"github.com/potassco/clingcon-core/internal/constraints"
	"github.com/potassco/clingcon-core/internal/engine"
	"github.com/potassco/clingcon-core/internal/tseitin"
	"github.com/potassco/clingcon-core/pkg/clausecreator"
	"github.com/potassco/clingcon-core/pkg/covar"
	"github.com/potassco/clingcon-core/pkg/interval"
	"github.com/potassco/clingcon-core/pkg/intval"
)

// This file is the builder API of spec §6, consumed by the theory parser.
// Registration runs against the master thread's solver through the buffering
// init creator; Init later replays the registered constraints onto worker
// threads.

// ErrFrozen is returned when a registration method is called after Init
// already ran (spec §7 "Configuration error").
var ErrFrozen = errors.New("propagator: registration after init is frozen")

// SolverLiteral maps a program literal to its host solver literal. With the
// reference host the two coincide; the method exists so a real host's
// program->solver mapping has a seam to hang off.
func (p *Propagator) SolverLiteral(programLit clausecreator.Lit) clausecreator.Lit {
	return programLit
}

// AddLiteral allocates a fresh solver literal.
func (p *Propagator) AddLiteral() clausecreator.Lit { return p.initCC.AddLiteral() }

// IsTrue reports whether lit is already true at registration time.
func (p *Propagator) IsTrue(lit clausecreator.Lit) bool {
	return p.initCC.Assignment().IsTrue(lit)
}

// AddClause posts a pure Boolean clause.
func (p *Propagator) AddClause(clause []clausecreator.Lit) bool {
	return p.initCC.AddClause(clause, clausecreator.KindInit)
}

// AddVariable returns the CP variable registered for symbol, allocating it
// on first reference (spec §3 Lifecycles: "created on first reference...
// never destroyed").
func (p *Propagator) AddVariable(symbol string) covar.Var {
	if v, ok := p.symtab[symbol]; ok {
		return v
	}
	v := covar.Var(p.master().AddVar())
	p.symtab[symbol] = v
	p.syms = append(p.syms, symbol)
	return v
}

// AddAuxVariable allocates an anonymous variable, used as a translation
// auxiliary. Aux variables are never shown.
func (p *Propagator) AddAuxVariable() covar.Var {
	v := covar.Var(p.master().AddVar())
	p.syms = append(p.syms, "")
	return v
}

// simplify canonicalizes vec and folds its constant part into rhs, timing
// the pass into the stats surface.
func (p *Propagator) simplify(vec covar.CoVarVec, rhs intval.Val) (covar.CoVarVec, intval.Val, error) {
	defer func(start time.Time) { p.stats.SimplifyTime += time.Since(start) }(time.Now())
	out, delta, err := covar.Simplify(vec, true)
	if err != nil {
		return nil, 0, err
	}
	rhs, err = intval.Add(rhs, delta)
	if err != nil {
		return nil, 0, err
	}
	return out, rhs, nil
}

// AddConstraint registers "lit -> sum(vec) <= rhs" (both directions when
// strict). Empty and single-variable vectors short-circuit into direct
// order-literal integration (spec §4.4.5) instead of a constraint state.
func (p *Propagator) AddConstraint(lit clausecreator.Lit, vec covar.CoVarVec, rhs intval.Val, strict bool) error {
	if p.frozen {
		return ErrFrozen
	}
	vec, rhs, err := p.simplify(vec, rhs)
	if err != nil {
		return err
	}
	solver := p.master()
	switch len(vec) {
	case 0:
		if !solver.AddSimple(p.initCC, lit, 0, 0, rhs, strict) {
			return errors.New("propagator: conflict while adding trivial constraint")
		}
		return nil
	case 1:
		t := vec[0]
		if !solver.AddSimple(p.initCC, lit, t.Coeff, engine.Var(t.Var), rhs, strict) {
			return errors.New("propagator: conflict while adding simple constraint")
		}
		// Workers clone the var table after init, so a simple constraint's
		// order-literal binding travels with the clone; nothing to replay.
		return nil
	}
	st := constraints.NewSum(lit, vec, rhs)
	if err := st.Init(solver); err != nil {
		return err
	}
	solver.AddConstraintState(st)
	p.tags = append(p.tags, builderTag{
		state: st,
		build: func(s *engine.Solver) error {
			ws := constraints.NewSum(lit, vec, rhs)
			if err := ws.Init(s); err != nil {
				return err
			}
			s.AddConstraintState(ws)
			return nil
		},
	})
	return nil
}

// AddNonlinear registers "lit -> coAB*va*vb + coC*vc <= rhs" (spec §6
// add_nonlinear). The strict direction beyond refutation is not separately
// encoded: the state machine already propagates both lit and its negation
// from the product's bounds.
func (p *Propagator) AddNonlinear(lit clausecreator.Lit, coAB intval.Val, va, vb covar.Var, coC intval.Val, vc covar.Var, rhs intval.Val, strict bool) error {
	if p.frozen {
		return ErrFrozen
	}
	if err := intval.CheckValid(rhs); err != nil {
		return err
	}
	solver := p.master()
	st := constraints.NewNonlinear(lit, coAB, engine.Var(va), engine.Var(vb), coC, engine.Var(vc), rhs)
	if err := st.Init(solver); err != nil {
		return err
	}
	solver.AddConstraintState(st)
	p.tags = append(p.tags, builderTag{
		state: st,
		build: func(s *engine.Solver) error {
			ws := constraints.NewNonlinear(lit, coAB, engine.Var(va), engine.Var(vb), coC, engine.Var(vc), rhs)
			if err := ws.Init(s); err != nil {
				return err
			}
			s.AddConstraintState(ws)
			return nil
		},
	})
	return nil
}

// AddDistinct registers "lit -> all expressions pairwise different". Binary
// distinct is rewritten into a Sum disequality at registration — a
// DistinctState with n == 2 is never constructed (spec §9, open question
// resolved in DESIGN.md).
func (p *Propagator) AddDistinct(lit clausecreator.Lit, exprs []constraints.DistinctExpr) error {
	if p.frozen {
		return ErrFrozen
	}
	simplified := make([]constraints.DistinctExpr, len(exprs))
	for i, e := range exprs {
		// DistinctExpr.Rhs is a value offset (value = terms + rhs), not a
		// constraint bound, so a constant folded out of the terms moves over
		// with the opposite sign of Simplify's constraint-style delta.
		vec, delta, err := covar.Simplify(e.Terms, true)
		if err != nil {
			return err
		}
		rhs, err := intval.Sub(e.Rhs, delta)
		if err != nil {
			return err
		}
		simplified[i] = constraints.DistinctExpr{Terms: vec, Rhs: rhs}
	}

	if len(simplified) < 2 {
		return nil // nothing to distinguish
	}
	if len(simplified) == 2 {
		return p.addDisequality(lit, simplified[0], simplified[1])
	}

	solver := p.master()
	st := constraints.NewDistinct(lit, simplified)
	if err := st.Init(solver); err != nil {
		return err
	}
	solver.AddConstraintState(st)
	p.tags = append(p.tags, builderTag{
		state: st,
		build: func(s *engine.Solver) error {
			ws := constraints.NewDistinct(lit, simplified)
			if err := ws.Init(s); err != nil {
				return err
			}
			s.AddConstraintState(ws)
			return nil
		},
	})
	return nil
}

// addDisequality lowers "lit -> a != b" into two auxiliary strict
// inequalities joined by exclusive-or clauses (spec §6 "!= becomes two
// auxiliary strict inequalities joined by exclusive-or clauses").
func (p *Propagator) addDisequality(lit clausecreator.Lit, a, b constraints.DistinctExpr) error {
	// a + rhsA != b + rhsB  <=>  (a - b) != rhsB - rhsA
	diff := a.Terms.Clone()
	for _, t := range b.Terms {
		neg, err := intval.Neg(t.Coeff)
		if err != nil {
			return err
		}
		diff = append(diff, covar.Pair{Coeff: neg, Var: t.Var})
	}
	target, err := intval.Sub(b.Rhs, a.Rhs)
	if err != nil {
		return err
	}

	below := p.AddLiteral() // below <-> diff <= target-1
	above := p.AddLiteral() // above <-> diff >= target+1, i.e. -diff <= -(target+1)
	belowRhs, err := intval.Sub(target, 1)
	if err != nil {
		return err
	}
	if err := p.AddConstraint(below, diff, belowRhs, true); err != nil {
		return err
	}
	negDiff := make(covar.CoVarVec, len(diff))
	for i, t := range diff {
		neg, err := intval.Neg(t.Coeff)
		if err != nil {
			return err
		}
		negDiff[i] = covar.Pair{Coeff: neg, Var: t.Var}
	}
	aboveRhs, err := intval.Add(target, 1)
	if err != nil {
		return err
	}
	negTarget, err := intval.Neg(aboveRhs)
	if err != nil {
		return err
	}
	if err := p.AddConstraint(above, negDiff, negTarget, true); err != nil {
		return err
	}
	if !tseitin.Emit(p.initCC, tseitin.Eq(tseitin.Lit(lit), tseitin.Xor(tseitin.Lit(below), tseitin.Lit(above))), clausecreator.KindInit) {
		return errors.New("propagator: conflict while adding disequality")
	}
	return nil
}

// DisjointElem is one scheduled expression of a disjoint constraint: the
// interval [expr, expr+Length) must not overlap any sibling's.
type DisjointElem struct {
	Terms  covar.CoVarVec
	Rhs    intval.Val
	Length intval.Val
}

// AddDisjoint registers "lit -> the elements' intervals are pairwise
// disjoint". Unit lengths reduce to distinct; longer lengths are lowered
// pairwise into "e_i + len_i <= e_j or e_j + len_j <= e_i" with one
// auxiliary literal per direction.
func (p *Propagator) AddDisjoint(lit clausecreator.Lit, elems []DisjointElem) error {
	if p.frozen {
		return ErrFrozen
	}
	allUnit := true
	for _, e := range elems {
		if e.Length != 1 {
			allUnit = false
			break
		}
	}
	if allUnit {
		exprs := make([]constraints.DistinctExpr, len(elems))
		for i, e := range elems {
			exprs[i] = constraints.DistinctExpr{Terms: e.Terms, Rhs: e.Rhs}
		}
		return p.AddDistinct(lit, exprs)
	}
	for i := 0; i < len(elems); i++ {
		for j := i + 1; j < len(elems); j++ {
			if err := p.addNoOverlap(lit, elems[i], elems[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Propagator) addNoOverlap(lit clausecreator.Lit, a, b DisjointElem) error {
	// before -> a + lenA <= b, i.e. (a - b) <= rhsB - rhsA - lenA
	mkDiff := func(x, y DisjointElem) (covar.CoVarVec, intval.Val, error) {
		diff := x.Terms.Clone()
		for _, t := range y.Terms {
			neg, err := intval.Neg(t.Coeff)
			if err != nil {
				return nil, 0, err
			}
			diff = append(diff, covar.Pair{Coeff: neg, Var: t.Var})
		}
		rhs, err := intval.Sub(y.Rhs, x.Rhs)
		if err != nil {
			return nil, 0, err
		}
		rhs, err = intval.Sub(rhs, x.Length)
		if err != nil {
			return nil, 0, err
		}
		return diff, rhs, nil
	}
	before := p.AddLiteral()
	after := p.AddLiteral()
	diffAB, rhsAB, err := mkDiff(a, b)
	if err != nil {
		return err
	}
	if err := p.AddConstraint(before, diffAB, rhsAB, false); err != nil {
		return err
	}
	diffBA, rhsBA, err := mkDiff(b, a)
	if err != nil {
		return err
	}
	if err := p.AddConstraint(after, diffBA, rhsBA, false); err != nil {
		return err
	}
	if !p.AddClause([]clausecreator.Lit{lit.Negation(), before, after}) {
		return errors.New("propagator: conflict while adding disjoint constraint")
	}
	return nil
}

// AddDom registers "lit <-> v ∈ values". A literal already fixed true at
// registration collapses into the static clause encoding of spec §4.4.6;
// otherwise a DomainState keeps the equivalence live during search.
func (p *Propagator) AddDom(lit clausecreator.Lit, v covar.Var, values interval.Set) error {
	if p.frozen {
		return ErrFrozen
	}
	solver := p.master()
	if lit == clausecreator.TrueLit || p.IsTrue(lit) {
		if !solver.AddDom(p.initCC, clausecreator.TrueLit, engine.Var(v), values) {
			return errors.New("propagator: conflict while adding domain")
		}
		return nil
	}
	st := constraints.NewDomain(lit, engine.Var(v), values)
	if err := st.Init(solver); err != nil {
		return err
	}
	solver.AddConstraintState(st)
	p.tags = append(p.tags, builderTag{
		state: st,
		build: func(s *engine.Solver) error {
			ws := constraints.NewDomain(lit, engine.Var(v), values)
			if err := ws.Init(s); err != nil {
				return err
			}
			s.AddConstraintState(ws)
			return nil
		},
	})
	return nil
}

// AddMinimize accumulates one objective term coeff*v; v may be
// covar.InvalidVar to add a constant (spec §4.5.2 "adjust absorbs the
// simplification of pooled constant terms").
func (p *Propagator) AddMinimize(coeff intval.Val, v covar.Var) error {
	if p.frozen {
		// The minimize constraint was already built and shared across
		// threads; growing it now would desynchronize them.
		return errors.Wrap(ErrFrozen, "minimize is frozen")
	}
	if v == covar.InvalidVar {
		adjust, err := intval.Add(p.minAdjust, coeff)
		if err != nil {
			return err
		}
		p.minAdjust = adjust
		return nil
	}
	p.minTerms = append(p.minTerms, covar.Pair{Coeff: coeff, Var: v})
	return nil
}

// AddShow marks every variable as shown (the bare &show directive).
func (p *Propagator) AddShow() {
	p.hasShow = true
	for v, sym := range p.syms {
		if sym != "" {
			p.showVars[covar.Var(v)] = true
		}
	}
}

// ShowSignature marks every variable whose symbol matches name/arity.
func (p *Propagator) ShowSignature(name string, arity int) {
	p.hasShow = true
	p.showSigs[showSig{name: name, arity: arity}] = true
}

// ShowVariable marks a single variable as shown.
func (p *Propagator) ShowVariable(v covar.Var) {
	p.hasShow = true
	p.showVars[v] = true
}
