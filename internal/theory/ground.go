package theory

import (
	"github.com/pkg/errors"

	"github.com/potassco/clingcon-core/internal/constraints"
	"github.com/potassco/clingcon-core/internal/tseitin"
	"github.com/potassco/clingcon-core/pkg/clausecreator"
	"github.com/potassco/clingcon-core/pkg/covar"
	"github.com/potassco/clingcon-core/pkg/interval"
	"github.com/potassco/clingcon-core/pkg/intval"
	"github.com/potassco/clingcon-core/pkg/propagator"
)

// Grounder turns a parsed theory program into builder-API calls (spec §6).
// Plain Boolean atoms introduced by choice rules get a solver literal on
// first sight and are looked up by name afterwards.
type Grounder struct {
	b     *propagator.Propagator
	atoms map[string]clausecreator.Lit
}

// NewGrounder creates a grounder over the propagator's builder API.
func NewGrounder(b *propagator.Propagator) *Grounder {
	return &Grounder{b: b, atoms: make(map[string]clausecreator.Lit)}
}

// Atom returns the solver literal of a Boolean atom registered by a choice
// rule, if any.
func (g *Grounder) Atom(name string) (clausecreator.Lit, bool) {
	lit, ok := g.atoms[name]
	return lit, ok
}

// TagAtom renames a sum/diff/nsum atom for its context (spec §6
// normalization step 3): "sum" in a head becomes "__sum_h", in a body
// "__sum_b". Already-tagged and non-taggable names pass through.
func TagAtom(name string, head bool) string {
	switch name {
	case "sum", "diff", "nsum":
		if head {
			return "__" + name + "_h"
		}
		return "__" + name + "_b"
	default:
		return name
	}
}

// baseAtom strips a context tag back off: "__sum_h" -> "sum".
func baseAtom(name string) (string, bool) {
	switch name {
	case "__sum_h", "__sum_b", "sum":
		return "sum", true
	case "__diff_h", "__diff_b", "diff":
		return "diff", true
	case "__nsum_h", "__nsum_b", "nsum":
		return "nsum", true
	default:
		return name, false
	}
}

// FlipRelation inverts a guard relation, used when an empty-head integrity
// constraint is shifted into a head atom (spec §6 normalization step 2).
func FlipRelation(op string) string {
	switch op {
	case "=":
		return "!="
	case "!=":
		return "="
	case "<=":
		return ">"
	case ">":
		return "<="
	case "<":
		return ">="
	case ">=":
		return "<"
	default:
		return op
	}
}

// Ground walks the program and registers every statement with the builder.
func (g *Grounder) Ground(p *Program) error {
	for _, st := range p.Statements {
		switch {
		case st.Choice != nil:
			if _, ok := g.atoms[st.Choice.Name]; !ok {
				g.atoms[st.Choice.Name] = g.b.AddLiteral()
			}
		case st.Integrity != nil:
			atom := *st.Integrity.Atom
			if atom.Guard == nil {
				return errors.Wrapf(ErrSyntax, "integrity constraint over &%s needs a guard", atom.Name)
			}
			flipped := *atom.Guard
			flipped.Op = FlipRelation(atom.Guard.Op)
			atom.Guard = &flipped
			if err := g.groundAtom(&atom, clausecreator.TrueLit); err != nil {
				return err
			}
		default:
			lit, err := g.bodyLiteral(st.Rule.Body)
			if err != nil {
				return err
			}
			if err := g.groundAtom(st.Rule.Atom, lit); err != nil {
				return err
			}
		}
	}
	return nil
}

// bodyLiteral returns the literal reifying a rule body: the permanent true
// literal for a fact, the atom's own literal for a single-literal body, and
// a fresh auxiliary equivalent to the conjunction otherwise.
func (g *Grounder) bodyLiteral(body []*BodyLit) (clausecreator.Lit, error) {
	if len(body) == 0 {
		return clausecreator.TrueLit, nil
	}
	lits := make([]clausecreator.Lit, len(body))
	for i, bl := range body {
		lit, ok := g.atoms[bl.Name]
		if !ok {
			return 0, errors.Wrapf(ErrSyntax, "unknown atom %q in rule body", bl.Name)
		}
		if bl.Not {
			lit = lit.Negation()
		}
		lits[i] = lit
	}
	if len(lits) == 1 {
		return lits[0], nil
	}
	aux := g.b.AddLiteral()
	conj := make([]tseitin.Formula, len(lits))
	for i, l := range lits {
		conj[i] = tseitin.Lit(l)
	}
	if !tseitin.Emit(chainCreator{g.b}, tseitin.Eq(tseitin.Lit(aux), tseitin.And(conj...)), clausecreator.KindInit) {
		return 0, errors.New("theory: conflict while reifying rule body")
	}
	return aux, nil
}

// chainCreator adapts the builder API's clause/literal subset back to the
// Creator surface tseitin expects.
type chainCreator struct {
	b *propagator.Propagator
}

func (c chainCreator) AddLiteral() clausecreator.Lit { return c.b.AddLiteral() }
func (c chainCreator) AddWatch(clausecreator.Lit)    {}
func (c chainCreator) AddClause(lits []clausecreator.Lit, _ clausecreator.ClauseKind) bool {
	return c.b.AddClause(lits)
}
func (c chainCreator) AddWeightConstraint([]clausecreator.Lit, []int, int, clausecreator.ClauseKind) bool {
	return false
}
func (c chainCreator) Propagate() bool                      { return true }
func (c chainCreator) Assignment() clausecreator.Assignment { return nil }

func (g *Grounder) groundAtom(atom *TheoryAtom, lit clausecreator.Lit) error {
	name, _ := baseAtom(atom.Name)
	switch name {
	case "sum", "diff":
		return g.groundSum(atom, lit, name == "diff")
	case "nsum":
		return g.groundNsum(atom, lit)
	case "distinct":
		return g.groundDistinct(atom, lit)
	case "disjoint":
		return g.groundDisjoint(atom, lit)
	case "dom":
		return g.groundDom(atom, lit)
	case "minimize", "maximize":
		return g.groundMinimize(atom, name == "maximize")
	case "show":
		return g.groundShow(atom)
	default:
		return errors.Wrapf(ErrSyntax, "unknown theory atom &%s", atom.Name)
	}
}

// elementExprs unfolds pools and evaluates every element's expression term,
// summing them into one linexpr (the multiset semantics of sum elements:
// each unfolded tuple instance contributes once).
func (g *Grounder) elementExprs(elems []*Element) (linexpr, error) {
	var acc linexpr
	for _, e := range elems {
		if len(e.Tuple) == 0 {
			continue
		}
		for _, ground := range Unfold(e.Tuple[0]) {
			expr, err := evalTerm(ground)
			if err != nil {
				return linexpr{}, err
			}
			if acc, err = acc.add(expr); err != nil {
				return linexpr{}, err
			}
		}
	}
	return acc, nil
}

// vecOf resolves a linexpr's symbols to CP variables and returns the
// CoVarVec with the constant folded in as an InvalidVar pair.
func (g *Grounder) vecOf(e linexpr) covar.CoVarVec {
	vec := make(covar.CoVarVec, 0, len(e.terms)+1)
	for _, t := range e.terms {
		vec = append(vec, covar.Pair{Coeff: t.co, Var: g.b.AddVariable(t.sym)})
	}
	if e.c != 0 {
		vec = append(vec, covar.Pair{Coeff: e.c, Var: covar.InvalidVar})
	}
	return vec
}

func (g *Grounder) groundSum(atom *TheoryAtom, lit clausecreator.Lit, diffOnly bool) error {
	if atom.Guard == nil {
		return errors.Wrapf(ErrSyntax, "&%s needs a guard", atom.Name)
	}
	if diffOnly && atom.Guard.Op != "<=" {
		return errors.Wrapf(ErrSyntax, "&diff only supports '<='")
	}
	lhs, err := g.elementExprs(atom.Elements)
	if err != nil {
		return err
	}
	guard, err := evalTerm(atom.Guard.Term)
	if err != nil {
		return err
	}
	if len(lhs.prods) > 0 || len(guard.prods) > 0 {
		return errors.Wrapf(ErrSyntax, "non-linear term in &%s", atom.Name)
	}
	negGuard, err := guard.negate()
	if err != nil {
		return err
	}
	expr, err := lhs.add(negGuard) // expr op 0
	if err != nil {
		return err
	}
	return g.relate(lit, expr, atom.Guard.Op)
}

// relate normalizes "expr op 0" into builder calls (spec §6 "Constraint
// normalization"): >, <, >= rewrite to <= by inversion, = becomes two <=
// constraints sharing the reification literal, != becomes a binary distinct
// (which the builder rewrites into two auxiliary strict inequalities joined
// by exclusive-or clauses).
func (g *Grounder) relate(lit clausecreator.Lit, expr linexpr, op string) error {
	switch op {
	case "<=":
		return g.b.AddConstraint(lit, g.vecOf(expr), 0, false)
	case "<":
		return g.b.AddConstraint(lit, g.vecOf(expr), -1, false)
	case ">=":
		neg, err := expr.negate()
		if err != nil {
			return err
		}
		return g.b.AddConstraint(lit, g.vecOf(neg), 0, false)
	case ">":
		neg, err := expr.negate()
		if err != nil {
			return err
		}
		return g.b.AddConstraint(lit, g.vecOf(neg), -1, false)
	case "=":
		if err := g.b.AddConstraint(lit, g.vecOf(expr), 0, false); err != nil {
			return err
		}
		neg, err := expr.negate()
		if err != nil {
			return err
		}
		return g.b.AddConstraint(lit, g.vecOf(neg), 0, false)
	case "!=":
		return g.b.AddDistinct(lit, []constraints.DistinctExpr{
			{Terms: g.vecOf(expr), Rhs: 0},
			{Terms: nil, Rhs: 0},
		})
	default:
		return errors.Wrapf(ErrSyntax, "unsupported relation %q", op)
	}
}

func (g *Grounder) groundNsum(atom *TheoryAtom, lit clausecreator.Lit) error {
	if atom.Guard == nil {
		return errors.Wrap(ErrSyntax, "&nsum needs a guard")
	}
	lhs, err := g.elementExprs(atom.Elements)
	if err != nil {
		return err
	}
	guard, err := evalTerm(atom.Guard.Term)
	if err != nil {
		return err
	}
	if len(guard.prods) > 0 {
		return errors.Wrap(ErrSyntax, "non-linear guard in &nsum")
	}
	negGuard, err := guard.negate()
	if err != nil {
		return err
	}
	expr, err := lhs.add(negGuard)
	if err != nil {
		return err
	}
	if len(expr.prods) == 0 {
		return g.relate(lit, expr, atom.Guard.Op)
	}
	if len(expr.prods) > 1 || len(expr.terms) > 1 {
		return errors.Wrap(ErrSyntax, "&nsum supports a single product plus at most one linear term")
	}
	post := func(l clausecreator.Lit, e linexpr, rhs intval.Val) error {
		p := e.prods[0]
		va := g.b.AddVariable(p.a)
		vb := g.b.AddVariable(p.b)
		coC := intval.Val(0)
		vc := covar.InvalidVar
		if len(e.terms) == 1 {
			coC = e.terms[0].co
			vc = g.b.AddVariable(e.terms[0].sym)
		}
		target, err := intval.Sub(rhs, e.c)
		if err != nil {
			return err
		}
		return g.b.AddNonlinear(l, p.co, va, vb, coC, vc, target, false)
	}
	switch atom.Guard.Op {
	case "<=":
		return post(lit, expr, 0)
	case "<":
		return post(lit, expr, -1)
	case ">=":
		neg, err := expr.negate()
		if err != nil {
			return err
		}
		return post(lit, neg, 0)
	case ">":
		neg, err := expr.negate()
		if err != nil {
			return err
		}
		return post(lit, neg, -1)
	case "=":
		if err := post(lit, expr, 0); err != nil {
			return err
		}
		neg, err := expr.negate()
		if err != nil {
			return err
		}
		return post(lit, neg, 0)
	case "!=":
		below := g.b.AddLiteral()
		above := g.b.AddLiteral()
		if err := post(below, expr, -1); err != nil {
			return err
		}
		neg, err := expr.negate()
		if err != nil {
			return err
		}
		if err := post(above, neg, -1); err != nil {
			return err
		}
		if !tseitin.Emit(chainCreator{g.b}, tseitin.Eq(tseitin.Lit(lit), tseitin.Xor(tseitin.Lit(below), tseitin.Lit(above))), clausecreator.KindInit) {
			return errors.New("theory: conflict while grounding &nsum disequality")
		}
		return nil
	default:
		return errors.Wrapf(ErrSyntax, "unsupported relation %q", atom.Guard.Op)
	}
}

func (g *Grounder) groundDistinct(atom *TheoryAtom, lit clausecreator.Lit) error {
	if atom.Guard != nil {
		return errors.Wrap(ErrSyntax, "&distinct takes no guard")
	}
	var exprs []constraints.DistinctExpr
	for _, e := range atom.Elements {
		if len(e.Tuple) == 0 {
			continue
		}
		for _, ground := range Unfold(e.Tuple[0]) {
			expr, err := evalTerm(ground)
			if err != nil {
				return err
			}
			if len(expr.prods) > 0 {
				return errors.Wrap(ErrSyntax, "non-linear &distinct element")
			}
			vec := make(covar.CoVarVec, 0, len(expr.terms))
			for _, t := range expr.terms {
				vec = append(vec, covar.Pair{Coeff: t.co, Var: g.b.AddVariable(t.sym)})
			}
			exprs = append(exprs, constraints.DistinctExpr{Terms: vec, Rhs: expr.c})
		}
	}
	return g.b.AddDistinct(lit, exprs)
}

func (g *Grounder) groundDisjoint(atom *TheoryAtom, lit clausecreator.Lit) error {
	if atom.Guard != nil {
		return errors.Wrap(ErrSyntax, "&disjoint takes no guard")
	}
	var elems []propagator.DisjointElem
	for _, e := range atom.Elements {
		if len(e.Tuple) == 0 {
			continue
		}
		for _, ground := range Unfold(e.Tuple[0]) {
			expr, length, err := disjointElem(ground)
			if err != nil {
				return err
			}
			vec := make(covar.CoVarVec, 0, len(expr.terms))
			for _, t := range expr.terms {
				vec = append(vec, covar.Pair{Coeff: t.co, Var: g.b.AddVariable(t.sym)})
			}
			elems = append(elems, propagator.DisjointElem{Terms: vec, Rhs: expr.c, Length: length})
		}
	}
	return g.b.AddDisjoint(lit, elems)
}

func (g *Grounder) groundDom(atom *TheoryAtom, lit clausecreator.Lit) error {
	if atom.Guard == nil || atom.Guard.Op != "=" {
		return errors.Wrap(ErrSyntax, "&dom needs an '=' guard naming the variable")
	}
	guard, err := evalTerm(atom.Guard.Term)
	if err != nil {
		return err
	}
	if !guard.isSingleVar() || guard.terms[0].co != 1 {
		return errors.Wrap(ErrSyntax, "&dom guard must be a plain variable")
	}
	var ranges []interval.Range
	for _, e := range atom.Elements {
		if len(e.Tuple) == 0 {
			continue
		}
		for _, ground := range Unfold(e.Tuple[0]) {
			r, err := domRange(ground)
			if err != nil {
				return err
			}
			ranges = append(ranges, r)
		}
	}
	v := g.b.AddVariable(guard.terms[0].sym)
	return g.b.AddDom(lit, v, interval.New(ranges...))
}

func (g *Grounder) groundMinimize(atom *TheoryAtom, maximize bool) error {
	expr, err := g.elementExprs(atom.Elements)
	if err != nil {
		return err
	}
	if len(expr.prods) > 0 {
		return errors.Wrap(ErrSyntax, "non-linear objective")
	}
	if maximize {
		if expr, err = expr.negate(); err != nil {
			return err
		}
	}
	for _, t := range expr.terms {
		if err := g.b.AddMinimize(t.co, g.b.AddVariable(t.sym)); err != nil {
			return err
		}
	}
	if expr.c != 0 {
		return g.b.AddMinimize(expr.c, covar.InvalidVar)
	}
	return nil
}

func (g *Grounder) groundShow(atom *TheoryAtom) error {
	if len(atom.Elements) == 0 {
		g.b.AddShow()
		return nil
	}
	for _, e := range atom.Elements {
		if len(e.Tuple) == 0 {
			continue
		}
		for _, ground := range Unfold(e.Tuple[0]) {
			if name, arity, ok := signatureOf(ground); ok {
				g.b.ShowSignature(name, arity)
				continue
			}
			expr, err := evalTerm(ground)
			if err != nil {
				return err
			}
			if !expr.isSingleVar() || expr.terms[0].co != 1 {
				return errors.Wrap(ErrSyntax, "&show element must be a variable or name/arity")
			}
			g.b.ShowVariable(g.b.AddVariable(expr.terms[0].sym))
		}
	}
	return nil
}

// signatureOf recognizes the "name/arity" show element shape.
func signatureOf(t *Term) (string, int, bool) {
	if len(t.Rest) > 0 || len(t.First.Rest) > 0 || len(t.First.First.Rest) > 0 {
		return "", 0, false
	}
	m := t.First.First.First
	if len(m.Rest) != 1 || m.Rest[0].Op != "/" {
		return "", 0, false
	}
	base := m.First
	if base.Exp != nil || base.Base.Neg || base.Base.Primary.Func == nil || len(base.Base.Primary.Func.Args) != 0 {
		return "", 0, false
	}
	arityExpr := m.Rest[0].Term
	if arityExpr.Exp != nil || arityExpr.Base.Neg || arityExpr.Base.Primary.Number == nil {
		return "", 0, false
	}
	return base.Base.Primary.Func.Name, int(*arityExpr.Base.Primary.Number), true
}
