package theory

import (
	"github.com/pkg/errors"

	"github.com/potassco/clingcon-core/pkg/interval"
	"github.com/potassco/clingcon-core/pkg/intval"
)

// ErrSyntax wraps every context violation the evaluator detects: a
// non-constant guard, a forbidden operator for the atom kind, a non-linear
// term outside &nsum (spec §7 "Syntax error").
var ErrSyntax = errors.New("theory: syntax error")

// linTerm is one coefficient/symbol pair of an evaluated linear expression;
// the symbol is resolved to a CP variable only at grounding time.
type linTerm struct {
	co  intval.Val
	sym string
}

// product is one non-linear co*a*b term, only legal inside &nsum atoms.
type product struct {
	co   intval.Val
	a, b string
}

// linexpr is the evaluation result of a ground sum term: a linear part, a
// constant, and (for &nsum) at most a handful of product terms.
type linexpr struct {
	terms []linTerm
	c     intval.Val
	prods []product
}

func constExpr(v intval.Val) linexpr { return linexpr{c: v} }

func (e linexpr) isConst() bool { return len(e.terms) == 0 && len(e.prods) == 0 }

func (e linexpr) isSingleVar() bool {
	return len(e.terms) == 1 && e.c == 0 && len(e.prods) == 0
}

func (e linexpr) negate() (linexpr, error) {
	out := linexpr{terms: make([]linTerm, len(e.terms)), prods: make([]product, len(e.prods))}
	var err error
	if out.c, err = intval.Neg(e.c); err != nil {
		return linexpr{}, err
	}
	for i, t := range e.terms {
		co, err := intval.Neg(t.co)
		if err != nil {
			return linexpr{}, err
		}
		out.terms[i] = linTerm{co: co, sym: t.sym}
	}
	for i, p := range e.prods {
		co, err := intval.Neg(p.co)
		if err != nil {
			return linexpr{}, err
		}
		out.prods[i] = product{co: co, a: p.a, b: p.b}
	}
	return out, nil
}

func (e linexpr) add(other linexpr) (linexpr, error) {
	c, err := intval.Add(e.c, other.c)
	if err != nil {
		return linexpr{}, err
	}
	return linexpr{
		terms: append(append([]linTerm{}, e.terms...), other.terms...),
		c:     c,
		prods: append(append([]product{}, e.prods...), other.prods...),
	}, nil
}

func (e linexpr) scale(f intval.Val) (linexpr, error) {
	out := linexpr{terms: make([]linTerm, len(e.terms)), prods: make([]product, len(e.prods))}
	var err error
	if out.c, err = intval.Mul(e.c, f); err != nil {
		return linexpr{}, err
	}
	for i, t := range e.terms {
		co, err := intval.Mul(t.co, f)
		if err != nil {
			return linexpr{}, err
		}
		out.terms[i] = linTerm{co: co, sym: t.sym}
	}
	for i, p := range e.prods {
		co, err := intval.Mul(p.co, f)
		if err != nil {
			return linexpr{}, err
		}
		out.prods[i] = product{co: co, a: p.a, b: p.b}
	}
	return out, nil
}

// evalTerm evaluates a ground (unfolded) term to a linexpr. "@" and ".."
// never reach here: the dom and disjoint entry points pattern-match them off
// before evaluation, so their presence is a context violation.
func evalTerm(t *Term) (linexpr, error) {
	if len(t.Rest) > 0 {
		return linexpr{}, errors.Wrap(ErrSyntax, "'@' is only allowed in &disjoint elements")
	}
	return evalDots(t.First)
}

func evalDots(d *DotsExpr) (linexpr, error) {
	if len(d.Rest) > 0 {
		return linexpr{}, errors.Wrap(ErrSyntax, "'..' is only allowed in &dom elements")
	}
	return evalAdd(d.First)
}

func evalAdd(a *AddExpr) (linexpr, error) {
	acc, err := evalMul(a.First)
	if err != nil {
		return linexpr{}, err
	}
	for _, op := range a.Rest {
		rhs, err := evalMul(op.Term)
		if err != nil {
			return linexpr{}, err
		}
		if op.Op == "-" {
			if rhs, err = rhs.negate(); err != nil {
				return linexpr{}, err
			}
		}
		if acc, err = acc.add(rhs); err != nil {
			return linexpr{}, err
		}
	}
	return acc, nil
}

func evalMul(m *MulExpr) (linexpr, error) {
	acc, err := evalPow(m.First)
	if err != nil {
		return linexpr{}, err
	}
	for _, op := range m.Rest {
		rhs, err := evalPow(op.Term)
		if err != nil {
			return linexpr{}, err
		}
		switch op.Op {
		case "*":
			acc, err = mulCombine(acc, rhs)
		case "/":
			acc, err = divCombine(acc, rhs, false)
		case "\\":
			acc, err = divCombine(acc, rhs, true)
		}
		if err != nil {
			return linexpr{}, err
		}
	}
	return acc, nil
}

func mulCombine(x, y linexpr) (linexpr, error) {
	switch {
	case x.isConst():
		return y.scale(x.c)
	case y.isConst():
		return x.scale(y.c)
	case x.isSingleVar() && y.isSingleVar():
		co, err := intval.Mul(x.terms[0].co, y.terms[0].co)
		if err != nil {
			return linexpr{}, err
		}
		return linexpr{prods: []product{{co: co, a: x.terms[0].sym, b: y.terms[0].sym}}}, nil
	default:
		return linexpr{}, errors.Wrap(ErrSyntax, "non-linear multiplication beyond a single product")
	}
}

func divCombine(x, y linexpr, modulo bool) (linexpr, error) {
	if !x.isConst() || !y.isConst() {
		return linexpr{}, errors.Wrap(ErrSyntax, "division over non-constant terms")
	}
	var (
		v   intval.Val
		err error
	)
	if modulo {
		v, err = intval.Mod(x.c, y.c)
	} else {
		v, err = intval.Div(x.c, y.c)
	}
	if err != nil {
		return linexpr{}, err
	}
	return constExpr(v), nil
}

func evalPow(p *PowExpr) (linexpr, error) {
	base, err := evalUnary(p.Base)
	if err != nil {
		return linexpr{}, err
	}
	if p.Exp == nil {
		return base, nil
	}
	exp, err := evalPow(p.Exp)
	if err != nil {
		return linexpr{}, err
	}
	if !base.isConst() || !exp.isConst() {
		return linexpr{}, errors.Wrap(ErrSyntax, "'**' over non-constant terms")
	}
	if exp.c < 0 {
		return linexpr{}, errors.Wrap(ErrSyntax, "negative exponent")
	}
	result := intval.Val(1)
	for i := intval.Val(0); i < exp.c; i++ {
		if result, err = intval.Mul(result, base.c); err != nil {
			return linexpr{}, err
		}
	}
	return constExpr(result), nil
}

func evalUnary(u *UnaryExpr) (linexpr, error) {
	e, err := evalPrimary(u.Primary)
	if err != nil {
		return linexpr{}, err
	}
	if u.Neg {
		return e.negate()
	}
	return e, nil
}

func evalPrimary(p *Primary) (linexpr, error) {
	switch {
	case p.Number != nil:
		v := *p.Number
		if v > int64(intval.MaxVal) || v < int64(intval.MinVal) {
			return linexpr{}, intval.ErrOverflow
		}
		return constExpr(intval.Val(v)), nil
	case p.Paren != nil:
		return evalTerm(p.Paren)
	default:
		return linexpr{terms: []linTerm{{co: 1, sym: p.Func.String()}}}, nil
	}
}

// evalConst evaluates a term that must reduce to a constant (guards, lengths,
// range endpoints).
func evalConst(t *Term) (intval.Val, error) {
	e, err := evalTerm(t)
	if err != nil {
		return 0, err
	}
	if !e.isConst() {
		return 0, errors.Wrap(ErrSyntax, "constant term required")
	}
	return e.c, nil
}

// domRange evaluates one &dom element term: either "lo..hi" (inclusive) or a
// single constant value.
func domRange(t *Term) (interval.Range, error) {
	if len(t.Rest) > 0 {
		return interval.Range{}, errors.Wrap(ErrSyntax, "'@' is only allowed in &disjoint elements")
	}
	d := t.First
	switch len(d.Rest) {
	case 0:
		v, err := evalConst(&Term{First: d})
		if err != nil {
			return interval.Range{}, err
		}
		return interval.Range{Lo: v, Hi: v + 1}, nil
	case 1:
		lo, err := evalConst(&Term{First: &DotsExpr{First: d.First}})
		if err != nil {
			return interval.Range{}, err
		}
		hi, err := evalConst(&Term{First: &DotsExpr{First: d.Rest[0]}})
		if err != nil {
			return interval.Range{}, err
		}
		return interval.Range{Lo: lo, Hi: hi + 1}, nil
	default:
		return interval.Range{}, errors.Wrap(ErrSyntax, "chained '..' in &dom element")
	}
}

// disjointElem evaluates one &disjoint element term "expr[@length]" into its
// expression and length (1 when '@' is absent).
func disjointElem(t *Term) (linexpr, intval.Val, error) {
	expr, err := evalDots(t.First)
	if err != nil {
		return linexpr{}, 0, err
	}
	length := intval.Val(1)
	switch len(t.Rest) {
	case 0:
	case 1:
		length, err = evalConst(&Term{First: t.Rest[0]})
		if err != nil {
			return linexpr{}, 0, err
		}
		if length < 1 {
			return linexpr{}, 0, errors.Wrap(ErrSyntax, "'@' length must be positive")
		}
	default:
		return linexpr{}, 0, errors.Wrap(ErrSyntax, "chained '@' in &disjoint element")
	}
	if len(expr.prods) > 0 {
		return linexpr{}, 0, errors.Wrap(ErrSyntax, "non-linear &disjoint element")
	}
	return expr, length, nil
}
