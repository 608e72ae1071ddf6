// Package tseitin converts small Boolean formulas over existing host
// literals into clauses, allocating auxiliary literals on demand through the
// clause-creator boundary. It backs the exclusive-or lowering of "!="
// constraints and the clause emission of the translation hook (spec §4.5.4,
// §6 "Constraint normalization").
package tseitin

import (
	"math"
	"strings"

	"github.com/potassco/clingcon-core/pkg/clausecreator"
)

// A Formula is any kind of boolean formula over host literals, not
// necessarily in CNF.
type Formula interface {
	nnf() Formula
	String() string
}

// The "true" constant.
type trueConst struct{}

// True is the constant denoting a tautology.
var True Formula = trueConst{}

func (t trueConst) nnf() Formula   { return t }
func (t trueConst) String() string { return "⊤" }

// The "false" constant.
type falseConst struct{}

// False is the constant denoting a contradiction.
var False Formula = falseConst{}

func (f falseConst) nnf() Formula   { return f }
func (f falseConst) String() string { return "⊥" }

type lit struct {
	l clausecreator.Lit
}

// Lit lifts an existing host literal into a formula.
func Lit(l clausecreator.Lit) Formula {
	return lit{l: l}
}

func (l lit) nnf() Formula   { return l }
func (l lit) String() string { return l.l.String() }

// Not represents a negation. It negates the given subformula.
func Not(f Formula) Formula {
	return not{f}
}

type not [1]Formula

func (n not) nnf() Formula {
	switch f := n[0].(type) {
	case lit:
		return lit{l: f.l.Negation()}
	case not:
		return f[0].nnf()
	case and:
		subs := make([]Formula, len(f))
		for i, sub := range f {
			subs[i] = not{sub}.nnf()
		}
		return or(subs).nnf()
	case or:
		subs := make([]Formula, len(f))
		for i, sub := range f {
			subs[i] = not{sub}.nnf()
		}
		return and(subs).nnf()
	case trueConst:
		return False
	case falseConst:
		return True
	default:
		panic("invalid formula type")
	}
}

func (n not) String() string {
	return "not(" + n[0].String() + ")"
}

// And generates a conjunction of subformulas.
func And(subs ...Formula) Formula {
	return and(subs)
}

type and []Formula

func (a and) nnf() Formula {
	var res and
	for _, s := range a {
		nnf := s.nnf()
		switch nnf := nnf.(type) {
		case and: // Simplify: "and"s in the "and" get to the higher level
			res = append(res, nnf...)
		case trueConst: // True is ignored
		case falseConst:
			return False
		default:
			res = append(res, nnf)
		}
	}
	if len(res) == 1 {
		return res[0]
	}
	if len(res) == 0 {
		return True
	}
	return res
}

func (a and) String() string {
	strs := make([]string, len(a))
	for i, f := range a {
		strs[i] = f.String()
	}
	return "and(" + strings.Join(strs, ", ") + ")"
}

// Or generates a disjunction of subformulas.
func Or(subs ...Formula) Formula {
	return or(subs)
}

type or []Formula

func (o or) nnf() Formula {
	var res or
	for _, s := range o {
		nnf := s.nnf()
		switch nnf := nnf.(type) {
		case or: // Simplify: "or"s in the "or" get to the higher level
			res = append(res, nnf...)
		case falseConst: // False is ignored
		case trueConst:
			return True
		default:
			res = append(res, nnf)
		}
	}
	if len(res) == 1 {
		return res[0]
	}
	if len(res) == 0 {
		return False
	}
	return res
}

func (o or) String() string {
	strs := make([]string, len(o))
	for i, f := range o {
		strs[i] = f.String()
	}
	return "or(" + strings.Join(strs, ", ") + ")"
}

// Implies indicates a subformula implies another one.
func Implies(f1, f2 Formula) Formula {
	return or{not{f1}, f2}
}

// Eq indicates a subformula is equivalent to another one.
func Eq(f1, f2 Formula) Formula {
	return and{or{not{f1}, f2}, or{f1, not{f2}}}
}

// Xor indicates exactly one of the two given subformulas is true.
func Xor(f1, f2 Formula) Formula {
	return and{or{not{f1}, not{f2}}, or{f1, f2}}
}

// Unique generates clauses indicating exactly one of the given literals is
// true. For more than four literals the commander grid encoding is used,
// allocating auxiliary literals through cc to keep the clause count near
// O(n*sqrt(n)) instead of quadratic.
func Unique(cc clausecreator.Creator, lits ...clausecreator.Lit) Formula {
	return uniqueRec(cc, lits...)
}

// uniqueSmall generates clauses indicating exactly one of the given literals
// is true. It is suitable when the number of literals is small (typically,
// <= 4).
func uniqueSmall(lits ...clausecreator.Lit) Formula {
	res := make([]Formula, 1, 1+(len(lits)*len(lits)-1)/2)
	asForms := make([]Formula, len(lits))
	for i, l := range lits {
		asForms[i] = Lit(l)
	}
	res[0] = Or(asForms...)
	for i := 0; i < len(lits)-1; i++ {
		for j := i + 1; j < len(lits); j++ {
			res = append(res, Or(Not(asForms[i]), Not(asForms[j])))
		}
	}
	return And(res...)
}

func uniqueRec(cc clausecreator.Creator, lits ...clausecreator.Lit) Formula {
	nbLits := len(lits)
	if nbLits <= 4 {
		return uniqueSmall(lits...)
	}
	sqrt := math.Sqrt(float64(nbLits))
	nbLines := int(sqrt + 0.5)
	lines := make([]clausecreator.Lit, nbLines)
	for i := range lines {
		lines[i] = cc.AddLiteral()
	}
	nbCols := int(math.Ceil(sqrt))
	cols := make([]clausecreator.Lit, nbCols)
	for i := range cols {
		cols[i] = cc.AddLiteral()
	}
	res := make([]Formula, 0, 2*nbLits+2)
	for i, l := range lits {
		res = append(res, Or(Not(Lit(l)), Lit(lines[i/nbCols])))
		res = append(res, Or(Not(Lit(l)), Lit(cols[i%nbCols])))
	}
	res = append(res, uniqueRec(cc, lines...))
	res = append(res, uniqueRec(cc, cols...))
	return And(res...)
}

// Emit converts f to CNF, allocating auxiliary literals for disjunctions of
// conjunctions through cc, and posts every resulting clause tagged with
// kind. ok is false as soon as a posted clause conflicts unresolvably.
func Emit(cc clausecreator.Creator, f Formula, kind clausecreator.ClauseKind) bool {
	for _, clause := range cnfRec(f.nnf(), cc) {
		if !cc.AddClause(clause, kind) {
			return false
		}
	}
	return true
}

// cnfRec transforms the f NNF formula into CNF clauses over host literals.
func cnfRec(f Formula, cc clausecreator.Creator) [][]clausecreator.Lit {
	switch f := f.(type) {
	case lit:
		return [][]clausecreator.Lit{{f.l}}
	case and:
		var res [][]clausecreator.Lit
		for _, sub := range f {
			res = append(res, cnfRec(sub, cc)...)
		}
		return res
	case or:
		var res [][]clausecreator.Lit
		var lits []clausecreator.Lit
		for _, sub := range f {
			switch sub := sub.(type) {
			case lit:
				lits = append(lits, sub.l)
			case and:
				d := cc.AddLiteral()
				lits = append(lits, d)
				for _, sub2 := range sub {
					cl := cnfRec(sub2, cc)[0]
					cl = append(cl, d.Negation())
					res = append(res, cl)
				}
			default:
				panic("unexpected formula in or")
			}
		}
		res = append(res, lits)
		return res
	case trueConst: // True clauses are ignored
		return nil
	case falseConst:
		return [][]clausecreator.Lit{{}}
	default:
		panic("invalid NNF formula")
	}
}
