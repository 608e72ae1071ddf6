package theory

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"
	"github.com/pkg/errors"
)

var programParser = participle.MustBuild[Program](
	participle.Lexer(theoryLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(3),
)

// Parse parses a theory program. Syntax errors carry the source position the
// surface parser reported (spec §7 "Surfaced to the host at ground time");
// use Report for the caret rendering.
func Parse(name, src string) (*Program, error) {
	program, err := programParser.ParseString(name, src)
	if err != nil {
		return nil, errors.Wrap(err, "theory: parse failed")
	}
	return program, nil
}

// Report prints a caret-style diagnostic for a parse error to stderr-ish
// output via the color package; non-participle errors print plainly.
func Report(src string, err error) {
	pe, ok := errors.Cause(err).(participle.Error)
	if !ok {
		color.Red("error: %s", err)
		return
	}
	pos := pe.Position()
	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		color.Red("syntax error at unknown location: %s", err)
		return
	}
	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", pos.Column-1) + "^"

	color.Red("syntax error in %s at line %d, column %d:", pos.Filename, pos.Line, pos.Column)
	fmt.Println(line)
	color.HiRed(caret)
	fmt.Printf("-> %s\n", pe.Message())
}

// Unfold distributes every argument pool in t into the cross product of its
// alternatives (spec §6 normalization step 1), returning the ground
// instances left to right. A term without pools unfolds to itself.
func Unfold(t *Term) []*Term {
	return unfoldTerm(t)
}

func unfoldTerm(t *Term) []*Term {
	firsts := unfoldDots(t.First)
	restAlts := make([][]*DotsExpr, len(t.Rest))
	for i, r := range t.Rest {
		restAlts[i] = unfoldDots(r)
	}
	var out []*Term
	for _, f := range firsts {
		for _, rest := range crossSlices(restAlts) {
			out = append(out, &Term{First: f, Rest: rest})
		}
	}
	return out
}

func unfoldDots(d *DotsExpr) []*DotsExpr {
	firsts := unfoldAdd(d.First)
	restAlts := make([][]*AddExpr, len(d.Rest))
	for i, r := range d.Rest {
		restAlts[i] = unfoldAdd(r)
	}
	var out []*DotsExpr
	for _, f := range firsts {
		for _, rest := range crossSlices(restAlts) {
			out = append(out, &DotsExpr{First: f, Rest: rest})
		}
	}
	return out
}

func unfoldAdd(a *AddExpr) []*AddExpr {
	firsts := unfoldMul(a.First)
	restAlts := make([][]*AddOp, len(a.Rest))
	for i, op := range a.Rest {
		for _, m := range unfoldMul(op.Term) {
			restAlts[i] = append(restAlts[i], &AddOp{Op: op.Op, Term: m})
		}
	}
	var out []*AddExpr
	for _, f := range firsts {
		for _, rest := range crossSlices(restAlts) {
			out = append(out, &AddExpr{First: f, Rest: rest})
		}
	}
	return out
}

func unfoldMul(m *MulExpr) []*MulExpr {
	firsts := unfoldPow(m.First)
	restAlts := make([][]*MulOp, len(m.Rest))
	for i, op := range m.Rest {
		for _, p := range unfoldPow(op.Term) {
			restAlts[i] = append(restAlts[i], &MulOp{Op: op.Op, Term: p})
		}
	}
	var out []*MulExpr
	for _, f := range firsts {
		for _, rest := range crossSlices(restAlts) {
			out = append(out, &MulExpr{First: f, Rest: rest})
		}
	}
	return out
}

func unfoldPow(p *PowExpr) []*PowExpr {
	bases := unfoldUnary(p.Base)
	exps := []*PowExpr{nil}
	if p.Exp != nil {
		exps = unfoldPow(p.Exp)
	}
	var out []*PowExpr
	for _, b := range bases {
		for _, e := range exps {
			out = append(out, &PowExpr{Base: b, Exp: e})
		}
	}
	return out
}

func unfoldUnary(u *UnaryExpr) []*UnaryExpr {
	var out []*UnaryExpr
	for _, pr := range unfoldPrimary(u.Primary) {
		out = append(out, &UnaryExpr{Neg: u.Neg, Primary: pr})
	}
	return out
}

func unfoldPrimary(p *Primary) []*Primary {
	switch {
	case p.Number != nil:
		return []*Primary{p}
	case p.Paren != nil:
		var out []*Primary
		for _, t := range unfoldTerm(p.Paren) {
			out = append(out, &Primary{Paren: t})
		}
		return out
	default:
		argAlts := make([][]*Pool, len(p.Func.Args))
		for i, pool := range p.Func.Args {
			for _, alt := range pool.Alternatives {
				for _, t := range unfoldTerm(alt) {
					argAlts[i] = append(argAlts[i], &Pool{Alternatives: []*Term{t}})
				}
			}
		}
		var out []*Primary
		for _, args := range crossSlices(argAlts) {
			out = append(out, &Primary{Func: &FuncTerm{Name: p.Func.Name, Args: args}})
		}
		return out
	}
}

// crossSlices returns the cross product of the alternative lists, preserving
// left-to-right order; an empty input yields one empty combination.
func crossSlices[T any](alts [][]T) [][]T {
	out := [][]T{{}}
	for _, choices := range alts {
		var next [][]T
		for _, prefix := range out {
			for _, c := range choices {
				row := make([]T, len(prefix), len(prefix)+1)
				copy(row, prefix)
				next = append(next, append(row, c))
			}
		}
		out = next
	}
	return out
}
