// Package covar defines the coefficient/variable vector data model shared by
// the engine, constraint states, and the theory parser: a dense variable
// index type and the canonical linear-expression representation (spec §3).
package covar

import (
	"sort"

	"github.com/potassco/clingcon-core/pkg/intval"
)

// Var is a dense, non-negative index into a Solver's variable table.
type Var int32

// InvalidVar denotes "no variable" — used as the constant slot of a Pair.
const InvalidVar Var = -1

// Pair is one coefficient/variable term of a linear expression. A Pair with
// Var == InvalidVar contributes its Coeff as a constant.
type Pair struct {
	Coeff intval.Val
	Var   Var
}

// CoVarVec is an ordered sequence of (coefficient, variable) pairs
// representing the linear expression sum(Coeff_i * Var_i). In canonical
// form it has no duplicate variables, no zero coefficients (unless the
// caller explicitly asked to keep them), and no constant pairs — those are
// folded into the right-hand side by Simplify.
type CoVarVec []Pair

// Clone returns an independent copy of the vector.
func (v CoVarVec) Clone() CoVarVec {
	out := make(CoVarVec, len(v))
	copy(out, v)
	return out
}

// Simplify canonicalizes vec: INVALID_VAR pairs are folded into the
// returned rhs (by subtraction, matching spec §6 "folds INVALID_VAR pairs
// into rhs (subtracting)"), duplicate variables are merged by summing their
// coefficients, and, if dropZero is set, merged pairs whose coefficient
// became zero are dropped. Overflow is checked by bounding
// rhs + sum(|coeff_i|) * max(|MinVal|, |MaxVal|) within 64-bit range before
// any individual checked add is performed, matching spec §6.
func Simplify(vec CoVarVec, dropZero bool) (CoVarVec, intval.Val, error) {
	// Overflow pre-check per spec §6: rhs + sum(|coeff_i|)*max(|MinVal|,|MaxVal|)
	// must fit in 64 bits before any folding is attempted.
	magnitude := int64(intval.MaxVal)
	if m := int64(-intval.MinVal); m > magnitude {
		magnitude = m
	}
	var widest int64
	for _, p := range vec {
		widest += abs64(int64(p.Coeff)) * magnitude
		if widest < 0 { // wrapped around int64
			return nil, 0, intval.ErrOverflow
		}
	}

	merged := make(map[Var]intval.Val)
	order := make([]Var, 0, len(vec))
	var rhs intval.Val
	var err error
	for _, p := range vec {
		if p.Var == InvalidVar {
			rhs, err = intval.Sub(rhs, p.Coeff)
			if err != nil {
				return nil, 0, err
			}
			continue
		}
		if _, seen := merged[p.Var]; !seen {
			order = append(order, p.Var)
			merged[p.Var] = 0
		}
		merged[p.Var], err = intval.Add(merged[p.Var], p.Coeff)
		if err != nil {
			return nil, 0, err
		}
	}
	// check_valid_value (spec §4.1): simplification results must fit the
	// narrower [MinVal, MaxVal] problem range, not merely int32 range.
	if err := intval.CheckValid(rhs); err != nil {
		return nil, 0, err
	}

	out := make(CoVarVec, 0, len(order))
	for _, v := range order {
		c := merged[v]
		if err := intval.CheckValid(c); err != nil {
			return nil, 0, err
		}
		if c == 0 && dropZero {
			continue
		}
		out = append(out, Pair{Coeff: c, Var: v})
	}
	return out, rhs, nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// SortByVar returns a copy of vec sorted ascending by Var, the ordering the
// Sum/Minimize constraint states keep their watch lists in.
func SortByVar(vec CoVarVec) CoVarVec {
	out := vec.Clone()
	sort.Slice(out, func(i, j int) bool { return out[i].Var < out[j].Var })
	return out
}
