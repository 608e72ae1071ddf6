package covar

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potassco/clingcon-core/pkg/intval"
)

func TestSimplifyMergesAndFoldsConstants(t *testing.T) {
	a := Var(0)
	vec := CoVarVec{
		{Coeff: 0, Var: a},
		{Coeff: 1, Var: InvalidVar},
		{Coeff: 2, Var: InvalidVar},
		{Coeff: 3, Var: a},
		{Coeff: 4, Var: a},
	}
	out, rhs, err := Simplify(vec, true)
	require.NoError(t, err)
	assert.Equal(t, CoVarVec{{Coeff: 7, Var: a}}, out)
	assert.Equal(t, intval.Val(-3), rhs)
}

func TestSimplifyOverflow(t *testing.T) {
	a := Var(0)
	vec := CoVarVec{
		{Coeff: intval.MaxVal, Var: a},
		{Coeff: intval.MaxVal, Var: a},
	}
	_, _, err := Simplify(vec, true)
	assert.True(t, errors.Is(err, intval.ErrOverflow))
}

func TestSimplifyKeepsZeroWhenAsked(t *testing.T) {
	a := Var(0)
	vec := CoVarVec{
		{Coeff: 2, Var: a},
		{Coeff: -2, Var: a},
	}
	out, _, err := Simplify(vec, false)
	require.NoError(t, err)
	assert.Equal(t, CoVarVec{{Coeff: 0, Var: a}}, out)

	out, _, err = Simplify(vec, true)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSimplifyIdempotent(t *testing.T) {
	vec := CoVarVec{
		{Coeff: 2, Var: Var(1)},
		{Coeff: 5, Var: InvalidVar},
		{Coeff: 3, Var: Var(0)},
		{Coeff: -1, Var: Var(1)},
	}
	once, rhs1, err := Simplify(vec, true)
	require.NoError(t, err)
	twice, rhs2, err := Simplify(once, true)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
	assert.Equal(t, intval.Val(0), rhs2)
	assert.Equal(t, intval.Val(-5), rhs1)
}

// Simplify preserves the expression's value: sum over the original vec plus
// the returned rhs equals the sum over the simplified vec, for any
// assignment.
func TestSimplifyPreservesValue(t *testing.T) {
	vec := CoVarVec{
		{Coeff: 2, Var: Var(0)},
		{Coeff: 7, Var: InvalidVar},
		{Coeff: -3, Var: Var(1)},
		{Coeff: 4, Var: Var(0)},
	}
	out, rhs, err := Simplify(vec, false)
	require.NoError(t, err)

	assignments := [][2]intval.Val{{0, 0}, {1, -1}, {5, 9}, {-4, 3}}
	for _, asg := range assignments {
		eval := func(v CoVarVec, withConst bool) int64 {
			var sum int64
			for _, p := range v {
				if p.Var == InvalidVar {
					if withConst {
						sum += int64(p.Coeff)
					}
					continue
				}
				sum += int64(p.Coeff) * int64(asg[p.Var])
			}
			return sum
		}
		assert.Equal(t, eval(vec, true)+int64(rhs), eval(out, false), "assignment %v", asg)
	}
}

func TestSortByVar(t *testing.T) {
	vec := CoVarVec{
		{Coeff: 1, Var: Var(2)},
		{Coeff: 2, Var: Var(0)},
		{Coeff: 3, Var: Var(1)},
	}
	sorted := SortByVar(vec)
	assert.Equal(t, Var(0), sorted[0].Var)
	assert.Equal(t, Var(1), sorted[1].Var)
	assert.Equal(t, Var(2), sorted[2].Var)
	// The original is untouched.
	assert.Equal(t, Var(2), vec[0].Var)
}
