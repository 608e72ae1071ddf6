package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potassco/clingcon-core/internal/boolsolver"
	"github.com/potassco/clingcon-core/pkg/clausecreator"
)

func newState(t *testing.T, min, max Val) (*VarState, clausecreator.Creator, *boolsolver.Solver) {
	t.Helper()
	host := boolsolver.New()
	return NewVarState(0, min, max, NewReverseMap()), host.Creator(), host
}

func TestGetLiteralBoundaries(t *testing.T) {
	vs, cc, host := newState(t, -10, 10)
	before := host.NbVars()

	assert.Equal(t, clausecreator.FalseLit, vs.GetLiteral(cc, -11))
	assert.Equal(t, clausecreator.TrueLit, vs.GetLiteral(cc, 10))
	assert.Equal(t, clausecreator.TrueLit, vs.GetLiteral(cc, 12))
	assert.Equal(t, before, host.NbVars(), "boundary literals must not allocate")
}

func TestGetLiteralBias(t *testing.T) {
	vs, cc, _ := newState(t, -10, 10)

	pos := vs.GetLiteral(cc, 3)
	assert.False(t, pos.IsPositive(), "literals at value >= 0 are negated")

	neg := vs.GetLiteral(cc, -3)
	assert.True(t, neg.IsPositive(), "literals at value < 0 stay positive")
}

func TestGetLiteralCaches(t *testing.T) {
	vs, cc, host := newState(t, -10, 10)

	first := vs.GetLiteral(cc, 5)
	n := host.NbVars()
	second := vs.GetLiteral(cc, 5)
	assert.Equal(t, first, second)
	assert.Equal(t, n, host.NbVars())
}

func TestWithFilters(t *testing.T) {
	vs, cc, _ := newState(t, -10, 10)
	for _, v := range []Val{-5, 0, 5} {
		vs.GetLiteral(cc, v)
	}

	values := func(entries []Entry2) []Val {
		out := make([]Val, len(entries))
		for i, e := range entries {
			out[i] = e.Value
		}
		return out
	}

	assert.Equal(t, []Val{-5, 0, 5}, values(vs.With()))
	assert.Equal(t, []Val{-5}, values(vs.WithLt(0)))
	assert.Equal(t, []Val{-5, 0}, values(vs.WithLe(0)))
	assert.Equal(t, []Val{5}, values(vs.WithGt(0)))
	assert.Equal(t, []Val{0, 5}, values(vs.WithGe(0)))
}

func TestChainNeighbors(t *testing.T) {
	vs, cc, _ := newState(t, -10, 10)
	l0 := vs.GetLiteral(cc, 0)
	l5 := vs.GetLiteral(cc, 5)

	above, ok := vs.ChainAbove(0)
	require.True(t, ok)
	assert.Equal(t, Val(5), above.Value)
	assert.Equal(t, l5, above.Lit)

	below, ok := vs.ChainBelow(5)
	require.True(t, ok)
	assert.Equal(t, Val(0), below.Value)
	assert.Equal(t, l0, below.Lit)

	_, ok = vs.ChainAbove(5)
	assert.False(t, ok)
	_, ok = vs.ChainBelow(0)
	assert.False(t, ok)
}

func TestPushPopBounds(t *testing.T) {
	vs, _, _ := newState(t, 0, 10)

	require.True(t, vs.PushUpper(1))
	assert.False(t, vs.PushUpper(1), "pushed at most once per level")
	vs.SetUpperBound(4)

	require.True(t, vs.PushLower(1))
	vs.SetLowerBound(2)

	delta, ok := vs.PopUpper()
	require.True(t, ok)
	assert.Equal(t, Val(6), delta)
	assert.Equal(t, Val(10), vs.UpperBound())

	delta, ok = vs.PopLower()
	require.True(t, ok)
	assert.Equal(t, Val(-2), delta)
	assert.Equal(t, Val(0), vs.LowerBound())

	_, ok = vs.PopUpper()
	assert.False(t, ok)
}

func TestUpdateLiteralAttachesFact(t *testing.T) {
	vs, cc, host := newState(t, 0, 10)

	truth := true
	ok, lit := vs.UpdateLiteral(cc, 0, 3, &truth)
	require.True(t, ok)
	assert.Equal(t, clausecreator.TrueLit, lit)

	got, found := vs.Literal(3)
	require.True(t, found)
	assert.Equal(t, clausecreator.TrueLit, got)

	// Replacing an existing non-fact literal posts an equivalence and swaps
	// the map entry.
	l5 := vs.GetLiteral(cc, 5)
	ok, lit = vs.UpdateLiteral(cc, 0, 5, &truth)
	require.True(t, ok)
	assert.Equal(t, clausecreator.TrueLit, lit)
	got, found = vs.Literal(5)
	require.True(t, found)
	assert.Equal(t, clausecreator.TrueLit, got)
	require.True(t, host.Propagate())
	assert.True(t, host.Assignment().IsTrue(l5), "old literal is forced by the equivalence clause")
}

func TestUpdateLiteralNonFactFallsBack(t *testing.T) {
	vs, cc, _ := newState(t, 0, 10)
	ok, lit := vs.UpdateLiteral(cc, 1, 3, nil)
	require.True(t, ok)
	assert.NotEqual(t, clausecreator.TrueLit, lit)
	assert.NotEqual(t, clausecreator.FalseLit, lit)
}

func TestBindLiteralStrictAdoptsLiteral(t *testing.T) {
	vs, cc, host := newState(t, 0, 10)
	ext := cc.AddLiteral()
	n := host.NbVars()

	require.True(t, vs.BindLiteral(cc, 4, ext, false, true))
	got, found := vs.Literal(4)
	require.True(t, found)
	assert.Equal(t, ext, got)
	assert.Equal(t, n, host.NbVars(), "strict binding adopts the literal instead of allocating")
}

func TestReverseMapRoundTrip(t *testing.T) {
	rm := NewReverseMap()
	vs := NewVarState(2, 0, 10, rm)
	host := boolsolver.New()
	lit := vs.GetLiteral(host.Creator(), 7)

	entries := rm.Lookup(lit)
	require.Len(t, entries, 1)
	assert.Equal(t, Var(2), entries[0].Var)
	assert.Equal(t, Val(7), entries[0].Value)
	assert.Equal(t, Upper, entries[0].Dir)

	neg := rm.Lookup(lit.Negation())
	require.Len(t, neg, 1)
	assert.Equal(t, Lower, neg[0].Dir)

	rm.Remove(lit, 2, 7, Upper)
	assert.Empty(t, rm.Lookup(lit))
}

func TestCloneIsIndependent(t *testing.T) {
	rm := NewReverseMap()
	vs := NewVarState(0, 0, 10, rm)
	host := boolsolver.New()
	lit := vs.GetLiteral(host.Creator(), 5)

	workerRm := NewReverseMap()
	clone := vs.Clone(workerRm)

	got, found := clone.Literal(5)
	require.True(t, found)
	assert.Equal(t, lit, got)
	require.Len(t, workerRm.Lookup(lit), 1)

	clone.SetUpperBound(5)
	assert.Equal(t, Val(10), vs.UpperBound())
}
