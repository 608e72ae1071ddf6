package boolsolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potassco/clingcon-core/pkg/clausecreator"
)

func newLits(s *Solver, n int) []clausecreator.Lit {
	cc := s.Creator()
	out := make([]clausecreator.Lit, n)
	for i := range out {
		out[i] = cc.AddLiteral()
	}
	return out
}

func TestTrueLitIsFixed(t *testing.T) {
	s := New()
	a := s.Assignment()
	assert.True(t, a.IsTrue(clausecreator.TrueLit))
	assert.True(t, a.IsFalse(clausecreator.FalseLit))
	assert.True(t, a.IsFixed(clausecreator.TrueLit))
}

func TestUnitPropagation(t *testing.T) {
	s := New()
	ls := newLits(s, 2)
	require.True(t, s.AddClause([]clausecreator.Lit{ls[0]}, clausecreator.KindInit))
	require.True(t, s.AddClause([]clausecreator.Lit{ls[0].Negation(), ls[1]}, clausecreator.KindInit))
	require.True(t, s.Propagate())
	assert.True(t, s.Assignment().IsTrue(ls[0]))
	assert.True(t, s.Assignment().IsTrue(ls[1]))
}

func TestSolveSat(t *testing.T) {
	s := New()
	ls := newLits(s, 2)
	require.True(t, s.AddClause([]clausecreator.Lit{ls[0], ls[1]}, clausecreator.KindInit))
	assert.Equal(t, Sat, s.Solve(nil))
}

func TestSolveUnsat(t *testing.T) {
	s := New()
	ls := newLits(s, 1)
	require.True(t, s.AddClause([]clausecreator.Lit{ls[0]}, clausecreator.KindInit))
	require.True(t, s.AddClause([]clausecreator.Lit{ls[0].Negation()}, clausecreator.KindInit))
	assert.Equal(t, Unsat, s.Solve(nil))
}

func TestSolveBacktracks(t *testing.T) {
	s := New()
	ls := newLits(s, 2)
	// (a | b) & (!a | b): any model has b.
	require.True(t, s.AddClause([]clausecreator.Lit{ls[0], ls[1]}, clausecreator.KindInit))
	require.True(t, s.AddClause([]clausecreator.Lit{ls[0].Negation(), ls[1]}, clausecreator.KindInit))
	require.Equal(t, Sat, s.Solve(nil))
	assert.True(t, s.Assignment().IsTrue(ls[1]))
}

func TestWeightConstraintPropagates(t *testing.T) {
	s := New()
	ls := newLits(s, 2)
	// 2*a + 1*b >= 2 forces a outright: without it at most 1 is reachable.
	require.True(t, s.AddWeightConstraint(ls, []int{2, 1}, 2, clausecreator.KindInit))
	require.True(t, s.Propagate())
	assert.True(t, s.Assignment().IsTrue(ls[0]))
	assert.Equal(t, clausecreator.Unknown, s.Assignment().Value(ls[1]))
}

func TestWeightConstraintConflict(t *testing.T) {
	s := New()
	ls := newLits(s, 1)
	require.True(t, s.AddClause([]clausecreator.Lit{ls[0].Negation()}, clausecreator.KindInit))
	require.True(t, s.Propagate())
	assert.False(t, s.AddWeightConstraint(ls, []int{1}, 2, clausecreator.KindInit))
	assert.Equal(t, Unsat, s.Solve(nil))
}

func TestNegativeWeightNormalization(t *testing.T) {
	s := New()
	ls := newLits(s, 1)
	// -1*a >= 0 is equivalent to 1*(!a) >= 1, forcing !a.
	require.True(t, s.AddWeightConstraint(ls, []int{-1}, 0, clausecreator.KindInit))
	require.True(t, s.Propagate())
	assert.True(t, s.Assignment().IsFalse(ls[0]))
}

func TestSolveEnumeratesWithOnModel(t *testing.T) {
	s := New()
	newLits(s, 2)
	models := 0
	status := s.Solve(func() bool {
		models++
		return models < 3
	})
	assert.Equal(t, Sat, status)
	assert.Equal(t, 3, models)
}

// countingTheory records the callback protocol: Propagate for watched
// literals, Check at each fixpoint, Undo on backtrack.
type countingTheory struct {
	propagates int
	checks     int
	undos      int
}

func (c *countingTheory) Propagate(cc clausecreator.Creator, level int, changes []clausecreator.Lit) bool {
	c.propagates++
	return true
}

func (c *countingTheory) Check(cc clausecreator.Creator) bool {
	c.checks++
	return true
}

func (c *countingTheory) Undo(level int) { c.undos++ }

func (c *countingTheory) Decide(cc clausecreator.Creator) (clausecreator.Lit, bool) {
	return 0, false
}

func TestTheoryCallbacks(t *testing.T) {
	s := New()
	ls := newLits(s, 1)
	th := &countingTheory{}
	s.SetTheory(th)
	s.AddWatch(ls[0])
	require.True(t, s.AddClause([]clausecreator.Lit{ls[0]}, clausecreator.KindInit))

	require.Equal(t, Sat, s.Solve(nil))
	assert.Greater(t, th.checks, 0)
	assert.Greater(t, th.propagates, 0)
}
