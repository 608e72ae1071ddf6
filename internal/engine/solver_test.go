package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potassco/clingcon-core/internal/boolsolver"
	"github.com/potassco/clingcon-core/pkg/clausecreator"
	"github.com/potassco/clingcon-core/pkg/interval"
)

func newSolver(t *testing.T, min, max Val) (*Solver, *boolsolver.Solver) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MinInt = min
	cfg.MaxInt = max
	return NewSolver(cfg, nil), boolsolver.New()
}

// recorder counts Update/Undo/Propagate calls so enqueue and diff plumbing
// can be observed without a real constraint.
type recorder struct {
	header     Header
	updates    int
	undos      int
	propagates int
	lastLower  Val
	lastUpper  Val
}

func (r *recorder) Hdr() *Header { return &r.header }

func (r *recorder) Update(s *Solver, v Var, coeff, lowerDelta, upperDelta Val) error {
	r.updates++
	r.lastLower, r.lastUpper = lowerDelta, upperDelta
	return nil
}

func (r *recorder) Undo(s *Solver, v Var, coeff, lowerDelta, upperDelta Val) {
	r.undos++
}

func (r *recorder) Propagate(s *Solver, cc clausecreator.Creator) (bool, error) {
	r.propagates++
	return true, nil
}

func (r *recorder) Translate(s *Solver, cc clausecreator.Creator) (bool, []ConstraintState, bool, error) {
	return true, nil, false, nil
}

func TestPropagateTightensUpper(t *testing.T) {
	s, host := newSolver(t, 0, 10)
	cc := host.Creator()
	x := s.AddVar()
	lit := s.VarState(x).GetLiteral(cc, 5)

	require.True(t, s.Propagate(cc, 1, []clausecreator.Lit{lit}))
	assert.Equal(t, Val(5), s.VarState(x).UpperBound())
	assert.Equal(t, Val(0), s.VarState(x).LowerBound())
}

func TestPropagateTightensLower(t *testing.T) {
	s, host := newSolver(t, 0, 10)
	cc := host.Creator()
	x := s.AddVar()
	lit := s.VarState(x).GetLiteral(cc, 5)

	require.True(t, s.Propagate(cc, 1, []clausecreator.Lit{lit.Negation()}))
	assert.Equal(t, Val(6), s.VarState(x).LowerBound())
	assert.Equal(t, Val(10), s.VarState(x).UpperBound())
}

func TestPropagateUndoRestores(t *testing.T) {
	s, host := newSolver(t, 0, 10)
	cc := host.Creator()
	x := s.AddVar()
	y := s.AddVar()
	litX := s.VarState(x).GetLiteral(cc, 5)
	litY := s.VarState(y).GetLiteral(cc, 2)

	rec := &recorder{}
	s.AddConstraintState(rec)
	s.AddWatch(x, 1, rec)
	s.AddWatch(y, 1, rec)

	require.True(t, s.Propagate(cc, 1, []clausecreator.Lit{litX, litY.Negation()}))
	ok, err := s.Check(cc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, rec.updates)
	assert.Equal(t, 1, rec.propagates)

	s.UndoLevel(1)
	assert.Equal(t, Val(10), s.VarState(x).UpperBound())
	assert.Equal(t, Val(0), s.VarState(y).LowerBound())
	assert.Equal(t, 2, rec.undos)
	assert.False(t, rec.header.InTodo)
}

func TestUndoBeforeCheckDropsPendingDiffs(t *testing.T) {
	s, host := newSolver(t, 0, 10)
	cc := host.Creator()
	x := s.AddVar()
	lit := s.VarState(x).GetLiteral(cc, 5)

	rec := &recorder{}
	s.AddConstraintState(rec)
	s.AddWatch(x, 1, rec)

	require.True(t, s.Propagate(cc, 1, []clausecreator.Lit{lit}))
	// No Check in between: the diff never reached the watcher, so Undo must
	// not call Undo on it either.
	s.UndoLevel(1)
	assert.Equal(t, 0, rec.updates)
	assert.Equal(t, 0, rec.undos)
	assert.Equal(t, Val(10), s.VarState(x).UpperBound())
}

func TestInactiveRestoredOnUndo(t *testing.T) {
	s, host := newSolver(t, 0, 10)
	cc := host.Creator()
	x := s.AddVar()
	lit := s.VarState(x).GetLiteral(cc, 5)

	rec := &recorder{}
	s.AddConstraintState(rec)

	require.True(t, s.Propagate(cc, 1, []clausecreator.Lit{lit}))
	s.Deactivate(rec)
	assert.False(t, rec.header.Active())

	s.UndoLevel(1)
	assert.True(t, rec.header.Active())
}

func TestRemovedWatchRestoredOnUndo(t *testing.T) {
	s, host := newSolver(t, 0, 10)
	cc := host.Creator()
	x := s.AddVar()
	lit := s.VarState(x).GetLiteral(cc, 5)

	rec := &recorder{}
	s.AddConstraintState(rec)
	s.AddWatch(x, 1, rec)

	require.True(t, s.Propagate(cc, 1, []clausecreator.Lit{lit}))
	s.RemoveWatch(x, rec)

	s.UndoLevel(1)

	// Tighten again on a new level: the watch must be back.
	lit2 := s.VarState(x).GetLiteral(cc, 3)
	require.True(t, s.Propagate(cc, 1, []clausecreator.Lit{lit2}))
	ok, err := s.Check(cc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, rec.updates)
}

func TestChainPropagationForcesNeighbor(t *testing.T) {
	s, host := newSolver(t, 0, 10)
	cc := host.Creator()
	x := s.AddVar()
	l3 := s.VarState(x).GetLiteral(cc, 3)
	l7 := s.VarState(x).GetLiteral(cc, 7)

	require.True(t, host.AddClause([]clausecreator.Lit{l3}, clausecreator.KindSearch))
	require.True(t, host.Propagate())
	require.True(t, s.Propagate(cc, 0, []clausecreator.Lit{l3}))
	require.True(t, host.Propagate())
	assert.True(t, host.Assignment().IsTrue(l7), "x<=3 must imply x<=7")
}

func TestDecideMidpointWithBias(t *testing.T) {
	s, host := newSolver(t, -3, 3)
	cc := host.Creator()
	s.AddVar()

	lit, ok := s.Decide(cc)
	require.True(t, ok)
	// midpoint(-3, 3) = 0, and order literals at value >= 0 are negated.
	assert.False(t, lit.IsPositive())

	entries := 0
	for _, e := range s.VarState(0).With() {
		assert.Equal(t, Val(0), e.Value)
		entries++
	}
	assert.Equal(t, 1, entries)
}

func TestDecideSkipsSingletons(t *testing.T) {
	s, host := newSolver(t, 2, 2)
	s.AddVar()
	_, ok := s.Decide(host.Creator())
	assert.False(t, ok)
}

func TestAddSimplePositiveCoefficient(t *testing.T) {
	s, host := newSolver(t, 0, 10)
	cc := host.Creator()
	x := s.AddVar()
	lit := cc.AddLiteral()

	// lit <-> 2*x <= 7, i.e. x <= 3.
	require.True(t, s.AddSimple(cc, lit, 2, x, 7, true))
	got, found := s.VarState(x).Literal(3)
	require.True(t, found)
	assert.Equal(t, lit, got)
}

func TestAddSimpleNegativeCoefficient(t *testing.T) {
	s, host := newSolver(t, 0, 10)
	cc := host.Creator()
	x := s.AddVar()
	lit := cc.AddLiteral()

	// lit <-> -2*x <= -7, i.e. x >= 4, i.e. not(x <= 3).
	require.True(t, s.AddSimple(cc, lit, -2, x, -7, true))
	got, found := s.VarState(x).Literal(3)
	require.True(t, found)
	assert.Equal(t, lit.Negation(), got)
}

func TestAddDomSingleIntervalPostsTwoImplications(t *testing.T) {
	s, host := newSolver(t, 0, 20)
	cc := host.Creator()
	x := s.AddVar()

	require.True(t, s.AddDom(cc, clausecreator.TrueLit, x, interval.New(interval.Range{Lo: 3, Hi: 8})))
	require.True(t, host.Propagate())

	assign := host.Assignment()
	l2, found := s.VarState(x).Literal(2)
	require.True(t, found)
	assert.True(t, assign.IsFalse(l2), "x >= 3 endpoint")
	l7, found := s.VarState(x).Literal(7)
	require.True(t, found)
	assert.True(t, assign.IsTrue(l7), "x <= 7 endpoint")
	// Exactly the two endpoint literals exist, no gap clauses.
	assert.Len(t, s.VarState(x).With(), 2)
}

func TestAddDomGapForcesJump(t *testing.T) {
	s, host := newSolver(t, 0, 20)
	cc := host.Creator()
	x := s.AddVar()

	set := interval.New(interval.Range{Lo: 1, Hi: 3}, interval.Range{Lo: 7, Hi: 10})
	require.True(t, s.AddDom(cc, clausecreator.TrueLit, x, set))
	require.True(t, host.Propagate())

	// Assert x <= 6 (inside the gap's reach): the gap clause must force
	// x <= 2.
	l6, found := s.VarState(x).Literal(6)
	require.True(t, found)
	require.True(t, host.AddClause([]clausecreator.Lit{l6}, clausecreator.KindSearch))
	require.True(t, host.Propagate())
	l2, found := s.VarState(x).Literal(2)
	require.True(t, found)
	assert.True(t, host.Assignment().IsTrue(l2))
}
