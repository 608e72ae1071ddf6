package propagator_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potassco/clingcon-core/internal/boolsolver"
	"github.com/potassco/clingcon-core/internal/constraints"
	"github.com/potassco/clingcon-core/internal/theory"
	"github.com/potassco/clingcon-core/pkg/propagator"
	"github.com/potassco/clingcon-core/pkg/clausecreator"
	"github.com/potassco/clingcon-core/pkg/covar"
	"github.com/potassco/clingcon-core/pkg/interval"
	"github.com/potassco/clingcon-core/pkg/intval"
)

// solveProgram grounds src, runs the search, and returns the status plus the
// extension symbols of the last model.
func solveProgram(t *testing.T, src string, opts ...propagator.Option) (boolsolver.Status, []string, *propagator.Propagator) {
	t.Helper()
	program, err := theory.Parse("test", src)
	require.NoError(t, err)

	host := boolsolver.New()
	p := propagator.New(host, opts...)
	require.NoError(t, theory.NewGrounder(p).Ground(program))

	ok, err := p.Init(1)
	require.NoError(t, err)
	if !ok {
		return boolsolver.Unsat, nil, p
	}
	thread := p.Thread(0)
	host.SetTheory(thread)

	var last []string
	status := host.Solve(func() bool {
		symbols, merr := p.OnModel(thread)
		require.NoError(t, merr)
		last = symbols
		return p.MinimizeBound() != nil
	})
	require.NoError(t, thread.Err())
	return status, last, p
}

func value(t *testing.T, p *propagator.Propagator, symbol string) intval.Val {
	t.Helper()
	v, ok := p.LookupVariable(symbol)
	require.True(t, ok, "variable %s", symbol)
	return p.GetValue(p.Thread(0), v)
}

// Scenario: unit bound propagation (spec §8.1).
func TestUnitBoundPropagation(t *testing.T) {
	status, _, p := solveProgram(t, "&dom{0..10} = x. &sum{x} >= 3. &sum{x} <= 5.")
	require.Equal(t, boolsolver.Sat, status)

	x := value(t, p, "x")
	assert.GreaterOrEqual(t, x, intval.Val(3))
	assert.LessOrEqual(t, x, intval.Val(5))
}

// Scenario: reified implication (spec §8.2).
func TestReifiedImplication(t *testing.T) {
	status, _, p := solveProgram(t, "{a}. &dom{1..10} = x. &sum{x} >= 1 :- a.")
	require.Equal(t, boolsolver.Sat, status)

	x := value(t, p, "x")
	assert.GreaterOrEqual(t, x, intval.Val(1))
	assert.LessOrEqual(t, x, intval.Val(10))
}

// Scenario: distinct pigeonhole (spec §8.3).
func TestDistinctPigeonhole(t *testing.T) {
	status, _, _ := solveProgram(t, "&dom{1..2} = x. &dom{1..2} = y. &dom{1..2} = z. &distinct{x;y;z}.")
	assert.Equal(t, boolsolver.Unsat, status)
}

func TestDistinctSatisfiable(t *testing.T) {
	status, _, p := solveProgram(t, "&dom{1..3} = x. &dom{1..3} = y. &dom{1..3} = z. &distinct{x;y;z}.")
	require.Equal(t, boolsolver.Sat, status)

	vals := map[intval.Val]bool{}
	for _, sym := range []string{"x", "y", "z"} {
		vals[value(t, p, sym)] = true
	}
	assert.Len(t, vals, 3, "all three variables take different values")
}

// Scenario: minimize monotonicity (spec §8.4).
func TestMinimizeMonotonicity(t *testing.T) {
	status, last, p := solveProgram(t, "&dom{0..10} = x. &sum{x} >= 3. &minimize{x}.")
	require.Equal(t, boolsolver.Sat, status)

	// The last model is the optimum; search backtracked past it afterwards,
	// so the values live in the captured symbols, not the var states.
	joined := strings.Join(last, " ")
	assert.Contains(t, joined, "csp(x,3)")
	assert.Contains(t, joined, "csp_cost(3)")
	// The shared bound ends one below the optimum (tightened after the last
	// model, which no further model beat).
	assert.Equal(t, intval.Val(2), p.MinimizeBound().Load())
}

func TestMaximize(t *testing.T) {
	status, last, _ := solveProgram(t, "&dom{0..7} = x. &maximize{x}.")
	require.Equal(t, boolsolver.Sat, status)
	assert.Contains(t, strings.Join(last, " "), "csp(x,7)")
}

// Scenario: binary distinct is rewritten, not stated (spec §8 boundary).
func TestBinaryDistinctRewritten(t *testing.T) {
	status, _, p := solveProgram(t, "&dom{1..2} = x. &dom{1..2} = y. &distinct{x;y}.")
	require.Equal(t, boolsolver.Sat, status)
	assert.NotEqual(t, value(t, p, "x"), value(t, p, "y"))
	// No DistinctState was registered: the rewrite went through order-literal
	// bindings and exclusive-or clauses instead.
	for _, cs := range p.Thread(0).Solver().States() {
		_, isDistinct := cs.(*constraints.DistinctState)
		assert.False(t, isDistinct)
	}
}

func TestDisequality(t *testing.T) {
	status, _, p := solveProgram(t, "&dom{4..5} = x. &sum{x} != 4.")
	require.Equal(t, boolsolver.Sat, status)
	assert.Equal(t, intval.Val(5), value(t, p, "x"))
}

func TestIntegrityShifting(t *testing.T) {
	// ":- &sum{x} != 4." shifts to "&sum{x} = 4.".
	status, _, p := solveProgram(t, "&dom{0..10} = x. :- &sum{x} != 4.")
	require.Equal(t, boolsolver.Sat, status)
	assert.Equal(t, intval.Val(4), value(t, p, "x"))
}

func TestEqualityConstraint(t *testing.T) {
	status, _, p := solveProgram(t, "&dom{0..10} = x. &sum{x} = 6.")
	require.Equal(t, boolsolver.Sat, status)
	assert.Equal(t, intval.Val(6), value(t, p, "x"))
}

func TestMultiVariableSum(t *testing.T) {
	status, _, p := solveProgram(t, "&dom{0..5} = x. &dom{0..5} = y. &sum{x; y} >= 9.")
	require.Equal(t, boolsolver.Sat, status)
	assert.GreaterOrEqual(t, value(t, p, "x")+value(t, p, "y"), intval.Val(9))
}

func TestDisjointUnitLengths(t *testing.T) {
	status, _, p := solveProgram(t, "&dom{1..2} = x. &dom{1..2} = y. &disjoint{x@1; y@1}.")
	require.Equal(t, boolsolver.Sat, status)
	assert.NotEqual(t, value(t, p, "x"), value(t, p, "y"))
}

func TestDisjointLongLengths(t *testing.T) {
	status, _, p := solveProgram(t, "&dom{0..10} = x. &dom{0..10} = y. &disjoint{x@3; y@3}.")
	require.Equal(t, boolsolver.Sat, status)
	x, y := value(t, p, "x"), value(t, p, "y")
	if x < y {
		assert.GreaterOrEqual(t, y, x+3)
	} else {
		assert.GreaterOrEqual(t, x, y+3)
	}
}

func TestNonlinearProgram(t *testing.T) {
	status, _, p := solveProgram(t, "&dom{2..4} = x. &dom{2..4} = y. &nsum{x*y} <= 5.")
	require.Equal(t, boolsolver.Sat, status)
	assert.LessOrEqual(t, value(t, p, "x")*value(t, p, "y"), intval.Val(5))
}

func TestUnsatAtInit(t *testing.T) {
	status, _, _ := solveProgram(t, "&dom{1..2} = x. &sum{x} >= 5.")
	assert.Equal(t, boolsolver.Unsat, status)
}

func TestModelExtensionShowsVariables(t *testing.T) {
	status, last, _ := solveProgram(t, "&dom{3..3} = x. &dom{4..4} = y.")
	require.Equal(t, boolsolver.Sat, status)
	joined := strings.Join(last, " ")
	assert.Contains(t, joined, "csp(x,3)")
	assert.Contains(t, joined, "csp(y,4)")
}

func TestShowDirectiveFilters(t *testing.T) {
	status, last, _ := solveProgram(t, "&dom{3..3} = x. &dom{4..4} = y. &show{x}.")
	require.Equal(t, boolsolver.Sat, status)
	joined := strings.Join(last, " ")
	assert.Contains(t, joined, "csp(x,3)")
	assert.NotContains(t, joined, "csp(y,4)")
}

func TestBuilderRegistrationFrozenAfterInit(t *testing.T) {
	host := boolsolver.New()
	p := propagator.New(host)
	_, err := p.Init(1)
	require.NoError(t, err)

	err = p.AddConstraint(clausecreator.TrueLit, covar.CoVarVec{}, 0, false)
	assert.ErrorIs(t, err, propagator.ErrFrozen)
	err = p.AddMinimize(1, covar.InvalidVar)
	assert.ErrorIs(t, err, propagator.ErrFrozen)
}

func TestWorkerThreadGetsClonedState(t *testing.T) {
	host := boolsolver.New()
	p := propagator.New(host, propagator.WithBounds(0, 10))
	x := p.AddVariable("x")
	require.NoError(t, p.AddConstraint(clausecreator.TrueLit, covar.CoVarVec{{Coeff: 1, Var: x}, {Coeff: 1, Var: p.AddVariable("y")}}, 5, false))

	ok, err := p.Init(2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, p.Threads(), 2)

	master, worker := p.Thread(0), p.Thread(1)
	assert.Equal(t, master.Solver().NumVars(), worker.Solver().NumVars())
	assert.Equal(t, len(master.Solver().States()), len(worker.Solver().States()))
	// The worker's VarStates are copies, not aliases.
	worker.Solver().VarState(0).SetUpperBound(3)
	assert.NotEqual(t,
		worker.Solver().VarState(0).UpperBound(),
		master.Solver().VarState(0).UpperBound(),
	)
}

func TestAddDomReified(t *testing.T) {
	host := boolsolver.New()
	p := propagator.New(host, propagator.WithBounds(0, 20))
	x := p.AddVariable("x")
	lit := p.AddLiteral()
	require.NoError(t, p.AddDom(lit, x, interval.New(interval.Range{Lo: 3, Hi: 8})))
	ok, err := p.Init(1)
	require.NoError(t, err)
	require.True(t, ok)
	// A reified dom keeps a live constraint state.
	assert.Len(t, p.Thread(0).Solver().States(), 1)
}

func TestStatsSurface(t *testing.T) {
	_, _, p := solveProgram(t, "&dom{0..10} = x. &sum{x} >= 3. &sum{x} <= 5.")
	stats := p.Stats()
	assert.Equal(t, 1, stats.NumVariables)
	assert.Greater(t, stats.NumClauses, int64(0))
	assert.Len(t, stats.Threads, 1)
}
