package constraints

import (
	"sync/atomic"

	"github.com/potassco/clingcon-core/internal/engine"
	"github.com/potassco/clingcon-core/pkg/clausecreator"
	"github.com/potassco/clingcon-core/pkg/covar"
	"github.com/potassco/clingcon-core/pkg/intval"
)

// MinimizeBound is the solver-wide, monotonically-tightening upper bound on
// the objective (spec §4.5.2 "the minimize bound is shared across all
// threads and only ever tightened"). It is read far more often than written
// (every Minimize propagation on every thread loads it; only a found model
// writes it), so a CAS loop over an int64 is preferred here to a mutex — the
// same trade-off the teacher's own solver makes for its shared restart
// counters.
type MinimizeBound struct {
	v int64
}

// NewMinimizeBound creates a bound starting at the given (loose) initial
// value — typically intval.MaxVal scaled by the objective's coefficients,
// or an explicit starting bound supplied by the caller.
func NewMinimizeBound(initial intval.Val) *MinimizeBound {
	return &MinimizeBound{v: int64(initial)}
}

// Load reads the current bound.
func (b *MinimizeBound) Load() intval.Val { return intval.Val(atomic.LoadInt64(&b.v)) }

// Tighten lowers the bound to newBound if it is stricter than the bound
// currently stored, and is a no-op otherwise — callers never need to check
// first (spec §4.5.2 "update_minimize... only ever moves the bound down").
func (b *MinimizeBound) Tighten(newBound intval.Val) {
	for {
		cur := atomic.LoadInt64(&b.v)
		if int64(newBound) >= cur {
			return
		}
		if atomic.CompareAndSwapInt64(&b.v, cur, int64(newBound)) {
			return
		}
	}
}

// MinimizeState implements "sum(coeff_i*v_i) + adjust <= minimize_bound"
// (spec §4.5.2): propagation-wise identical to Sum, except the right-hand
// side is read from a thread-shared atomic instead of fixed at construction,
// the constraint is never reified, and every thread's copy remembers the last
// shared bound it propagated against (lastSeenBound), so that whenever the
// live bound is tighter than that, the thread's next check() re-examines the
// constraint regardless of the decision level (spec §9).
type MinimizeState struct {
	header engine.Header

	Terms  covar.CoVarVec
	Adjust intval.Val
	Bound  *MinimizeBound

	minSum *intval.Sum64
	maxSum *intval.Sum64

	lastSeenBound intval.Val
}

var _ engine.ConstraintState = (*MinimizeState)(nil)

// NewMinimize creates a Minimize constraint state over terms + adjust <=
// bound. Terms are sorted by variable for the same reason Sum's are.
func NewMinimize(terms covar.CoVarVec, adjust intval.Val, bound *MinimizeBound) *MinimizeState {
	return &MinimizeState{
		Terms:         covar.SortByVar(terms),
		Adjust:        adjust,
		Bound:         bound,
		minSum:        intval.NewSum64(),
		maxSum:        intval.NewSum64(),
		lastSeenBound: bound.Load(),
	}
}

// Hdr implements engine.ConstraintState.
func (st *MinimizeState) Hdr() *engine.Header { return &st.header }

// Init seeds minSum/maxSum and registers watches, exactly like Sum's.
func (st *MinimizeState) Init(s *engine.Solver) error {
	for _, t := range st.Terms {
		vs := s.VarState(t.Var)
		minSide, maxSide := sides(t.Coeff, vs.LowerBound(), vs.UpperBound())
		if err := st.minSum.AddTerm(t.Coeff, minSide); err != nil {
			return err
		}
		if err := st.maxSum.AddTerm(t.Coeff, maxSide); err != nil {
			return err
		}
		s.AddWatch(t.Var, t.Coeff, st)
	}
	return nil
}

// Update implements engine.ConstraintState.
func (st *MinimizeState) Update(s *engine.Solver, v engine.Var, coeff, lowerDelta, upperDelta intval.Val) error {
	return sumAdjust(st.minSum, st.maxSum, coeff, lowerDelta, upperDelta)
}

// Undo reverses Update.
func (st *MinimizeState) Undo(s *engine.Solver, v engine.Var, coeff, lowerDelta, upperDelta intval.Val) {
	_ = sumAdjust(st.minSum, st.maxSum, coeff, lowerDelta, upperDelta)
}

// rhs returns the current right-hand side: the live shared bound minus this
// constraint's adjust term (spec §4.5.2 "adjust absorbs the constant part of
// the objective so the bound itself only ever carries the variable part").
func (st *MinimizeState) rhs() intval.Val {
	return st.Bound.Load() - st.Adjust
}

// UpdateMinimize implements spec §4.5.2's update_minimize: a model callback
// (running on whichever thread found the model) tightens the shared bound
// and then every thread's copy of this constraint must be re-enqueued so its
// next check() reconsiders propagation against the new, tighter rhs — even
// threads sitting above the level the model was found at, since a tighter
// bound can make bounds derivable that weren't before regardless of level
// (the Open Question resolution recorded in DESIGN.md).
func (st *MinimizeState) UpdateMinimize(s *engine.Solver) {
	if st.Bound.Load() < st.lastSeenBound {
		st.lastSeenBound = st.Bound.Load()
		s.Enqueue(st)
	}
}

// Propagate implements spec §4.5.2: identical rule to Sum's, against a
// right-hand side read fresh from the shared bound on every call. A
// Minimize constraint is never reified, so there is no entailment check and
// no reification literal threaded into the reason clause.
func (st *MinimizeState) Propagate(s *engine.Solver, cc clausecreator.Creator) (bool, error) {
	rhs := st.rhs()
	st.lastSeenBound = st.Bound.Load()

	if st.maxSum.CompareVal(rhs) <= 0 {
		return true, nil
	}

	if st.minSum.CompareVal(rhs) > 0 {
		reason := reasonLits(s, cc, st.Terms, rhs, -1, s.Cfg.RefineReasons)
		if !cc.AddClause(reason, clausecreator.KindSearch) {
			return false, nil
		}
		return true, nil
	}

	for _, t := range st.Terms {
		ok, err := deriveBound(s, cc, st.Terms, rhs, st.minSum, 0, t)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Translate implements spec §4.5.4 for Minimize: the objective is left for
// runtime propagation rather than lowered to a weight constraint, since its
// right-hand side changes throughout the search (a translated copy would go
// stale the first time a model tightens the bound).
func (st *MinimizeState) Translate(s *engine.Solver, cc clausecreator.Creator) (bool, []engine.ConstraintState, bool, error) {
	return true, nil, false, nil
}
