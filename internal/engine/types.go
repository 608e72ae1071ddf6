// Package engine implements the per-thread propagation core of spec §4.4:
// the decision-level stack, var-watch table, todo queue, and the
// propagate/check/undo/decide driver that keeps VarState bounds and
// constraint states in lockstep with the host's Boolean trail.
package engine

import (
	"github.com/potassco/clingcon-core/internal/order"
	"github.com/potassco/clingcon-core/pkg/clausecreator"
	"github.com/potassco/clingcon-core/pkg/intval"
)

// Var and Val are re-exported so callers of this package never need to
// import internal/order or pkg/intval just to name a variable or value.
type Var = order.Var
type Val = intval.Val

// ConstraintRef indexes into Solver.states: the arena-allocation resolution
// of spec §9 "Cyclic references" (cross-references between constraint
// states and the var-watch table are indices, not owning pointers).
type ConstraintRef int32

// Header is the common part every ConstraintState variant carries (spec §3
// "all variants carry constraint_ref, inactive_level, in_todo flag").
type Header struct {
	Ref           ConstraintRef
	Literal       clausecreator.Lit
	InactiveLevel int // 0 = active, else level+1 (spec §3)
	InTodo        bool
}

// Active reports whether the constraint is currently active.
func (h *Header) Active() bool { return h.InactiveLevel == 0 }

// ConstraintState is the per-constraint-kind behavior dispatched by tag
// (spec §9 "Polymorphism over constraint kinds"): Sum, Minimize, Distinct,
// and Domain states all implement it.
type ConstraintState interface {
	// Hdr returns the common header so the engine can read/set InactiveLevel
	// and InTodo without knowing the concrete kind.
	Hdr() *Header
	// Update folds a watched variable's bound change into the constraint's
	// incremental state (min_sum/max_sum and similar). lowerDelta is
	// newLower-oldLower (>= 0); upperDelta is newUpper-oldUpper (<= 0).
	// Exactly one is normally non-zero per call, but both may be set when a
	// level collapses more than one change into a single undo step.
	Update(s *Solver, v Var, coeff Val, lowerDelta, upperDelta Val) error
	// Undo reverses earlier Updates for (v, coeff). The engine passes the
	// restoring deltas: lowerDelta is restoredLower-currentLower (<= 0) and
	// upperDelta is restoredUpper-currentUpper (>= 0).
	Undo(s *Solver, v Var, coeff Val, lowerDelta, upperDelta Val)
	// Propagate runs the constraint's propagation rule once against the
	// current bounds, positing clauses/reasons through cc. ok is false on an
	// unresolvable conflict.
	Propagate(s *Solver, cc clausecreator.Creator) (ok bool, err error)
	// Translate implements the translation hook of spec §4.5.4.
	Translate(s *Solver, cc clausecreator.Creator) (ok bool, added []ConstraintState, remove bool, err error)
}

// WatchEntry links a watched variable to a constraint state and the
// coefficient under which it is watched (spec §3 var-watch table).
type WatchEntry struct {
	Coeff Val
	State ConstraintState
}

type removedWatch struct {
	Var   Var
	Entry WatchEntry
}

// Level is the per-decision-level undo record of spec §3.
type Level struct {
	Level          int
	UndoLower      []Var
	UndoUpper      []Var
	Inactive       []ConstraintState
	RemovedWatches []removedWatch
}

// Config is the solver-wide set of behavior/performance knobs (spec §4.4.1
// propagate_chain, §4.5.1 refine_reasons, §4.5.4 clause_limit/
// clause_limit_total, §4.4.4 MaxChain heuristic, §3 min_int/max_int).
type Config struct {
	PropagateChain   bool
	RefineReasons    bool
	MaxChainDecision bool
	ClauseLimit      int
	ClauseLimitTotal int
	MinInt           Val
	MaxInt           Val
}

// DefaultConfig returns the knob values the demo CLI starts from absent any
// flags.
func DefaultConfig() Config {
	return Config{
		ClauseLimit:      64,
		ClauseLimitTotal: 10000,
		MinInt:           intval.MinVal,
		MaxInt:           intval.MaxVal,
	}
}
