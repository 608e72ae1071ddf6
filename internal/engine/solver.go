package engine

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/potassco/clingcon-core/internal/order"
	"github.com/potassco/clingcon-core/pkg/clausecreator"
)

// Stats are the per-thread propagation counters exposed through the
// statistics surface: how many reason clauses were emitted and how many of
// them were shrunk by reason refinement.
type Stats struct {
	RefinedReasons    int64
	IntroducedReasons int64
}

// Solver is the per-thread propagation core of spec §4.4. One instance is
// owned by each host CDCL thread (spec §5 "multi-threaded with per-thread
// isolation"); the only state shared across Solvers is the minimize bound
// (internal/constraints.MinimizeState), never this struct itself.
type Solver struct {
	ID    uuid.UUID
	Log   logrus.FieldLogger
	Cfg   Config
	Stats Stats

	vars    []*order.VarState
	reverse *order.ReverseMap

	states    []ConstraintState
	watch     map[Var][]WatchEntry
	reifWatch map[clausecreator.Lit][]ConstraintState

	levels []*Level

	todo []ConstraintState

	diffs map[Var]*boundDiff

	lastDecisionVar int
}

// boundDiff accumulates the net bound movement of a variable since the last
// Check drained it into watchers (spec §3 "running ldiff/udiff accumulators
// of bound deltas since last check").
type boundDiff struct {
	Lower Val // newLower - oldLower, accumulated; >= 0
	Upper Val // newUpper - oldUpper, accumulated; <= 0
}

// NewSolver creates an empty Solver. log may be nil, in which case a
// discarding logger is used.
func NewSolver(cfg Config, log logrus.FieldLogger) *Solver {
	if log == nil {
		l := logrus.New()
		l.SetOutput(discardWriter{})
		log = l
	}
	id := uuid.New()
	return &Solver{
		ID:        id,
		Log:       log.WithField("thread_id", id.String()),
		Cfg:       cfg,
		reverse:   order.NewReverseMap(),
		watch:     make(map[Var][]WatchEntry),
		reifWatch: make(map[clausecreator.Lit][]ConstraintState),
		diffs:     make(map[Var]*boundDiff),
	}
}

func (s *Solver) diff(v Var) *boundDiff {
	d, ok := s.diffs[v]
	if !ok {
		d = &boundDiff{}
		s.diffs[v] = d
	}
	return d
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// AddVar allocates a fresh VarState bounded by the solver's configured
// [MinInt, MaxInt] and returns its index.
func (s *Solver) AddVar() Var {
	v := Var(len(s.vars))
	s.vars = append(s.vars, order.NewVarState(v, s.Cfg.MinInt, s.Cfg.MaxInt, s.reverse))
	return v
}

// VarState returns the VarState for v.
func (s *Solver) VarState(v Var) *order.VarState { return s.vars[v] }

// NumVars reports how many variables have been registered.
func (s *Solver) NumVars() int { return len(s.vars) }

// CloneVarsFrom copies master's var table and literal maps into s, giving a
// worker thread its own VarStates seeded with the master's post-init bounds
// and order literals (spec §9 "Stateful copy for worker threads"). Constraint
// states are not copied; callers recreate them with fresh watches.
func (s *Solver) CloneVarsFrom(master *Solver) {
	s.reverse = order.NewReverseMap()
	s.vars = make([]*order.VarState, len(master.vars))
	for i, vs := range master.vars {
		s.vars[i] = vs.Clone(s.reverse)
	}
}

// AddConstraintState registers cs, assigning its Header.Ref.
func (s *Solver) AddConstraintState(cs ConstraintState) ConstraintRef {
	ref := ConstraintRef(len(s.states))
	cs.Hdr().Ref = ref
	s.states = append(s.states, cs)
	return ref
}

// AddWatch registers cs to be notified (via Update/Undo/enqueue) whenever v's
// bound moves, weighted by coeff (spec §3 var-watch table).
func (s *Solver) AddWatch(v Var, coeff Val, cs ConstraintState) {
	s.watch[v] = append(s.watch[v], WatchEntry{Coeff: coeff, State: cs})
}

// RemoveWatch removes the single matching watch entry for (v, cs), recording
// it on the current level so Undo can restore it (spec §3 Level.removed_watches).
func (s *Solver) RemoveWatch(v Var, cs ConstraintState) {
	entries := s.watch[v]
	for i, e := range entries {
		if e.State == cs {
			s.watch[v] = append(entries[:i], entries[i+1:]...)
			if lvl := s.top(); lvl != nil {
				lvl.RemovedWatches = append(lvl.RemovedWatches, removedWatch{Var: v, Entry: e})
			}
			return
		}
	}
}

// AddReifWatch registers cs to be enqueued whenever lit appears in a
// Propagate's changes list (spec §4.4.1 "If any watched constraint is
// listed on the reverse map (as a reification literal), enqueue it").
func (s *Solver) AddReifWatch(lit clausecreator.Lit, cs ConstraintState) {
	s.reifWatch[lit] = append(s.reifWatch[lit], cs)
	s.reifWatch[lit.Negation()] = append(s.reifWatch[lit.Negation()], cs)
}

// Enqueue pushes cs onto the todo queue unless it is already pending (spec
// §3 "Todo queue").
func (s *Solver) Enqueue(cs ConstraintState) {
	h := cs.Hdr()
	if h.InTodo {
		return
	}
	h.InTodo = true
	s.todo = append(s.todo, cs)
}

func (s *Solver) top() *Level {
	if len(s.levels) == 0 {
		return nil
	}
	return s.levels[len(s.levels)-1]
}

func (s *Solver) pushLevel(level int) *Level {
	if lvl := s.top(); lvl != nil && lvl.Level == level {
		return lvl
	}
	lvl := &Level{Level: level}
	s.levels = append(s.levels, lvl)
	return lvl
}

func (s *Solver) pushUndoUpper(lvl *Level, v Var) {
	if s.vars[v].PushUpper(lvl.Level) {
		lvl.UndoUpper = append(lvl.UndoUpper, v)
	}
}

func (s *Solver) pushUndoLower(lvl *Level, v Var) {
	if s.vars[v].PushLower(lvl.Level) {
		lvl.UndoLower = append(lvl.UndoLower, v)
	}
}

// Propagate implements spec §4.4.1: level bookkeeping, bound tightening for
// every (var, value) fact a newly-assigned literal encodes, adjacent
// order-literal chaining, and enqueuing of affected constraint states.
func (s *Solver) Propagate(cc clausecreator.Creator, level int, changes []clausecreator.Lit) bool {
	lvl := s.pushLevel(level)
	touched := make(map[Var]struct{})

	for _, lit := range changes {
		for _, cs := range s.reifWatch[lit] {
			s.Enqueue(cs)
		}
		for _, e := range s.reverse.Lookup(lit) {
			vs := s.vars[e.Var]
			switch e.Dir {
			case order.Upper:
				if e.Value < vs.UpperBound() {
					s.pushUndoUpper(lvl, e.Var)
					s.diff(e.Var).Upper += e.Value - vs.UpperBound()
					vs.SetUpperBound(e.Value)
					touched[e.Var] = struct{}{}
					if !s.chainUpper(cc, vs, lit, e.Value, lvl.Level) {
						return false
					}
				}
			case order.Lower:
				newLower := e.Value + 1
				if newLower > vs.LowerBound() {
					s.pushUndoLower(lvl, e.Var)
					s.diff(e.Var).Lower += newLower - vs.LowerBound()
					vs.SetLowerBound(newLower)
					touched[e.Var] = struct{}{}
					if !s.chainLower(cc, vs, lit, e.Value, lvl.Level) {
						return false
					}
				}
			}
		}
	}

	for v := range touched {
		for _, we := range s.watch[v] {
			s.Enqueue(we.State)
		}
	}
	return true
}

// chainUpper forces the smallest value' > value still present in vs's
// literal map to follow from the literal that just tightened the upper
// bound to value (spec §4.4.1: "the smallest value' > value with a literal
// present... must become true"). With PropagateChain on, the newly implied
// literal is used as the next premise so subsequent reasons stay short
// (SPEC_FULL.md §3).
func (s *Solver) chainUpper(cc clausecreator.Creator, vs *order.VarState, trigger clausecreator.Lit, value Val, level int) bool {
	for {
		next, ok := vs.ChainAbove(value)
		if !ok {
			return true
		}
		if !cc.AddClause([]clausecreator.Lit{trigger.Negation(), next.Lit}, clausecreator.KindSearch) {
			return false
		}
		if !s.Cfg.PropagateChain || level == 0 {
			return true
		}
		trigger, value = next.Lit, next.Value
	}
}

// chainLower is the symmetric helper for lower-bound tightening: a variable
// known to exceed value also exceeds every value' < value, so the literal
// witnessing "var <= value'" must be forced false.
func (s *Solver) chainLower(cc clausecreator.Creator, vs *order.VarState, trigger clausecreator.Lit, value Val, level int) bool {
	for {
		prev, ok := vs.ChainBelow(value)
		if !ok {
			return true
		}
		if !cc.AddClause([]clausecreator.Lit{trigger.Negation(), prev.Lit.Negation()}, clausecreator.KindSearch) {
			return false
		}
		if !s.Cfg.PropagateChain || level == 0 {
			return true
		}
		trigger, value = prev.Lit.Negation(), prev.Value
	}
}

// Check implements spec §4.4.2: fold accumulated bound deltas into watchers,
// drain the todo queue to fixpoint, and run a full-assignment model check
// when the host's assignment is total.
func (s *Solver) Check(cc clausecreator.Creator) (bool, error) {
	// Constraint propagation below may deactivate states or remove watches;
	// both record themselves on the current level's undo lists, so make sure
	// a level exists even when no order literal changed on it. An existing
	// deeper record stays current: Propagate is the authority on levels.
	if top := s.top(); top == nil || top.Level < cc.Assignment().DecisionLevel() {
		s.pushLevel(cc.Assignment().DecisionLevel())
	}
	for {
		if err := s.applyDiffs(); err != nil {
			return false, err
		}
		for len(s.todo) > 0 {
			cs := s.todo[0]
			s.todo = s.todo[1:]
			cs.Hdr().InTodo = false
			if !cs.Hdr().Active() {
				continue
			}
			if lit := cs.Hdr().Literal; lit != 0 && cc.Assignment().IsFalse(lit) {
				s.markInactive(cs)
				continue
			}
			ok, err := cs.Propagate(s, cc)
			if err != nil {
				return false, err
			}
			if !ok {
				for _, c := range s.todo {
					c.Hdr().InTodo = false
				}
				s.todo = nil
				return false, nil
			}
		}
		if len(s.diffs) == 0 {
			break
		}
	}
	if s.totalAssignment() {
		return s.checkFull(cc)
	}
	return true, nil
}

func (s *Solver) applyDiffs() error {
	for v, d := range s.diffs {
		for _, we := range s.watch[v] {
			if err := we.State.Update(s, v, we.Coeff, d.Lower, d.Upper); err != nil {
				return err
			}
		}
	}
	s.diffs = make(map[Var]*boundDiff)
	return nil
}

// Deactivate marks cs inactive for the remainder of the current decision
// level, restored automatically by Undo (spec §3 Level.inactive).
func (s *Solver) Deactivate(cs ConstraintState) {
	s.markInactive(cs)
}

func (s *Solver) markInactive(cs ConstraintState) {
	h := cs.Hdr()
	if !h.Active() {
		return
	}
	lvl := s.top()
	h.InactiveLevel = lvl.Level + 1
	lvl.Inactive = append(lvl.Inactive, cs)
}

func (s *Solver) totalAssignment() bool {
	for _, vs := range s.vars {
		if vs.LowerBound() != vs.UpperBound() {
			return false
		}
	}
	return true
}

// checkFull implements spec §4.4.4: a totally-bound assignment is a model;
// report it (the caller extracts values from VarState) and request no
// decision. The decision heuristic itself lives in Decide below, called by
// the host only when checkFull's caller determines a decision is required.
func (s *Solver) checkFull(cc clausecreator.Creator) (bool, error) {
	return true, nil
}

// Decide implements spec §4.4.4's branching heuristic: pick an unassigned
// variable round-robin (remembering the last index to avoid pathological
// re-scans) and allocate a fresh order literal at the midpoint of its
// current bounds, forcing the host to branch on it. ok is false if every
// variable is already a singleton (the assignment is already a model).
// When the MaxChain heuristic is active (spec §4.4.4), the widest unassigned
// variable is preferred over the round-robin order.
func (s *Solver) Decide(cc clausecreator.Creator) (lit clausecreator.Lit, ok bool) {
	n := len(s.vars)
	if s.Cfg.MaxChainDecision {
		widest := -1
		var width int64 = 0
		for idx, vs := range s.vars {
			if w := int64(vs.UpperBound()) - int64(vs.LowerBound()); w > width {
				widest, width = idx, w
			}
		}
		if widest < 0 {
			return 0, false
		}
		vs := s.vars[widest]
		return vs.GetLiteral(cc, midpoint(vs.LowerBound(), vs.UpperBound())), true
	}
	for i := 0; i < n; i++ {
		idx := (s.lastDecisionVar + 1 + i) % n
		vs := s.vars[idx]
		if vs.LowerBound() == vs.UpperBound() {
			continue
		}
		s.lastDecisionVar = idx
		mid := midpoint(vs.LowerBound(), vs.UpperBound())
		return vs.GetLiteral(cc, mid), true
	}
	return 0, false
}

func midpoint(lo, hi Val) Val {
	return Val((int64(lo) + int64(hi)) >> 1)
}

// UndoLevel pops every Level record at or above the host decision level
// being removed. The host may have skipped Propagate entirely on some of its
// levels, so the two stacks are reconciled by level number rather than
// one-pop-per-call.
func (s *Solver) UndoLevel(level int) {
	for {
		top := s.top()
		if top == nil || top.Level < level {
			return
		}
		s.Undo()
	}
}

// Undo implements spec §4.4.3: walk the top Level in reverse, restoring
// bounds, watch tables, constraint activity, and the todo queue. Safe to
// call even when propagation aborted mid-conflict (the todo queue is always
// cleared unconditionally).
func (s *Solver) Undo() {
	lvl := s.top()
	if lvl == nil {
		return
	}
	s.levels = s.levels[:len(s.levels)-1]

	seen := make(map[Var]struct{})
	for _, v := range lvl.UndoUpper {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		vs := s.vars[v]
		delta, ok := vs.PopUpper()
		if !ok {
			continue
		}
		// delta = oldUpper - tightenedUpper (>= 0). The part of the
		// tightening still pending in s.diffs never reached the watchers, so
		// it is cancelled there; only the remainder, which Update already saw
		// as a negative upperDelta, is reversed through the watchers.
		if d, has := s.diffs[v]; has {
			pending := -d.Upper
			if pending > delta {
				pending = delta
			}
			d.Upper += pending
			delta -= pending
			if d.Lower == 0 && d.Upper == 0 {
				delete(s.diffs, v)
			}
		}
		if delta == 0 {
			continue
		}
		for _, we := range s.watch[v] {
			we.State.Undo(s, v, we.Coeff, 0, delta)
		}
	}
	seen = make(map[Var]struct{})
	for _, v := range lvl.UndoLower {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		vs := s.vars[v]
		delta, ok := vs.PopLower()
		if !ok {
			continue
		}
		if d, has := s.diffs[v]; has {
			pending := d.Lower
			if pending > -delta {
				pending = -delta
			}
			d.Lower -= pending
			delta += pending
			if d.Lower == 0 && d.Upper == 0 {
				delete(s.diffs, v)
			}
		}
		if delta == 0 {
			continue
		}
		for _, we := range s.watch[v] {
			we.State.Undo(s, v, we.Coeff, delta, 0)
		}
	}

	for _, cs := range lvl.Inactive {
		cs.Hdr().InactiveLevel = 0
	}
	for _, rw := range lvl.RemovedWatches {
		s.watch[rw.Var] = append(s.watch[rw.Var], rw.Entry)
	}

	for _, cs := range s.todo {
		cs.Hdr().InTodo = false
	}
	s.todo = nil
}
