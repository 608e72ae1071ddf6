package propagator

import (
	"time"

	"github.com/potassco/clingcon-core/internal/constraints"
	"github.com/potassco/clingcon-core/internal/engine"
	"github.com/potassco/clingcon-core/pkg/clausecreator"
)

// Thread adapts one per-thread engine solver to the host's theory-callback
// protocol (spec §4.4, §5): the host calls Propagate/Check/Undo/Decide on a
// dedicated thread; nothing here is shared with sibling threads except the
// minimize bound inside the MinimizeState.
type Thread struct {
	p        *Propagator
	index    int
	solver   *engine.Solver
	minimize *constraints.MinimizeState
	stats    ThreadStats
	err      error
}

func newThread(p *Propagator, index int) *Thread {
	t := &Thread{
		p:      p,
		index:  index,
		solver: engine.NewSolver(p.cfg.Engine, p.cfg.Log),
	}
	p.stats.Threads = append(p.stats.Threads, &t.stats)
	return t
}

// Solver exposes the underlying engine solver (tests and the model extractor
// read VarState bounds through it).
func (t *Thread) Solver() *engine.Solver { return t.solver }

// Stats returns this thread's statistics, folding in the engine's live
// reason counters.
func (t *Thread) Stats() *ThreadStats {
	t.stats.RefinedReasons = t.solver.Stats.RefinedReasons
	t.stats.IntroducedReasons = t.solver.Stats.IntroducedReasons
	return &t.stats
}

// Err returns the first unrecoverable error (arithmetic overflow) hit during
// propagation; spec §7 has these abort the solve rather than be retried.
func (t *Thread) Err() error { return t.err }

func (t *Thread) wrap(cc clausecreator.Creator) clausecreator.Creator {
	return &countingCreator{inner: cc, global: &t.p.stats, thread: &t.stats}
}

// Propagate implements the host callback of spec §4.4.1.
func (t *Thread) Propagate(cc clausecreator.Creator, level int, changes []clausecreator.Lit) bool {
	defer func(start time.Time) { t.stats.PropagateTime += time.Since(start) }(time.Now())
	return t.solver.Propagate(t.wrap(cc), level, changes)
}

// Check implements the host callback of spec §4.4.2. The minimize constraint
// is re-examined first whenever the shared bound moved since this thread
// last saw it, regardless of decision level (spec §9 open question, resolved
// in DESIGN.md).
func (t *Thread) Check(cc clausecreator.Creator) bool {
	defer func(start time.Time) { t.stats.CheckTime += time.Since(start) }(time.Now())
	if t.err != nil {
		return false
	}
	if t.minimize != nil {
		t.minimize.UpdateMinimize(t.solver)
	}
	ok, err := t.solver.Check(t.wrap(cc))
	if err != nil {
		t.err = err
		return false
	}
	return ok
}

// Undo implements the host callback of spec §4.4.3: every engine Level at or
// above the host level being removed is rolled back.
func (t *Thread) Undo(level int) {
	defer func(start time.Time) { t.stats.UndoTime += time.Since(start) }(time.Now())
	t.solver.UndoLevel(level)
}

// Decide implements the branching hook of spec §4.4.4.
func (t *Thread) Decide(cc clausecreator.Creator) (clausecreator.Lit, bool) {
	return t.solver.Decide(t.wrap(cc))
}
