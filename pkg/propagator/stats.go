package propagator

import (
	"sync/atomic"
	"time"

	"github.com/potassco/clingcon-core/pkg/clausecreator"
)

// Stats is the statistics surface of spec §6, exposed to the host after (or
// during) a solve.
type Stats struct {
	InitTime      time.Duration
	SimplifyTime  time.Duration
	TranslateTime time.Duration

	NumVariables   int
	NumConstraints int
	NumClauses     int64
	NumLiterals    int64

	TranslateRemoved           int64
	TranslateAdded             int64
	TranslateClauses           int64
	TranslateWeightConstraints int64
	TranslateLiterals          int64

	Threads []*ThreadStats
}

// ThreadStats is the per-thread half of the statistics surface.
type ThreadStats struct {
	PropagateTime time.Duration
	CheckTime     time.Duration
	UndoTime      time.Duration

	RefinedReasons    int64
	IntroducedReasons int64
	AllocatedLiterals int64
}

// countingCreator wraps a Creator, counting allocated literals and posted
// clauses into the global and per-thread stats. Translation-phase clauses are
// additionally folded into the translate counters.
type countingCreator struct {
	inner  clausecreator.Creator
	global *Stats
	thread *ThreadStats
}

var _ clausecreator.Creator = (*countingCreator)(nil)

func (c *countingCreator) AddLiteral() clausecreator.Lit {
	atomic.AddInt64(&c.global.NumLiterals, 1)
	if c.thread != nil {
		atomic.AddInt64(&c.thread.AllocatedLiterals, 1)
	}
	return c.inner.AddLiteral()
}

func (c *countingCreator) AddWatch(lit clausecreator.Lit) { c.inner.AddWatch(lit) }

func (c *countingCreator) AddClause(lits []clausecreator.Lit, kind clausecreator.ClauseKind) bool {
	atomic.AddInt64(&c.global.NumClauses, 1)
	if kind == clausecreator.KindTranslate {
		atomic.AddInt64(&c.global.TranslateClauses, 1)
	}
	return c.inner.AddClause(lits, kind)
}

func (c *countingCreator) AddWeightConstraint(lits []clausecreator.Lit, weights []int, bound int, kind clausecreator.ClauseKind) bool {
	if kind == clausecreator.KindTranslate {
		atomic.AddInt64(&c.global.TranslateWeightConstraints, 1)
	}
	return c.inner.AddWeightConstraint(lits, weights, bound, kind)
}

func (c *countingCreator) Propagate() bool { return c.inner.Propagate() }

func (c *countingCreator) Assignment() clausecreator.Assignment { return c.inner.Assignment() }
