package propagator

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/potassco/clingcon-core/internal/constraints"
	"github.com/potassco/clingcon-core/internal/engine"
	"github.com/potassco/clingcon-core/pkg/clausecreator"
	"github.com/potassco/clingcon-core/pkg/covar"
	"github.com/potassco/clingcon-core/pkg/intval"
)

// stateBuilder recreates one registered constraint on a (worker) thread's
// solver with fresh watches: constraints themselves are read-only data, each
// thread holds its own state (spec §5).
type stateBuilder func(s *engine.Solver) error

type showSig struct {
	name  string
	arity int
}

// Propagator is the global propagator of spec §3: immutable after Init
// except for the minimize bound.
type Propagator struct {
	cfg  Config
	log  logrus.FieldLogger
	host clausecreator.Host

	init   *clausecreator.InitCreator
	initCC clausecreator.Creator

	threads []*Thread
	tags    []builderTag

	symtab map[string]covar.Var
	syms   []string // var -> symbol, "" for auxiliaries

	minTerms  covar.CoVarVec
	minAdjust intval.Val
	minBound  *constraints.MinimizeBound
	frozen    bool // set once Init ran; minimize registration afterwards is a configuration error

	hasShow  bool
	showSigs map[showSig]bool
	showVars map[covar.Var]bool

	stats Stats
}

// New creates a propagator over host. Constraints and variables are
// registered through the builder API; Init freezes the registration phase
// and brings up the per-thread solvers.
func New(host clausecreator.Host, opts ...Option) *Propagator {
	cfg := NewConfig(opts...)
	log := cfg.Log
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	p := &Propagator{
		cfg:      cfg,
		log:      log,
		host:     host,
		init:     clausecreator.NewInitCreator(host),
		symtab:   make(map[string]covar.Var),
		showSigs: make(map[showSig]bool),
		showVars: make(map[covar.Var]bool),
	}
	p.initCC = &countingCreator{inner: p.init, global: &p.stats}
	master := newThread(p, 0)
	p.threads = []*Thread{master}
	return p
}

// Stats returns the statistics collected so far.
func (p *Propagator) Stats() *Stats { return &p.stats }

// Threads returns the per-thread adapters; index 0 is the master.
func (p *Propagator) Threads() []*Thread { return p.threads }

// Thread returns the adapter for thread i.
func (p *Propagator) Thread(i int) *Thread { return p.threads[i] }

func (p *Propagator) master() *engine.Solver { return p.threads[0].solver }

// MinimizeBound returns the shared objective bound, or nil when no minimize
// constraint was registered.
func (p *Propagator) MinimizeBound() *constraints.MinimizeBound { return p.minBound }

// Init freezes registration, runs the translation phase against the
// configured clause budgets, commits the buffered init clauses to the host,
// and brings up numThreads-1 worker threads as stateful copies of the master
// (spec §9). ok is false when the problem is already unsatisfiable at init.
func (p *Propagator) Init(numThreads int) (ok bool, err error) {
	defer func(start time.Time) { p.stats.InitTime += time.Since(start) }(time.Now())
	p.frozen = true

	if len(p.minTerms) > 0 || p.minAdjust != 0 {
		p.minBound = constraints.NewMinimizeBound(intval.MaxVal)
		st := constraints.NewMinimize(p.minTerms, p.minAdjust, p.minBound)
		if err := st.Init(p.master()); err != nil {
			return false, err
		}
		p.master().AddConstraintState(st)
		p.threads[0].minimize = st
	}

	if err := p.translate(); err != nil {
		return false, err
	}

	if _, _, ok := p.init.Commit(); !ok {
		return false, nil
	}

	for i := 1; i < numThreads; i++ {
		t := newThread(p, i)
		t.solver.CloneVarsFrom(p.master())
		for _, bt := range p.tags {
			if err := bt.build(t.solver); err != nil {
				return false, err
			}
		}
		if p.minBound != nil {
			st := constraints.NewMinimize(p.minTerms, p.minAdjust, p.minBound)
			if err := st.Init(t.solver); err != nil {
				return false, err
			}
			t.solver.AddConstraintState(st)
			t.minimize = st
		}
		p.threads = append(p.threads, t)
	}

	for _, t := range p.threads {
		t.solver.EnqueueAll()
	}
	p.stats.NumVariables = p.master().NumVars()
	p.stats.NumConstraints = len(p.master().States())
	return true, nil
}

// translate runs the translation hook over every constraint state of the
// master solver (spec §4.5.4), respecting the global clause budget. Removed
// constraints are dropped from the builder list too, so worker threads never
// see them.
func (p *Propagator) translate() error {
	defer func(start time.Time) { p.stats.TranslateTime += time.Since(start) }(time.Now())
	solver := p.master()
	budget := int64(p.cfg.Engine.ClauseLimitTotal)

	states := append([]engine.ConstraintState(nil), solver.States()...)
	for i := 0; i < len(states); i++ {
		if budget <= 0 {
			break
		}
		before := p.stats.NumClauses
		cs := states[i]
		ok, added, remove, err := cs.Translate(solver, p.initCC)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("propagator: conflict during translation")
		}
		budget -= p.stats.NumClauses - before
		for _, a := range added {
			solver.AddConstraintState(a)
			states = append(states, a)
			p.stats.TranslateAdded++
		}
		if remove {
			solver.RemoveConstraint(cs)
			p.removeBuilder(cs)
			p.stats.TranslateRemoved++
		}
	}
	return nil
}

// builderTag pairs a builder with the master-side state it produced, so a
// translation-removed constraint can be dropped from the worker recipe.
type builderTag struct {
	build stateBuilder
	state engine.ConstraintState
}

func (p *Propagator) removeBuilder(cs engine.ConstraintState) {
	for i, bt := range p.tags {
		if bt.state == cs {
			p.tags = append(p.tags[:i], p.tags[i+1:]...)
			return
		}
	}
}

// OnModel implements the model extension of spec §6: invoked (serialized by
// the host) with the thread that found a model. It returns the csp(sym, val)
// symbols for every shown variable plus, when an objective exists, the
// csp_cost symbol — and tightens the shared minimize bound to cost-1 so that
// every later model is strictly better.
func (p *Propagator) OnModel(t *Thread) ([]string, error) {
	var symbols []string
	emitted := make(map[covar.Var]bool)
	for v := covar.Var(0); int(v) < t.solver.NumVars(); v++ {
		if !p.shown(v) || emitted[v] {
			continue
		}
		emitted[v] = true
		vs := t.solver.VarState(engine.Var(v))
		symbols = append(symbols, fmt.Sprintf("csp(%s,%d)", p.syms[v], vs.LowerBound()))
	}
	if p.minBound != nil {
		cost := intval.NewSum64()
		for _, term := range p.minTerms {
			vs := t.solver.VarState(engine.Var(term.Var))
			if err := cost.AddTerm(term.Coeff, vs.LowerBound()); err != nil {
				return nil, err
			}
		}
		if err := cost.AddTerm(1, p.minAdjust); err != nil {
			return nil, err
		}
		bound, err := cost.ToVal()
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, fmt.Sprintf("csp_cost(%d)", bound))
		p.minBound.Tighten(bound - 1)
		p.log.WithFields(logrus.Fields{"cost": bound}).Debug("model found, bound tightened")
	}
	return symbols, nil
}

// shown reports whether v's value is part of the model, honoring the show
// directives (spec §6): absent any &show, every named variable is shown;
// auxiliaries never are. Deduplication is by variable, not symbol
// (SPEC_FULL.md §3 "Show/print deduplication").
func (p *Propagator) shown(v covar.Var) bool {
	if int(v) >= len(p.syms) || p.syms[v] == "" {
		return false
	}
	if !p.hasShow {
		return true
	}
	if p.showVars[v] {
		return true
	}
	name, arity := splitSymbol(p.syms[v])
	return p.showSigs[showSig{name: name, arity: arity}]
}

// splitSymbol derives (name, arity) from a symbol like "at(1,2)" -> ("at", 2)
// or "x" -> ("x", 0).
func splitSymbol(sym string) (string, int) {
	open := -1
	for i, r := range sym {
		if r == '(' {
			open = i
			break
		}
	}
	if open < 0 {
		return sym, 0
	}
	name := sym[:open]
	args := sym[open+1 : len(sym)-1]
	if args == "" {
		return name, 0
	}
	depth, arity := 0, 1
	for _, r := range args {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				arity++
			}
		}
	}
	return name, arity
}

// GetValue returns v's value in the current (total) assignment of thread t.
func (p *Propagator) GetValue(t *Thread, v covar.Var) intval.Val {
	return t.solver.VarState(engine.Var(v)).LowerBound()
}

// LookupVariable returns the variable registered for symbol, if any.
func (p *Propagator) LookupVariable(symbol string) (covar.Var, bool) {
	v, ok := p.symtab[symbol]
	return v, ok
}
