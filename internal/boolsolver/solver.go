// Package boolsolver is a small reference implementation of the external
// Boolean CDCL solver the CP core is specified against (spec §1 treats the
// real host as an external collaborator). It exists so the propagator, the
// engine, and the demo CLI can be exercised end to end; it is deliberately
// not part of the module's public surface. The trail/decision-level/Model
// structure follows gophersat's solver, cut down to chronological
// backtracking plus the theory-callback protocol the clause-creator boundary
// needs.
package boolsolver

import (
	"github.com/potassco/clingcon-core/pkg/clausecreator"
)

// Status is the current state of the search.
type Status int

const (
	// Indet means the solver has not yet decided satisfiability.
	Indet Status = iota
	// Sat means a model was found.
	Sat
	// Unsat means the problem has no model.
	Unsat
)

func (s Status) String() string {
	switch s {
	case Sat:
		return "SAT"
	case Unsat:
		return "UNSAT"
	default:
		return "INDET"
	}
}

// The level a binding was made at.
// A negative value means "negative assignment at that level".
// A positive value means "positive assignment at that level".
// Levels are stored shifted by one so that level-0 facts are ±1 and a zero
// value still means "free".
type decLevel int

// A Model is a binding for several variables: each var, in order, is
// associated with a decLevel binding, 0 meaning the variable is free.
type Model []decLevel

// Theory is the CP side of the host<->propagator protocol: the four
// callbacks of spec §4.4 plus the decision hook of §4.4.4. The host calls
// Propagate with the watched literals newly true on its trail, Check after
// each propagation fixpoint, Undo once per decision level being popped, and
// Decide when it needs a branching literal.
type Theory interface {
	Propagate(cc clausecreator.Creator, level int, changes []clausecreator.Lit) bool
	Check(cc clausecreator.Creator) bool
	Undo(level int)
	Decide(cc clausecreator.Creator) (clausecreator.Lit, bool)
}

// weightConstraint is sum(weights_i * lits_i) >= bound with all weights
// positive (negative weights are normalized away at add time).
type weightConstraint struct {
	lits    []clausecreator.Lit
	weights []int
	bound   int
}

type decision struct {
	lit     clausecreator.Lit
	flipped bool
}

// A Solver hosts clauses, weight constraints, and a Theory, and searches for
// a model by unit propagation plus chronological backtracking.
type Solver struct {
	nbVars  int
	status  Status
	model   Model
	trail   []clausecreator.Lit
	clauses [][]clausecreator.Lit
	weights []weightConstraint

	watched map[clausecreator.Lit]bool

	decisions  []decision
	propagated int // trail index up to which the theory has been notified
	conflict   bool

	theory Theory
	cc     *clausecreator.SearchCreator
}

// New creates an empty solver with variable 0 pre-allocated and fixed true,
// backing clausecreator.TrueLit/FalseLit.
func New() *Solver {
	s := &Solver{
		nbVars:  1,
		model:   Model{1},
		trail:   []clausecreator.Lit{clausecreator.TrueLit},
		watched: make(map[clausecreator.Lit]bool),
	}
	s.cc = clausecreator.NewSearchCreator(s)
	return s
}

var _ clausecreator.Host = (*Solver)(nil)

// SetTheory attaches the CP propagator side. Must be called before Solve.
func (s *Solver) SetTheory(t Theory) { s.theory = t }

// Creator returns the search-time clause creator over this solver.
func (s *Solver) Creator() clausecreator.Creator { return s.cc }

// NewVar implements clausecreator.Host.
func (s *Solver) NewVar() clausecreator.Var {
	v := clausecreator.Var(s.nbVars)
	s.nbVars++
	s.model = append(s.model, 0)
	return v
}

// NbVars reports the number of allocated variables (including var 0).
func (s *Solver) NbVars() int { return s.nbVars }

// level returns the current decision level (0 when no decision was made).
func (s *Solver) level() int { return len(s.decisions) }

func (s *Solver) litStatus(l clausecreator.Lit) clausecreator.Tribool {
	b := s.model[l.Var()]
	if b == 0 {
		return clausecreator.Unknown
	}
	if (b > 0) == l.IsPositive() {
		return clausecreator.True
	}
	return clausecreator.False
}

// assign binds l true at the current decision level.
func (s *Solver) assign(l clausecreator.Lit) {
	lvl := decLevel(s.level() + 1)
	if !l.IsPositive() {
		lvl = -lvl
	}
	s.model[l.Var()] = lvl
	s.trail = append(s.trail, l)
}

// AddClause implements clausecreator.Host. A clause whose literals are all
// false right now reports a conflict by returning false; the search loop
// resolves it by backtracking (or concludes Unsat at level 0). The clause is
// stored either way so re-propagation after backtracking sees it.
func (s *Solver) AddClause(lits []clausecreator.Lit, kind clausecreator.ClauseKind) bool {
	cp := make([]clausecreator.Lit, len(lits))
	copy(cp, lits)
	s.clauses = append(s.clauses, cp)
	unassigned := 0
	satisfied := false
	for _, l := range cp {
		switch s.litStatus(l) {
		case clausecreator.True:
			satisfied = true
		case clausecreator.Unknown:
			unassigned++
		}
	}
	if satisfied {
		return true
	}
	if unassigned == 0 {
		s.conflict = true
		if s.level() == 0 {
			s.status = Unsat
		}
		return false
	}
	return true
}

// AddWeightConstraint implements clausecreator.Host: sum(w_i*l_i) >= bound.
// Negative weights are normalized by flipping the literal.
func (s *Solver) AddWeightConstraint(lits []clausecreator.Lit, weights []int, bound int, kind clausecreator.ClauseKind) bool {
	wc := weightConstraint{
		lits:    make([]clausecreator.Lit, len(lits)),
		weights: make([]int, len(weights)),
		bound:   bound,
	}
	copy(wc.lits, lits)
	copy(wc.weights, weights)
	for i, w := range wc.weights {
		if w < 0 {
			wc.lits[i] = wc.lits[i].Negation()
			wc.weights[i] = -w
			wc.bound += -w
		}
	}
	s.weights = append(s.weights, wc)
	if !s.propagateWeight(&wc) {
		if s.level() == 0 {
			s.status = Unsat
		}
		return false
	}
	return true
}

// AddWatch implements clausecreator.Host.
func (s *Solver) AddWatch(lit clausecreator.Lit) { s.watched[lit] = true }

// Propagate implements clausecreator.Host: immediate unit propagation, false
// on conflict.
func (s *Solver) Propagate() bool { return s.bcp() }

// Assignment implements clausecreator.Host.
func (s *Solver) Assignment() clausecreator.Assignment { return assignment{s} }

// bcp runs Boolean unit propagation to fixpoint over all clauses and weight
// constraints. No watch lists: the reference host favors obviousness over
// speed and rescans until the trail stops growing.
func (s *Solver) bcp() bool {
	if s.conflict {
		return false
	}
	for {
		grew := false
		for _, c := range s.clauses {
			st, unit := s.clauseStatus(c)
			switch st {
			case clauseConflict:
				s.conflict = true
				return false
			case clauseUnit:
				s.assign(unit)
				grew = true
			}
		}
		for i := range s.weights {
			before := len(s.trail)
			if !s.propagateWeight(&s.weights[i]) {
				s.conflict = true
				return false
			}
			if len(s.trail) != before {
				grew = true
			}
		}
		if !grew {
			return true
		}
	}
}

type clauseState int

const (
	clauseOpen clauseState = iota
	clauseSat
	clauseUnit
	clauseConflict
)

func (s *Solver) clauseStatus(c []clausecreator.Lit) (clauseState, clausecreator.Lit) {
	var unit clausecreator.Lit
	unassigned := 0
	for _, l := range c {
		switch s.litStatus(l) {
		case clausecreator.True:
			return clauseSat, 0
		case clausecreator.Unknown:
			unassigned++
			unit = l
		}
	}
	switch unassigned {
	case 0:
		return clauseConflict, 0
	case 1:
		return clauseUnit, unit
	default:
		return clauseOpen, 0
	}
}

func (s *Solver) propagateWeight(wc *weightConstraint) bool {
	maxPossible := 0
	for i, l := range wc.lits {
		if s.litStatus(l) != clausecreator.False {
			maxPossible += wc.weights[i]
		}
	}
	if maxPossible < wc.bound {
		return false
	}
	for i, l := range wc.lits {
		if s.litStatus(l) == clausecreator.Unknown && maxPossible-wc.weights[i] < wc.bound {
			s.assign(l)
		}
	}
	return true
}

// notifyTheory forwards the watched literals newly true on the trail to the
// theory, then runs its Check. Returns false on a theory conflict.
func (s *Solver) notifyTheory() bool {
	if s.theory == nil {
		s.propagated = len(s.trail)
		return true
	}
	var changes []clausecreator.Lit
	for _, l := range s.trail[s.propagated:] {
		if s.watched[l] {
			changes = append(changes, l)
		}
	}
	s.propagated = len(s.trail)
	if len(changes) > 0 {
		if !s.theory.Propagate(s.cc, s.level(), changes) {
			return false
		}
	}
	return s.theory.Check(s.cc)
}

// fixpoint interleaves Boolean and theory propagation until neither adds
// anything. Returns false on conflict.
func (s *Solver) fixpoint() bool {
	for {
		if !s.bcp() {
			return false
		}
		before := len(s.trail)
		nbClauses := len(s.clauses)
		if !s.notifyTheory() {
			return false
		}
		if len(s.trail) == before && len(s.clauses) == nbClauses {
			return true
		}
	}
}

// cleanupBindings unassigns every binding made at the current decision level
// and pops it, telling the theory to undo everything at or above it.
func (s *Solver) cleanupBindings() {
	lvlBeingRemoved := s.level()
	lvl := decLevel(s.level() + 1)
	i := len(s.trail)
	for i > 0 {
		l := s.trail[i-1]
		b := s.model[l.Var()]
		if b != lvl && b != -lvl {
			break
		}
		s.model[l.Var()] = 0
		i--
	}
	s.trail = s.trail[:i]
	if s.propagated > len(s.trail) {
		s.propagated = len(s.trail)
	}
	s.conflict = false
	if s.theory != nil {
		s.theory.Undo(lvlBeingRemoved)
	}
}

// backtrack resolves a conflict chronologically: undo flipped decisions until
// an unflipped one is found, flip it, and continue. Returns false when the
// search space is exhausted.
func (s *Solver) backtrack() bool {
	for len(s.decisions) > 0 {
		top := s.decisions[len(s.decisions)-1]
		s.cleanupBindings()
		s.decisions = s.decisions[:len(s.decisions)-1]
		if !top.flipped {
			s.decisions = append(s.decisions, decision{lit: top.lit.Negation(), flipped: true})
			s.assign(top.lit.Negation())
			return true
		}
	}
	return false
}

// chooseLit picks the first unassigned variable, preferring false (the
// polarity bias order literals are allocated with makes this the
// small-magnitude branch).
func (s *Solver) chooseLit() (clausecreator.Lit, bool) {
	for v := 1; v < s.nbVars; v++ {
		if s.model[v] == 0 {
			return clausecreator.NewLit(clausecreator.Var(v), false), true
		}
	}
	return 0, false
}

// Solve searches for one model. onModel, if non-nil, is invoked on every
// model found; returning true asks the search to continue (used by the
// minimize flow, where the model callback tightens the shared bound first).
// The final status is Sat as soon as at least one model was seen.
func (s *Solver) Solve(onModel func() bool) Status {
	if s.status == Unsat {
		return Unsat
	}
	foundModel := false
	for {
		if !s.fixpoint() {
			if !s.backtrack() {
				if foundModel {
					return Sat
				}
				s.status = Unsat
				return Unsat
			}
			continue
		}
		lit, ok := s.theoryDecide()
		if !ok {
			lit, ok = s.chooseLit()
		}
		if !ok {
			foundModel = true
			if onModel != nil && onModel() {
				// Keep searching: treat the model as a dead end.
				if !s.backtrack() {
					return Sat
				}
				continue
			}
			s.status = Sat
			return Sat
		}
		s.decisions = append(s.decisions, decision{lit: lit})
		s.assign(lit)
	}
}

func (s *Solver) theoryDecide() (clausecreator.Lit, bool) {
	if s.theory == nil {
		return 0, false
	}
	lit, ok := s.theory.Decide(s.cc)
	if !ok {
		return 0, false
	}
	if s.litStatus(lit) != clausecreator.Unknown {
		// The chosen order literal is already bound; nothing to branch on
		// here, fall back to the Boolean heuristic.
		return 0, false
	}
	return lit, true
}

// CurrentModel returns the current (total or partial) binding as a []bool
// indexed by variable.
func (s *Solver) CurrentModel() []bool {
	m := make([]bool, s.nbVars)
	for v := 0; v < s.nbVars; v++ {
		m[v] = s.model[v] > 0
	}
	return m
}

// assignment adapts Solver to the read-only clausecreator.Assignment view.
type assignment struct {
	s *Solver
}

var _ clausecreator.Assignment = assignment{}

func (a assignment) IsTrue(lit clausecreator.Lit) bool {
	return a.s.litStatus(lit) == clausecreator.True
}

func (a assignment) IsFalse(lit clausecreator.Lit) bool {
	return a.s.litStatus(lit) == clausecreator.False
}

func (a assignment) IsFixed(lit clausecreator.Lit) bool {
	b := a.s.model[lit.Var()]
	return b == 1 || b == -1
}

func (a assignment) DecisionLevel() int { return a.s.level() }

func (a assignment) Trail() []clausecreator.Lit { return a.s.trail }

func (a assignment) Value(lit clausecreator.Lit) clausecreator.Tribool {
	return a.s.litStatus(lit)
}
