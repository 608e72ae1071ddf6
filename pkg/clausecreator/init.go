package clausecreator

// bufferedClause and bufferedWeight hold a posted clause/weight-constraint
// until InitCreator.Commit flushes them to the host in submission order.
type bufferedClause struct {
	lits []Lit
	kind ClauseKind
}

type bufferedWeight struct {
	lits    []Lit
	weights []int
	bound   int
	kind    ClauseKind
}

// InitCreator buffers clauses, weight constraints, and minimize literals
// until Commit, so that the builder API (spec §6) can register an entire
// problem — including constraints that reference literals not yet posted to
// the host — before the host's own init-time simplification runs once over
// everything (spec §4.2 "an init-time creator that buffers clauses, weight
// constraints, and minimize literals until commit").
type InitCreator struct {
	host            Host
	clauses         []bufferedClause
	weights         []bufferedWeight
	minimizeLits    []Lit
	minimizeWeights []int
	committed       bool
}

// NewInitCreator wraps host for use while the problem is being built.
func NewInitCreator(host Host) *InitCreator {
	return &InitCreator{host: host}
}

var _ Creator = (*InitCreator)(nil)

// AddLiteral allocates immediately: buffering clauses makes sense because
// they may reference literals created after them in submission order, but a
// literal itself has no "not yet known" representation to buffer.
func (c *InitCreator) AddLiteral() Lit { return NewLit(c.host.NewVar(), true) }

// AddWatch forwards immediately: registering interest in a literal has no
// ordering dependency on the clauses still buffered.
func (c *InitCreator) AddWatch(lit Lit) { c.host.AddWatch(lit) }

// AddClause buffers the clause. It optimistically returns true; a
// last-moment top-level conflict discovered only during Commit aborts the
// whole Commit instead.
func (c *InitCreator) AddClause(lits []Lit, kind ClauseKind) bool {
	cp := make([]Lit, len(lits))
	copy(cp, lits)
	c.clauses = append(c.clauses, bufferedClause{lits: cp, kind: kind})
	return true
}

// AddWeightConstraint buffers the weight constraint, same rationale as
// AddClause.
func (c *InitCreator) AddWeightConstraint(lits []Lit, weights []int, bound int, kind ClauseKind) bool {
	lp := make([]Lit, len(lits))
	copy(lp, lits)
	wp := make([]int, len(weights))
	copy(wp, weights)
	c.weights = append(c.weights, bufferedWeight{lits: lp, weights: wp, bound: bound, kind: kind})
	return true
}

// Propagate is a no-op during init: the host has no live assignment to
// propagate against until Commit has posted the buffered clauses.
func (c *InitCreator) Propagate() bool { return true }

// Assignment returns the host's (still mostly empty) assignment view.
func (c *InitCreator) Assignment() Assignment { return c.host.Assignment() }

// AddMinimizeLit buffers one term of the objective function's literal/weight
// pair (builder API's add_minimize, spec §6), to be handed to the minimize
// constraint once Commit runs.
func (c *InitCreator) AddMinimizeLit(lit Lit, weight int) {
	c.minimizeLits = append(c.minimizeLits, lit)
	c.minimizeWeights = append(c.minimizeWeights, weight)
}

// Commit flushes every buffered clause and weight constraint to the host in
// submission order and returns the accumulated minimize literals/weights
// for the caller to build the minimize constraint state from. ok is false
// if any buffered clause or weight constraint conflicted unresolvably.
// Commit may only be called once.
func (c *InitCreator) Commit() (minimizeLits []Lit, minimizeWeights []int, ok bool) {
	if c.committed {
		return c.minimizeLits, c.minimizeWeights, true
	}
	c.committed = true
	for _, bc := range c.clauses {
		if !c.host.AddClause(bc.lits, bc.kind) {
			return c.minimizeLits, c.minimizeWeights, false
		}
	}
	for _, bw := range c.weights {
		if !c.host.AddWeightConstraint(bw.lits, bw.weights, bw.bound, bw.kind) {
			return c.minimizeLits, c.minimizeWeights, false
		}
	}
	if !c.host.Propagate() {
		return c.minimizeLits, c.minimizeWeights, false
	}
	return c.minimizeLits, c.minimizeWeights, true
}
