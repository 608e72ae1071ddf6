package clausecreator

// SearchCreator forwards every call straight to the host: it is used once
// search has begun and the host's assignment is live, so there is nothing
// worth buffering (spec §4.2 "a search-time creator that forwards
// directly").
type SearchCreator struct {
	host Host
}

// NewSearchCreator wraps host for use during search.
func NewSearchCreator(host Host) *SearchCreator {
	return &SearchCreator{host: host}
}

var _ Creator = (*SearchCreator)(nil)

func (c *SearchCreator) AddLiteral() Lit { return NewLit(c.host.NewVar(), true) }

func (c *SearchCreator) AddWatch(lit Lit) { c.host.AddWatch(lit) }

func (c *SearchCreator) AddClause(lits []Lit, kind ClauseKind) bool {
	return c.host.AddClause(lits, kind)
}

func (c *SearchCreator) AddWeightConstraint(lits []Lit, weights []int, bound int, kind ClauseKind) bool {
	return c.host.AddWeightConstraint(lits, weights, bound, kind)
}

func (c *SearchCreator) Propagate() bool { return c.host.Propagate() }

func (c *SearchCreator) Assignment() Assignment { return c.host.Assignment() }
