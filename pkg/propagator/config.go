// Package propagator implements the global CP propagator of spec §2/§3: it
// owns the configuration, the registered constraints, the symbol <-> variable
// mapping, the per-thread engine solvers, the single optional minimize
// constraint with its thread-shared bound, and the model-extension/show
// machinery. The theory parser talks to it through the builder API (spec §6);
// the Boolean host talks to it through the per-thread Theory callbacks.
package propagator

import (
	"github.com/sirupsen/logrus"

	"github.com/potassco/clingcon-core/internal/engine"
	"github.com/potassco/clingcon-core/pkg/intval"
)

// Config bundles the engine knobs with the ambient concerns a host embeds
// the propagator with. Built with functional options; the zero value is not
// usable, call NewConfig.
type Config struct {
	Engine engine.Config
	Log    logrus.FieldLogger
}

// Option mutates a Config under construction.
type Option func(*Config)

// NewConfig returns the default configuration, modified by opts.
func NewConfig(opts ...Option) Config {
	cfg := Config{Engine: engine.DefaultConfig()}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// WithClauseLimit sets the per-constraint translation budget (spec §4.5.4).
func WithClauseLimit(n int) Option {
	return func(c *Config) { c.Engine.ClauseLimit = n }
}

// WithClauseLimitTotal sets the global translation budget (spec §4.5.4).
func WithClauseLimitTotal(n int) Option {
	return func(c *Config) { c.Engine.ClauseLimitTotal = n }
}

// WithRefineReasons toggles greedy reason shrinking (spec §4.5.1).
func WithRefineReasons(on bool) Option {
	return func(c *Config) { c.Engine.RefineReasons = on }
}

// WithPropagateChain toggles intermediate order-literal derivation (spec
// §4.4.1, §9 "Chain propagation").
func WithPropagateChain(on bool) Option {
	return func(c *Config) { c.Engine.PropagateChain = on }
}

// WithMaxChainDecision toggles the MaxChain decision heuristic (spec §4.4.4).
func WithMaxChainDecision(on bool) Option {
	return func(c *Config) { c.Engine.MaxChainDecision = on }
}

// WithBounds sets the initial variable bounds [min, max] (spec §3
// "[Config.min_int, Config.max_int]"). Values are clamped into
// [intval.MinVal, intval.MaxVal].
func WithBounds(min, max intval.Val) Option {
	return func(c *Config) {
		c.Engine.MinInt = intval.Clamp(min)
		c.Engine.MaxInt = intval.Clamp(max)
	}
}

// WithLogger injects a structured logger; absent this, logging is discarded.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Config) { c.Log = log }
}
