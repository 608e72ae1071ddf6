// Command clingcon-cp-demo drives the CP propagator end to end against the
// bundled reference Boolean solver: it parses a theory program (a named
// built-in scenario or a file), grounds it through the builder API, and
// searches for a model, printing csp(...) symbols for every answer found.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/potassco/clingcon-core/internal/boolsolver"
	"github.com/potassco/clingcon-core/internal/theory"
	"github.com/potassco/clingcon-core/pkg/propagator"
)

var scenarios = map[string]string{
	"bounds":     "&dom{0..10} = x. &sum{x} >= 3. &sum{x} <= 5.",
	"reified":    "{a}. &dom{1..10} = x. &sum{x} >= 1 :- a.",
	"pigeonhole": "&dom{1..2} = x. &dom{1..2} = y. &dom{1..2} = z. &distinct{x;y;z}.",
	"minimize":   "&dom{0..10} = x. &sum{x} >= 3. &minimize{x}.",
}

func main() {
	var (
		clauseLimit      int
		clauseLimitTotal int
		refineReasons    bool
		propagateChain   bool
		verbose          bool
	)

	root := &cobra.Command{
		Use:   "clingcon-cp-demo <scenario|file>",
		Short: "Solve a CP theory program with the reference Boolean host",
		Long: "Solves a constraint program end to end. The argument is one of the " +
			"built-in scenarios (" + strings.Join(scenarioNames(), ", ") + ") or a path " +
			"to a file containing theory statements.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.New()
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
			src, ok := scenarios[args[0]]
			if !ok {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("%q is neither a scenario nor a readable file: %w", args[0], err)
				}
				src = string(data)
			}
			return run(src, log,
				propagator.WithClauseLimit(clauseLimit),
				propagator.WithClauseLimitTotal(clauseLimitTotal),
				propagator.WithRefineReasons(refineReasons),
				propagator.WithPropagateChain(propagateChain),
				propagator.WithLogger(log),
			)
		},
	}
	root.Flags().IntVar(&clauseLimit, "clause-limit", 64, "per-constraint translation budget")
	root.Flags().IntVar(&clauseLimitTotal, "clause-limit-total", 10000, "global translation budget")
	root.Flags().BoolVar(&refineReasons, "refine-reasons", false, "shrink reason clauses greedily")
	root.Flags().BoolVar(&propagateChain, "propagate-chain", false, "derive intermediate order literals")
	root.Flags().BoolVar(&verbose, "verbose", false, "debug-level logging")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for n := range scenarios {
		names = append(names, n)
	}
	return names
}

func run(src string, log *logrus.Logger, opts ...propagator.Option) error {
	program, err := theory.Parse("program", src)
	if err != nil {
		theory.Report(src, err)
		return err
	}

	host := boolsolver.New()
	p := propagator.New(host, opts...)
	if err := theory.NewGrounder(p).Ground(program); err != nil {
		return err
	}

	ok, err := p.Init(1)
	if err != nil {
		return err
	}
	if !ok {
		color.Red("UNSAT")
		return nil
	}

	thread := p.Thread(0)
	host.SetTheory(thread)

	answer := 0
	var last []string
	status := host.Solve(func() bool {
		symbols, merr := p.OnModel(thread)
		if merr != nil {
			err = merr
			return false
		}
		answer++
		last = symbols
		log.WithField("answer", answer).Info(strings.Join(symbols, " "))
		// Keep searching for better models while an objective exists.
		return p.MinimizeBound() != nil
	})
	if err != nil {
		return err
	}
	if terr := thread.Err(); terr != nil {
		return terr
	}

	switch status {
	case boolsolver.Sat:
		color.Green("SAT")
		fmt.Println(strings.Join(last, " "))
	default:
		color.Red("UNSAT")
	}
	stats := p.Stats()
	log.WithFields(logrus.Fields{
		"variables":   stats.NumVariables,
		"constraints": stats.NumConstraints,
		"clauses":     stats.NumClauses,
		"literals":    stats.NumLiterals,
	}).Debug("solve finished")
	return nil
}
