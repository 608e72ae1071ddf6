// Package theory implements the external theory parser of spec §6: the
// sum/dom/disjoint term grammar with its operator-precedence table, pool
// unfolding, relation normalization, and the translation of parsed theory
// atoms into builder-API calls against the propagator.
package theory

import (
	"github.com/alecthomas/participle/v2/lexer"
)

var theoryLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Comments
		{Name: "Comment", Pattern: `%[^\n]*`, Action: nil},

		// Multi-char operators before their single-char prefixes
		{Name: "RuleArrow", Pattern: `:-`, Action: nil},
		{Name: "Pow", Pattern: `\*\*`, Action: nil},
		{Name: "Dots", Pattern: `\.\.`, Action: nil},
		{Name: "Le", Pattern: `<=`, Action: nil},
		{Name: "Ge", Pattern: `>=`, Action: nil},
		{Name: "Ne", Pattern: `!=`, Action: nil},

		// Integer literals
		{Name: "Number", Pattern: `[0-9]+`, Action: nil},

		// Constants and variable names (lowercase-first, clingo-style)
		{Name: "Ident", Pattern: `[a-z_][a-zA-Z0-9_]*`, Action: nil},

		// Single-char operators
		{Name: "Op", Pattern: `[-+*/\\@<>=&]`, Action: nil},

		// Punctuation
		{Name: "Punct", Pattern: `[{}();,.]`, Action: nil},

		// Whitespace
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`, Action: nil},
	},
})
