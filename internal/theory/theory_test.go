package theory

import (
	"testing"

	"github.com/alecthomas/participle/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, src string) *Statement {
	t.Helper()
	p, err := Parse("test", src)
	require.NoError(t, err)
	require.Len(t, p.Statements, 1)
	return p.Statements[0]
}

func TestParsePrintRoundTrip(t *testing.T) {
	cases := []string{
		"&sum{x; 2*y} <= 5.",
		"&sum{x} >= 3.",
		"&dom{1..10} = x.",
		"&distinct{x; y; z}.",
		"&disjoint{x@1; y@2}.",
		"&minimize{x}.",
		"&show{x; p/1}.",
		"{a}.",
		":- &sum{x} = 0.",
		"&sum{x} >= 1 :- a.",
		"&nsum{x*y} <= 10.",
	}
	for _, src := range cases {
		p, err := Parse("test", src)
		require.NoError(t, err, src)
		reparsed, err := Parse("test", p.String())
		require.NoError(t, err, "printing %q gave unparseable %q", src, p.String())
		assert.Equal(t, p.String(), reparsed.String(), src)
	}
}

func TestParseSyntaxErrorHasPosition(t *testing.T) {
	_, err := Parse("test", "&sum{x} <=.")
	require.Error(t, err)
	pe, ok := errors.Cause(err).(participle.Error)
	require.True(t, ok, "parse error keeps participle's positioned error")
	assert.Equal(t, 1, pe.Position().Line)
}

func TestUnfoldCrossProduct(t *testing.T) {
	st := parseOne(t, "&sum{p(1;2,a;b)} <= 5.")
	terms := Unfold(st.Rule.Atom.Elements[0].Tuple[0])
	require.Len(t, terms, 4)
	got := make([]string, len(terms))
	for i, tm := range terms {
		got[i] = tm.String()
	}
	assert.Equal(t, []string{"p(1,a)", "p(1,b)", "p(2,a)", "p(2,b)"}, got)
}

func TestUnfoldWithoutPoolsIsIdentity(t *testing.T) {
	st := parseOne(t, "&sum{2*x+3} <= 5.")
	terms := Unfold(st.Rule.Atom.Elements[0].Tuple[0])
	require.Len(t, terms, 1)
	assert.Equal(t, "2*x+3", terms[0].String())
}

func TestEvalLinear(t *testing.T) {
	st := parseOne(t, "&sum{2*x - 3*y + 7} <= 5.")
	expr, err := evalTerm(st.Rule.Atom.Elements[0].Tuple[0])
	require.NoError(t, err)
	require.Len(t, expr.terms, 2)
	assert.Equal(t, "x", expr.terms[0].sym)
	assert.EqualValues(t, 2, expr.terms[0].co)
	assert.Equal(t, "y", expr.terms[1].sym)
	assert.EqualValues(t, -3, expr.terms[1].co)
	assert.EqualValues(t, 7, expr.c)
	assert.Empty(t, expr.prods)
}

func TestEvalConstantFolding(t *testing.T) {
	st := parseOne(t, "&sum{2**3 * x + 10/3 + 10\\3} <= 5.")
	expr, err := evalTerm(st.Rule.Atom.Elements[0].Tuple[0])
	require.NoError(t, err)
	require.Len(t, expr.terms, 1)
	assert.EqualValues(t, 8, expr.terms[0].co)
	assert.EqualValues(t, 3+1, expr.c)
}

func TestEvalProduct(t *testing.T) {
	st := parseOne(t, "&nsum{2*x*y} <= 5.")
	expr, err := evalTerm(st.Rule.Atom.Elements[0].Tuple[0])
	require.NoError(t, err)
	require.Len(t, expr.prods, 1)
	assert.EqualValues(t, 2, expr.prods[0].co)
	assert.Equal(t, "x", expr.prods[0].a)
	assert.Equal(t, "y", expr.prods[0].b)
}

func TestEvalRejectsNonConstantDivision(t *testing.T) {
	st := parseOne(t, "&sum{x/2} <= 5.")
	_, err := evalTerm(st.Rule.Atom.Elements[0].Tuple[0])
	assert.True(t, errors.Is(err, ErrSyntax))
}

func TestEvalRejectsDotsOutsideDom(t *testing.T) {
	st := parseOne(t, "&sum{1..5} <= 5.")
	_, err := evalTerm(st.Rule.Atom.Elements[0].Tuple[0])
	assert.True(t, errors.Is(err, ErrSyntax))
}

func TestDomRange(t *testing.T) {
	st := parseOne(t, "&dom{1..10; 15} = x.")
	elems := st.Rule.Atom.Elements
	r, err := domRange(elems[0].Tuple[0])
	require.NoError(t, err)
	assert.EqualValues(t, 1, r.Lo)
	assert.EqualValues(t, 11, r.Hi)

	r, err = domRange(elems[1].Tuple[0])
	require.NoError(t, err)
	assert.EqualValues(t, 15, r.Lo)
	assert.EqualValues(t, 16, r.Hi)
}

func TestDisjointElem(t *testing.T) {
	st := parseOne(t, "&disjoint{x@3; y}.")
	elems := st.Rule.Atom.Elements

	expr, length, err := disjointElem(elems[0].Tuple[0])
	require.NoError(t, err)
	assert.EqualValues(t, 3, length)
	require.Len(t, expr.terms, 1)
	assert.Equal(t, "x", expr.terms[0].sym)

	_, length, err = disjointElem(elems[1].Tuple[0])
	require.NoError(t, err)
	assert.EqualValues(t, 1, length, "missing '@' defaults to unit length")
}

func TestTagAtom(t *testing.T) {
	assert.Equal(t, "__sum_h", TagAtom("sum", true))
	assert.Equal(t, "__sum_b", TagAtom("sum", false))
	assert.Equal(t, "__nsum_h", TagAtom("nsum", true))
	assert.Equal(t, "dom", TagAtom("dom", true))
}

func TestFlipRelation(t *testing.T) {
	flips := map[string]string{
		"=": "!=", "!=": "=",
		"<=": ">", ">": "<=",
		"<": ">=", ">=": "<",
	}
	for op, want := range flips {
		assert.Equal(t, want, FlipRelation(op))
	}
	// Flipping twice is the identity.
	for op := range flips {
		assert.Equal(t, op, FlipRelation(FlipRelation(op)))
	}
}

func TestSignatureOf(t *testing.T) {
	st := parseOne(t, "&show{p/2}.")
	name, arity, ok := signatureOf(st.Rule.Atom.Elements[0].Tuple[0])
	require.True(t, ok)
	assert.Equal(t, "p", name)
	assert.Equal(t, 2, arity)

	st = parseOne(t, "&show{x}.")
	_, _, ok = signatureOf(st.Rule.Atom.Elements[0].Tuple[0])
	assert.False(t, ok)
}

func TestParseBodyLiterals(t *testing.T) {
	st := parseOne(t, "&sum{x} >= 1 :- a, not b.")
	require.Len(t, st.Rule.Body, 2)
	assert.Equal(t, "a", st.Rule.Body[0].Name)
	assert.False(t, st.Rule.Body[0].Not)
	assert.Equal(t, "b", st.Rule.Body[1].Name)
	assert.True(t, st.Rule.Body[1].Not)
}

func TestParseIntegrity(t *testing.T) {
	st := parseOne(t, ":- &sum{x} = 0.")
	require.NotNil(t, st.Integrity)
	assert.Equal(t, "=", st.Integrity.Atom.Guard.Op)
}
