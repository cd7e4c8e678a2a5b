package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlscout/sqlscout/internal/syntax"
)

// fakeNode implements syntax.Node for tests without a real grammar.
type fakeNode struct {
	kind     string
	start    int
	end      int
	children []*fakeNode
	fields   map[string]*fakeNode
}

func (n *fakeNode) Kind() string         { return n.kind }
func (n *fakeNode) ChildCount() int      { return len(n.children) }
func (n *fakeNode) NamedChildCount() int { return len(n.children) }

func (n *fakeNode) Child(i int) syntax.Node      { return n.children[i] }
func (n *fakeNode) NamedChild(i int) syntax.Node { return n.children[i] }

func (n *fakeNode) ChildByField(name string) syntax.Node {
	if c, ok := n.fields[name]; ok {
		return c
	}
	return nil
}

func (n *fakeNode) StartByte() int { return n.start }
func (n *fakeNode) EndByte() int   { return n.end }

type fakeTree struct{ root *fakeNode }

func (t *fakeTree) RootNode() syntax.Node { return t.root }
func (t *fakeTree) Close()                {}

// buildSource assembles a source string and returns string_fragment leaf
// nodes for each marked piece.
type sourceBuilder struct {
	b     strings.Builder
	frags []*fakeNode
}

func (sb *sourceBuilder) raw(s string) {
	sb.b.WriteString(s)
}

func (sb *sourceBuilder) str(s string) *fakeNode {
	sb.b.WriteString(`"`)
	start := sb.b.Len()
	sb.b.WriteString(s)
	n := &fakeNode{kind: "string_fragment", start: start, end: sb.b.Len()}
	sb.b.WriteString(`"`)
	sb.frags = append(sb.frags, n)
	return n
}

func wrapString(frag *fakeNode) *fakeNode {
	return &fakeNode{kind: "string", start: frag.start - 1, end: frag.end + 1, children: []*fakeNode{frag}}
}

func TestCandidatesAdjacentFragmentsJoined(t *testing.T) {
	// q = "SELECT " + "* FROM t"
	var sb sourceBuilder
	sb.raw("q = ")
	f1 := sb.str("SELECT ")
	sb.raw(" + ")
	f2 := sb.str("* FROM t")
	source := sb.b.String()

	binary := &fakeNode{
		kind:     "binary_expression",
		children: []*fakeNode{wrapString(f1), wrapString(f2)},
	}
	assign := &fakeNode{
		kind:     "assignment",
		children: []*fakeNode{binary},
		fields:   map[string]*fakeNode{"right": binary},
	}
	tree := &fakeTree{root: &fakeNode{kind: "module", children: []*fakeNode{assign}}}

	cands := Candidates(tree, source)
	require.Len(t, cands, 1)
	assert.Equal(t, "SELECT \n* FROM t", cands[0].Content)
	require.Len(t, cands[0].Parts, 2)
	assert.Equal(t, "SELECT ", cands[0].Parts[0].Text)
	assert.Equal(t, "* FROM t", cands[0].Parts[1].Text)
	assert.Less(t, cands[0].Parts[0].Start, cands[0].Parts[1].Start)
}

func TestCandidatesCallFirstArgument(t *testing.T) {
	// db.query("SELECT id FROM users", params) — callee name is irrelevant,
	// only the first positional argument is inspected.
	var sb sourceBuilder
	sb.raw("db.query(")
	f1 := sb.str("SELECT id FROM users")
	sb.raw(", params)")
	source := sb.b.String()

	strNode := wrapString(f1)
	paramsNode := &fakeNode{kind: "identifier", start: f1.end + 3, end: f1.end + 9}
	args := &fakeNode{kind: "argument_list", children: []*fakeNode{strNode, paramsNode}}
	call := &fakeNode{
		kind:     "call_expression",
		children: []*fakeNode{args},
		fields:   map[string]*fakeNode{"arguments": args},
	}
	tree := &fakeTree{root: &fakeNode{kind: "module", children: []*fakeNode{call}}}

	cands := Candidates(tree, source)
	require.Len(t, cands, 1)
	assert.Equal(t, "SELECT id FROM users", cands[0].Content)
}

func TestCandidatesRejectNonSQL(t *testing.T) {
	var sb sourceBuilder
	sb.raw("x = ")
	f := sb.str("hello world, long enough but not sql")
	source := sb.b.String()

	strNode := wrapString(f)
	assign := &fakeNode{kind: "assignment", children: []*fakeNode{strNode},
		fields: map[string]*fakeNode{"right": strNode}}
	tree := &fakeTree{root: &fakeNode{kind: "module", children: []*fakeNode{assign}}}

	assert.Empty(t, Candidates(tree, source))
}

func TestCandidatesDeduplicated(t *testing.T) {
	// The same string reached through an assignment whose RHS is a call:
	// both triggers resolve to overlapping fragment sets; the duplicate
	// (same first offset, same content length) is dropped.
	var sb sourceBuilder
	sb.raw("q = run(")
	f := sb.str("SELECT id FROM users")
	sb.raw(")")
	source := sb.b.String()

	strNode := wrapString(f)
	args := &fakeNode{kind: "argument_list", children: []*fakeNode{strNode}}
	call := &fakeNode{kind: "call_expression", children: []*fakeNode{args},
		fields: map[string]*fakeNode{"arguments": args}}
	assign := &fakeNode{kind: "assignment", children: []*fakeNode{call},
		fields: map[string]*fakeNode{"right": call}}
	tree := &fakeTree{root: &fakeNode{kind: "module", children: []*fakeNode{assign}}}

	cands := Candidates(tree, source)
	require.Len(t, cands, 1)
}

func TestCandidatesSortedByOffset(t *testing.T) {
	var sb sourceBuilder
	sb.raw("a = ")
	f1 := sb.str("SELECT 1 FROM first_table")
	sb.raw("\nb = ")
	f2 := sb.str("SELECT 2 FROM second_table")
	source := sb.b.String()

	s1, s2 := wrapString(f1), wrapString(f2)
	a1 := &fakeNode{kind: "assignment", children: []*fakeNode{s1},
		fields: map[string]*fakeNode{"right": s1}}
	a2 := &fakeNode{kind: "assignment", children: []*fakeNode{s2},
		fields: map[string]*fakeNode{"right": s2}}
	// Children deliberately out of source order: the result must still be
	// offset-sorted.
	tree := &fakeTree{root: &fakeNode{kind: "module", children: []*fakeNode{a2, a1}}}

	cands := Candidates(tree, source)
	require.Len(t, cands, 2)
	assert.Contains(t, cands[0].Content, "first_table")
	assert.Contains(t, cands[1].Content, "second_table")
}

func TestCandidatesNestedCallInsideAssignment(t *testing.T) {
	// Subtrees are not pruned: a call nested under an accepted assignment
	// RHS is considered on its own as well, but here its candidate
	// deduplicates against the assignment's larger group only if the keys
	// match. Different content lengths keep both.
	var sb sourceBuilder
	sb.raw("q = wrap(")
	f1 := sb.str("SELECT id FROM users")
	sb.raw(") + ")
	f2 := sb.str(" WHERE active")
	source := sb.b.String()

	s1, s2 := wrapString(f1), wrapString(f2)
	args := &fakeNode{kind: "argument_list", children: []*fakeNode{s1}}
	call := &fakeNode{kind: "call_expression", children: []*fakeNode{args},
		fields: map[string]*fakeNode{"arguments": args}}
	binary := &fakeNode{kind: "binary_expression", children: []*fakeNode{call, s2}}
	assign := &fakeNode{kind: "assignment", children: []*fakeNode{binary},
		fields: map[string]*fakeNode{"right": binary}}
	tree := &fakeTree{root: &fakeNode{kind: "module", children: []*fakeNode{assign}}}

	cands := Candidates(tree, source)
	require.Len(t, cands, 2)
	assert.Equal(t, "SELECT id FROM users\n WHERE active", cands[0].Content)
	assert.Equal(t, "SELECT id FROM users", cands[1].Content)
}

func TestCandidatesNilTree(t *testing.T) {
	assert.Empty(t, Candidates(nil, ""))
}

func TestContextAt(t *testing.T) {
	var sb sourceBuilder
	sb.raw("q = ")
	f1 := sb.str("SELECT u.id FROM users u")
	sb.raw(" + ")
	f2 := sb.str(" WHERE u.")
	source := sb.b.String()

	s1, s2 := wrapString(f1), wrapString(f2)
	binary := &fakeNode{kind: "binary_expression", children: []*fakeNode{s1, s2}}
	assign := &fakeNode{kind: "assignment", children: []*fakeNode{binary},
		fields: map[string]*fakeNode{"right": binary}}
	tree := &fakeTree{root: &fakeNode{kind: "module", children: []*fakeNode{assign}}}

	// Cursor at the end of the second fragment, right after "u.".
	ctx := ContextAt(tree, source, f2.end)
	require.NotNil(t, ctx)
	assert.Equal(t, "SELECT u.id FROM users u\n WHERE u.", ctx.SQL)
	assert.Equal(t, len(ctx.SQL), ctx.Offset)
	assert.Equal(t, " WHERE u.", ctx.LinePrefix)

	// Cursor inside the first fragment.
	ctx = ContextAt(tree, source, f1.start+6)
	require.NotNil(t, ctx)
	assert.Equal(t, 6, ctx.Offset)
	assert.Equal(t, "SELECT", ctx.LinePrefix)

	// Cursor outside any fragment.
	assert.Nil(t, ContextAt(tree, source, 0))
}

func TestContextAtDeepNestingNoRecursion(t *testing.T) {
	// A pathologically deep tree must not blow the stack; traversal is
	// iterative.
	var sb sourceBuilder
	sb.raw("q = ")
	f := sb.str("SELECT id FROM users")
	source := sb.b.String()

	strNode := wrapString(f)
	inner := strNode
	for i := 0; i < 50000; i++ {
		inner = &fakeNode{kind: "parenthesized_expression",
			start: inner.start, end: inner.end, children: []*fakeNode{inner}}
	}
	assign := &fakeNode{kind: "assignment", children: []*fakeNode{inner},
		fields: map[string]*fakeNode{"right": inner}}
	tree := &fakeTree{root: &fakeNode{kind: "module", children: []*fakeNode{assign}}}

	cands := Candidates(tree, source)
	require.Len(t, cands, 1)
	assert.Equal(t, "SELECT id FROM users", cands[0].Content)
}
