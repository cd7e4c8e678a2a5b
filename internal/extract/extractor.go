// Package extract walks a host-language syntax tree looking for string
// literals that hold SQL. A statement is often written as several adjacent
// fragments ("SELECT a, b " + "FROM t"), so fragments found under one
// assignment or call argument are reassembled into a single candidate before
// classification.
package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sqlscout/sqlscout/internal/syntax"
)

// Fragment is one contiguous piece of string-literal content in the host
// source. Start is the byte offset of Text within the source.
type Fragment struct {
	Start int
	Text  string
}

// Candidate is a group of fragments that, joined by newlines, look like one
// SQL statement. Parts is sorted by Start and never empty.
type Candidate struct {
	Parts   []Fragment
	Content string
}

// Context is the result of a point query: the reassembled SQL for the
// candidate under the cursor, the cursor's offset within that SQL, and the
// SQL line up to the cursor.
type Context struct {
	SQL        string
	Offset     int
	LinePrefix string
}

// stringContentKinds are the grammar node kinds that carry the textual body
// of a string literal (quotes and escape markup excluded). Covers the
// tree-sitter grammars we ship plus the common naming variants.
var stringContentKinds = map[string]bool{
	"string_content":                     true, // python
	"string_fragment":                    true, // javascript, typescript
	"interpreted_string_literal_content": true, // go
	"raw_string_literal_content":         true, // go raw strings
	"string_literal_content":             true,
}

// Candidates returns the SQL candidate groups found in the tree, sorted by
// first-fragment offset. Traversal is iterative with an explicit stack, so
// deeply nested source cannot overflow the call stack. Every node is visited
// exactly once and trigger subtrees are not pruned: a query built inside
// another query's call argument is still found on its own.
func Candidates(tree syntax.Tree, source string) []Candidate {
	if tree == nil {
		return nil
	}
	root := tree.RootNode()
	if root == nil {
		return nil
	}

	var out []Candidate
	seen := make(map[string]bool)

	stack := []syntax.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if target := triggerTarget(node); target != nil {
			if cand, ok := buildCandidate(target, source); ok {
				key := dedupeKey(cand)
				if !seen[key] {
					seen[key] = true
					out = append(out, cand)
				}
			}
		}

		for i := node.ChildCount() - 1; i >= 0; i-- {
			if c := node.Child(i); c != nil {
				stack = append(stack, c)
			}
		}
	}

	// Stack order is not source order; callers get a stable, offset-sorted
	// view so "first group" means the lexically first one.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Parts[0].Start < out[j].Parts[0].Start
	})
	return out
}

// triggerTarget returns the subtree to inspect for string fragments, or nil
// when the node is neither assignment-like nor call-like. The checks are
// structural (grammar field names), not keyed on node kinds, so they hold
// across the shipped grammars and their naming conventions:
//
//   - assignment-like: the node binds a right-hand value ("right" in
//     go/python/javascript assignments, "value" in declarators and keyword
//     arguments);
//   - call-like: the node has an argument list; the first positional
//     argument is the candidate regardless of what is being called.
func triggerTarget(node syntax.Node) syntax.Node {
	if rhs := node.ChildByField("right"); rhs != nil {
		return rhs
	}
	if val := node.ChildByField("value"); val != nil {
		return val
	}
	if args := node.ChildByField("arguments"); args != nil {
		if args.NamedChildCount() > 0 {
			return args.NamedChild(0)
		}
	}
	return nil
}

// buildCandidate collects the string content under target, in source order,
// and classifies the joined text.
func buildCandidate(target syntax.Node, source string) (Candidate, bool) {
	frags := collectFragments(target, source)
	if len(frags) == 0 {
		return Candidate{}, false
	}

	sort.SliceStable(frags, func(i, j int) bool { return frags[i].Start < frags[j].Start })

	texts := make([]string, len(frags))
	for i, f := range frags {
		texts[i] = f.Text
	}
	content := strings.Join(texts, "\n")
	if !LooksLikeSQL(content) {
		return Candidate{}, false
	}

	return Candidate{Parts: frags, Content: content}, true
}

// collectFragments gathers all descendant string-content nodes of target.
func collectFragments(target syntax.Node, source string) []Fragment {
	var frags []Fragment
	stack := []syntax.Node{target}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if stringContentKinds[node.Kind()] {
			start, end := node.StartByte(), node.EndByte()
			if start < end && end <= len(source) {
				frags = append(frags, Fragment{Start: start, Text: source[start:end]})
			}
			continue
		}

		for i := node.ChildCount() - 1; i >= 0; i-- {
			if c := node.Child(i); c != nil {
				stack = append(stack, c)
			}
		}
	}
	return frags
}

func dedupeKey(c Candidate) string {
	return fmt.Sprintf("%d:%d", c.Parts[0].Start, len(c.Content))
}

// ContextAt maps a byte offset in the host source to completion context
// inside the candidate whose fragment spans it. Candidates are visited in
// offset order, so the spatially matching group is deterministic. Returns
// nil when the offset is not inside any SQL fragment.
func ContextAt(tree syntax.Tree, source string, offset int) *Context {
	for _, cand := range Candidates(tree, source) {
		prefixLen := 0
		for _, f := range cand.Parts {
			if offset >= f.Start && offset <= f.Start+len(f.Text) {
				sqlOffset := prefixLen + (offset - f.Start)
				before := cand.Content[:sqlOffset]
				if nl := strings.LastIndexByte(before, '\n'); nl >= 0 {
					before = before[nl+1:]
				}
				return &Context{
					SQL:        cand.Content,
					Offset:     sqlOffset,
					LinePrefix: before,
				}
			}
			// +1 for the newline separator inserted by the join.
			prefixLen += len(f.Text) + 1
		}
	}
	return nil
}
