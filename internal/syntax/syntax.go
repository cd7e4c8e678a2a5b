// Package syntax abstracts the host-language parser behind a small
// structural interface. The extractor only ever reads node kinds, field
// children, and byte ranges, so any parser backend can be substituted; the
// production backend wraps tree-sitter.
package syntax

// Node is one typed node in a parsed syntax tree. Byte offsets index into
// the source string the tree was parsed from.
type Node interface {
	// Kind returns the grammar's tag for this node, e.g. "call_expression".
	Kind() string

	ChildCount() int
	Child(i int) Node

	NamedChildCount() int
	NamedChild(i int) Node

	// ChildByField returns the child for a grammar field name ("right",
	// "value", "arguments", ...), or nil when the node has no such field.
	ChildByField(name string) Node

	StartByte() int
	EndByte() int
}

// Tree is a parsed source file.
type Tree interface {
	RootNode() Node

	// Close releases parser-owned memory. Safe to call once per tree.
	Close()
}

// Parser turns source text into a Tree.
type Parser interface {
	Parse(source []byte) (Tree, error)

	// Language names the grammar backing this parser, e.g. "python".
	Language() string
}
