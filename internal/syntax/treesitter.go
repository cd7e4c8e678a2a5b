package syntax

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// ErrNoParser is returned when no grammar is registered for a file.
// Callers are expected to degrade to empty results, not fail.
var ErrNoParser = fmt.Errorf("no parser available")

// grammars maps file extensions to tree-sitter language constructors.
// The constructor is deferred so an unused grammar costs nothing.
var grammars = map[string]func() unsafe.Pointer{
	".go":  tree_sitter_go.Language,
	".py":  tree_sitter_python.Language,
	".js":  tree_sitter_javascript.Language,
	".jsx": tree_sitter_javascript.Language,
	".mjs": tree_sitter_javascript.Language,
	".ts":  tree_sitter_typescript.LanguageTypescript,
	".tsx": tree_sitter_typescript.LanguageTSX,
}

var extLanguageNames = map[string]string{
	".go":  "go",
	".py":  "python",
	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".ts":  "typescript",
	".tsx": "tsx",
}

// SupportsFile reports whether a grammar is registered for the file's
// extension.
func SupportsFile(path string) bool {
	_, ok := grammars[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ParserForFile returns a parser for the file's extension, or ErrNoParser.
func ParserForFile(path string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	ctor, ok := grammars[ext]
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoParser, ext)
	}
	return newTSParser(extLanguageNames[ext], ctor)
}

// tsParser wraps a tree-sitter parser for one language. It serializes Parse
// calls; tree-sitter parsers are not safe for concurrent use.
type tsParser struct {
	mu   sync.Mutex
	name string
	p    *tree_sitter.Parser
}

func newTSParser(name string, ctor func() unsafe.Pointer) (Parser, error) {
	p := tree_sitter.NewParser()
	if err := p.SetLanguage(tree_sitter.NewLanguage(ctor())); err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: grammar %s: %v", ErrNoParser, name, err)
	}
	return &tsParser{name: name, p: p}, nil
}

func (t *tsParser) Language() string { return t.name }

func (t *tsParser) Parse(source []byte) (Tree, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tree := t.p.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse failed for %s source", t.name)
	}
	return &tsTree{tree: tree, source: source}, nil
}

type tsTree struct {
	tree   *tree_sitter.Tree
	source []byte
	closed bool
}

func (t *tsTree) RootNode() Node {
	return tsNode{n: t.tree.RootNode()}
}

func (t *tsTree) Close() {
	if !t.closed {
		t.closed = true
		t.tree.Close()
	}
}

type tsNode struct {
	n *tree_sitter.Node
}

func (w tsNode) Kind() string { return w.n.Kind() }

func (w tsNode) ChildCount() int { return int(w.n.ChildCount()) }

func (w tsNode) Child(i int) Node {
	return wrap(w.n.Child(uint(i)))
}

func (w tsNode) NamedChildCount() int { return int(w.n.NamedChildCount()) }

func (w tsNode) NamedChild(i int) Node {
	return wrap(w.n.NamedChild(uint(i)))
}

func (w tsNode) ChildByField(name string) Node {
	return wrap(w.n.ChildByFieldName(name))
}

func (w tsNode) StartByte() int { return int(w.n.StartByte()) }

func (w tsNode) EndByte() int { return int(w.n.EndByte()) }

// wrap keeps nil *tree_sitter.Node from becoming a non-nil Node interface.
func wrap(n *tree_sitter.Node) Node {
	if n == nil {
		return nil
	}
	return tsNode{n: n}
}
