// Package syntax wraps the tree-sitter Python grammar behind the
// parser contract the builder consumes: text in, raw syntax tree out,
// or a syntax failure.
package syntax

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	errs "semtree/internal/core/errors"
)

// Tree is an owned raw syntax tree. Close must be called once the
// semantic rebuild has copied everything it needs.
type Tree struct {
	Source []byte
	tree   *sitter.Tree
}

func (t *Tree) Root() *sitter.Node { return t.tree.RootNode() }

func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

type Parser struct {
	lang *sitter.Language
}

func NewParser() *Parser {
	return &Parser{lang: sitter.NewLanguage(tree_sitter_python.Language())}
}

// Parse parses source text. Any malformed construct in the tree is
// reported as a SyntaxFailure carrying the original source text.
func (p *Parser) Parse(src string) (*Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.lang)

	content := []byte(src)
	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, errs.New(errs.KindSyntaxFailure, "parsing failed").WithSource(src)
	}

	root := tree.RootNode()
	if root == nil {
		tree.Close()
		return nil, errs.New(errs.KindSyntaxFailure, "parsing failed").WithSource(src)
	}
	if root.HasError() {
		line, col := firstError(root)
		tree.Close()
		return nil, errs.New(errs.KindSyntaxFailure,
			fmt.Sprintf("parsing failed at line %d, column %d", line, col)).WithSource(src)
	}

	return &Tree{Source: content, tree: tree}, nil
}

// firstError locates the first ERROR or MISSING node, 1-based.
func firstError(node *sitter.Node) (int, int) {
	if node.IsError() || node.IsMissing() {
		pos := node.StartPosition()
		return int(pos.Row) + 1, int(pos.Column) + 1
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsMissing() {
			return firstError(child)
		}
	}
	pos := node.StartPosition()
	return int(pos.Row) + 1, int(pos.Column) + 1
}
