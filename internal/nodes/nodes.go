// Package nodes defines the semantic tree: cross-linked nodes richer
// than the raw syntax tree, carrying scope and symbol information.
package nodes

// Kind identifies the concrete node type. The set is closed; transform
// registration and candidate dispatch match on it exhaustively.
type Kind string

const (
	KindModule      Kind = "module"
	KindClassDef    Kind = "classdef"
	KindFunctionDef Kind = "functiondef"
	KindImport      Kind = "import"
	KindImportFrom  Kind = "importfrom"
	KindAssign      Kind = "assign"
	KindAssignName  Kind = "assignname"
	KindAssignAttr  Kind = "assignattr"
	KindName        Kind = "name"
	KindAttribute   Kind = "attribute"
	KindCall        Kind = "call"
	KindConst       Kind = "const"
	KindContainer   Kind = "container"
	KindUnknown     Kind = "unknown"
)

// Node is a semantic tree node. The parent link is navigation-only;
// the Module root owns the whole tree.
type Node interface {
	Kind() Kind
	Line() int
	Col() int
	Parent() Node
	SetParent(Node)
	Children() []Node
}

// Scoped is a node that opens a lexical scope and owns a symbol table:
// Module, ClassDef or FunctionDef.
type Scoped interface {
	Node
	ScopeName() string
	LocalsTable() *SymbolTable
}

// AttrOwner is a scoped node that additionally carries an
// instance-attribute table (classes and functions).
type AttrOwner interface {
	Scoped
	InstanceAttrTable() *SymbolTable
}

type Base struct {
	parent Node
	line   int
	col    int
}

func (b *Base) Line() int { return b.line }
func (b *Base) Col() int { return b.col }
func (b *Base) Parent() Node { return b.parent }
func (b *Base) SetParent(p Node) { b.parent = p }

// NewBase is used by the rebuilder to position freshly created nodes.
func NewBase(line, col int) Base { return Base{line: line, col: col} }

// ScopeOf returns the nearest enclosing scope of n, excluding n itself.
func ScopeOf(n Node) Scoped {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if s, ok := p.(Scoped); ok {
			return s
		}
	}
	return nil
}

// FrameOf returns the nearest scope at or above n: the node itself when
// it opens a scope, else the enclosing function, class or module.
func FrameOf(n Node) Scoped {
	if s, ok := n.(Scoped); ok {
		return s
	}
	return ScopeOf(n)
}

// Alias is one imported name with its optional binding alias.
type Alias struct {
	Name string
	As   string
}

// Binding returns the local identifier the alias introduces.
func (a Alias) Binding() string {
	if a.As != "" {
		return a.As
	}
	return a.Name
}

// Import is a plain "import a.b, c as d" statement.
type Import struct {
	Base
	Names []Alias
}

func (n *Import) Kind() Kind { return KindImport }
func (n *Import) Children() []Node { return nil }

// ImportFrom is a "from mod import x, y as z" or "from mod import *"
// statement. Level counts leading dots of a relative import.
type ImportFrom struct {
	Base
	ModName string
	Names   []Alias
	Level   int
}

func (n *ImportFrom) Kind() Kind { return KindImportFrom }
func (n *ImportFrom) Children() []Node { return nil }

// IsWildcard reports whether the statement imports everything.
func (n *ImportFrom) IsWildcard() bool {
	for _, a := range n.Names {
		if a.Name == "*" {
			return true
		}
	}
	return false
}

// Assign is "targets = value".
type Assign struct {
	Base
	Targets []Node
	Value   Node
}

func (n *Assign) Kind() Kind { return KindAssign }
func (n *Assign) Children() []Node {
	out := make([]Node, 0, len(n.Targets)+1)
	out = append(out, n.Targets...)
	if n.Value != nil {
		out = append(out, n.Value)
	}
	return out
}

// AssignName is an identifier in assignment-target position.
type AssignName struct {
	Base
	Name string
}

func (n *AssignName) Kind() Kind { return KindAssignName }
func (n *AssignName) Children() []Node { return nil }

// AssignAttr is "expr.attr" in assignment-target position. Registration
// of the attribute is deferred until the owner of expr is inferred.
type AssignAttr struct {
	Base
	AttrName string
	Expr     Node
}

func (n *AssignAttr) Kind() Kind { return KindAssignAttr }
func (n *AssignAttr) Children() []Node {
	if n.Expr == nil {
		return nil
	}
	return []Node{n.Expr}
}

// NameExpr is an identifier in load position.
type NameExpr struct {
	Base
	Name string
}

func (n *NameExpr) Kind() Kind { return KindName }
func (n *NameExpr) Children() []Node { return nil }

// AttributeExpr is "expr.attr" in load position.
type AttributeExpr struct {
	Base
	Obj  Node
	Attr string
}

func (n *AttributeExpr) Kind() Kind { return KindAttribute }
func (n *AttributeExpr) Children() []Node {
	if n.Obj == nil {
		return nil
	}
	return []Node{n.Obj}
}

// CallExpr is "func(args)".
type CallExpr struct {
	Base
	Func Node
	Args []Node
}

func (n *CallExpr) Kind() Kind { return KindCall }
func (n *CallExpr) Children() []Node {
	out := make([]Node, 0, len(n.Args)+1)
	if n.Func != nil {
		out = append(out, n.Func)
	}
	return append(out, n.Args...)
}

type ConstKind string

const (
	ConstStr   ConstKind = "str"
	ConstBytes ConstKind = "bytes"
	ConstNum   ConstKind = "num"
	ConstBool  ConstKind = "bool"
	ConstNone  ConstKind = "none"
)

// Const is a literal scalar value.
type Const struct {
	Base
	ConstKind ConstKind
	Value     string
}

func (n *Const) Kind() Kind { return KindConst }
func (n *Const) Children() []Node { return nil }

type ContainerKind string

const (
	ContainerList  ContainerKind = "list"
	ContainerTuple ContainerKind = "tuple"
	ContainerDict  ContainerKind = "dict"
	ContainerSet   ContainerKind = "set"
)

// Container is a literal list/tuple/dict/set.
type Container struct {
	Base
	ContainerKind ContainerKind
	Elts          []Node
}

func (n *Container) Kind() Kind { return KindContainer }
func (n *Container) Children() []Node { return n.Elts }

// UnknownNode stands in for syntax the rebuilder does not model.
type UnknownNode struct {
	Base
}

func (n *UnknownNode) Kind() Kind { return KindUnknown }
func (n *UnknownNode) Children() []Node { return nil }
