// Package transform runs registered mutation passes over a finished
// semantic tree. Transforms run strictly after deferred resolution and
// may replace the tree's root.
package transform

import (
	"log/slog"

	"semtree/internal/nodes"
)

// Fn rewrites one node. Returning nil keeps the original node.
type Fn func(nodes.Node) nodes.Node

// Predicate gates a transform to a subset of nodes of its kind.
type Predicate func(nodes.Node) bool

type entry struct {
	fn        Fn
	predicate Predicate
}

// Registry holds transforms keyed by node kind.
type Registry struct {
	transforms map[nodes.Kind][]entry
}

func NewRegistry() *Registry {
	return &Registry{transforms: make(map[nodes.Kind][]entry)}
}

// Register adds a transform for one node kind. A nil predicate matches
// every node of the kind.
func (r *Registry) Register(kind nodes.Kind, fn Fn, predicate Predicate) {
	r.transforms[kind] = append(r.transforms[kind], entry{fn: fn, predicate: predicate})
}

// Len returns the number of registered transforms.
func (r *Registry) Len() int {
	n := 0
	for _, list := range r.transforms {
		n += len(list)
	}
	return n
}

// Apply visits the module depth-first, children before parents, and
// returns the (possibly replaced) root. A transform that replaces the
// root with a non-module node is ignored with a warning; the pipeline
// contract is Module in, Module out.
func (r *Registry) Apply(mod *nodes.Module) *nodes.Module {
	if len(r.transforms) == 0 {
		return mod
	}
	out := r.visit(mod)
	replaced, ok := out.(*nodes.Module)
	if !ok {
		slog.Warn("transform replaced module root with non-module node, keeping original",
			"module", mod.Name, "kind", out.Kind())
		return mod
	}
	return replaced
}

func (r *Registry) visit(node nodes.Node) nodes.Node {
	for _, child := range node.Children() {
		if replacement := r.visit(child); replacement != child {
			replaceChild(node, child, replacement)
		}
	}
	return r.apply(node)
}

func (r *Registry) apply(node nodes.Node) nodes.Node {
	current := node
	for _, e := range r.transforms[current.Kind()] {
		if e.predicate != nil && !e.predicate(current) {
			continue
		}
		if next := e.fn(current); next != nil {
			next.SetParent(current.Parent())
			current = next
		}
	}
	return current
}

// replaceChild swaps one child slot in place. Symbol-table bindings
// keep pointing at the original nodes; a transform that changes node
// identity must rebind the tables itself.
func replaceChild(parent, old, repl nodes.Node) {
	switch p := parent.(type) {
	case *nodes.Module:
		replaceInSlice(p.Body, old, repl)
	case *nodes.ClassDef:
		replaceInSlice(p.Body, old, repl)
		replaceInSlice(p.Bases, old, repl)
	case *nodes.FunctionDef:
		replaceInSlice(p.Body, old, repl)
	case *nodes.Assign:
		replaceInSlice(p.Targets, old, repl)
		if p.Value == old {
			p.Value = repl
		}
	case *nodes.AssignAttr:
		if p.Expr == old {
			p.Expr = repl
		}
	case *nodes.AttributeExpr:
		if p.Obj == old {
			p.Obj = repl
		}
	case *nodes.CallExpr:
		if p.Func == old {
			p.Func = repl
		}
		replaceInSlice(p.Args, old, repl)
	case *nodes.Container:
		replaceInSlice(p.Elts, old, repl)
	}
	repl.SetParent(parent)
}

func replaceInSlice(list []nodes.Node, old, repl nodes.Node) {
	for i, n := range list {
		if n == old {
			list[i] = repl
		}
	}
}
