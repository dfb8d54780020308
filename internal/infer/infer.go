// Package infer is the lazy inference oracle consumed by deferred
// attribute resolution. Answers are best-effort candidates or an
// explicit unknown sentinel; the oracle never asserts well-typedness.
package infer

import (
	"iter"

	errs "semtree/internal/core/errors"
	"semtree/internal/nodes"
)

// Candidate is one inferred owner for an expression. The variant set is
// closed; resolution matches it exhaustively.
type Candidate interface {
	candidate()
}

// UnknownCandidate is the explicit "no idea" sentinel.
type UnknownCandidate struct{}

// InstanceCandidate is an exact instance of a known class.
type InstanceCandidate struct {
	Class *nodes.ClassDef
}

// ContainerLikeCandidate is a literal or container-like value. Its
// namespace is shared; attribute injection would pollute it.
type ContainerLikeCandidate struct {
	Value nodes.Node
}

// CallableCandidate is a function or method object.
type CallableCandidate struct {
	Fn *nodes.FunctionDef
}

// OtherCandidate is any other scoped owner (typically the class object
// itself); attributes land in its local symbol table.
type OtherCandidate struct {
	Owner nodes.Scoped
}

func (UnknownCandidate) candidate()       {}
func (InstanceCandidate) candidate()      {}
func (ContainerLikeCandidate) candidate() {}
func (CallableCandidate) candidate()      {}
func (OtherCandidate) candidate()         {}

// ErrIndeterminate reports that inference could not be attempted for a
// whole expression. Callers absorb it; it never fails a build.
var ErrIndeterminate = errs.New(errs.KindInferenceIndeterminate, "inference indeterminate")

// Oracle produces candidate owners for expressions using purely local,
// heuristic reasoning over already-built symbol tables.
type Oracle struct{}

func NewOracle() *Oracle { return &Oracle{} }

// Infer returns a lazy candidate sequence for expr. The sequence must
// be consumed exhaustively; an error means the whole expression is
// indeterminate and the pending record should be abandoned.
func (o *Oracle) Infer(expr nodes.Node) (iter.Seq[Candidate], error) {
	name, ok := expr.(*nodes.NameExpr)
	if !ok {
		// Chained attribute access and arbitrary expressions are out of
		// reach for local heuristics.
		if _, isAttr := expr.(*nodes.AttributeExpr); isAttr {
			return single(UnknownCandidate{}), nil
		}
		return nil, ErrIndeterminate
	}

	if name.Name == "self" {
		if fn, ok := nodes.FrameOf(name).(*nodes.FunctionDef); ok {
			if cls := fn.EnclosingClass(); cls != nil {
				return single(InstanceCandidate{Class: cls}), nil
			}
		}
		return single(UnknownCandidate{}), nil
	}

	bindings := lookup(name)
	if len(bindings) == 0 {
		return single(UnknownCandidate{}), nil
	}

	return func(yield func(Candidate) bool) {
		for _, binding := range bindings {
			if !yield(o.candidateFor(binding)) {
				return
			}
		}
	}, nil
}

// candidateFor maps one defining node to a candidate owner.
func (o *Oracle) candidateFor(binding nodes.Node) Candidate {
	switch b := binding.(type) {
	case *nodes.ClassDef:
		return OtherCandidate{Owner: b}
	case *nodes.FunctionDef:
		return CallableCandidate{Fn: b}
	case *nodes.AssignName:
		value := assignedValue(b)
		switch v := value.(type) {
		case *nodes.Const, *nodes.Container:
			return ContainerLikeCandidate{Value: value}
		case *nodes.CallExpr:
			if cls := calledClass(v); cls != nil {
				return InstanceCandidate{Class: cls}
			}
			return UnknownCandidate{}
		default:
			return UnknownCandidate{}
		}
	default:
		return UnknownCandidate{}
	}
}

// assignedValue returns the right-hand side that produced an
// assignment-target binding, nil when there is none (loop targets).
func assignedValue(target *nodes.AssignName) nodes.Node {
	assign, ok := target.Parent().(*nodes.Assign)
	if !ok {
		return nil
	}
	return assign.Value
}

// calledClass resolves "C()" to the class definition C when the callee
// is a name bound to exactly a class in a visible scope.
func calledClass(call *nodes.CallExpr) *nodes.ClassDef {
	name, ok := call.Func.(*nodes.NameExpr)
	if !ok {
		return nil
	}
	for _, binding := range lookup(name) {
		if cls, ok := binding.(*nodes.ClassDef); ok {
			return cls
		}
	}
	return nil
}

// lookup walks the scope chain outwards collecting bindings for a name.
// Class scopes are skipped for names referenced from nested functions,
// matching lexical scoping rules.
func lookup(name *nodes.NameExpr) []nodes.Node {
	first := true
	for scope := nodes.FrameOf(name); scope != nil; scope = nodes.ScopeOf(scope) {
		if _, isClass := scope.(*nodes.ClassDef); isClass && !first {
			first = false
			continue
		}
		first = false
		if list := scope.LocalsTable().Get(name.Name); len(list) > 0 {
			return list
		}
	}
	return nil
}

func single(c Candidate) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		yield(c)
	}
}
