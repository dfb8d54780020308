// Package inspect builds a partial semantic Module from a live object
// reference by member enumeration. It is the fallback for modules with
// no backing source file; trees built here carry no deferred queues.
package inspect

import (
	"semtree/internal/nodes"
)

// MemberKind classifies one enumerated member of a live module.
type MemberKind int

const (
	MemberFunction MemberKind = iota
	MemberClass
	MemberValue
)

// Member is one introspected name of a live module.
type Member struct {
	Name string
	Kind MemberKind
}

// LiveModule is a reference to an already-loaded module. Path returns
// the backing source file, empty when the module has none.
type LiveModule interface {
	Name() string
	Path() string
	Members() []Member
}

// Builder synthesizes a flat Module from member enumeration.
type Builder struct{}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Build(live LiveModule, modname string) *nodes.Module {
	if modname == "" {
		modname = live.Name()
	}

	mod := nodes.NewModule(modname, live.Path(), false)

	for _, member := range live.Members() {
		var n nodes.Node
		switch member.Kind {
		case MemberFunction:
			fn := nodes.NewFunctionDef(member.Name, 0, 0)
			fn.SetParent(mod)
			n = fn
		case MemberClass:
			cls := nodes.NewClassDef(member.Name, 0, 0)
			cls.SetParent(mod)
			n = cls
		default:
			an := &nodes.AssignName{Name: member.Name}
			an.SetParent(mod)
			n = an
		}
		mod.Body = append(mod.Body, n)
		mod.Locals.Add(member.Name, n)
	}

	return mod
}
