package nodes

import (
	"slices"
	"strings"
)

// Module is the root of a semantic tree. It is exclusively owned by the
// builder during construction; once registered it becomes shared,
// effectively read-only state.
type Module struct {
	Base
	Name           string
	Path           string
	Package        bool
	FileEncoding   string
	FileBytes      []byte
	FutureFeatures map[string]bool
	ExportList     []string // declared __all__, nil when absent
	Locals         *SymbolTable
	Body           []Node
}

func NewModule(name, path string, pkg bool) *Module {
	return &Module{
		Name:           name,
		Path:           path,
		Package:        pkg,
		FutureFeatures: make(map[string]bool),
		Locals:         NewSymbolTable(),
	}
}

func (m *Module) Kind() Kind { return KindModule }
func (m *Module) Children() []Node { return m.Body }
func (m *Module) ScopeName() string { return m.Name }
func (m *Module) LocalsTable() *SymbolTable { return m.Locals }

// PublicNames returns the identifiers a wildcard import of this module
// binds: the declared export list when present, otherwise every local
// not marked private by the underscore convention.
func (m *Module) PublicNames() []string {
	if m.ExportList != nil {
		return slices.Clone(m.ExportList)
	}
	var names []string
	for _, name := range m.Locals.Names() {
		if !strings.HasPrefix(name, "_") {
			names = append(names, name)
		}
	}
	return names
}

// ClassDef is a class statement. InstanceAttrs collects attributes
// assigned on instances of the class, including deferred ones.
type ClassDef struct {
	Base
	Name          string
	Bases         []Node
	Locals        *SymbolTable
	InstanceAttrs *SymbolTable
	Slots         []string // declared __slots__, nil when absent
	SlotsDeclared bool
	Body          []Node
}

func NewClassDef(name string, line, col int) *ClassDef {
	return &ClassDef{
		Base:          NewBase(line, col),
		Name:          name,
		Locals:        NewSymbolTable(),
		InstanceAttrs: NewSymbolTable(),
	}
}

func (c *ClassDef) Kind() Kind { return KindClassDef }
func (c *ClassDef) Children() []Node { return c.Body }
func (c *ClassDef) ScopeName() string { return c.Name }
func (c *ClassDef) LocalsTable() *SymbolTable { return c.Locals }
func (c *ClassDef) InstanceAttrTable() *SymbolTable { return c.InstanceAttrs }

// CanAssignAttr reports whether instances of the class accept the
// attribute under the declared restricted attribute set. Classes
// without __slots__ accept everything.
func (c *ClassDef) CanAssignAttr(name string) bool {
	if !c.SlotsDeclared {
		return true
	}
	return slices.Contains(c.Slots, name)
}

// FunctionDef is a def statement. Functions carry their own
// instance-attribute table because attributes may be assigned on
// function objects themselves.
type FunctionDef struct {
	Base
	Name          string
	Params        []string
	Locals        *SymbolTable
	InstanceAttrs *SymbolTable
	Body          []Node
}

func NewFunctionDef(name string, line, col int) *FunctionDef {
	return &FunctionDef{
		Base:          NewBase(line, col),
		Name:          name,
		Locals:        NewSymbolTable(),
		InstanceAttrs: NewSymbolTable(),
	}
}

func (f *FunctionDef) Kind() Kind { return KindFunctionDef }
func (f *FunctionDef) Children() []Node { return f.Body }
func (f *FunctionDef) ScopeName() string { return f.Name }
func (f *FunctionDef) LocalsTable() *SymbolTable { return f.Locals }
func (f *FunctionDef) InstanceAttrTable() *SymbolTable { return f.InstanceAttrs }

// IsMethod reports whether the function is defined directly in a class
// body.
func (f *FunctionDef) IsMethod() bool {
	_, ok := ScopeOf(f).(*ClassDef)
	return ok
}

// EnclosingClass returns the class a method belongs to, or nil.
func (f *FunctionDef) EnclosingClass() *ClassDef {
	if c, ok := ScopeOf(f).(*ClassDef); ok {
		return c
	}
	return nil
}
