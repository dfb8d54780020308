package nodes

import "sort"

// SymbolTable maps identifiers to their defining nodes, ordered by
// source line. Insertions during the rebuild walk arrive in source
// order; insertions from deferred resolution must re-sort the touched
// identifier because the list is no longer pre-sorted afterwards.
type SymbolTable struct {
	bindings map[string][]Node
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{bindings: make(map[string][]Node)}
}

// Add appends a defining node for name.
func (t *SymbolTable) Add(name string, n Node) {
	t.bindings[name] = append(t.bindings[name], n)
}

// InsertFront prepends a defining node for name. Used for the
// constructor-precedence rule during deferred attribute resolution.
func (t *SymbolTable) InsertFront(name string, n Node) {
	t.bindings[name] = append([]Node{n}, t.bindings[name]...)
}

// Get returns the binding list for name, nil when absent.
func (t *SymbolTable) Get(name string) []Node {
	return t.bindings[name]
}

// Has reports whether any binding exists for name.
func (t *SymbolTable) Has(name string) bool {
	return len(t.bindings[name]) > 0
}

// Contains reports whether n is already a binding for name.
func (t *SymbolTable) Contains(name string, n Node) bool {
	for _, b := range t.bindings[name] {
		if b == n {
			return true
		}
	}
	return false
}

// SortByLine re-sorts one identifier's binding list by source line.
// Stable so same-line bindings keep their relative order.
func (t *SymbolTable) SortByLine(name string) {
	list := t.bindings[name]
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Line() < list[j].Line()
	})
}

// Names returns all bound identifiers in sorted order.
func (t *SymbolTable) Names() []string {
	names := make([]string, 0, len(t.bindings))
	for name := range t.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of distinct identifiers.
func (t *SymbolTable) Len() int {
	return len(t.bindings)
}
