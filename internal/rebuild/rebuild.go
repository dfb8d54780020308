// Package rebuild turns a raw syntax tree into a semantic Module with
// bound per-scope symbol tables. Constructs whose meaning cannot be
// determined locally are collected into deferred-work queues that the
// resolution stage drains after the module is registered.
package rebuild

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"semtree/internal/nodes"
	"semtree/internal/syntax"
)

// Result carries the deferred-work queues for one build. The queues are
// returned as values rather than kept on the builder so a recursive
// build triggered during resolution cannot corrupt them.
type Result struct {
	ImportFromNodes    []*nodes.ImportFrom
	DelayedAssignAttrs []*nodes.AssignAttr
}

type rebuilder struct {
	src []byte
	res Result
}

// Rebuild builds the semantic Module for a parsed tree. Symbol tables
// are populated in source order; from-import bindings and attribute
// assignments are queued, not bound.
func Rebuild(tree *syntax.Tree, name, path string, pkg bool) (*nodes.Module, Result) {
	r := &rebuilder{src: tree.Source}

	mod := nodes.NewModule(name, path, pkg)
	mod.Body = r.stmts(tree.Root(), mod, mod)

	return mod, r.res
}

func (r *rebuilder) stmts(block *sitter.Node, scope nodes.Scoped, parent nodes.Node) []nodes.Node {
	var out []nodes.Node
	for i := uint(0); i < block.ChildCount(); i++ {
		out = append(out, r.stmt(block.Child(i), scope, parent)...)
	}
	return out
}

func (r *rebuilder) stmt(node *sitter.Node, scope nodes.Scoped, parent nodes.Node) []nodes.Node {
	switch node.Kind() {
	case "import_statement":
		return []nodes.Node{r.importStmt(node, scope, parent)}
	case "import_from_statement", "future_import_statement":
		return []nodes.Node{r.importFrom(node, scope, parent)}
	case "function_definition":
		return []nodes.Node{r.funcDef(node, scope, parent)}
	case "class_definition":
		return []nodes.Node{r.classDef(node, scope, parent)}
	case "decorated_definition":
		if def := node.ChildByFieldName("definition"); def != nil {
			return r.stmt(def, scope, parent)
		}
		return nil
	case "expression_statement":
		var out []nodes.Node
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			switch child.Kind() {
			case "assignment", "augmented_assignment":
				out = append(out, r.assign(child, scope, parent))
			case "comment":
			default:
				out = append(out, r.expr(child, parent))
			}
		}
		return out
	case "for_statement":
		return r.forStmt(node, scope, parent)
	case "if_statement", "while_statement", "try_statement", "with_statement", "match_statement":
		return r.hoistBlocks(node, scope, parent)
	default:
		return nil
	}
}

// hoistBlocks flattens the statements of nested control-flow blocks
// into the enclosing scope's body. Control flow itself carries no
// scope or symbol information.
func (r *rebuilder) hoistBlocks(node *sitter.Node, scope nodes.Scoped, parent nodes.Node) []nodes.Node {
	var out []nodes.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "block":
			out = append(out, r.stmts(child, scope, parent)...)
		case "elif_clause", "else_clause", "except_clause", "except_group_clause",
			"finally_clause", "case_clause":
			out = append(out, r.hoistBlocks(child, scope, parent)...)
		}
	}
	return out
}

func (r *rebuilder) forStmt(node *sitter.Node, scope nodes.Scoped, parent nodes.Node) []nodes.Node {
	var out []nodes.Node

	// The loop variable is a binding in the enclosing scope.
	if left := node.ChildByFieldName("left"); left != nil {
		a := &nodes.Assign{Base: nodes.NewBase(line(left), col(left))}
		a.SetParent(parent)
		a.Targets = r.targets(left, scope, a)
		out = append(out, a)
	}

	out = append(out, r.hoistBlocks(node, scope, parent)...)
	return out
}

func (r *rebuilder) importStmt(node *sitter.Node, scope nodes.Scoped, parent nodes.Node) nodes.Node {
	imp := &nodes.Import{Base: nodes.NewBase(line(node), col(node))}
	imp.SetParent(parent)

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "dotted_name", "identifier":
			imp.Names = append(imp.Names, nodes.Alias{Name: r.text(child)})
		case "aliased_import":
			alias := nodes.Alias{}
			if name := child.ChildByFieldName("name"); name != nil {
				alias.Name = r.text(name)
			}
			if as := child.ChildByFieldName("alias"); as != nil {
				alias.As = r.text(as)
			}
			imp.Names = append(imp.Names, alias)
		}
	}

	// "import a.b" binds "a"; an alias binds the alias instead.
	for _, alias := range imp.Names {
		binding := alias.As
		if binding == "" {
			binding = strings.SplitN(alias.Name, ".", 2)[0]
		}
		scope.LocalsTable().Add(binding, imp)
	}

	return imp
}

func (r *rebuilder) importFrom(node *sitter.Node, scope nodes.Scoped, parent nodes.Node) nodes.Node {
	imp := &nodes.ImportFrom{Base: nodes.NewBase(line(node), col(node))}
	imp.SetParent(parent)

	if node.Kind() == "future_import_statement" {
		imp.ModName = "__future__"
	}
	if mod := node.ChildByFieldName("module_name"); mod != nil {
		if mod.Kind() == "relative_import" {
			for i := uint(0); i < mod.ChildCount(); i++ {
				sub := mod.Child(i)
				switch sub.Kind() {
				case "import_prefix":
					imp.Level = len(r.text(sub))
				case "dotted_name":
					imp.ModName = r.text(sub)
				}
			}
		} else {
			imp.ModName = r.text(mod)
		}
	}

	seenImport := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "import":
			seenImport = true
		case "wildcard_import":
			imp.Names = append(imp.Names, nodes.Alias{Name: "*"})
		case "aliased_import":
			alias := nodes.Alias{}
			if name := child.ChildByFieldName("name"); name != nil {
				alias.Name = r.text(name)
			}
			if as := child.ChildByFieldName("alias"); as != nil {
				alias.As = r.text(as)
			}
			imp.Names = append(imp.Names, alias)
		case "dotted_name", "identifier":
			if seenImport {
				imp.Names = append(imp.Names, nodes.Alias{Name: r.text(child)})
			}
		}
	}

	// Binding into the scope happens during deferred resolution, once
	// the imported module itself is resolvable.
	r.res.ImportFromNodes = append(r.res.ImportFromNodes, imp)

	return imp
}

func (r *rebuilder) funcDef(node *sitter.Node, scope nodes.Scoped, parent nodes.Node) nodes.Node {
	name := ""
	if n := node.ChildByFieldName("name"); n != nil {
		name = r.text(n)
	}

	fn := nodes.NewFunctionDef(name, line(node), col(node))
	fn.SetParent(parent)
	scope.LocalsTable().Add(name, fn)

	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := uint(0); i < params.ChildCount(); i++ {
			pname, pnode := r.paramName(params.Child(i))
			if pname == "" {
				continue
			}
			fn.Params = append(fn.Params, pname)
			bind := &nodes.AssignName{Base: nodes.NewBase(line(pnode), col(pnode)), Name: pname}
			bind.SetParent(fn)
			fn.Locals.Add(pname, bind)
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		fn.Body = r.stmts(body, fn, fn)
	}

	return fn
}

func (r *rebuilder) paramName(node *sitter.Node) (string, *sitter.Node) {
	switch node.Kind() {
	case "identifier":
		return r.text(node), node
	case "default_parameter", "typed_default_parameter":
		if name := node.ChildByFieldName("name"); name != nil {
			return r.text(name), name
		}
	case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
		for i := uint(0); i < node.ChildCount(); i++ {
			if child := node.Child(i); child.Kind() == "identifier" {
				return r.text(child), child
			}
		}
	}
	return "", node
}

func (r *rebuilder) classDef(node *sitter.Node, scope nodes.Scoped, parent nodes.Node) nodes.Node {
	name := ""
	if n := node.ChildByFieldName("name"); n != nil {
		name = r.text(n)
	}

	cls := nodes.NewClassDef(name, line(node), col(node))
	cls.SetParent(parent)
	scope.LocalsTable().Add(name, cls)

	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := uint(0); i < supers.ChildCount(); i++ {
			child := supers.Child(i)
			switch child.Kind() {
			case "identifier", "attribute", "call":
				cls.Bases = append(cls.Bases, r.expr(child, cls))
			}
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		cls.Body = r.stmts(body, cls, cls)
	}

	return cls
}

func (r *rebuilder) assign(node *sitter.Node, scope nodes.Scoped, parent nodes.Node) nodes.Node {
	a := &nodes.Assign{Base: nodes.NewBase(line(node), col(node))}
	a.SetParent(parent)

	if right := node.ChildByFieldName("right"); right != nil {
		a.Value = r.expr(right, a)
	}
	if left := node.ChildByFieldName("left"); left != nil {
		a.Targets = r.targets(left, scope, a)
	}

	r.declarations(a, scope)

	return a
}

// declarations handles the module/class-level declaration assignments
// that shape name visibility: __all__ export lists and __slots__
// restricted attribute sets.
func (r *rebuilder) declarations(a *nodes.Assign, scope nodes.Scoped) {
	if len(a.Targets) != 1 {
		return
	}
	target, ok := a.Targets[0].(*nodes.AssignName)
	if !ok {
		return
	}

	switch target.Name {
	case "__all__":
		if mod, ok := scope.(*nodes.Module); ok {
			mod.ExportList = stringElts(a.Value)
			if mod.ExportList == nil {
				mod.ExportList = []string{}
			}
		}
	case "__slots__":
		if cls, ok := scope.(*nodes.ClassDef); ok {
			cls.SlotsDeclared = true
			cls.Slots = stringElts(a.Value)
		}
	}
}

func stringElts(value nodes.Node) []string {
	switch v := value.(type) {
	case *nodes.Const:
		if v.ConstKind == nodes.ConstStr {
			return []string{v.Value}
		}
	case *nodes.Container:
		var out []string
		for _, elt := range v.Elts {
			if c, ok := elt.(*nodes.Const); ok && c.ConstKind == nodes.ConstStr {
				out = append(out, c.Value)
			}
		}
		return out
	}
	return nil
}

func (r *rebuilder) targets(node *sitter.Node, scope nodes.Scoped, parent nodes.Node) []nodes.Node {
	switch node.Kind() {
	case "identifier":
		t := &nodes.AssignName{Base: nodes.NewBase(line(node), col(node)), Name: r.text(node)}
		t.SetParent(parent)
		scope.LocalsTable().Add(t.Name, t)
		return []nodes.Node{t}
	case "attribute":
		t := &nodes.AssignAttr{Base: nodes.NewBase(line(node), col(node))}
		t.SetParent(parent)
		if attr := node.ChildByFieldName("attribute"); attr != nil {
			t.AttrName = r.text(attr)
		}
		if obj := node.ChildByFieldName("object"); obj != nil {
			t.Expr = r.expr(obj, t)
		}
		r.res.DelayedAssignAttrs = append(r.res.DelayedAssignAttrs, t)
		return []nodes.Node{t}
	case "pattern_list", "tuple_pattern", "list_pattern":
		var out []nodes.Node
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			switch child.Kind() {
			case "identifier", "attribute", "tuple_pattern", "list_pattern":
				out = append(out, r.targets(child, scope, parent)...)
			}
		}
		return out
	default:
		t := &nodes.UnknownNode{Base: nodes.NewBase(line(node), col(node))}
		t.SetParent(parent)
		return []nodes.Node{t}
	}
}

func (r *rebuilder) expr(node *sitter.Node, parent nodes.Node) nodes.Node {
	out := r.buildExpr(node, parent)
	out.SetParent(parent)
	return out
}

func (r *rebuilder) buildExpr(node *sitter.Node, parent nodes.Node) nodes.Node {
	base := nodes.NewBase(line(node), col(node))

	switch node.Kind() {
	case "identifier":
		return &nodes.NameExpr{Base: base, Name: r.text(node)}
	case "attribute":
		e := &nodes.AttributeExpr{Base: base}
		if attr := node.ChildByFieldName("attribute"); attr != nil {
			e.Attr = r.text(attr)
		}
		if obj := node.ChildByFieldName("object"); obj != nil {
			e.Obj = r.expr(obj, e)
		}
		return e
	case "call":
		e := &nodes.CallExpr{Base: base}
		if fn := node.ChildByFieldName("function"); fn != nil {
			e.Func = r.expr(fn, e)
		}
		if args := node.ChildByFieldName("arguments"); args != nil {
			for i := uint(0); i < args.ChildCount(); i++ {
				child := args.Child(i)
				switch child.Kind() {
				case "(", ")", ",", "comment":
				default:
					e.Args = append(e.Args, r.expr(child, e))
				}
			}
		}
		return e
	case "string", "concatenated_string":
		return &nodes.Const{Base: base, ConstKind: nodes.ConstStr, Value: unquote(r.text(node))}
	case "integer", "float":
		return &nodes.Const{Base: base, ConstKind: nodes.ConstNum, Value: r.text(node)}
	case "true", "false":
		return &nodes.Const{Base: base, ConstKind: nodes.ConstBool, Value: r.text(node)}
	case "none":
		return &nodes.Const{Base: base, ConstKind: nodes.ConstNone}
	case "list":
		return r.container(node, base, nodes.ContainerList)
	case "tuple":
		return r.container(node, base, nodes.ContainerTuple)
	case "set":
		return r.container(node, base, nodes.ContainerSet)
	case "dictionary":
		e := &nodes.Container{Base: base, ContainerKind: nodes.ContainerDict}
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child.Kind() != "pair" {
				continue
			}
			if key := child.ChildByFieldName("key"); key != nil {
				e.Elts = append(e.Elts, r.expr(key, e))
			}
			if val := child.ChildByFieldName("value"); val != nil {
				e.Elts = append(e.Elts, r.expr(val, e))
			}
		}
		return e
	case "parenthesized_expression":
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			switch child.Kind() {
			case "(", ")", "comment":
			default:
				return r.buildExpr(child, parent)
			}
		}
		return &nodes.UnknownNode{Base: base}
	default:
		return &nodes.UnknownNode{Base: base}
	}
}

func (r *rebuilder) container(node *sitter.Node, base nodes.Base, kind nodes.ContainerKind) nodes.Node {
	e := &nodes.Container{Base: base, ContainerKind: kind}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "[", "]", "(", ")", "{", "}", ",", "comment":
		default:
			e.Elts = append(e.Elts, r.expr(child, e))
		}
	}
	return e
}

func (r *rebuilder) text(node *sitter.Node) string {
	return string(r.src[node.StartByte():node.EndByte()])
}

func line(node *sitter.Node) int { return int(node.StartPosition().Row) + 1 }
func col(node *sitter.Node) int  { return int(node.StartPosition().Column) + 1 }

// unquote strips string prefixes and quote pairs from a literal.
func unquote(s string) string {
	s = strings.TrimLeft(s, "rbuRBUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}
