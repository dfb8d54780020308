package rebuild

import (
	"testing"

	"semtree/internal/nodes"
	"semtree/internal/syntax"
)

func build(t *testing.T, src string) (*nodes.Module, Result) {
	t.Helper()
	tree, err := syntax.NewParser().Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()
	return Rebuild(tree, "test", "/src/test.py", false)
}

func TestRebuildDefinitions(t *testing.T) {
	mod, _ := build(t, `
import os
import sys as system

def helper(a, b=1):
    return a

class Widget:
    def __init__(self):
        self.size = 0
`)

	if !mod.Locals.Has("os") {
		t.Error("expected 'import os' to bind os")
	}
	if !mod.Locals.Has("system") {
		t.Error("expected aliased import to bind the alias")
	}
	if mod.Locals.Has("sys") {
		t.Error("aliased import must not bind the original name")
	}

	fns := mod.Locals.Get("helper")
	if len(fns) != 1 {
		t.Fatalf("expected one binding for helper, got %d", len(fns))
	}
	fn, ok := fns[0].(*nodes.FunctionDef)
	if !ok {
		t.Fatal("expected helper bound to a FunctionDef")
	}
	if len(fn.Params) != 2 || fn.Params[0] != "a" || fn.Params[1] != "b" {
		t.Errorf("unexpected params %v", fn.Params)
	}
	if !fn.Locals.Has("a") {
		t.Error("expected params bound in function locals")
	}

	cls, ok := mod.Locals.Get("Widget")[0].(*nodes.ClassDef)
	if !ok {
		t.Fatal("expected Widget bound to a ClassDef")
	}
	if !cls.Locals.Has("__init__") {
		t.Error("expected __init__ in class locals")
	}
}

func TestRebuildDeferredQueues(t *testing.T) {
	_, res := build(t, `
from os.path import join, exists
from utils import *

class C:
    def __init__(self):
        self.x = 1
        self.y = 2

    def resize(self):
        self.x = 3
`)

	if len(res.ImportFromNodes) != 2 {
		t.Fatalf("expected 2 queued from-imports, got %d", len(res.ImportFromNodes))
	}
	if res.ImportFromNodes[0].ModName != "os.path" {
		t.Errorf("unexpected modname %q", res.ImportFromNodes[0].ModName)
	}
	if got := len(res.ImportFromNodes[0].Names); got != 2 {
		t.Errorf("expected 2 names, got %d", got)
	}
	if !res.ImportFromNodes[1].IsWildcard() {
		t.Error("expected second from-import to be a wildcard")
	}

	if len(res.DelayedAssignAttrs) != 3 {
		t.Fatalf("expected 3 delayed attribute assignments, got %d", len(res.DelayedAssignAttrs))
	}
	first := res.DelayedAssignAttrs[0]
	if first.AttrName != "x" {
		t.Errorf("unexpected attr name %q", first.AttrName)
	}
	if name, ok := first.Expr.(*nodes.NameExpr); !ok || name.Name != "self" {
		t.Error("expected delayed target expression to be the name 'self'")
	}
}

func TestRebuildFromImportNotBoundEagerly(t *testing.T) {
	mod, _ := build(t, "from os.path import join\n")
	if mod.Locals.Has("join") {
		t.Error("from-import names must stay unbound until deferred resolution")
	}
}

func TestRebuildRelativeImport(t *testing.T) {
	_, res := build(t, "from ..pkg import thing\nfrom . import sibling\n")

	if len(res.ImportFromNodes) != 2 {
		t.Fatalf("expected 2 from-imports, got %d", len(res.ImportFromNodes))
	}
	if res.ImportFromNodes[0].Level != 2 || res.ImportFromNodes[0].ModName != "pkg" {
		t.Errorf("unexpected relative import %+v", res.ImportFromNodes[0])
	}
	if res.ImportFromNodes[1].Level != 1 || res.ImportFromNodes[1].ModName != "" {
		t.Errorf("unexpected bare relative import %+v", res.ImportFromNodes[1])
	}
}

func TestRebuildExportList(t *testing.T) {
	mod, _ := build(t, "__all__ = ['a', \"b\"]\na = 1\nb = 2\nc = 3\n")

	if mod.ExportList == nil {
		t.Fatal("expected __all__ recorded")
	}
	got := mod.PublicNames()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected [a b], got %v", got)
	}
}

func TestRebuildSlots(t *testing.T) {
	mod, _ := build(t, `
class Point:
    __slots__ = ('x', 'y')
`)
	cls := mod.Locals.Get("Point")[0].(*nodes.ClassDef)
	if !cls.SlotsDeclared {
		t.Fatal("expected slots declaration recorded")
	}
	if len(cls.Slots) != 2 || !cls.CanAssignAttr("x") || cls.CanAssignAttr("z") {
		t.Errorf("unexpected slots %v", cls.Slots)
	}
}

func TestRebuildFutureImport(t *testing.T) {
	_, res := build(t, "from __future__ import annotations\n")
	if len(res.ImportFromNodes) != 1 {
		t.Fatalf("expected 1 queued from-import, got %d", len(res.ImportFromNodes))
	}
	imp := res.ImportFromNodes[0]
	if imp.ModName != "__future__" {
		t.Errorf("expected __future__ module, got %q", imp.ModName)
	}
	if len(imp.Names) != 1 || imp.Names[0].Name != "annotations" {
		t.Errorf("unexpected names %v", imp.Names)
	}
}

func TestRebuildHoistsNestedBlocks(t *testing.T) {
	mod, _ := build(t, `
if True:
    def inner():
        pass
else:
    flag = 1

for item in items:
    pass
`)
	if !mod.Locals.Has("inner") {
		t.Error("expected def inside if-block bound at module scope")
	}
	if !mod.Locals.Has("flag") {
		t.Error("expected assignment inside else-block bound at module scope")
	}
	if !mod.Locals.Has("item") {
		t.Error("expected loop variable bound at module scope")
	}
}

func TestRebuildTupleTargets(t *testing.T) {
	mod, _ := build(t, "a, b = 1, 2\n")
	if !mod.Locals.Has("a") || !mod.Locals.Has("b") {
		t.Error("expected both tuple targets bound")
	}
}

func TestRebuildLineNumbers(t *testing.T) {
	mod, _ := build(t, "x = 1\n\n\nx = 2\n")
	list := mod.Locals.Get("x")
	if len(list) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(list))
	}
	if list[0].Line() != 1 || list[1].Line() != 4 {
		t.Errorf("expected lines [1 4], got [%d %d]", list[0].Line(), list[1].Line())
	}
}
