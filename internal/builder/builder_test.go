package builder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	errs "semtree/internal/core/errors"
	"semtree/internal/inspect"
	"semtree/internal/nodes"
	"semtree/internal/registry"
)

type fakeLive struct {
	name    string
	path    string
	members []inspect.Member
}

func (f fakeLive) Name() string              { return f.name }
func (f fakeLive) Path() string              { return f.path }
func (f fakeLive) Members() []inspect.Member { return f.members }

func TestBuildStringDefinitions(t *testing.T) {
	b := New(registry.New(), false)
	src := "import os\n\ndef f():\n    pass\n\nclass C:\n    pass\n"

	mod, err := b.BuildString(src, "sample", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"os", "f", "C"} {
		if !mod.Locals.Has(name) {
			t.Errorf("expected %q bound in module locals", name)
		}
	}
	if mod.FileEncoding != "utf-8" {
		t.Errorf("expected utf-8 encoding for string builds, got %q", mod.FileEncoding)
	}
	if string(mod.FileBytes) != src {
		t.Error("expected original source retained on the module")
	}
	if got, ok := b.Registry().Lookup("sample"); !ok || got != mod {
		t.Error("expected module registered under its name")
	}
}

func TestBuildStringSyntaxFailure(t *testing.T) {
	b := New(registry.New(), false)
	src := "def broken(:\n"

	_, err := b.BuildString(src, "bad", "/src/bad.py")
	if !errs.IsKind(err, errs.KindSyntaxFailure) {
		t.Fatalf("expected syntax failure, got %v", err)
	}

	var be *errs.BuildError
	if !errors.As(err, &be) {
		t.Fatal("expected a BuildError")
	}
	if be.Source != src {
		t.Errorf("expected exact original source on the error, got %q", be.Source)
	}
	if be.Modname != "bad" || be.Path != "/src/bad.py" {
		t.Errorf("expected module and path stamped, got %q %q", be.Modname, be.Path)
	}
}

func TestBuildFileIOFailure(t *testing.T) {
	b := New(registry.New(), false)

	_, err := b.BuildFile(filepath.Join(t.TempDir(), "absent.py"), "ghost")
	if !errs.IsKind(err, errs.KindIOFailure) {
		t.Fatalf("expected IO failure, got %v", err)
	}
	var be *errs.BuildError
	if errors.As(err, &be) && be.Modname != "ghost" {
		t.Errorf("expected module name stamped, got %q", be.Modname)
	}
}

func TestBuildFileDerivesModname(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "pkg", "mod.py")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := New(registry.New(dir), false)
	mod, err := b.BuildFile(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if mod.Name != "pkg.mod" {
		t.Errorf("expected derived name pkg.mod, got %q", mod.Name)
	}
	if !filepath.IsAbs(mod.Path) {
		t.Errorf("expected absolute path, got %q", mod.Path)
	}
}

func TestBuildFilePackageInit(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "pkg", "__init__.py")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := New(registry.New(dir), false)
	mod, err := b.BuildFile(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if mod.Name != "pkg" {
		t.Errorf("expected package name pkg, got %q", mod.Name)
	}
	if !mod.Package {
		t.Error("expected __init__ build marked as package")
	}
}

func TestBuildStringDeterministic(t *testing.T) {
	src := `
class C:
    def __init__(self):
        self.x = 1

v = C()
v.y = 2
`
	first, err := New(registry.New(), false).BuildString(src, "m", "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := New(registry.New(), false).BuildString(src, "m", "")
	if err != nil {
		t.Fatal(err)
	}

	a, b := first.Locals.Names(), second.Locals.Names()
	if len(a) != len(b) {
		t.Fatalf("locals diverge: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("locals diverge: %v vs %v", a, b)
		}
	}

	clsA := first.Locals.Get("C")[0].(*nodes.ClassDef)
	clsB := second.Locals.Get("C")[0].(*nodes.ClassDef)
	ia, ib := clsA.InstanceAttrs.Names(), clsB.InstanceAttrs.Names()
	if len(ia) != len(ib) {
		t.Fatalf("instance attrs diverge: %v vs %v", ia, ib)
	}
	for i := range ia {
		if ia[i] != ib[i] {
			t.Fatalf("instance attrs diverge: %v vs %v", ia, ib)
		}
	}
}

func TestTransformsRunAfterResolution(t *testing.T) {
	b := New(registry.New(), true)
	var sawAttr bool
	b.Transforms().Register(nodes.KindClassDef, func(n nodes.Node) nodes.Node {
		sawAttr = n.(*nodes.ClassDef).InstanceAttrs.Has("x")
		return nil
	}, nil)

	_, err := b.BuildString("class C:\n    def __init__(self):\n        self.x = 1\n", "m", "")
	if err != nil {
		t.Fatal(err)
	}
	if !sawAttr {
		t.Error("expected transform to observe the fully resolved class")
	}
}

func TestTransformsCanReplaceRoot(t *testing.T) {
	b := New(registry.New(), true)
	repl := nodes.NewModule("rewritten", "", false)
	b.Transforms().Register(nodes.KindModule, func(nodes.Node) nodes.Node {
		return repl
	}, nil)

	mod, err := b.BuildString("x = 1\n", "m", "")
	if err != nil {
		t.Fatal(err)
	}
	if mod != repl {
		t.Error("expected replaced root returned")
	}
}

func TestTransformsDisabled(t *testing.T) {
	b := New(registry.New(), false)
	called := false
	b.Transforms().Register(nodes.KindModule, func(nodes.Node) nodes.Node {
		called = true
		return nil
	}, nil)

	if _, err := b.BuildString("x = 1\n", "m", ""); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("expected transforms skipped when disabled")
	}
}

func TestBuildModulePrefersSourceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "real.py")
	if err := os.WriteFile(path, []byte("marker = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := New(registry.New(dir), false)

	// A compiled-file path still resolves to its source.
	live := fakeLive{name: "real", path: filepath.Join(dir, "real.pyc")}
	mod, err := b.BuildModule(live, "real")
	if err != nil {
		t.Fatal(err)
	}
	if !mod.Locals.Has("marker") {
		t.Error("expected full source build, not introspection")
	}
}

func TestBuildModuleIntrospectionFallback(t *testing.T) {
	b := New(registry.New(), false)
	live := fakeLive{
		name:    "builtin_thing",
		members: []inspect.Member{{Name: "helper", Kind: inspect.MemberFunction}},
	}

	mod, err := b.BuildModule(live, "")
	if err != nil {
		t.Fatal(err)
	}
	if !mod.Locals.Has("helper") {
		t.Error("expected introspected member bound")
	}
	if mod.Path != "" {
		t.Errorf("expected no backing path, got %q", mod.Path)
	}
}

func TestBuildNamespacePackage(t *testing.T) {
	b := New(registry.New(), false)
	mod := b.BuildNamespacePackage("ns", "/src/ns")

	if !mod.Package {
		t.Error("expected namespace package flagged as package")
	}
	if mod.Name != "ns" || mod.Path != "/src/ns" {
		t.Errorf("unexpected identity %q %q", mod.Name, mod.Path)
	}
	if mod.Locals.Len() != 0 || len(mod.Body) != 0 {
		t.Error("expected empty placeholder module")
	}
}

func TestParseDedentsSnippet(t *testing.T) {
	mod, err := Parse(`
		x = 1
		y = 2
	`, "snippet", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if !mod.Locals.Has("x") || !mod.Locals.Has("y") {
		t.Error("expected indented snippet dedented before parsing")
	}
}
