package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"semtree/internal/config"
)

func scanApp(t *testing.T, files map[string]string) *App {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.Default()
	cfg.SearchRoots = []string{dir}

	app, err := NewApp(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := app.InitialScan(context.Background()); err != nil {
		t.Fatal(err)
	}
	return app
}

func TestInitialScanRegistersModules(t *testing.T) {
	app := scanApp(t, map[string]string{
		"top.py":          "x = 1\n",
		"pkg/__init__.py": "",
		"pkg/mod.py":      "def f():\n    pass\n",
		"notes.txt":       "not python",
	})

	for _, name := range []string{"top", "pkg", "pkg.mod"} {
		if _, ok := app.Registry().Lookup(name); !ok {
			t.Errorf("expected %q registered after scan", name)
		}
	}
	if app.Registry().Len() != 3 {
		t.Errorf("expected 3 modules, got %d", app.Registry().Len())
	}
}

func TestInitialScanSurvivesBrokenFile(t *testing.T) {
	app := scanApp(t, map[string]string{
		"good.py": "x = 1\n",
		"bad.py":  "class Broken(\n",
	})

	if _, ok := app.Registry().Lookup("good"); !ok {
		t.Error("expected healthy module registered despite broken sibling")
	}
	if _, ok := app.Registry().Lookup("bad"); ok {
		t.Error("broken module must not be registered")
	}
}

func TestDumpModule(t *testing.T) {
	app := scanApp(t, map[string]string{
		"m.py": "class C:\n    def __init__(self):\n        self.size = 0\n",
	})

	out, err := app.DumpModule("m")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "module m") {
		t.Errorf("expected module header, got %q", out)
	}
	if !strings.Contains(out, "class C instance attrs: size") {
		t.Errorf("expected instance attrs line, got %q", out)
	}

	if _, err := app.DumpModule("ghost"); err == nil {
		t.Error("expected error for unknown module")
	}
}

func TestExcludePatterns(t *testing.T) {
	app := scanApp(t, map[string]string{
		"keep.py":               "x = 1\n",
		"__pycache__/cached.py": "y = 2\n",
	})

	if _, ok := app.Registry().Lookup("keep"); !ok {
		t.Error("expected regular module registered")
	}
	if _, ok := app.Registry().Lookup("__pycache__.cached"); ok {
		t.Error("expected cache dir excluded by default")
	}
}
