package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"semtree/internal/builder"
	"semtree/internal/config"
	"semtree/internal/nodes"
	"semtree/internal/registry"
	"semtree/internal/shared/util"
	"semtree/internal/watcher"
)

// App wires the configuration, registry, builder and watcher into the
// scanning frontend.
type App struct {
	cfg     *config.Config
	builder *builder.Builder
	limiter *util.Limiter
	watcher *watcher.Watcher

	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
}

func NewApp(cfg *config.Config) (*App, error) {
	a := &App{
		cfg:     cfg,
		builder: builder.New(registry.New(cfg.SearchRoots...), cfg.Build.ApplyTransforms),
	}

	for _, pattern := range cfg.Exclude.Dirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad exclude dir pattern %q: %w", pattern, err)
		}
		a.excludeDirs = append(a.excludeDirs, g)
	}
	for _, pattern := range cfg.Exclude.Files {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad exclude file pattern %q: %w", pattern, err)
		}
		a.excludeFiles = append(a.excludeFiles, g)
	}

	if cfg.Build.ParseRate > 0 {
		a.limiter = util.NewLimiter(cfg.Build.ParseRate, cfg.Build.ParseBurst)
	}

	return a, nil
}

// InitialScan builds every Python source under the search roots. Build
// failures are logged per file; the scan itself only fails on walk
// errors.
func (a *App) InitialScan(ctx context.Context) error {
	var files []string
	for _, root := range a.cfg.SearchRoots {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if a.excludedDir(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if a.wantedFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("scanning %s: %w", root, err)
		}
	}

	built, failed := 0, 0
	for _, path := range files {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx, 1); err != nil {
				return err
			}
		}
		if _, err := a.builder.BuildFile(path, ""); err != nil {
			slog.Warn("build failed", "path", path, "error", err)
			failed++
			continue
		}
		built++
	}

	slog.Info("initial scan complete",
		"files", len(files), "built", built, "failed", failed,
		"modules", a.builder.Registry().Len())
	return nil
}

// Rebuild rebuilds the given source files after a watch event.
func (a *App) Rebuild(paths []string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			// Removed files keep their last registered tree.
			continue
		}
		if _, err := a.builder.BuildFile(path, ""); err != nil {
			slog.Warn("rebuild failed", "path", path, "error", err)
			continue
		}
		slog.Info("rebuilt", "path", path)
	}
}

// StartWatcher begins watching the search roots for source changes.
func (a *App) StartWatcher() error {
	w, err := watcher.NewWatcher(a.cfg.Watch.Debounce, a.cfg.Exclude.Dirs, a.cfg.Exclude.Files, a.Rebuild)
	if err != nil {
		return err
	}
	if err := w.Watch(a.cfg.SearchRoots); err != nil {
		w.Close()
		return err
	}
	a.watcher = w
	return nil
}

// DumpModule renders one registered module's symbol tables.
func (a *App) DumpModule(name string) (string, error) {
	mod, ok := a.builder.Registry().Lookup(name)
	if !ok {
		return "", fmt.Errorf("module %q is not registered", name)
	}
	return renderModule(mod), nil
}

func renderModule(mod *nodes.Module) string {
	var b strings.Builder

	fmt.Fprintf(&b, "module %s (package=%t, encoding=%s)\n", mod.Name, mod.Package, mod.FileEncoding)
	if mod.Path != "" {
		fmt.Fprintf(&b, "  path %s\n", mod.Path)
	}

	var classes []*nodes.ClassDef
	for _, name := range mod.Locals.Names() {
		for _, n := range mod.Locals.Get(name) {
			fmt.Fprintf(&b, "  %-24s %-12s line %d\n", name, n.Kind(), n.Line())
			if cls, ok := n.(*nodes.ClassDef); ok {
				classes = append(classes, cls)
			}
		}
	}

	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	for _, cls := range classes {
		attrs := cls.InstanceAttrs.Names()
		if len(attrs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "  class %s instance attrs: %s\n", cls.Name, strings.Join(attrs, ", "))
	}

	return b.String()
}

// Registry exposes the underlying registry for health reporting.
func (a *App) Registry() *registry.Registry {
	return a.builder.Registry()
}

func (a *App) Close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
}

func (a *App) excludedDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range a.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (a *App) wantedFile(path string) bool {
	base := filepath.Base(path)
	if filepath.Ext(base) != ".py" {
		return false
	}
	for _, g := range a.excludeFiles {
		if g.Match(base) {
			return false
		}
	}
	return true
}
