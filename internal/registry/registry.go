// Package registry is the name-keyed store of finished modules shared
// across one analysis session. Registration must be visible to
// recursive builds triggered during deferred resolution, so modules
// are registered before their deferred work is resolved.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"semtree/internal/nodes"
	"semtree/internal/shared/observability"
)

// ErrNotFound is returned when a module name cannot be resolved. The
// resolution stage absorbs it; it never reaches a build's caller.
var ErrNotFound = errors.New("module not found")

// Loader builds a module on demand during import resolution. The
// builder installs itself here so a wildcard import can trigger a
// recursive build.
type Loader func(path, modname string) (*nodes.Module, error)

type Registry struct {
	mu          sync.RWMutex
	modules     map[string]*nodes.Module
	searchRoots []string
	loader      Loader
	sessionID   string
}

func New(searchRoots ...string) *Registry {
	return &Registry{
		modules:     make(map[string]*nodes.Module),
		searchRoots: searchRoots,
		sessionID:   uuid.New().String(),
	}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the shared session registry. Only top-level entry
// points use it; core algorithms always receive a registry explicitly.
func Default() *Registry {
	defaultOnce.Do(func() { defaultReg = New() })
	return defaultReg
}

// SessionID identifies this registry in logs.
func (r *Registry) SessionID() string { return r.sessionID }

// SetLoader installs the on-demand build hook.
func (r *Registry) SetLoader(l Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loader = l
}

// SetSearchRoots replaces the module search roots.
func (r *Registry) SetSearchRoots(roots []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searchRoots = roots
}

// Register stores a finished module under its name. Ownership of the
// tree transfers to the registry; afterwards the module is shared,
// effectively read-only state.
func (r *Registry) Register(name string, mod *nodes.Module) {
	r.mu.Lock()
	r.modules[name] = mod
	size := len(r.modules)
	r.mu.Unlock()

	observability.RegistryModules.Set(float64(size))
	slog.Debug("module registered", "module", name, "session", r.sessionID)
}

// Lookup returns the module registered under name.
func (r *Registry) Lookup(name string) (*nodes.Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mod, ok := r.modules[name]
	return mod, ok
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}

// ImportModule resolves modname relative to the importing module and
// returns the target, building it through the loader when it is not
// registered yet. Level counts the leading dots of a relative import.
func (r *Registry) ImportModule(from *nodes.Module, modname string, level int) (*nodes.Module, error) {
	absname := modname
	if level > 0 {
		base, err := relativeBase(from, level)
		if err != nil {
			return nil, err
		}
		absname = base
		if modname != "" {
			if absname != "" {
				absname = absname + "." + modname
			} else {
				absname = modname
			}
		}
	}

	if mod, ok := r.Lookup(absname); ok {
		return mod, nil
	}

	r.mu.RLock()
	loader := r.loader
	r.mu.RUnlock()
	if loader == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, absname)
	}

	path, err := r.FindModuleFile(absname)
	if err != nil {
		return nil, err
	}
	return loader(path, absname)
}

// relativeBase computes the package a relative import resolves
// against: one level is the current package, each further level strips
// one component.
func relativeBase(from *nodes.Module, level int) (string, error) {
	if from == nil {
		return "", fmt.Errorf("%w: relative import outside a module", ErrNotFound)
	}
	parts := strings.Split(from.Name, ".")
	if !from.Package {
		parts = parts[:len(parts)-1]
	}
	drop := level - 1
	if drop > len(parts) {
		return "", fmt.Errorf("%w: relative import beyond top-level package", ErrNotFound)
	}
	return strings.Join(parts[:len(parts)-drop], "."), nil
}

// FindModuleFile locates the source file for a dotted module name under
// the search roots: name/__init__.py for packages, name.py otherwise.
func (r *Registry) FindModuleFile(modname string) (string, error) {
	r.mu.RLock()
	roots := r.searchRoots
	r.mu.RUnlock()

	rel := filepath.Join(strings.Split(modname, ".")...)
	for _, root := range roots {
		for _, candidate := range []string{
			filepath.Join(root, rel+".py"),
			filepath.Join(root, rel, "__init__.py"),
		} {
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, modname)
}

// ModPathFromFile derives a dotted module name from a file's position
// under the search roots.
func (r *Registry) ModPathFromFile(path string) (string, error) {
	r.mu.RLock()
	roots := r.searchRoots
	r.mu.RUnlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absRoot, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = strings.TrimSuffix(rel, filepath.Ext(rel))
		parts := strings.Split(rel, string(filepath.Separator))
		return strings.Join(parts, "."), nil
	}
	return "", fmt.Errorf("%s is not under any search root", path)
}
