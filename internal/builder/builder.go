// Package builder orchestrates module construction: source
// acquisition, parsing, semantic rebuild, registration, deferred
// resolution and the transform pipeline.
//
// A Builder is not safe for concurrent use; one build must complete
// before the next starts. Deferred-work queues are threaded as values
// from the rebuild step into the resolution stage, so the recursive
// builds a wildcard import can trigger stay safe within one build.
package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	errs "semtree/internal/core/errors"
	"semtree/internal/inspect"
	"semtree/internal/nodes"
	"semtree/internal/rebuild"
	"semtree/internal/registry"
	"semtree/internal/resolve"
	"semtree/internal/shared/observability"
	"semtree/internal/shared/util"
	"semtree/internal/source"
	"semtree/internal/syntax"
	"semtree/internal/transform"
)

type Builder struct {
	reg             *registry.Registry
	parser          *syntax.Parser
	inspector       *inspect.Builder
	transforms      *transform.Registry
	applyTransforms bool
}

// New creates a builder bound to a registry. A nil registry selects the
// shared session default. The builder installs itself as the registry's
// loader so imports resolved during deferred resolution can build their
// targets on demand.
func New(reg *registry.Registry, applyTransforms bool) *Builder {
	if reg == nil {
		reg = registry.Default()
	}
	b := &Builder{
		reg:             reg,
		parser:          syntax.NewParser(),
		inspector:       inspect.NewBuilder(),
		transforms:      transform.NewRegistry(),
		applyTransforms: applyTransforms,
	}
	reg.SetLoader(func(path, modname string) (*nodes.Module, error) {
		return b.BuildFile(path, modname)
	})
	return b
}

// Transforms exposes the transform registry for pass registration.
func (b *Builder) Transforms() *transform.Registry { return b.transforms }

// Registry returns the registry the builder populates.
func (b *Builder) Registry() *registry.Registry { return b.reg }

// BuildFile builds a module from a source file. An empty modname is
// derived from the file's position under the search roots, falling
// back to the filename stem.
func (b *Builder) BuildFile(path, modname string) (*nodes.Module, error) {
	_, span := observability.Tracer.Start(context.Background(), "builder.BuildFile",
		trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	start := time.Now()
	mod, err := b.fileBuild(path, modname)
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.BuildDuration.WithLabelValues("file").Observe(time.Since(start).Seconds())
	observability.BuildsTotal.WithLabelValues("file", status).Inc()
	return mod, err
}

func (b *Builder) fileBuild(path, modname string) (*nodes.Module, error) {
	text, encoding, err := source.Open(path)
	if err != nil {
		return nil, errs.AddModule(err, modname)
	}

	if modname == "" {
		if derived, derr := b.reg.ModPathFromFile(path); derr == nil {
			modname = derived
		} else {
			// Derivation failure is non-fatal.
			modname = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
	}

	mod, res, err := b.dataBuild(text, modname, path)
	if err != nil {
		return nil, err
	}
	return b.postBuild(mod, res, encoding), nil
}

// BuildString builds a module from raw source text.
func (b *Builder) BuildString(data, modname, path string) (*nodes.Module, error) {
	_, span := observability.Tracer.Start(context.Background(), "builder.BuildString",
		trace.WithAttributes(attribute.String("module", modname)))
	defer span.End()

	start := time.Now()
	mod, res, err := b.dataBuild(data, modname, path)
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.BuildDuration.WithLabelValues("string").Observe(time.Since(start).Seconds())
	observability.BuildsTotal.WithLabelValues("string", status).Inc()
	if err != nil {
		return nil, err
	}

	mod.FileBytes = []byte(data)
	return b.postBuild(mod, res, "utf-8"), nil
}

// BuildModule builds from a live module reference. A module backed by
// an on-disk source file gets the full file build, which yields a
// strictly richer tree; introspection is the fallback.
func (b *Builder) BuildModule(live inspect.LiveModule, modname string) (*nodes.Module, error) {
	if path := sourceFileFor(live.Path()); path != "" {
		return b.BuildFile(path, modname)
	}

	mod := b.inspector.Build(live, modname)
	observability.BuildsTotal.WithLabelValues("live", "ok").Inc()
	// Introspected trees have no deferred queues; transforms apply
	// directly.
	if b.applyTransforms {
		mod = b.transforms.Apply(mod)
	}
	return mod, nil
}

// BuildNamespacePackage creates a placeholder module for a namespace
// package: no source, no resolution.
func (b *Builder) BuildNamespacePackage(name, path string) *nodes.Module {
	observability.BuildsTotal.WithLabelValues("namespace", "ok").Inc()
	return nodes.NewModule(name, path, true)
}

// sourceFileFor maps a live module's recorded path to an existing .py
// source file, or "".
func sourceFileFor(path string) string {
	if path == "" {
		return ""
	}
	ext := filepath.Ext(path)
	switch ext {
	case ".pyc", ".pyo":
		path = strings.TrimSuffix(path, ext) + ".py"
	case ".py":
	default:
		return ""
	}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}
	return ""
}

// dataBuild parses source text and rebuilds it into a semantic module
// plus the deferred-work queues.
func (b *Builder) dataBuild(data, modname, path string) (*nodes.Module, rebuild.Result, error) {
	parseStart := time.Now()
	tree, err := b.parser.Parse(data + "\n")
	observability.ParseDuration.Observe(time.Since(parseStart).Seconds())
	if err != nil {
		var be *errs.BuildError
		if errors.As(err, &be) {
			be.Source = data
			return nil, rebuild.Result{}, be.WithModule(modname).WithPath(path)
		}
		return nil, rebuild.Result{}, errs.Wrap(err, errs.KindSyntaxFailure, "parsing failed").
			WithModule(modname).WithPath(path).WithSource(data)
	}
	defer tree.Close()

	absPath := "<?>"
	if path != "" {
		if abs, aerr := filepath.Abs(path); aerr == nil {
			absPath = abs
		} else {
			absPath = path
		}
	}

	pkg := false
	if strings.HasSuffix(modname, ".__init__") {
		modname = strings.TrimSuffix(modname, ".__init__")
		pkg = true
	} else {
		pkg = path != "" && strings.Contains(path, "__init__.py")
	}

	mod, res := rebuild.Rebuild(tree, modname, absPath, pkg)
	return mod, res, nil
}

// postBuild stamps the encoding, registers the module and drains the
// deferred queues. Registration happens before resolution so a
// recursive build on an import cycle finds the in-flight module
// instead of recursing without bound.
func (b *Builder) postBuild(mod *nodes.Module, res rebuild.Result, encoding string) *nodes.Module {
	mod.FileEncoding = encoding
	b.reg.Register(mod.Name, mod)

	resolve.NewStage(b.reg).Run(mod, res)

	if b.applyTransforms {
		return b.transforms.Apply(mod)
	}
	return mod
}

// Parse builds a module from a source snippet using the shared session
// registry. The snippet is dedented first so indented test fragments
// parse as top-level code.
func Parse(code, modname, path string, applyTransforms bool) (*nodes.Module, error) {
	b := New(registry.Default(), applyTransforms)
	return b.BuildString(util.Dedent(code), modname, path)
}
