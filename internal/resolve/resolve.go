// Package resolve drains the deferred-work queues produced by the
// rebuilder: from-import name expansion and delayed attribute
// assignments. Partial failure is expected here; a record that cannot
// be resolved is dropped without affecting the rest of the build.
package resolve

import (
	"log/slog"

	"semtree/internal/infer"
	"semtree/internal/nodes"
	"semtree/internal/rebuild"
	"semtree/internal/registry"
	"semtree/internal/shared/observability"
)

// Outcome classifies what happened to one candidate of a delayed
// attribute assignment.
type Outcome int

const (
	Resolved Outcome = iota
	Skipped
	Indeterminate
)

// Stage resolves one build's deferred records against a shared
// registry. Records are processed in append order and consumed at most
// once; the two queues touch disjoint symbol-table regions.
type Stage struct {
	reg    *registry.Registry
	oracle *infer.Oracle
}

func NewStage(reg *registry.Registry) *Stage {
	return &Stage{reg: reg, oracle: infer.NewOracle()}
}

// Run drains both queues for mod. The module must already be
// registered so recursive imports of in-flight cycles terminate.
func (s *Stage) Run(mod *nodes.Module, res rebuild.Result) {
	for _, imp := range res.ImportFromNodes {
		if imp.ModName == "__future__" {
			for _, alias := range imp.Names {
				if alias.Name != "*" {
					mod.FutureFeatures[alias.Name] = true
				}
			}
		}
		s.addFromNamesToLocals(mod, imp)
	}

	for _, delayed := range res.DelayedAssignAttrs {
		s.delayedAssignAttr(delayed)
	}
}

// addFromNamesToLocals binds a from-import's names into the importing
// scope. Wildcards expand the target module's public names; a target
// that cannot be resolved drops the record with no effect.
func (s *Stage) addFromNamesToLocals(mod *nodes.Module, imp *nodes.ImportFrom) {
	scope := nodes.ScopeOf(imp)
	if scope == nil {
		return
	}
	table := scope.LocalsTable()

	for _, alias := range imp.Names {
		if alias.Name == "*" {
			imported, err := s.reg.ImportModule(mod, imp.ModName, imp.Level)
			if err != nil {
				slog.Debug("wildcard import dropped",
					"module", mod.Name, "target", imp.ModName, "error", err)
				observability.DeferredRecords.WithLabelValues("import", "skipped").Inc()
				continue
			}
			for _, name := range imported.PublicNames() {
				table.Add(name, imp)
				table.SortByLine(name)
			}
			observability.DeferredRecords.WithLabelValues("import", "resolved").Inc()
			continue
		}

		binding := alias.Binding()
		table.Add(binding, imp)
		table.SortByLine(binding)
		observability.DeferredRecords.WithLabelValues("import", "resolved").Inc()
	}
}

// delayedAssignAttr registers a pending "object.attribute = value"
// once the owners of the object expression are inferred. The candidate
// sequence is consumed exhaustively, never short-circuited.
func (s *Stage) delayedAssignAttr(node *nodes.AssignAttr) {
	frame := nodes.FrameOf(node)

	candidates, err := s.oracle.Infer(node.Expr)
	if err != nil {
		// Indeterminate for the whole expression: abandon the record.
		slog.Debug("delayed attribute abandoned", "attr", node.AttrName, "error", err)
		observability.DeferredRecords.WithLabelValues("attribute", "abandoned").Inc()
		return
	}

	for candidate := range candidates {
		switch s.applyCandidate(node, frame, candidate) {
		case Resolved:
			observability.DeferredRecords.WithLabelValues("attribute", "resolved").Inc()
		case Skipped:
			observability.DeferredRecords.WithLabelValues("attribute", "skipped").Inc()
		}
	}
}

func (s *Stage) applyCandidate(node *nodes.AssignAttr, frame nodes.Scoped, candidate infer.Candidate) Outcome {
	var table *nodes.SymbolTable

	switch c := candidate.(type) {
	case infer.UnknownCandidate:
		return Skipped
	case infer.InstanceCandidate:
		// Redirect to the underlying class; its restricted attribute
		// set, when declared, decides whether the name is allowed at
		// all.
		if !c.Class.CanAssignAttr(node.AttrName) {
			return Skipped
		}
		table = c.Class.InstanceAttrs
	case infer.ContainerLikeCandidate:
		// Literal or container-like owner: injecting the attribute
		// would pollute a shared namespace.
		return Skipped
	case infer.CallableCandidate:
		table = c.Fn.InstanceAttrs
	case infer.OtherCandidate:
		if c.Owner == nil {
			return Skipped
		}
		table = c.Owner.LocalsTable()
	}

	if table == nil {
		slog.Debug("no attribute table for candidate", "attr", node.AttrName)
		return Skipped
	}

	values := table.Get(node.AttrName)
	if table.Contains(node.AttrName, node) {
		// Already registered; idempotent under re-entrant presentation.
		return Skipped
	}

	if isConstructor(frame) && len(values) > 0 && !isConstructor(nodes.FrameOf(values[0])) {
		// Constructor-defined attributes sort first regardless of
		// source order.
		table.InsertFront(node.AttrName, node)
	} else {
		table.Add(node.AttrName, node)
	}
	return Resolved
}

func isConstructor(scope nodes.Scoped) bool {
	fn, ok := scope.(*nodes.FunctionDef)
	return ok && fn.Name == "__init__"
}
