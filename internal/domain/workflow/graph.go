package workflow

import (
	"fmt"

	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

// StageGraph is the immutable stage table of one document type
type StageGraph struct {
	documentType entity.DocumentType
	initial      entity.Stage
	stages       map[entity.Stage]StageDefinition
	order        []entity.Stage
}

// DocumentType returns the document type the graph governs
func (g *StageGraph) DocumentType() entity.DocumentType {
	return g.documentType
}

// Initial returns the stage new records start in
func (g *StageGraph) Initial() entity.Stage {
	return g.initial
}

// Definition returns the definition of a stage
func (g *StageGraph) Definition(stage entity.Stage) (StageDefinition, bool) {
	def, ok := g.stages[stage]
	return def, ok
}

// Stages returns all stage definitions in declaration order
func (g *StageGraph) Stages() []StageDefinition {
	defs := make([]StageDefinition, 0, len(g.order))
	for _, stage := range g.order {
		defs = append(defs, g.stages[stage])
	}
	return defs
}

// IsTerminal returns true if the stage is terminal. Unknown stages are not terminal.
func (g *StageGraph) IsTerminal(stage entity.Stage) bool {
	def, ok := g.stages[stage]
	return ok && def.Terminal
}

// TerminalStages returns the terminal stages in declaration order
func (g *StageGraph) TerminalStages() []entity.Stage {
	var terminal []entity.Stage
	for _, stage := range g.order {
		if g.stages[stage].Terminal {
			terminal = append(terminal, stage)
		}
	}
	return terminal
}

// ActiveStages returns the non-terminal stages in declaration order
func (g *StageGraph) ActiveStages() []entity.Stage {
	var active []entity.Stage
	for _, stage := range g.order {
		if !g.stages[stage].Terminal {
			active = append(active, stage)
		}
	}
	return active
}

// Target returns the stage an action leads to from the given stage
func (g *StageGraph) Target(from entity.Stage, action entity.Action) (entity.Stage, bool) {
	def, ok := g.stages[from]
	if !ok {
		return "", false
	}
	return def.Target(action)
}

// ApprovalPath follows approve targets from the initial stage until a
// terminal stage is reached.
func (g *StageGraph) ApprovalPath() []entity.Stage {
	path := []entity.Stage{g.initial}
	seen := map[entity.Stage]bool{g.initial: true}
	current := g.initial
	for {
		next, ok := g.Target(current, entity.ActionApprove)
		if !ok || seen[next] {
			return path
		}
		path = append(path, next)
		seen[next] = true
		current = next
	}
}

// Registry holds one stage graph per document type
type Registry struct {
	graphs map[entity.DocumentType]*StageGraph
	order  []entity.DocumentType
}

// NewRegistry creates a registry from the given graphs
func NewRegistry(graphs ...*StageGraph) (*Registry, error) {
	r := &Registry{graphs: make(map[entity.DocumentType]*StageGraph, len(graphs))}
	for _, g := range graphs {
		if g == nil {
			return nil, fmt.Errorf("%w: nil graph", ErrInvalidGraph)
		}
		if _, exists := r.graphs[g.documentType]; exists {
			return nil, fmt.Errorf("%w: duplicate graph for %s", ErrInvalidGraph, g.documentType)
		}
		r.graphs[g.documentType] = g
		r.order = append(r.order, g.documentType)
	}
	return r, nil
}

// Get returns the graph for a document type
func (r *Registry) Get(documentType entity.DocumentType) (*StageGraph, bool) {
	g, ok := r.graphs[documentType]
	return g, ok
}

// Lookup returns the graph for a document type or an ErrUnknownGraph error
func (r *Registry) Lookup(documentType entity.DocumentType) (*StageGraph, error) {
	g, ok := r.graphs[documentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGraph, documentType)
	}
	return g, nil
}

// DocumentTypes returns the registered document types in registration order
func (r *Registry) DocumentTypes() []entity.DocumentType {
	return append([]entity.DocumentType(nil), r.order...)
}
