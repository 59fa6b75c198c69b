package workflow

import (
	"fmt"

	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

// GraphBuilder builds the stage graph of one document type
type GraphBuilder interface {
	// Configure returns the configuration for the given stage
	Configure(stage entity.Stage) StageConfiguration

	// Build validates the configured stages and returns an immutable graph
	Build(initial entity.Stage) (*StageGraph, error)
}

// StageConfiguration configures the transitions of a single stage
type StageConfiguration interface {
	// RequireRole sets the role that may approve or reject from the stage
	RequireRole(role entity.Role) StageConfiguration

	// Approve sets the forward target
	Approve(next entity.Stage) StageConfiguration

	// RejectTo overrides the rejection target (defaults to REJECTED)
	RejectTo(stage entity.Stage) StageConfiguration

	// Revoke permits moving back to a prior stage by the given role
	Revoke(prior entity.Stage, role entity.Role) StageConfiguration

	// EditResets makes an edit by the given role send the record back to stage
	EditResets(stage entity.Stage, role entity.Role) StageConfiguration

	// Terminal marks the stage as having no forward transition
	Terminal() StageConfiguration
}

type stageConfig struct {
	def StageDefinition
}

type graphBuilder struct {
	documentType entity.DocumentType
	stages       map[entity.Stage]*stageConfig
	order        []entity.Stage
}

// NewGraphBuilder creates a builder for the given document type
func NewGraphBuilder(documentType entity.DocumentType) GraphBuilder {
	return &graphBuilder{
		documentType: documentType,
		stages:       make(map[entity.Stage]*stageConfig),
	}
}

// Configure returns the configuration for the given stage
func (b *graphBuilder) Configure(stage entity.Stage) StageConfiguration {
	if stage == "" {
		panic("workflow: empty stage")
	}

	config, exists := b.stages[stage]
	if !exists {
		config = &stageConfig{def: StageDefinition{Stage: stage}}
		b.stages[stage] = config
		b.order = append(b.order, stage)
	}

	return config
}

// Build validates the configured stages and returns an immutable graph
func (b *graphBuilder) Build(initial entity.Stage) (*StageGraph, error) {
	if !b.documentType.IsValid() {
		return nil, fmt.Errorf("%w: unknown document type %q", ErrInvalidGraph, b.documentType)
	}

	if _, ok := b.stages[initial]; !ok {
		return nil, fmt.Errorf("%w: initial stage %s is not configured", ErrInvalidGraph, initial)
	}

	if _, ok := b.stages[StageRejected]; !ok {
		b.Configure(StageRejected).Terminal().EditResets(initial, "")
	}

	defs := make(map[entity.Stage]StageDefinition, len(b.stages))
	for _, stage := range b.order {
		def := b.stages[stage].def
		if !def.Terminal {
			if def.OnReject == "" {
				def.OnReject = StageRejected
			}
			if def.OnApprove == "" {
				return nil, fmt.Errorf("%w: non-terminal stage %s has no approve target", ErrInvalidGraph, stage)
			}
			if def.RequiredRole == "" {
				return nil, fmt.Errorf("%w: non-terminal stage %s has no required role", ErrInvalidGraph, stage)
			}
		} else if def.OnApprove != "" {
			return nil, fmt.Errorf("%w: terminal stage %s has an approve target", ErrInvalidGraph, stage)
		}
		defs[stage] = def
	}

	for _, def := range defs {
		for _, target := range []entity.Stage{def.OnApprove, def.OnReject, def.OnRevoke, def.OnEdit} {
			if target == "" {
				continue
			}
			if _, ok := defs[target]; !ok {
				return nil, fmt.Errorf("%w: stage %s targets unconfigured stage %s", ErrInvalidGraph, def.Stage, target)
			}
		}
		if def.OnRevoke != "" && def.RevokeRole == "" {
			return nil, fmt.Errorf("%w: stage %s has a revoke target without a role", ErrInvalidGraph, def.Stage)
		}
	}

	return &StageGraph{
		documentType: b.documentType,
		initial:      initial,
		stages:       defs,
		order:        append([]entity.Stage(nil), b.order...),
	}, nil
}

// RequireRole sets the role that may approve or reject from the stage
func (c *stageConfig) RequireRole(role entity.Role) StageConfiguration {
	c.def.RequiredRole = role
	return c
}

// Approve sets the forward target
func (c *stageConfig) Approve(next entity.Stage) StageConfiguration {
	c.def.OnApprove = next
	return c
}

// RejectTo overrides the rejection target
func (c *stageConfig) RejectTo(stage entity.Stage) StageConfiguration {
	c.def.OnReject = stage
	return c
}

// Revoke permits moving back to a prior stage by the given role
func (c *stageConfig) Revoke(prior entity.Stage, role entity.Role) StageConfiguration {
	c.def.OnRevoke = prior
	c.def.RevokeRole = role
	return c
}

// EditResets makes an edit send the record back to stage
func (c *stageConfig) EditResets(stage entity.Stage, role entity.Role) StageConfiguration {
	c.def.OnEdit = stage
	c.def.EditRole = role
	return c
}

// Terminal marks the stage as having no forward transition
func (c *stageConfig) Terminal() StageConfiguration {
	c.def.Terminal = true
	return c
}
