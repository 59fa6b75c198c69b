package workflow

import (
	"context"

	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
	domainwf "github.com/ebaz7/lepan-crm-sub000/internal/domain/workflow"
)

// Engine is the only mutator of a workflow record's stage. It loads the
// record, applies the requested action, persists the result with a
// compare-and-swap on the record version, and emits an event after commit.
type Engine interface {
	// Transition applies one action to the record with the given ID
	Transition(ctx context.Context, recordID string, req domainwf.Request) (*Result, error)

	// AllowedActions returns the record and the actions the actor may take on it now
	AllowedActions(ctx context.Context, recordID string, actor entity.Actor) (*entity.WorkflowRecord, []entity.Action, error)
}

// Result is the outcome of a transition
type Result struct {
	Record    *entity.WorkflowRecord
	Entry     entity.StageEntry
	FromStage entity.Stage
	NoOp      bool
	// Allowed lists the actor's next actions from the resulting stage
	Allowed []entity.Action
}

// Observer receives transition outcomes, e.g. for metrics
type Observer interface {
	ObserveTransition(documentType entity.DocumentType, action entity.Action, outcome string)
}

// Outcome labels reported to the Observer
const (
	OutcomeApplied = "applied"
	OutcomeNoOp    = "noop"
	OutcomeStale   = "stale"
	OutcomeRefused = "refused"
	OutcomeError   = "error"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
