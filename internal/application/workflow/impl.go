package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/dispatcher"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/event"
	domainwf "github.com/ebaz7/lepan-crm-sub000/internal/domain/workflow"
)

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	records    port.RecordRepository
	txManager  port.TransactionManager
	machine    *domainwf.Machine
	dispatcher dispatcher.Dispatcher
	observer   Observer
	logger     Logger
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithObserver sets a transition observer
func WithObserver(o Observer) EngineOption {
	return func(e *engineImpl) {
		e.observer = o
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	records port.RecordRepository,
	txManager port.TransactionManager,
	machine *domainwf.Machine,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		records:   records,
		txManager: txManager,
		machine:   machine,
		logger:    nopLogger{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Transition applies one action to a record
func (e *engineImpl) Transition(ctx context.Context, recordID string, req domainwf.Request) (*Result, error) {
	record, err := e.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch record %s: %w", recordID, err)
	}

	outcome, err := e.machine.Apply(record, req)
	if err != nil {
		e.observe(record.DocumentType, req.Action, outcomeFor(err))
		e.logger.Info("Transition refused",
			"record_id", recordID,
			"stage", record.CurrentStage,
			"action", req.Action,
			"actor_id", req.Actor.ID,
			"error", err,
		)
		return nil, err
	}

	if outcome.NoOp {
		e.observe(record.DocumentType, req.Action, OutcomeNoOp)
		e.logger.Info("Transition already applied",
			"record_id", recordID,
			"stage", record.CurrentStage,
			"action", req.Action,
			"actor_id", req.Actor.ID,
		)
		return e.result(outcome, req.Actor), nil
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.records.AppendTransition(txCtx, outcome.Record, outcome.Entry, record.Version())
	})
	if err != nil {
		if errors.Is(err, port.ErrStaleState) {
			e.observe(record.DocumentType, req.Action, OutcomeStale)
			return nil, e.staleError(ctx, record, req)
		}
		e.observe(record.DocumentType, req.Action, OutcomeError)
		e.logger.Error("Failed to persist transition",
			"record_id", recordID,
			"from_stage", outcome.FromStage,
			"to_stage", outcome.Entry.Stage,
			"error", err,
		)
		return nil, fmt.Errorf("failed to persist transition: %w", err)
	}

	e.observe(record.DocumentType, req.Action, OutcomeApplied)
	e.logger.Info("Transition applied",
		"record_id", recordID,
		"document_type", record.DocumentType,
		"from_stage", outcome.FromStage,
		"to_stage", outcome.Entry.Stage,
		"action", req.Action,
		"actor_id", req.Actor.ID,
	)

	if e.dispatcher != nil {
		graph, _ := e.machine.Registry().Get(record.DocumentType)
		terminal := graph != nil && graph.IsTerminal(outcome.Entry.Stage)
		e.dispatcher.DispatchAsync(ctx, event.NewTransitionEvent(outcome.Record, outcome.Entry, terminal))
	}

	return e.result(outcome, req.Actor), nil
}

// AllowedActions returns the record and the actor's permitted actions
func (e *engineImpl) AllowedActions(ctx context.Context, recordID string, actor entity.Actor) (*entity.WorkflowRecord, []entity.Action, error) {
	record, err := e.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch record %s: %w", recordID, err)
	}
	return record, e.machine.AllowedActions(record, actor), nil
}

// staleError re-reads the record so the caller sees where it moved to
func (e *engineImpl) staleError(ctx context.Context, original *entity.WorkflowRecord, req domainwf.Request) error {
	current := original
	if fresh, err := e.records.GetByID(ctx, original.ID); err == nil {
		current = fresh
	}

	e.logger.Info("Transition lost race",
		"record_id", original.ID,
		"expected_version", original.Version(),
		"current_stage", current.CurrentStage,
		"action", req.Action,
		"actor_id", req.Actor.ID,
	)

	return &domainwf.TransitionError{
		Kind:         domainwf.ErrStaleState,
		DocumentType: current.DocumentType,
		Stage:        current.CurrentStage,
		Action:       req.Action,
		ActorRole:    req.Actor.Role,
		Allowed:      e.machine.AllowedActions(current, req.Actor),
	}
}

func (e *engineImpl) result(outcome *domainwf.Outcome, actor entity.Actor) *Result {
	return &Result{
		Record:    outcome.Record,
		Entry:     outcome.Entry,
		FromStage: outcome.FromStage,
		NoOp:      outcome.NoOp,
		Allowed:   e.machine.AllowedActions(outcome.Record, actor),
	}
}

func (e *engineImpl) observe(documentType entity.DocumentType, action entity.Action, outcome string) {
	if e.observer != nil {
		e.observer.ObserveTransition(documentType, action, outcome)
	}
}

func outcomeFor(err error) string {
	if errors.Is(err, domainwf.ErrStaleState) {
		return OutcomeStale
	}
	if _, ok := domainwf.AsTransitionError(err); ok {
		return OutcomeRefused
	}
	return OutcomeError
}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}
