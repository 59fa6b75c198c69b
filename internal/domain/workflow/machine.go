package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

// Request is one requested transition
type Request struct {
	Action entity.Action
	Actor  entity.Actor
	Note   string
	// ExpectedStage is the stage the caller last observed. Empty skips the check.
	ExpectedStage entity.Stage
	// Payload replaces the record payload on EDIT when non-nil
	Payload json.RawMessage
}

// Outcome is the result of applying a request
type Outcome struct {
	Record    *entity.WorkflowRecord
	Entry     entity.StageEntry
	FromStage entity.Stage
	// NoOp is set when the request repeats the last applied transition
	NoOp bool
}

// Machine applies transitions to workflow records. It is a pure function of
// the stage graphs and performs no I/O.
type Machine struct {
	registry  *Registry
	adminRole entity.Role
	now       func() time.Time
}

// MachineOption configures a Machine
type MachineOption func(*Machine)

// WithAdminRole sets the role allowed to act from any stage
func WithAdminRole(role entity.Role) MachineOption {
	return func(m *Machine) {
		m.adminRole = role
	}
}

// WithClock overrides the time source for audit timestamps
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) {
		m.now = now
	}
}

// NewMachine creates a Machine over the given registry
func NewMachine(registry *Registry, opts ...MachineOption) *Machine {
	m := &Machine{
		registry:  registry,
		adminRole: entity.RoleAdmin,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the stage graphs the machine uses
func (m *Machine) Registry() *Registry {
	return m.registry
}

// AdminRole returns the override role
func (m *Machine) AdminRole() entity.Role {
	return m.adminRole
}

// Apply validates the request against the record's current stage and returns
// a new record with exactly one audit entry appended. The input record is not
// modified.
func (m *Machine) Apply(record *entity.WorkflowRecord, req Request) (*Outcome, error) {
	graph, err := m.registry.Lookup(record.DocumentType)
	if err != nil {
		return nil, err
	}

	def, ok := graph.Definition(record.CurrentStage)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a stage of %s", ErrInvalidStage, record.CurrentStage, record.DocumentType)
	}

	if !req.Action.IsValid() {
		return nil, m.refuse(ErrInvalidActionAtStage, record, def, req)
	}

	if req.ExpectedStage != "" && req.ExpectedStage != record.CurrentStage {
		if m.repeatsLastEntry(record, req) {
			return m.noOp(record), nil
		}
		return nil, m.refuse(ErrStaleState, record, def, req)
	}

	// Without an expected stage a repeat of the last entry is a retry, even
	// for actors permitted at the new stage. A deliberate second step by the
	// same actor must name the current stage.
	if req.ExpectedStage == "" && m.repeatsLastEntry(record, req) {
		return m.noOp(record), nil
	}

	target, ok := def.Target(req.Action)
	if !ok {
		return nil, m.refuse(ErrInvalidActionAtStage, record, def, req)
	}

	if !m.permitted(def, req.Action, req.Actor, record.RequesterID) {
		return nil, m.refuse(ErrUnauthorizedTransition, record, def, req)
	}

	if req.Action == entity.ActionReject && strings.TrimSpace(req.Note) == "" {
		return nil, m.refuse(ErrNoteRequired, record, def, req)
	}

	now := m.now().UTC()
	entry := entity.StageEntry{
		Seq:       len(record.StageHistory) + 1,
		FromStage: record.CurrentStage,
		Stage:     target,
		ActorID:   req.Actor.ID,
		ActorRole: req.Actor.Role,
		Action:    req.Action,
		Note:      strings.TrimSpace(req.Note),
		Timestamp: now,
	}

	next := record.Clone()
	next.StageHistory = append(next.StageHistory, entry)
	next.CurrentStage = target
	next.UpdatedAt = now
	if req.Action == entity.ActionEdit && req.Payload != nil {
		next.Payload = append(json.RawMessage(nil), req.Payload...)
	}

	return &Outcome{
		Record:    next,
		Entry:     entry,
		FromStage: record.CurrentStage,
	}, nil
}

// AllowedActions returns the actions the actor may take on the record now
func (m *Machine) AllowedActions(record *entity.WorkflowRecord, actor entity.Actor) []entity.Action {
	graph, ok := m.registry.Get(record.DocumentType)
	if !ok {
		return nil
	}
	def, ok := graph.Definition(record.CurrentStage)
	if !ok {
		return nil
	}
	return m.allowed(def, actor, record.RequesterID)
}

func (m *Machine) allowed(def StageDefinition, actor entity.Actor, requesterID string) []entity.Action {
	actions := make([]entity.Action, 0, 4)
	for _, action := range def.Actions() {
		if m.permitted(def, action, actor, requesterID) {
			actions = append(actions, action)
		}
	}
	return actions
}

// permitted checks role gating only; target existence is checked separately
func (m *Machine) permitted(def StageDefinition, action entity.Action, actor entity.Actor, requesterID string) bool {
	if m.adminRole != "" && actor.Role == m.adminRole {
		return true
	}

	switch action {
	case entity.ActionApprove, entity.ActionReject:
		return def.RequiredRole != "" && actor.Role == def.RequiredRole
	case entity.ActionRevoke:
		return def.RevokeRole != "" && actor.Role == def.RevokeRole
	case entity.ActionEdit:
		if actor.ID != "" && actor.ID == requesterID {
			return true
		}
		if def.EditRole != "" && actor.Role == def.EditRole {
			return true
		}
		return def.RequiredRole != "" && actor.Role == def.RequiredRole
	}
	return false
}

// repeatsLastEntry reports whether an APPROVE or REJECT request matches the
// last audit entry by actor and action, i.e. is a retry of a committed call.
func (m *Machine) repeatsLastEntry(record *entity.WorkflowRecord, req Request) bool {
	if req.Action != entity.ActionApprove && req.Action != entity.ActionReject {
		return false
	}
	last, ok := record.LastEntry()
	if !ok {
		return false
	}
	if last.ActorID != req.Actor.ID || last.Action != req.Action {
		return false
	}
	return req.ExpectedStage == "" || last.FromStage == req.ExpectedStage
}

func (m *Machine) noOp(record *entity.WorkflowRecord) *Outcome {
	last, _ := record.LastEntry()
	return &Outcome{
		Record:    record.Clone(),
		Entry:     last,
		FromStage: record.CurrentStage,
		NoOp:      true,
	}
}

func (m *Machine) refuse(kind error, record *entity.WorkflowRecord, def StageDefinition, req Request) error {
	return &TransitionError{
		Kind:         kind,
		DocumentType: record.DocumentType,
		Stage:        record.CurrentStage,
		Action:       req.Action,
		ActorRole:    req.Actor.Role,
		Allowed:      m.allowed(def, req.Actor, record.RequesterID),
	}
}
