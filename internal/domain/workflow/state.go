package workflow

import "github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"

// StageRejected is the shared terminal stage every graph rejects into
const StageRejected entity.Stage = "REJECTED"

// Payment order stages
const (
	StagePending                  entity.Stage = "PENDING"
	StageApprovedFinance          entity.Stage = "APPROVED_FINANCE"
	StageApprovedManager          entity.Stage = "APPROVED_MANAGER"
	StageApprovedCEO              entity.Stage = "APPROVED_CEO"
	StageRevocationPendingFinance entity.Stage = "REVOCATION_PENDING_FINANCE"
	StageRevocationPendingManager entity.Stage = "REVOCATION_PENDING_MANAGER"
	StageRevocationPendingCEO     entity.Stage = "REVOCATION_PENDING_CEO"
	StageRevoked                  entity.Stage = "REVOKED"
)

// Exit permit stages
const (
	StagePendingSales     entity.Stage = "PENDING_SALES"
	StagePendingFactory   entity.Stage = "PENDING_FACTORY"
	StagePendingWarehouse entity.Stage = "PENDING_WAREHOUSE"
	StagePendingSecurity  entity.Stage = "PENDING_SECURITY"
	StageExited           entity.Stage = "EXITED"
)

// Security report stages. PENDING_FACTORY is shared with exit permits.
const (
	StagePendingRegistrant entity.Stage = "PENDING_REGISTRANT"
	StagePendingSupervisor entity.Stage = "PENDING_SUPERVISOR"
	StagePendingCEO        entity.Stage = "PENDING_CEO"
	StageArchived          entity.Stage = "ARCHIVED"
)

// StageDefinition describes one stage of a graph: who may act on it and
// where each action leads.
type StageDefinition struct {
	Stage entity.Stage `json:"stage"`
	// RequiredRole may approve or reject from this stage
	RequiredRole entity.Role  `json:"required_role,omitempty"`
	OnApprove    entity.Stage `json:"on_approve,omitempty"`
	OnReject     entity.Stage `json:"on_reject,omitempty"`
	OnRevoke     entity.Stage `json:"on_revoke,omitempty"`
	RevokeRole   entity.Role  `json:"revoke_role,omitempty"`
	// OnEdit is set when editing resets the record to an earlier stage
	OnEdit   entity.Stage `json:"on_edit,omitempty"`
	EditRole entity.Role  `json:"edit_role,omitempty"`
	Terminal bool         `json:"terminal"`
}

// Target returns the stage an action leads to from this stage
func (d StageDefinition) Target(action entity.Action) (entity.Stage, bool) {
	switch action {
	case entity.ActionApprove:
		if d.Terminal || d.OnApprove == "" {
			return "", false
		}
		return d.OnApprove, true
	case entity.ActionReject:
		if d.Terminal || d.OnReject == "" {
			return "", false
		}
		return d.OnReject, true
	case entity.ActionRevoke:
		if d.OnRevoke == "" {
			return "", false
		}
		return d.OnRevoke, true
	case entity.ActionEdit:
		if d.OnEdit != "" {
			return d.OnEdit, true
		}
		if d.Terminal {
			return "", false
		}
		return d.Stage, true
	}
	return "", false
}

// Actions returns the actions that have a target from this stage, ignoring roles
func (d StageDefinition) Actions() []entity.Action {
	actions := make([]entity.Action, 0, 4)
	for _, action := range entity.Actions() {
		if _, ok := d.Target(action); ok {
			actions = append(actions, action)
		}
	}
	return actions
}
