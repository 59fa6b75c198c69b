package event

import "github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"

// Type identifies the type of domain event
type Type string

const (
	TypeDocumentCreated  Type = "document.created"
	TypeDocumentApproved Type = "document.approved"
	TypeDocumentRejected Type = "document.rejected"
	TypeDocumentRevoked  Type = "document.revoked"
	TypeDocumentEdited   Type = "document.edited"
	TypeTradeArchived    Type = "trade.archived"
	TypeTradeUnarchived  Type = "trade.unarchived"
)

// Types returns every defined event type
func Types() []Type {
	return []Type{
		TypeDocumentCreated,
		TypeDocumentApproved,
		TypeDocumentRejected,
		TypeDocumentRevoked,
		TypeDocumentEdited,
		TypeTradeArchived,
		TypeTradeUnarchived,
	}
}

// TransitionTypes returns the event types emitted for committed transitions
func TransitionTypes() []Type {
	return []Type{
		TypeDocumentApproved,
		TypeDocumentRejected,
		TypeDocumentRevoked,
		TypeDocumentEdited,
	}
}

// TypeForAction maps a workflow action to the event emitted after it commits
func TypeForAction(action entity.Action) (Type, bool) {
	switch action {
	case entity.ActionApprove:
		return TypeDocumentApproved, true
	case entity.ActionReject:
		return TypeDocumentRejected, true
	case entity.ActionRevoke:
		return TypeDocumentRevoked, true
	case entity.ActionEdit:
		return TypeDocumentEdited, true
	}
	return "", false
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}
