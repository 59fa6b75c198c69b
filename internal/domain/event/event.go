package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

// Event is emitted after a workflow change has been committed. Consumers
// may render and deliver notifications; the record never depends on them.
type Event struct {
	ID             string              `json:"id"`
	Type           Type                `json:"type"`
	DocumentType   entity.DocumentType `json:"document_type,omitempty"`
	DocumentID     string              `json:"document_id"`
	DocumentNumber int64               `json:"document_number,omitempty"`
	CompanyID      string              `json:"company_id"`
	FromStage      entity.Stage        `json:"from_stage,omitempty"`
	ToStage        entity.Stage        `json:"to_stage,omitempty"`
	Action         entity.Action       `json:"action,omitempty"`
	ActorID        string              `json:"actor_id"`
	ActorRole      entity.Role         `json:"actor_role,omitempty"`
	RequesterID    string              `json:"requester_id,omitempty"`
	Note           string              `json:"note,omitempty"`
	Terminal       bool                `json:"terminal"`
	Timestamp      time.Time           `json:"timestamp"`
	CorrelationID  string              `json:"correlation_id"`
}

// NewTransitionEvent builds the event for a committed stage transition
func NewTransitionEvent(record *entity.WorkflowRecord, entry entity.StageEntry, terminal bool) *Event {
	eventType, _ := TypeForAction(entry.Action)
	return &Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		DocumentType:   record.DocumentType,
		DocumentID:     record.ID,
		DocumentNumber: record.DocumentNumber,
		CompanyID:      record.CompanyID,
		FromStage:      entry.FromStage,
		ToStage:        entry.Stage,
		Action:         entry.Action,
		ActorID:        entry.ActorID,
		ActorRole:      entry.ActorRole,
		RequesterID:    record.RequesterID,
		Note:           entry.Note,
		Terminal:       terminal,
		Timestamp:      entry.Timestamp,
		CorrelationID:  record.ID,
	}
}

// NewCreatedEvent builds the event for a newly created document
func NewCreatedEvent(record *entity.WorkflowRecord) *Event {
	return &Event{
		ID:             uuid.NewString(),
		Type:           TypeDocumentCreated,
		DocumentType:   record.DocumentType,
		DocumentID:     record.ID,
		DocumentNumber: record.DocumentNumber,
		CompanyID:      record.CompanyID,
		ToStage:        record.CurrentStage,
		ActorID:        record.RequesterID,
		RequesterID:    record.RequesterID,
		Timestamp:      record.CreatedAt,
		CorrelationID:  record.ID,
	}
}

// NewTradeArchiveEvent builds the event for a trade archive flag change
func NewTradeArchiveEvent(trade *entity.TradeRecord, actorID string) *Event {
	eventType := TypeTradeUnarchived
	if trade.IsArchived {
		eventType = TypeTradeArchived
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		DocumentID:    trade.ID,
		CompanyID:     trade.CompanyID,
		ActorID:       actorID,
		Terminal:      trade.IsArchived,
		Timestamp:     trade.UpdatedAt,
		CorrelationID: trade.ID,
	}
}
