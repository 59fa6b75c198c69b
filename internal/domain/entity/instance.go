package entity

import (
	"encoding/json"
	"time"
)

// WorkflowRecord is one document travelling through an approval workflow:
// a payment order, an exit permit or a security daily-report unit.
//
// CurrentStage always equals the stage reached by replaying StageHistory
// from the initial stage of the document type's graph. DocumentNumber is
// assigned once at creation and never changes.
type WorkflowRecord struct {
	ID             string          `json:"id"`
	DocumentNumber int64           `json:"document_number"`
	CompanyID      string          `json:"company_id"`
	DocumentType   DocumentType    `json:"document_type"`
	FiscalYearID   string          `json:"fiscal_year_id"`
	CurrentStage   Stage           `json:"current_stage"`
	StageHistory   []StageEntry    `json:"stage_history"`
	RequesterID    string          `json:"requester_id"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Version is the number of audit entries applied so far. Stores use it as
// the compare-and-swap token for transitions.
func (r *WorkflowRecord) Version() int {
	return len(r.StageHistory)
}

// LastEntry returns the most recent audit entry, if any
func (r *WorkflowRecord) LastEntry() (StageEntry, bool) {
	if len(r.StageHistory) == 0 {
		return StageEntry{}, false
	}
	return r.StageHistory[len(r.StageHistory)-1], true
}

// SequenceKey returns the counter scope the document number belongs to
func (r *WorkflowRecord) SequenceKey() SequenceKey {
	return SequenceKey{
		CompanyID:    r.CompanyID,
		DocumentType: r.DocumentType,
		FiscalYearID: r.FiscalYearID,
	}
}

// Clone returns a deep copy so callers can mutate without touching the original
func (r *WorkflowRecord) Clone() *WorkflowRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.StageHistory = append([]StageEntry(nil), r.StageHistory...)
	if r.Payload != nil {
		clone.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	return &clone
}
