package archive

import (
	"fmt"

	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
	domainwf "github.com/ebaz7/lepan-crm-sub000/internal/domain/workflow"
)

// Status is the view a record surfaces in
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// ParseStatus parses a status query value. Empty means no filter.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case "":
		return "", nil
	case StatusActive, StatusArchived:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid status %q: want %s or %s", s, StatusActive, StatusArchived)
}

// Policy classifies workflow records as active or archived. A record is
// archived exactly when its current stage is terminal in its graph; nothing
// is deleted or flagged. Reopening is a transition back to a non-terminal stage.
type Policy struct {
	registry *domainwf.Registry
}

// NewPolicy creates a policy over the given stage graphs
func NewPolicy(registry *domainwf.Registry) *Policy {
	return &Policy{registry: registry}
}

// IsActive reports whether records of the type at the stage are in the active
// view. Unknown types and stages are treated as active so they stay visible.
func (p *Policy) IsActive(documentType entity.DocumentType, stage entity.Stage) bool {
	graph, ok := p.registry.Get(documentType)
	if !ok {
		return true
	}
	return !graph.IsTerminal(stage)
}

// StatusOf returns the view a record belongs to
func (p *Policy) StatusOf(record *entity.WorkflowRecord) Status {
	if p.IsActive(record.DocumentType, record.CurrentStage) {
		return StatusActive
	}
	return StatusArchived
}

// ListActive returns the records in the active view, preserving order
func (p *Policy) ListActive(records []*entity.WorkflowRecord) []*entity.WorkflowRecord {
	return p.Filter(records, StatusActive)
}

// ListArchived returns the records in the archived view, preserving order
func (p *Policy) ListArchived(records []*entity.WorkflowRecord) []*entity.WorkflowRecord {
	return p.Filter(records, StatusArchived)
}

// Filter returns the records with the given status. An empty status keeps all.
func (p *Policy) Filter(records []*entity.WorkflowRecord, status Status) []*entity.WorkflowRecord {
	if status == "" {
		return records
	}
	result := make([]*entity.WorkflowRecord, 0, len(records))
	for _, r := range records {
		if p.StatusOf(r) == status {
			result = append(result, r)
		}
	}
	return result
}

// StagesFor returns the stages of a document type that fall in the given
// view, so stores can filter without loading every record
func (p *Policy) StagesFor(documentType entity.DocumentType, status Status) ([]entity.Stage, error) {
	graph, err := p.registry.Lookup(documentType)
	if err != nil {
		return nil, err
	}
	switch status {
	case StatusActive:
		return graph.ActiveStages(), nil
	case StatusArchived:
		return graph.TerminalStages(), nil
	case "":
		return nil, nil
	}
	return nil, fmt.Errorf("invalid status %q", status)
}
