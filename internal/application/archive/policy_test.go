package archive

import (
	"testing"

	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
	domainwf "github.com/ebaz7/lepan-crm-sub000/internal/domain/workflow"
)

func TestPolicy_IsActive(t *testing.T) {
	p := NewPolicy(domainwf.DefaultRegistry())

	tests := []struct {
		name    string
		docType entity.DocumentType
		stage   entity.Stage
		want    bool
	}{
		{"pending payment", entity.DocumentPaymentOrder, domainwf.StagePending, true},
		{"approved payment", entity.DocumentPaymentOrder, domainwf.StageApprovedCEO, false},
		{"revocation in progress", entity.DocumentPaymentOrder, domainwf.StageRevocationPendingManager, true},
		{"revoked payment", entity.DocumentPaymentOrder, domainwf.StageRevoked, false},
		{"rejected permit", entity.DocumentExitPermit, domainwf.StageRejected, false},
		{"exited permit", entity.DocumentExitPermit, domainwf.StageExited, false},
		{"permit at security", entity.DocumentExitPermit, domainwf.StagePendingSecurity, true},
		{"archived log", entity.DocumentSecurityLog, domainwf.StageArchived, false},
		{"incident at CEO", entity.DocumentSecurityIncident, domainwf.StagePendingCEO, true},
		{"unknown stage", entity.DocumentPaymentOrder, entity.Stage("LIMBO"), true},
		{"unknown type", entity.DocumentType("MEMO"), domainwf.StageArchived, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.IsActive(tt.docType, tt.stage); got != tt.want {
				t.Errorf("IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicy_ListActiveAndArchived(t *testing.T) {
	p := NewPolicy(domainwf.DefaultRegistry())
	records := []*entity.WorkflowRecord{
		{ID: "1", DocumentType: entity.DocumentPaymentOrder, CurrentStage: domainwf.StagePending},
		{ID: "2", DocumentType: entity.DocumentPaymentOrder, CurrentStage: domainwf.StageApprovedCEO},
		{ID: "3", DocumentType: entity.DocumentSecurityDelay, CurrentStage: domainwf.StageArchived},
		{ID: "4", DocumentType: entity.DocumentExitPermit, CurrentStage: domainwf.StagePendingFactory},
	}

	active := p.ListActive(records)
	if len(active) != 2 || active[0].ID != "1" || active[1].ID != "4" {
		t.Errorf("ListActive() = %v", ids(active))
	}

	archived := p.ListArchived(records)
	if len(archived) != 2 || archived[0].ID != "2" || archived[1].ID != "3" {
		t.Errorf("ListArchived() = %v", ids(archived))
	}

	if all := p.Filter(records, ""); len(all) != 4 {
		t.Errorf("Filter(\"\") returned %d records, want 4", len(all))
	}

	if records[1].CurrentStage != domainwf.StageApprovedCEO || len(records) != 4 {
		t.Error("filtering must not modify records")
	}
}

func TestPolicy_StagesFor(t *testing.T) {
	p := NewPolicy(domainwf.DefaultRegistry())

	archived, err := p.StagesFor(entity.DocumentExitPermit, StatusArchived)
	if err != nil {
		t.Fatalf("StagesFor() error = %v", err)
	}
	if len(archived) != 2 || archived[0] != domainwf.StageExited || archived[1] != domainwf.StageRejected {
		t.Errorf("StagesFor(archived) = %v", archived)
	}

	active, err := p.StagesFor(entity.DocumentExitPermit, StatusActive)
	if err != nil {
		t.Fatalf("StagesFor() error = %v", err)
	}
	if len(active) != 4 {
		t.Errorf("StagesFor(active) = %v", active)
	}

	if _, err := p.StagesFor(entity.DocumentType("MEMO"), StatusActive); err == nil {
		t.Error("expected error for unknown document type")
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"", "", false},
		{"active", StatusActive, false},
		{"archived", StatusArchived, false},
		{"deleted", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestTradeArchiveFlag(t *testing.T) {
	trades := []*entity.TradeRecord{
		{ID: "t1", IsArchived: false},
		{ID: "t2", IsArchived: true},
	}

	if got := FilterTrades(trades, StatusArchived); len(got) != 1 || got[0].ID != "t2" {
		t.Errorf("FilterTrades(archived) = %v", got)
	}
	if got := FilterTrades(trades, StatusActive); len(got) != 1 || got[0].ID != "t1" {
		t.Errorf("FilterTrades(active) = %v", got)
	}
	if f := TradeArchivedFilter(StatusArchived); f == nil || !*f {
		t.Error("TradeArchivedFilter(archived) should be true")
	}
	if f := TradeArchivedFilter(""); f != nil {
		t.Error("TradeArchivedFilter(\"\") should be nil")
	}
}

func ids(records []*entity.WorkflowRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
