package workflow

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

var fixedNow = time.Date(2025, 3, 21, 9, 0, 0, 0, time.UTC)

func newTestMachine() *Machine {
	return NewMachine(DefaultRegistry(), WithClock(func() time.Time { return fixedNow }))
}

func newRecord(docType entity.DocumentType) *entity.WorkflowRecord {
	graph, _ := DefaultRegistry().Get(docType)
	return &entity.WorkflowRecord{
		ID:             "rec-1",
		DocumentNumber: 1001,
		CompanyID:      "acme",
		DocumentType:   docType,
		FiscalYearID:   "1404",
		CurrentStage:   graph.Initial(),
		RequesterID:    "requester",
		CreatedAt:      fixedNow,
	}
}

func actor(id string, role entity.Role) entity.Actor {
	return entity.Actor{ID: id, Role: role}
}

func mustApply(t *testing.T, m *Machine, rec *entity.WorkflowRecord, req Request) *entity.WorkflowRecord {
	t.Helper()
	out, err := m.Apply(rec, req)
	if err != nil {
		t.Fatalf("Apply(%s by %s at %s) error = %v", req.Action, req.Actor.Role, rec.CurrentStage, err)
	}
	if out.NoOp {
		t.Fatalf("Apply(%s by %s at %s) unexpected no-op", req.Action, req.Actor.Role, rec.CurrentStage)
	}
	return out.Record
}

func TestMachine_ApproveRequiresStageRole(t *testing.T) {
	m := newTestMachine()
	rec := newRecord(entity.DocumentPaymentOrder)

	_, err := m.Apply(rec, Request{Action: entity.ActionApprove, Actor: actor("mgr", entity.RoleManager)})
	if !errors.Is(err, ErrUnauthorizedTransition) {
		t.Fatalf("Apply() error = %v, want ErrUnauthorizedTransition", err)
	}
	if rec.CurrentStage != StagePending || len(rec.StageHistory) != 0 {
		t.Fatal("refused transition must not modify the record")
	}

	te, ok := AsTransitionError(err)
	if !ok {
		t.Fatal("expected TransitionError")
	}
	if te.Stage != StagePending {
		t.Errorf("TransitionError.Stage = %s, want %s", te.Stage, StagePending)
	}
	if len(te.Allowed) != 0 {
		t.Errorf("TransitionError.Allowed = %v, want none", te.Allowed)
	}

	next := mustApply(t, m, rec, Request{Action: entity.ActionApprove, Actor: actor("fin", entity.RoleFinance)})
	if next.CurrentStage != StageApprovedFinance {
		t.Errorf("CurrentStage = %s, want %s", next.CurrentStage, StageApprovedFinance)
	}
	if len(next.StageHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(next.StageHistory))
	}

	entry := next.StageHistory[0]
	if entry.Seq != 1 || entry.FromStage != StagePending || entry.Stage != StageApprovedFinance {
		t.Errorf("entry = %+v", entry)
	}
	if entry.ActorID != "fin" || entry.ActorRole != entity.RoleFinance || entry.Action != entity.ActionApprove {
		t.Errorf("entry actor fields = %+v", entry)
	}
	if !entry.Timestamp.Equal(fixedNow) {
		t.Errorf("entry timestamp = %v, want %v", entry.Timestamp, fixedNow)
	}
}

func TestMachine_AdminOverride(t *testing.T) {
	m := newTestMachine()
	rec := newRecord(entity.DocumentExitPermit)
	admin := actor("root", entity.RoleAdmin)

	for _, want := range []entity.Stage{StagePendingFactory, StagePendingWarehouse} {
		rec = mustApply(t, m, rec, Request{Action: entity.ActionApprove, Actor: admin, ExpectedStage: rec.CurrentStage})
		if rec.CurrentStage != want {
			t.Fatalf("CurrentStage = %s, want %s", rec.CurrentStage, want)
		}
	}

	rec = mustApply(t, m, rec, Request{Action: entity.ActionRevoke, Actor: admin})
	if rec.CurrentStage != StagePendingFactory {
		t.Errorf("CurrentStage = %s, want %s", rec.CurrentStage, StagePendingFactory)
	}
	if len(rec.StageHistory) != 3 {
		t.Fatalf("history length = %d, want 3", len(rec.StageHistory))
	}
	if rec.StageHistory[1].Action != entity.ActionApprove || rec.StageHistory[2].Action != entity.ActionRevoke {
		t.Errorf("history actions = %s, %s", rec.StageHistory[1].Action, rec.StageHistory[2].Action)
	}
}

func TestMachine_CustomAdminRole(t *testing.T) {
	m := NewMachine(DefaultRegistry(), WithAdminRole(entity.RoleCEO))
	rec := newRecord(entity.DocumentPaymentOrder)

	if _, err := m.Apply(rec, Request{Action: entity.ActionApprove, Actor: actor("a", entity.RoleAdmin)}); !errors.Is(err, ErrUnauthorizedTransition) {
		t.Errorf("ADMIN without override error = %v, want ErrUnauthorizedTransition", err)
	}
	if _, err := m.Apply(rec, Request{Action: entity.ActionApprove, Actor: actor("c", entity.RoleCEO)}); err != nil {
		t.Errorf("CEO override error = %v", err)
	}
}

func TestMachine_RejectRequiresNote(t *testing.T) {
	m := newTestMachine()
	rec := newRecord(entity.DocumentPaymentOrder)
	fin := actor("fin", entity.RoleFinance)

	_, err := m.Apply(rec, Request{Action: entity.ActionReject, Actor: fin, Note: "   "})
	if !errors.Is(err, ErrNoteRequired) {
		t.Fatalf("Apply() error = %v, want ErrNoteRequired", err)
	}

	next := mustApply(t, m, rec, Request{Action: entity.ActionReject, Actor: fin, Note: "missing invoice"})
	if next.CurrentStage != StageRejected {
		t.Errorf("CurrentStage = %s, want %s", next.CurrentStage, StageRejected)
	}
	if next.StageHistory[0].Note != "missing invoice" {
		t.Errorf("Note = %q", next.StageHistory[0].Note)
	}
}

func TestMachine_TerminalStagesRefuseForwardActions(t *testing.T) {
	m := newTestMachine()
	admin := actor("root", entity.RoleAdmin)

	rejected := newRecord(entity.DocumentPaymentOrder)
	rejected = mustApply(t, m, rejected, Request{Action: entity.ActionReject, Actor: admin, Note: "no"})

	exited := newRecord(entity.DocumentExitPermit)
	for !DefaultRegistry().graphs[entity.DocumentExitPermit].IsTerminal(exited.CurrentStage) {
		exited = mustApply(t, m, exited, Request{Action: entity.ActionApprove, Actor: admin, ExpectedStage: exited.CurrentStage})
	}

	revoked := newRecord(entity.DocumentPaymentOrder)
	for revoked.CurrentStage != StageApprovedCEO {
		revoked = mustApply(t, m, revoked, Request{Action: entity.ActionApprove, Actor: admin, ExpectedStage: revoked.CurrentStage})
	}
	revoked = mustApply(t, m, revoked, Request{Action: entity.ActionRevoke, Actor: admin, Note: "duplicate payment"})
	for revoked.CurrentStage != StageRevoked {
		revoked = mustApply(t, m, revoked, Request{Action: entity.ActionApprove, Actor: admin, ExpectedStage: revoked.CurrentStage})
	}

	tests := []struct {
		name   string
		record *entity.WorkflowRecord
		action entity.Action
	}{
		{"rejected approve", rejected, entity.ActionApprove},
		{"rejected reject", rejected, entity.ActionReject},
		{"rejected revoke", rejected, entity.ActionRevoke},
		{"exited approve", exited, entity.ActionApprove},
		{"exited reject", exited, entity.ActionReject},
		{"exited revoke", exited, entity.ActionRevoke},
		{"revoked approve", revoked, entity.ActionApprove},
		{"revoked reject", revoked, entity.ActionReject},
		{"revoked revoke", revoked, entity.ActionRevoke},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Apply(tt.record, Request{Action: tt.action, Actor: actor("other", entity.RoleAdmin), Note: "x"})
			if !errors.Is(err, ErrInvalidActionAtStage) {
				t.Errorf("Apply() error = %v, want ErrInvalidActionAtStage", err)
			}
		})
	}
}

func TestMachine_RevokeOnlyWhereDeclared(t *testing.T) {
	m := newTestMachine()
	rec := newRecord(entity.DocumentPaymentOrder)

	_, err := m.Apply(rec, Request{Action: entity.ActionRevoke, Actor: actor("root", entity.RoleAdmin)})
	if !errors.Is(err, ErrInvalidActionAtStage) {
		t.Fatalf("REVOKE from PENDING error = %v, want ErrInvalidActionAtStage", err)
	}

	rec = mustApply(t, m, rec, Request{Action: entity.ActionApprove, Actor: actor("fin", entity.RoleFinance)})

	_, err = m.Apply(rec, Request{Action: entity.ActionRevoke, Actor: actor("mgr", entity.RoleManager)})
	if !errors.Is(err, ErrUnauthorizedTransition) {
		t.Fatalf("REVOKE by manager error = %v, want ErrUnauthorizedTransition", err)
	}

	rec = mustApply(t, m, rec, Request{Action: entity.ActionRevoke, Actor: actor("fin", entity.RoleFinance), Note: "wrong amount"})
	if rec.CurrentStage != StagePending {
		t.Errorf("CurrentStage = %s, want %s", rec.CurrentStage, StagePending)
	}
}

func TestMachine_IdempotentRetry(t *testing.T) {
	m := newTestMachine()
	fin := actor("fin", entity.RoleFinance)
	rec := newRecord(entity.DocumentPaymentOrder)
	rec = mustApply(t, m, rec, Request{Action: entity.ActionApprove, Actor: fin})

	t.Run("retry without expected stage", func(t *testing.T) {
		out, err := m.Apply(rec, Request{Action: entity.ActionApprove, Actor: fin})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if !out.NoOp {
			t.Fatal("expected no-op")
		}
		if out.Record.CurrentStage != StageApprovedFinance || len(out.Record.StageHistory) != 1 {
			t.Errorf("record changed: stage %s, history %d", out.Record.CurrentStage, len(out.Record.StageHistory))
		}
	})

	t.Run("retry with expected stage", func(t *testing.T) {
		out, err := m.Apply(rec, Request{Action: entity.ActionApprove, Actor: fin, ExpectedStage: StagePending})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if !out.NoOp {
			t.Fatal("expected no-op")
		}
	})

	t.Run("different actor is stale", func(t *testing.T) {
		_, err := m.Apply(rec, Request{Action: entity.ActionApprove, Actor: actor("fin-2", entity.RoleFinance), ExpectedStage: StagePending})
		if !errors.Is(err, ErrStaleState) {
			t.Fatalf("Apply() error = %v, want ErrStaleState", err)
		}
		te, _ := AsTransitionError(err)
		if te.Stage != StageApprovedFinance {
			t.Errorf("TransitionError.Stage = %s, want %s", te.Stage, StageApprovedFinance)
		}
	})

	t.Run("admin retry without expected stage", func(t *testing.T) {
		admin := actor("root", entity.RoleAdmin)
		first := mustApply(t, m, newRecord(entity.DocumentPaymentOrder), Request{Action: entity.ActionApprove, Actor: admin})

		out, err := m.Apply(first, Request{Action: entity.ActionApprove, Actor: admin})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if !out.NoOp {
			t.Fatal("expected no-op")
		}
		if out.Record.CurrentStage != StageApprovedFinance || len(out.Record.StageHistory) != 1 {
			t.Errorf("record changed: stage %s, history %d", out.Record.CurrentStage, len(out.Record.StageHistory))
		}

		second := mustApply(t, m, first, Request{Action: entity.ActionApprove, Actor: admin, ExpectedStage: StageApprovedFinance})
		if second.CurrentStage != StageApprovedManager || len(second.StageHistory) != 2 {
			t.Errorf("deliberate second step: stage %s, history %d", second.CurrentStage, len(second.StageHistory))
		}
	})

	t.Run("admin reject retry", func(t *testing.T) {
		admin := actor("root", entity.RoleAdmin)
		rejected := mustApply(t, m, newRecord(entity.DocumentExitPermit), Request{Action: entity.ActionReject, Actor: admin, Note: "no plate"})

		out, err := m.Apply(rejected, Request{Action: entity.ActionReject, Actor: admin, Note: "no plate"})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if !out.NoOp || len(out.Record.StageHistory) != 1 {
			t.Errorf("outcome noop=%v history=%d", out.NoOp, len(out.Record.StageHistory))
		}
	})

	t.Run("different actor without expected stage is unauthorized", func(t *testing.T) {
		_, err := m.Apply(rec, Request{Action: entity.ActionApprove, Actor: actor("fin-2", entity.RoleFinance)})
		if !errors.Is(err, ErrUnauthorizedTransition) {
			t.Fatalf("Apply() error = %v, want ErrUnauthorizedTransition", err)
		}
	})
}

func TestMachine_ExpectedStageMatch(t *testing.T) {
	m := newTestMachine()
	rec := newRecord(entity.DocumentPaymentOrder)

	out, err := m.Apply(rec, Request{Action: entity.ActionApprove, Actor: actor("fin", entity.RoleFinance), ExpectedStage: StagePending})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if out.NoOp || out.Record.CurrentStage != StageApprovedFinance {
		t.Errorf("outcome = %+v", out)
	}
}

func TestMachine_EditInPlace(t *testing.T) {
	m := newTestMachine()
	rec := newRecord(entity.DocumentPaymentOrder)
	rec.Payload = json.RawMessage(`{"amount":10}`)

	out, err := m.Apply(rec, Request{
		Action:  entity.ActionEdit,
		Actor:   actor("requester", entity.RoleSales),
		Payload: json.RawMessage(`{"amount":12}`),
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if out.Record.CurrentStage != StagePending {
		t.Errorf("CurrentStage = %s, want %s", out.Record.CurrentStage, StagePending)
	}
	if string(out.Record.Payload) != `{"amount":12}` {
		t.Errorf("Payload = %s", out.Record.Payload)
	}
	if string(rec.Payload) != `{"amount":10}` {
		t.Error("input record payload was modified")
	}
	if out.Entry.Action != entity.ActionEdit || out.Entry.ChangesStage() {
		t.Errorf("entry = %+v", out.Entry)
	}

	_, err = m.Apply(rec, Request{Action: entity.ActionEdit, Actor: actor("stranger", entity.RoleSales)})
	if !errors.Is(err, ErrUnauthorizedTransition) {
		t.Errorf("edit by stranger error = %v, want ErrUnauthorizedTransition", err)
	}
}

func TestMachine_EditResetsExitPermit(t *testing.T) {
	m := newTestMachine()
	admin := actor("root", entity.RoleAdmin)
	rec := newRecord(entity.DocumentExitPermit)
	for rec.CurrentStage != StagePendingSecurity {
		rec = mustApply(t, m, rec, Request{Action: entity.ActionApprove, Actor: admin})
	}

	rec = mustApply(t, m, rec, Request{Action: entity.ActionEdit, Actor: actor("wh", entity.RoleWarehouseKeeper)})
	if rec.CurrentStage != StagePendingWarehouse {
		t.Errorf("CurrentStage = %s, want %s", rec.CurrentStage, StagePendingWarehouse)
	}
	last, _ := rec.LastEntry()
	if last.Action != entity.ActionEdit || last.FromStage != StagePendingSecurity {
		t.Errorf("last entry = %+v", last)
	}
}

func TestMachine_RejectedReopenedByEdit(t *testing.T) {
	m := newTestMachine()
	rec := newRecord(entity.DocumentSecurityIncident)
	rec = mustApply(t, m, rec, Request{Action: entity.ActionReject, Actor: actor("g", entity.RoleSecurityGuard), Note: "duplicate"})

	_, err := m.Apply(rec, Request{Action: entity.ActionEdit, Actor: actor("g", entity.RoleSecurityGuard)})
	if !errors.Is(err, ErrUnauthorizedTransition) {
		t.Fatalf("edit by non-requester error = %v, want ErrUnauthorizedTransition", err)
	}

	rec = mustApply(t, m, rec, Request{Action: entity.ActionEdit, Actor: actor("requester", entity.RoleSecurityGuard)})
	if rec.CurrentStage != StagePendingRegistrant {
		t.Errorf("CurrentStage = %s, want %s", rec.CurrentStage, StagePendingRegistrant)
	}
	if rec.DocumentNumber != 1001 {
		t.Errorf("DocumentNumber = %d, want 1001", rec.DocumentNumber)
	}
}

func TestMachine_RevocationChain(t *testing.T) {
	m := newTestMachine()
	rec := newRecord(entity.DocumentPaymentOrder)
	steps := []struct {
		action entity.Action
		role   entity.Role
		want   entity.Stage
	}{
		{entity.ActionApprove, entity.RoleFinance, StageApprovedFinance},
		{entity.ActionApprove, entity.RoleManager, StageApprovedManager},
		{entity.ActionApprove, entity.RoleCEO, StageApprovedCEO},
		{entity.ActionRevoke, entity.RoleFinance, StageRevocationPendingFinance},
		{entity.ActionApprove, entity.RoleFinance, StageRevocationPendingManager},
		{entity.ActionApprove, entity.RoleManager, StageRevocationPendingCEO},
		{entity.ActionApprove, entity.RoleCEO, StageRevoked},
	}

	for i, step := range steps {
		rec = mustApply(t, m, rec, Request{Action: step.action, Actor: actor(string(step.role), step.role)})
		if rec.CurrentStage != step.want {
			t.Fatalf("step %d: CurrentStage = %s, want %s", i, rec.CurrentStage, step.want)
		}
	}

	if _, err := m.Apply(rec, Request{Action: entity.ActionRevoke, Actor: actor("root", entity.RoleAdmin)}); !errors.Is(err, ErrInvalidActionAtStage) {
		t.Errorf("REVOKE from REVOKED error = %v, want ErrInvalidActionAtStage", err)
	}
}

func TestMachine_RejectedRevocationKeepsApproval(t *testing.T) {
	m := newTestMachine()
	admin := actor("root", entity.RoleAdmin)
	rec := newRecord(entity.DocumentPaymentOrder)
	for rec.CurrentStage != StageApprovedCEO {
		rec = mustApply(t, m, rec, Request{Action: entity.ActionApprove, Actor: admin})
	}
	rec = mustApply(t, m, rec, Request{Action: entity.ActionRevoke, Actor: actor("fin", entity.RoleFinance)})
	rec = mustApply(t, m, rec, Request{Action: entity.ActionReject, Actor: actor("fin", entity.RoleFinance), Note: "keep it"})

	if rec.CurrentStage != StageApprovedCEO {
		t.Errorf("CurrentStage = %s, want %s", rec.CurrentStage, StageApprovedCEO)
	}
}

func TestMachine_UnknownGraphAndStage(t *testing.T) {
	m := newTestMachine()

	rec := newRecord(entity.DocumentPaymentOrder)
	rec.DocumentType = entity.DocumentType("INVOICE")
	if _, err := m.Apply(rec, Request{Action: entity.ActionApprove, Actor: actor("a", entity.RoleAdmin)}); !errors.Is(err, ErrUnknownGraph) {
		t.Errorf("error = %v, want ErrUnknownGraph", err)
	}

	rec = newRecord(entity.DocumentPaymentOrder)
	rec.CurrentStage = "LIMBO"
	if _, err := m.Apply(rec, Request{Action: entity.ActionApprove, Actor: actor("a", entity.RoleAdmin)}); !errors.Is(err, ErrInvalidStage) {
		t.Errorf("error = %v, want ErrInvalidStage", err)
	}

	rec = newRecord(entity.DocumentPaymentOrder)
	if _, err := m.Apply(rec, Request{Action: entity.Action("ESCALATE"), Actor: actor("a", entity.RoleAdmin)}); !errors.Is(err, ErrInvalidActionAtStage) {
		t.Errorf("error = %v, want ErrInvalidActionAtStage", err)
	}
}

func TestMachine_AllowedActions(t *testing.T) {
	m := newTestMachine()
	rec := newRecord(entity.DocumentPaymentOrder)
	rec = mustApply(t, m, rec, Request{Action: entity.ActionApprove, Actor: actor("fin", entity.RoleFinance)})

	tests := []struct {
		name  string
		actor entity.Actor
		want  []entity.Action
	}{
		{"manager", actor("mgr", entity.RoleManager), []entity.Action{entity.ActionApprove, entity.ActionReject, entity.ActionEdit}},
		{"finance", actor("fin", entity.RoleFinance), []entity.Action{entity.ActionRevoke}},
		{"requester", actor("requester", entity.RoleSales), []entity.Action{entity.ActionEdit}},
		{"admin", actor("root", entity.RoleAdmin), []entity.Action{entity.ActionApprove, entity.ActionReject, entity.ActionRevoke, entity.ActionEdit}},
		{"ceo", actor("ceo", entity.RoleCEO), []entity.Action{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.AllowedActions(rec, tt.actor)
			if len(got) != len(tt.want) {
				t.Fatalf("AllowedActions() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("AllowedActions()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}
