package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/archive"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/dispatcher"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/sequence"
	appwf "github.com/ebaz7/lepan-crm-sub000/internal/application/workflow"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/event"
	domainwf "github.com/ebaz7/lepan-crm-sub000/internal/domain/workflow"
	"github.com/ebaz7/lepan-crm-sub000/internal/infrastructure/fiscal"
	"github.com/ebaz7/lepan-crm-sub000/internal/infrastructure/persistence/sqlite"
	"github.com/ebaz7/lepan-crm-sub000/migrations"
	"github.com/ebaz7/lepan-crm-sub000/pkg/database"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type eventLog struct {
	mu     sync.Mutex
	events []*event.Event
}

func (l *eventLog) handle(ctx context.Context, evt *event.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evt)
	return nil
}

func (l *eventLog) types() []event.Type {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]event.Type, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	documents DocumentService
	trades    TradeService
	disp      dispatcher.Dispatcher
	events    *eventLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()

	conn, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "svc.db"), MaxOpenConns: 4}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = database.NewMigrator(database.NewSQLiteTarget(conn), logger).
		RunMigrations(context.Background(), migrations.FS, migrations.Dir("sqlite"))
	require.NoError(t, err)

	registry := domainwf.DefaultRegistry()
	db := sqlite.NewDB(conn.DB, logger)
	records := sqlite.NewRecordRepository(db, registry, logger)

	companies, err := fiscal.NewProvider([]fiscal.CompanyConfig{
		{
			ID: "acme",
			FiscalYears: []fiscal.YearConfig{
				{ID: "2025", StartOverrides: map[string]int64{"PAYMENT_ORDER": 1000}},
			},
		},
	})
	require.NoError(t, err)

	log := &eventLog{}
	disp := dispatcher.NewDispatcher()
	disp.SubscribeMany(event.Types(), "test_log", log.handle)

	machine := domainwf.NewMachine(registry, domainwf.WithAdminRole(entity.RoleAdmin))
	allocator := sequence.NewAllocator(sqlite.NewCounterRepository(db, logger), companies, sequence.DefaultConfig(), nopLogger{})
	engine := appwf.NewEngine(records, db, machine, appwf.WithDispatcher(disp))

	return &fixture{
		documents: NewDocumentService(records, allocator, engine, machine, archive.NewPolicy(registry), disp, nopLogger{}),
		trades:    NewTradeService(sqlite.NewTradeRepository(db, logger), companies, disp, nopLogger{}),
		disp:      disp,
		events:    log,
	}
}

var (
	requester = entity.Actor{ID: "u-req", Role: entity.RoleSales}
	finance   = entity.Actor{ID: "fin", Role: entity.RoleFinance}
)

func TestDocumentService_NumbersAndApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.documents.CreateDocument(ctx, CreateDocumentInput{
		DocumentType: entity.DocumentPaymentOrder,
		CompanyID:    "acme",
		RequesterID:  requester.ID,
		Payload:      json.RawMessage(`{"amount":250}`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1001), first.DocumentNumber)
	assert.Equal(t, "2025", first.FiscalYearID)
	assert.Equal(t, domainwf.StagePending, first.CurrentStage)

	second, err := f.documents.CreateDocument(ctx, CreateDocumentInput{
		DocumentType: entity.DocumentPaymentOrder,
		CompanyID:    "acme",
		RequesterID:  requester.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1002), second.DocumentNumber)

	preview, err := f.documents.PreviewNumber(ctx, "acme", entity.DocumentPaymentOrder)
	require.NoError(t, err)
	assert.Equal(t, int64(1003), preview.Next)

	_, err = f.documents.Transition(ctx, first.ID, domainwf.Request{Action: entity.ActionApprove, Actor: requester})
	assert.True(t, errors.Is(err, domainwf.ErrUnauthorizedTransition), "got %v", err)

	result, err := f.documents.Transition(ctx, first.ID, domainwf.Request{Action: entity.ActionApprove, Actor: finance})
	require.NoError(t, err)
	assert.Equal(t, domainwf.StageApprovedFinance, result.Record.CurrentStage)
	assert.Equal(t, domainwf.StagePending, result.FromStage)
	assert.False(t, result.NoOp)

	view, err := f.documents.GetDocument(ctx, first.ID, finance)
	require.NoError(t, err)
	assert.True(t, view.ReplayConsistent)
	assert.Equal(t, archive.StatusActive, view.Status)
	assert.Len(t, view.Record.StageHistory, 1)

	require.NoError(t, f.disp.Close())
	assert.ElementsMatch(t,
		[]event.Type{event.TypeDocumentCreated, event.TypeDocumentCreated, event.TypeDocumentApproved},
		f.events.types())
}

func TestDocumentService_CreateRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.documents.CreateDocument(ctx, CreateDocumentInput{
		DocumentType: entity.DocumentPaymentOrder,
		CompanyID:    "acme",
		Payload:      json.RawMessage(`{not json`),
	})
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	_, err = f.documents.CreateDocument(ctx, CreateDocumentInput{
		DocumentType: "PURCHASE_ORDER",
		CompanyID:    "acme",
	})
	assert.True(t, errors.Is(err, sequence.ErrInvalidScope), "got %v", err)

	_, err = f.documents.CreateDocument(ctx, CreateDocumentInput{
		DocumentType: entity.DocumentPaymentOrder,
		CompanyID:    "globex",
	})
	assert.Error(t, err)

	// Rejected inputs consume no numbers
	preview, err := f.documents.PreviewNumber(ctx, "acme", entity.DocumentPaymentOrder)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), preview.Next)
}

func TestDocumentService_ListByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		rec, err := f.documents.CreateDocument(ctx, CreateDocumentInput{
			DocumentType: entity.DocumentPaymentOrder,
			CompanyID:    "acme",
			RequesterID:  requester.ID,
		})
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}
	_, err := f.documents.CreateDocument(ctx, CreateDocumentInput{
		DocumentType: entity.DocumentExitPermit,
		CompanyID:    "acme",
		RequesterID:  requester.ID,
	})
	require.NoError(t, err)

	_, err = f.documents.Transition(ctx, ids[0], domainwf.Request{
		Action: entity.ActionReject,
		Actor:  finance,
		Note:   "missing invoice",
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input ListDocumentsInput
		want  int
	}{
		{"all", ListDocumentsInput{CompanyID: "acme"}, 4},
		{"active payment orders", ListDocumentsInput{CompanyID: "acme", DocumentType: entity.DocumentPaymentOrder, Status: archive.StatusActive}, 2},
		{"archived payment orders", ListDocumentsInput{CompanyID: "acme", DocumentType: entity.DocumentPaymentOrder, Status: archive.StatusArchived}, 1},
		{"active any type", ListDocumentsInput{CompanyID: "acme", Status: archive.StatusActive}, 3},
		{"archived any type", ListDocumentsInput{CompanyID: "acme", Status: archive.StatusArchived}, 1},
		{"paged", ListDocumentsInput{CompanyID: "acme", Status: archive.StatusActive, Limit: 2, Offset: 2}, 1},
		{"other company", ListDocumentsInput{CompanyID: "globex"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.documents.ListDocuments(ctx, tt.input)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestDocumentService_InvalidTransitionPayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.documents.CreateDocument(ctx, CreateDocumentInput{
		DocumentType: entity.DocumentPaymentOrder,
		CompanyID:    "acme",
		RequesterID:  requester.ID,
	})
	require.NoError(t, err)

	_, err = f.documents.Transition(ctx, rec.ID, domainwf.Request{
		Action:  entity.ActionEdit,
		Actor:   requester,
		Payload: json.RawMessage(`[`),
	})
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	_, err = f.documents.Transition(ctx, "missing", domainwf.Request{Action: entity.ActionApprove, Actor: finance})
	assert.True(t, errors.Is(err, port.ErrNotFound), "got %v", err)
}

func TestTradeService_ArchiveToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	trade, err := f.trades.CreateTrade(ctx, CreateTradeInput{
		CompanyID: "acme",
		Reference: "  LC-2025-001 ",
		CreatedBy: finance.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "LC-2025-001", trade.Reference)
	assert.False(t, trade.IsArchived)

	_, err = f.trades.CreateTrade(ctx, CreateTradeInput{CompanyID: "acme", Reference: "LC-2025-002"})
	require.NoError(t, err)

	archived, err := f.trades.SetArchived(ctx, trade.ID, true, finance.ID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)

	// Setting the same value again changes nothing and emits nothing
	again, err := f.trades.SetArchived(ctx, trade.ID, true, finance.ID)
	require.NoError(t, err)
	assert.True(t, again.IsArchived)

	active, err := f.trades.ListTrades(ctx, "acme", archive.StatusActive, 0, 0)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	gone, err := f.trades.ListTrades(ctx, "acme", archive.StatusArchived, 0, 0)
	require.NoError(t, err)
	require.Len(t, gone, 1)
	assert.Equal(t, trade.ID, gone[0].ID)

	restored, err := f.trades.SetArchived(ctx, trade.ID, false, finance.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsArchived)

	require.NoError(t, f.disp.Close())
	assert.Equal(t, []event.Type{event.TypeTradeArchived, event.TypeTradeUnarchived}, f.events.types())
}

func TestTradeService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.trades.CreateTrade(ctx, CreateTradeInput{CompanyID: "acme", Reference: " "})
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	_, err = f.trades.CreateTrade(ctx, CreateTradeInput{CompanyID: "acme", Reference: "LC-1", Payload: json.RawMessage(`{`)})
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	_, err = f.trades.CreateTrade(ctx, CreateTradeInput{CompanyID: "globex", Reference: "LC-1"})
	assert.True(t, errors.Is(err, port.ErrUnknownCompany), "got %v", err)

	_, err = f.trades.GetTrade(ctx, "missing")
	assert.True(t, errors.Is(err, port.ErrNotFound), "got %v", err)
}
