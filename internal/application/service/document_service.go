package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/archive"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/dispatcher"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/sequence"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/workflow"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/event"
	domainwf "github.com/ebaz7/lepan-crm-sub000/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ErrInvalidPayload is returned when a document payload is not valid JSON
var ErrInvalidPayload = errors.New("invalid payload")

// CreateDocumentInput is the request to create a workflow document
type CreateDocumentInput struct {
	DocumentType entity.DocumentType
	CompanyID    string
	RequesterID  string
	Payload      json.RawMessage
}

// ListDocumentsInput filters a document listing
type ListDocumentsInput struct {
	CompanyID    string
	DocumentType entity.DocumentType
	Status       archive.Status
	Limit        int
	Offset       int
}

// DocumentView is a record together with its derived view state
type DocumentView struct {
	Record           *entity.WorkflowRecord `json:"record"`
	Status           archive.Status         `json:"status"`
	ReplayConsistent bool                   `json:"replay_consistent"`
	AllowedActions   []entity.Action        `json:"allowed_actions,omitempty"`
}

// DocumentService is the use-case layer for workflow documents
type DocumentService interface {
	CreateDocument(ctx context.Context, input CreateDocumentInput) (*entity.WorkflowRecord, error)
	GetDocument(ctx context.Context, id string, actor entity.Actor) (*DocumentView, error)
	Transition(ctx context.Context, id string, req domainwf.Request) (*workflow.Result, error)
	ListDocuments(ctx context.Context, input ListDocumentsInput) ([]*entity.WorkflowRecord, error)
	PreviewNumber(ctx context.Context, companyID string, documentType entity.DocumentType) (*sequence.Preview, error)
	StageGraph(documentType entity.DocumentType) (*domainwf.StageGraph, error)
	StatusOf(record *entity.WorkflowRecord) archive.Status
}

type documentServiceImpl struct {
	records    port.RecordRepository
	allocator  *sequence.Allocator
	engine     workflow.Engine
	machine    *domainwf.Machine
	policy     *archive.Policy
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	records port.RecordRepository,
	allocator *sequence.Allocator,
	engine workflow.Engine,
	machine *domainwf.Machine,
	policy *archive.Policy,
	disp dispatcher.Dispatcher,
	logger Logger,
) DocumentService {
	return &documentServiceImpl{
		records:    records,
		allocator:  allocator,
		engine:     engine,
		machine:    machine,
		policy:     policy,
		dispatcher: disp,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateDocument allocates a document number and stores the record at its
// graph's initial stage. The number is committed before the record is
// written, so a failed insert leaves a gap rather than a duplicate.
func (s *documentServiceImpl) CreateDocument(ctx context.Context, input CreateDocumentInput) (*entity.WorkflowRecord, error) {
	if len(input.Payload) > 0 && !json.Valid(input.Payload) {
		return nil, ErrInvalidPayload
	}

	graph, err := s.machine.Registry().Lookup(input.DocumentType)
	if err != nil {
		return nil, &sequence.ScopeError{CompanyID: input.CompanyID, DocumentType: input.DocumentType, Reason: "unknown document type"}
	}

	alloc, err := s.allocator.Allocate(ctx, input.CompanyID, input.DocumentType)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	record := &entity.WorkflowRecord{
		ID:             uuid.NewString(),
		DocumentNumber: alloc.Number,
		CompanyID:      input.CompanyID,
		DocumentType:   input.DocumentType,
		FiscalYearID:   alloc.FiscalYearID,
		CurrentStage:   graph.Initial(),
		StageHistory:   []entity.StageEntry{},
		RequesterID:    input.RequesterID,
		Payload:        input.Payload,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.records.Create(ctx, record); err != nil {
		if errors.Is(err, port.ErrDuplicateSequence) {
			s.logger.Error("Data integrity violation: document number already in use",
				"company_id", record.CompanyID,
				"document_type", record.DocumentType,
				"fiscal_year_id", record.FiscalYearID,
				"document_number", record.DocumentNumber,
			)
			return nil, err
		}
		s.logger.Error("Failed to create document, number left unused",
			"document_type", record.DocumentType,
			"document_number", record.DocumentNumber,
			"error", err,
		)
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	s.logger.Info("Document created",
		"id", record.ID,
		"document_type", record.DocumentType,
		"document_number", record.DocumentNumber,
		"company_id", record.CompanyID,
		"fiscal_year_id", record.FiscalYearID,
	)

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewCreatedEvent(record))
	}

	return record, nil
}

// GetDocument loads a record and checks that its history replays to its stage
func (s *documentServiceImpl) GetDocument(ctx context.Context, id string, actor entity.Actor) (*DocumentView, error) {
	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}

	consistent := true
	if err := domainwf.VerifyRecord(s.machine.Registry(), record); err != nil {
		consistent = false
		s.logger.Error("Stage history does not replay to current stage",
			"id", record.ID,
			"current_stage", record.CurrentStage,
			"error", err,
		)
	}

	return &DocumentView{
		Record:           record,
		Status:           s.policy.StatusOf(record),
		ReplayConsistent: consistent,
		AllowedActions:   s.machine.AllowedActions(record, actor),
	}, nil
}

// Transition applies an action through the workflow engine
func (s *documentServiceImpl) Transition(ctx context.Context, id string, req domainwf.Request) (*workflow.Result, error) {
	if req.Payload != nil && !json.Valid(req.Payload) {
		return nil, ErrInvalidPayload
	}
	return s.engine.Transition(ctx, id, req)
}

// ListDocuments returns records filtered by company, type and archive status
func (s *documentServiceImpl) ListDocuments(ctx context.Context, input ListDocumentsInput) ([]*entity.WorkflowRecord, error) {
	filter := port.RecordFilter{
		CompanyID:    input.CompanyID,
		DocumentType: input.DocumentType,
		Limit:        input.Limit,
		Offset:       input.Offset,
	}

	if input.Status == "" {
		return s.records.List(ctx, filter)
	}

	if input.DocumentType != "" {
		stages, err := s.policy.StagesFor(input.DocumentType, input.Status)
		if err != nil {
			return nil, err
		}
		filter.Stages = stages
		return s.records.List(ctx, filter)
	}

	// Without a document type the terminal set differs per row, so the
	// status filter runs in memory before paging.
	filter.Limit, filter.Offset = 0, 0
	records, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return page(s.policy.Filter(records, input.Status), input.Offset, input.Limit), nil
}

// PreviewNumber returns the next document number without consuming it
func (s *documentServiceImpl) PreviewNumber(ctx context.Context, companyID string, documentType entity.DocumentType) (*sequence.Preview, error) {
	return s.allocator.Preview(ctx, companyID, documentType)
}

// StageGraph returns the stage graph of a document type
func (s *documentServiceImpl) StageGraph(documentType entity.DocumentType) (*domainwf.StageGraph, error) {
	return s.machine.Registry().Lookup(documentType)
}

// StatusOf returns the archive view of a record
func (s *documentServiceImpl) StatusOf(record *entity.WorkflowRecord) archive.Status {
	return s.policy.StatusOf(record)
}

func page[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
