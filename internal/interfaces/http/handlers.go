package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/archive"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/service"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
	domainwf "github.com/ebaz7/lepan-crm-sub000/internal/domain/workflow"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Dependencies
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger Logger) *Handlers {
	return &Handlers{
		deps:   deps,
		logger: logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success        bool             `json:"success"`
	Data           interface{}      `json:"data,omitempty"`
	Error          string           `json:"error,omitempty"`
	CurrentStage   entity.Stage     `json:"current_stage,omitempty"`
	AllowedActions *[]entity.Action `json:"allowed_actions,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
}

// DocumentResponse is a record with its archive status
type DocumentResponse struct {
	*entity.WorkflowRecord
	Status archive.Status `json:"status"`
}

// TransitionResponse is the outcome of a transition request
type TransitionResponse struct {
	Record    DocumentResponse   `json:"record"`
	FromStage entity.Stage       `json:"from_stage"`
	Entry     *entity.StageEntry `json:"entry,omitempty"`
	NoOp      bool               `json:"no_op"`
}

// StageGraphResponse describes one document type's stages
type StageGraphResponse struct {
	DocumentType entity.DocumentType        `json:"document_type"`
	Initial      entity.Stage               `json:"initial"`
	Stages       []domainwf.StageDefinition `json:"stages"`
}

// CreateDocumentRequest is the body of POST /documents
type CreateDocumentRequest struct {
	DocumentType entity.DocumentType `json:"document_type" binding:"required"`
	CompanyID    string              `json:"company_id" binding:"required"`
	Payload      json.RawMessage     `json:"payload"`
}

// TransitionRequest is the body of POST /documents/:id/transition
type TransitionRequest struct {
	Action        entity.Action   `json:"action" binding:"required"`
	Note          string          `json:"note"`
	ExpectedStage entity.Stage    `json:"expected_stage"`
	Payload       json.RawMessage `json:"payload"`
}

// ListDocumentsQuery holds query parameters for listing and exporting documents
type ListDocumentsQuery struct {
	CompanyID    string `form:"companyId"`
	DocumentType string `form:"documentType"`
	Status       string `form:"status"`
	Limit        int    `form:"limit"`
	Offset       int    `form:"offset"`
}

// CreateTradeRequest is the body of POST /trades
type CreateTradeRequest struct {
	CompanyID string          `json:"company_id" binding:"required"`
	Reference string          `json:"reference" binding:"required"`
	Payload   json.RawMessage `json:"payload"`
}

// ArchiveTradeRequest is the body of POST /trades/:id/archive
type ArchiveTradeRequest struct {
	Archived *bool `json:"archived" binding:"required"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if h.deps.Health != nil {
		response.Components = h.deps.Health(c.Request.Context())
		for _, state := range response.Components {
			if state != "ok" {
				response.Status = "degraded"
				c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: response})
				return
			}
		}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateDocument handles POST /documents
func (h *Handlers) CreateDocument(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}

	actor := actorFrom(c)
	record, err := h.deps.Documents.CreateDocument(c.Request.Context(), service.CreateDocumentInput{
		DocumentType: req.DocumentType,
		CompanyID:    req.CompanyID,
		RequesterID:  actor.ID,
		Payload:      req.Payload,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success:      true,
		Data:         h.document(record),
		CurrentStage: record.CurrentStage,
	})
}

// ListDocuments handles GET /documents
func (h *Handlers) ListDocuments(c *gin.Context) {
	input, err := h.listInput(c, defaultPageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}

	records, err := h.deps.Documents.ListDocuments(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	documents := make([]DocumentResponse, 0, len(records))
	for _, r := range records {
		documents = append(documents, h.document(r))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    documents,
	})
}

// ExportDocuments handles GET /documents/export
func (h *Handlers) ExportDocuments(c *gin.Context) {
	input, err := h.listInput(c, 0)
	if err != nil {
		h.writeError(c, err)
		return
	}

	records, err := h.deps.Documents.ListDocuments(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	filename := fmt.Sprintf("documents-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	if err := h.deps.Exporter.Write(c.Writer, records); err != nil {
		h.logger.Error("Failed to export documents", "error", err)
	}
}

// GetDocument handles GET /documents/:id
func (h *Handlers) GetDocument(c *gin.Context) {
	view, err := h.deps.Documents.GetDocument(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success:        true,
		Data:           view,
		CurrentStage:   view.Record.CurrentStage,
		AllowedActions: actionList(view.AllowedActions),
	})
}

// AllowedActions handles GET /documents/:id/actions
func (h *Handlers) AllowedActions(c *gin.Context) {
	view, err := h.deps.Documents.GetDocument(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success:        true,
		CurrentStage:   view.Record.CurrentStage,
		AllowedActions: actionList(view.AllowedActions),
	})
}

// Transition handles POST /documents/:id/transition
func (h *Handlers) Transition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}
	if !req.Action.IsValid() {
		h.writeError(c, fmt.Errorf("%w: unknown action %q", domainwf.ErrInvalidActionAtStage, req.Action))
		return
	}

	result, err := h.deps.Documents.Transition(c.Request.Context(), c.Param("id"), domainwf.Request{
		Action:        req.Action,
		Actor:         actorFrom(c),
		Note:          req.Note,
		ExpectedStage: req.ExpectedStage,
		Payload:       req.Payload,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := TransitionResponse{
		Record:    h.document(result.Record),
		FromStage: result.FromStage,
		NoOp:      result.NoOp,
	}
	if !result.NoOp {
		entry := result.Entry
		resp.Entry = &entry
	}

	c.JSON(http.StatusOK, Response{
		Success:        true,
		Data:           resp,
		CurrentStage:   result.Record.CurrentStage,
		AllowedActions: actionList(result.Allowed),
	})
}

// NextNumber handles GET /sequence/next
func (h *Handlers) NextNumber(c *gin.Context) {
	companyID := c.Query("companyId")
	documentType := entity.DocumentType(c.Query("documentType"))
	if companyID == "" || documentType == "" {
		h.writeError(c, fmt.Errorf("%w: companyId and documentType are required", errInvalidRequest))
		return
	}

	preview, err := h.deps.Documents.PreviewNumber(c.Request.Context(), companyID, documentType)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    preview,
	})
}

// StageGraph handles GET /stage-graphs/:documentType
func (h *Handlers) StageGraph(c *gin.Context) {
	graph, err := h.deps.Documents.StageGraph(entity.DocumentType(c.Param("documentType")))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: StageGraphResponse{
			DocumentType: graph.DocumentType(),
			Initial:      graph.Initial(),
			Stages:       graph.Stages(),
		},
	})
}

// CreateTrade handles POST /trades
func (h *Handlers) CreateTrade(c *gin.Context) {
	var req CreateTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}

	trade, err := h.deps.Trades.CreateTrade(c.Request.Context(), service.CreateTradeInput{
		CompanyID: req.CompanyID,
		Reference: req.Reference,
		Payload:   req.Payload,
		CreatedBy: actorFrom(c).ID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    trade,
	})
}

// ListTrades handles GET /trades
func (h *Handlers) ListTrades(c *gin.Context) {
	var query ListDocumentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.writeError(c, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}
	status, err := archive.ParseStatus(query.Status)
	if err != nil {
		h.writeError(c, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}
	limit, offset := pageBounds(query.Limit, query.Offset, defaultPageSize)

	trades, err := h.deps.Trades.ListTrades(c.Request.Context(), query.CompanyID, status, limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if trades == nil {
		trades = []*entity.TradeRecord{}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    trades,
	})
}

// GetTrade handles GET /trades/:id
func (h *Handlers) GetTrade(c *gin.Context) {
	trade, err := h.deps.Trades.GetTrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    trade,
	})
}

// ArchiveTrade handles POST /trades/:id/archive
func (h *Handlers) ArchiveTrade(c *gin.Context) {
	var req ArchiveTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}

	trade, err := h.deps.Trades.SetArchived(c.Request.Context(), c.Param("id"), *req.Archived, actorFrom(c).ID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    trade,
	})
}

func (h *Handlers) listInput(c *gin.Context, defaultLimit int) (service.ListDocumentsInput, error) {
	var query ListDocumentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		return service.ListDocumentsInput{}, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	status, err := archive.ParseStatus(query.Status)
	if err != nil {
		return service.ListDocumentsInput{}, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	documentType := entity.DocumentType(query.DocumentType)
	if documentType != "" && !documentType.IsValid() {
		return service.ListDocumentsInput{}, fmt.Errorf("%w: %s", domainwf.ErrUnknownGraph, documentType)
	}

	limit, offset := pageBounds(query.Limit, query.Offset, defaultLimit)
	return service.ListDocumentsInput{
		CompanyID:    query.CompanyID,
		DocumentType: documentType,
		Status:       status,
		Limit:        limit,
		Offset:       offset,
	}, nil
}

func (h *Handlers) document(record *entity.WorkflowRecord) DocumentResponse {
	return DocumentResponse{
		WorkflowRecord: record,
		Status:         h.deps.Documents.StatusOf(record),
	}
}

// pageBounds clamps paging parameters; defaultLimit 0 means unbounded
func pageBounds(limit, offset, defaultLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
