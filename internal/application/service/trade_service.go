package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/archive"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/dispatcher"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/event"
)

// CreateTradeInput is the request to create a trade-finance record
type CreateTradeInput struct {
	CompanyID string
	Reference string
	Payload   json.RawMessage
	CreatedBy string
}

// TradeService manages trade-finance records and their archive flag
type TradeService interface {
	CreateTrade(ctx context.Context, input CreateTradeInput) (*entity.TradeRecord, error)
	GetTrade(ctx context.Context, id string) (*entity.TradeRecord, error)
	ListTrades(ctx context.Context, companyID string, status archive.Status, limit, offset int) ([]*entity.TradeRecord, error)
	SetArchived(ctx context.Context, id string, archived bool, actorID string) (*entity.TradeRecord, error)
}

type tradeServiceImpl struct {
	trades     port.TradeRepository
	companies  port.FiscalYearProvider
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// NewTradeService creates a new TradeService
func NewTradeService(
	trades port.TradeRepository,
	companies port.FiscalYearProvider,
	disp dispatcher.Dispatcher,
	logger Logger,
) TradeService {
	return &tradeServiceImpl{
		trades:     trades,
		companies:  companies,
		dispatcher: disp,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateTrade stores a new, unarchived trade record
func (s *tradeServiceImpl) CreateTrade(ctx context.Context, input CreateTradeInput) (*entity.TradeRecord, error) {
	if len(input.Payload) > 0 && !json.Valid(input.Payload) {
		return nil, ErrInvalidPayload
	}
	if strings.TrimSpace(input.Reference) == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrInvalidPayload)
	}
	if _, err := s.companies.GetCompany(ctx, input.CompanyID); err != nil {
		return nil, fmt.Errorf("failed to resolve company %s: %w", input.CompanyID, err)
	}

	now := s.now().UTC()
	trade := &entity.TradeRecord{
		ID:        uuid.NewString(),
		CompanyID: input.CompanyID,
		Reference: strings.TrimSpace(input.Reference),
		Payload:   input.Payload,
		CreatedBy: input.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.trades.Create(ctx, trade); err != nil {
		s.logger.Error("Failed to create trade record", "company_id", input.CompanyID, "error", err)
		return nil, fmt.Errorf("failed to create trade record: %w", err)
	}

	s.logger.Info("Trade record created", "id", trade.ID, "company_id", trade.CompanyID, "reference", trade.Reference)
	return trade, nil
}

// GetTrade loads a trade record
func (s *tradeServiceImpl) GetTrade(ctx context.Context, id string) (*entity.TradeRecord, error) {
	trade, err := s.trades.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade record %s: %w", id, err)
	}
	return trade, nil
}

// ListTrades returns trade records filtered by the archive flag
func (s *tradeServiceImpl) ListTrades(ctx context.Context, companyID string, status archive.Status, limit, offset int) ([]*entity.TradeRecord, error) {
	return s.trades.List(ctx, port.TradeFilter{
		CompanyID: companyID,
		Archived:  archive.TradeArchivedFilter(status),
		Limit:     limit,
		Offset:    offset,
	})
}

// SetArchived flips the archive flag. Setting the current value again is a no-op.
func (s *tradeServiceImpl) SetArchived(ctx context.Context, id string, archived bool, actorID string) (*entity.TradeRecord, error) {
	trade, err := s.trades.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade record %s: %w", id, err)
	}
	if trade.IsArchived == archived {
		return trade, nil
	}

	now := s.now().UTC()
	if err := s.trades.SetArchived(ctx, id, archived, actorID, now); err != nil {
		s.logger.Error("Failed to update trade archive flag", "id", id, "archived", archived, "error", err)
		return nil, fmt.Errorf("failed to update trade archive flag: %w", err)
	}

	updated, err := s.trades.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload trade record %s: %w", id, err)
	}

	s.logger.Info("Trade archive flag changed", "id", id, "archived", archived, "actor_id", actorID)

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewTradeArchiveEvent(updated, actorID))
	}

	return updated, nil
}
