package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

var (
	// ErrInvalidScope is returned for an unknown company, unknown document
	// type or a closed fiscal year
	ErrInvalidScope = errors.New("invalid sequence scope")

	// ErrRetriesExhausted is returned when contention outlasted every attempt
	ErrRetriesExhausted = errors.New("sequence allocation retries exhausted")
)

// ScopeError describes why a (company, document type, fiscal year) scope was refused
type ScopeError struct {
	CompanyID    string
	DocumentType entity.DocumentType
	FiscalYearID string
	Reason       string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("%v: %s (company=%s type=%s fiscal_year=%s)",
		ErrInvalidScope, e.Reason, e.CompanyID, e.DocumentType, e.FiscalYearID)
}

func (e *ScopeError) Unwrap() error {
	return ErrInvalidScope
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Observer receives allocation outcomes, e.g. for metrics
type Observer interface {
	ObserveAllocation(documentType entity.DocumentType, attempts int, err error)
}

// Config holds allocator settings
type Config struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

// DefaultConfig returns the default allocator settings
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		RetryBackoff: 10 * time.Millisecond,
	}
}

// Preview is the number the next allocation would return if nothing else
// allocated first. It is not reserved.
type Preview struct {
	CompanyID    string              `json:"company_id"`
	DocumentType entity.DocumentType `json:"document_type"`
	FiscalYearID string              `json:"fiscal_year_id"`
	Next         int64               `json:"next"`
}

// Allocator hands out document numbers per (company, document type, fiscal year)
type Allocator struct {
	counters port.CounterRepository
	fiscal   port.FiscalYearProvider
	config   Config
	logger   Logger
	observer Observer
}

// Option configures the allocator
type Option func(*Allocator)

// WithObserver sets an allocation observer
func WithObserver(o Observer) Option {
	return func(a *Allocator) {
		a.observer = o
	}
}

// NewAllocator creates an allocator
func NewAllocator(counters port.CounterRepository, fiscal port.FiscalYearProvider, config Config, logger Logger, opts ...Option) *Allocator {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	a := &Allocator{
		counters: counters,
		fiscal:   fiscal,
		config:   config,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NextNumber durably advances the counter for the scope and returns the new
// value. Two callers never receive the same number for the same scope.
func (a *Allocator) NextNumber(ctx context.Context, companyID string, documentType entity.DocumentType, fiscalYearID string) (int64, error) {
	fy, err := a.resolveScope(ctx, companyID, documentType, fiscalYearID)
	if err != nil {
		a.observe(documentType, 0, err)
		return 0, err
	}

	key := entity.SequenceKey{CompanyID: companyID, DocumentType: documentType, FiscalYearID: fiscalYearID}
	floor := fy.StartOverride(documentType)
	if floor < 0 {
		floor = 0
	}

	for attempt := 1; attempt <= a.config.MaxAttempts; attempt++ {
		value, err := a.counters.Increment(ctx, key, floor)
		if err == nil {
			a.observe(documentType, attempt, nil)
			return value, nil
		}

		if !errors.Is(err, port.ErrContention) {
			a.logger.Error("Sequence allocation failed", "key", key.String(), "attempt", attempt, "error", err)
			a.observe(documentType, attempt, err)
			return 0, fmt.Errorf("failed to allocate number for %s: %w", key, err)
		}

		a.logger.Info("Sequence contention, retrying", "key", key.String(), "attempt", attempt)

		if attempt < a.config.MaxAttempts {
			select {
			case <-ctx.Done():
				a.observe(documentType, attempt, ctx.Err())
				return 0, ctx.Err()
			case <-time.After(a.config.RetryBackoff * time.Duration(attempt)):
			}
		}
	}

	err = fmt.Errorf("%w: %s after %d attempts", ErrRetriesExhausted, key, a.config.MaxAttempts)
	a.observe(documentType, a.config.MaxAttempts, err)
	return 0, err
}

// Allocation is a committed document number and the fiscal year it belongs to
type Allocation struct {
	FiscalYearID string
	Number       int64
}

// Allocate issues the next number in the company's active fiscal year
func (a *Allocator) Allocate(ctx context.Context, companyID string, documentType entity.DocumentType) (*Allocation, error) {
	if !documentType.IsValid() {
		err := &ScopeError{CompanyID: companyID, DocumentType: documentType, Reason: "unknown document type"}
		a.observe(documentType, 0, err)
		return nil, err
	}

	fy, err := a.fiscal.GetActiveFiscalYear(ctx, companyID)
	if err != nil {
		err = a.scopeError(err, companyID, documentType, "")
		a.observe(documentType, 0, err)
		return nil, err
	}

	number, err := a.NextNumber(ctx, companyID, documentType, fy.ID)
	if err != nil {
		return nil, err
	}
	return &Allocation{FiscalYearID: fy.ID, Number: number}, nil
}

// Preview returns the next number for the company's active fiscal year
// without consuming it
func (a *Allocator) Preview(ctx context.Context, companyID string, documentType entity.DocumentType) (*Preview, error) {
	if !documentType.IsValid() {
		return nil, &ScopeError{CompanyID: companyID, DocumentType: documentType, Reason: "unknown document type"}
	}

	fy, err := a.fiscal.GetActiveFiscalYear(ctx, companyID)
	if err != nil {
		return nil, a.scopeError(err, companyID, documentType, "")
	}

	key := entity.SequenceKey{CompanyID: companyID, DocumentType: documentType, FiscalYearID: fy.ID}
	counter, err := a.counters.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read counter %s: %w", key, err)
	}

	last := fy.StartOverride(documentType)
	if last < 0 {
		last = 0
	}
	if counter != nil {
		last = counter.Value
	}

	return &Preview{
		CompanyID:    companyID,
		DocumentType: documentType,
		FiscalYearID: fy.ID,
		Next:         last + 1,
	}, nil
}

func (a *Allocator) resolveScope(ctx context.Context, companyID string, documentType entity.DocumentType, fiscalYearID string) (*entity.FiscalYear, error) {
	if !documentType.IsValid() {
		return nil, &ScopeError{CompanyID: companyID, DocumentType: documentType, FiscalYearID: fiscalYearID, Reason: "unknown document type"}
	}

	fy, err := a.fiscal.GetFiscalYear(ctx, companyID, fiscalYearID)
	if err != nil {
		return nil, a.scopeError(err, companyID, documentType, fiscalYearID)
	}

	if fy.Closed {
		return nil, &ScopeError{CompanyID: companyID, DocumentType: documentType, FiscalYearID: fiscalYearID, Reason: "fiscal year is closed"}
	}

	return fy, nil
}

func (a *Allocator) scopeError(err error, companyID string, documentType entity.DocumentType, fiscalYearID string) error {
	switch {
	case errors.Is(err, port.ErrUnknownCompany):
		return &ScopeError{CompanyID: companyID, DocumentType: documentType, FiscalYearID: fiscalYearID, Reason: "unknown company"}
	case errors.Is(err, port.ErrUnknownFiscalYear):
		return &ScopeError{CompanyID: companyID, DocumentType: documentType, FiscalYearID: fiscalYearID, Reason: "unknown fiscal year"}
	case errors.Is(err, port.ErrNoActiveFiscalYear):
		return &ScopeError{CompanyID: companyID, DocumentType: documentType, FiscalYearID: fiscalYearID, Reason: "no active fiscal year"}
	}
	return fmt.Errorf("failed to resolve fiscal year: %w", err)
}

func (a *Allocator) observe(documentType entity.DocumentType, attempts int, err error) {
	if a.observer != nil {
		a.observer.ObserveAllocation(documentType, attempts, err)
	}
}
