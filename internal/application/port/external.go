package port

import (
	"context"
	"errors"

	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

var (
	// ErrUnknownCompany is returned by fiscal-year configuration for unknown companies
	ErrUnknownCompany = errors.New("unknown company")

	// ErrUnknownFiscalYear is returned when a fiscal year is not configured
	ErrUnknownFiscalYear = errors.New("unknown fiscal year")

	// ErrNoActiveFiscalYear is returned when a company has no open fiscal year
	ErrNoActiveFiscalYear = errors.New("no active fiscal year")

	// ErrUnknownActor is returned when an actor has no role assigned
	ErrUnknownActor = errors.New("unknown actor")
)

// FiscalYearProvider supplies fiscal-year configuration
type FiscalYearProvider interface {
	// GetActiveFiscalYear returns the open fiscal year of a company
	GetActiveFiscalYear(ctx context.Context, companyID string) (*entity.FiscalYear, error)

	// GetFiscalYear returns a specific fiscal year of a company
	GetFiscalYear(ctx context.Context, companyID, fiscalYearID string) (*entity.FiscalYear, error)

	// GetCompany returns company metadata
	GetCompany(ctx context.Context, companyID string) (*entity.Company, error)
}

// RoleResolver maps authenticated actors to roles. Its answer is trusted as given.
type RoleResolver interface {
	GetRole(ctx context.Context, actorID string) (entity.Role, error)
}

// MessageSender delivers plain-text notifications to a chat
type MessageSender interface {
	SendText(ctx context.Context, receiveID string, text string) error
}

// EventPublisher publishes serialized events on a subject
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}
