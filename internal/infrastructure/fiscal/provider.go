// Package fiscal serves company and fiscal-year configuration to the
// sequence allocator.
package fiscal

import (
	"context"
	"fmt"
	"strings"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

// CompanyConfig is one configured company
type CompanyConfig struct {
	ID          string
	Name        string
	FiscalYears []YearConfig
}

// YearConfig is one configured fiscal year. Active marks the year new
// documents are numbered in; without it the last open year is used.
type YearConfig struct {
	ID             string
	Active         bool
	Closed         bool
	StartOverrides map[string]int64
}

type company struct {
	info   entity.Company
	years  map[string]*entity.FiscalYear
	active *entity.FiscalYear
}

// Provider implements port.FiscalYearProvider from static configuration
type Provider struct {
	companies map[string]*company
}

// NewProvider validates the configuration and builds a provider
func NewProvider(configs []CompanyConfig) (*Provider, error) {
	p := &Provider{companies: make(map[string]*company, len(configs))}

	for _, cc := range configs {
		if cc.ID == "" {
			return nil, fmt.Errorf("company id is required")
		}
		if _, dup := p.companies[cc.ID]; dup {
			return nil, fmt.Errorf("duplicate company %q", cc.ID)
		}

		c := &company{
			info:  entity.Company{ID: cc.ID, Name: cc.Name},
			years: make(map[string]*entity.FiscalYear, len(cc.FiscalYears)),
		}

		var lastOpen *entity.FiscalYear
		for _, yc := range cc.FiscalYears {
			if yc.ID == "" {
				return nil, fmt.Errorf("company %q: fiscal year id is required", cc.ID)
			}
			if _, dup := c.years[yc.ID]; dup {
				return nil, fmt.Errorf("company %q: duplicate fiscal year %q", cc.ID, yc.ID)
			}

			overrides := make(map[entity.DocumentType]int64, len(yc.StartOverrides))
			// configuration loaders may lower-case map keys
			for name, start := range yc.StartOverrides {
				docType := entity.DocumentType(strings.ToUpper(name))
				if !docType.IsValid() {
					return nil, fmt.Errorf("company %q fiscal year %q: unknown document type %q", cc.ID, yc.ID, name)
				}
				if start < 0 {
					return nil, fmt.Errorf("company %q fiscal year %q: negative start override for %s", cc.ID, yc.ID, name)
				}
				overrides[docType] = start
			}

			fy := &entity.FiscalYear{
				ID:             yc.ID,
				CompanyID:      cc.ID,
				Closed:         yc.Closed,
				StartOverrides: overrides,
			}
			c.years[yc.ID] = fy

			if yc.Active {
				if yc.Closed {
					return nil, fmt.Errorf("company %q: active fiscal year %q is closed", cc.ID, yc.ID)
				}
				if c.active != nil {
					return nil, fmt.Errorf("company %q: more than one active fiscal year", cc.ID)
				}
				c.active = fy
			}
			if !yc.Closed {
				lastOpen = fy
			}
		}

		if c.active == nil {
			c.active = lastOpen
		}
		p.companies[cc.ID] = c
	}

	return p, nil
}

// GetActiveFiscalYear returns the fiscal year new documents are numbered in
func (p *Provider) GetActiveFiscalYear(ctx context.Context, companyID string) (*entity.FiscalYear, error) {
	c, ok := p.companies[companyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrUnknownCompany, companyID)
	}
	if c.active == nil {
		return nil, fmt.Errorf("%w: %s", port.ErrNoActiveFiscalYear, companyID)
	}
	return copyYear(c.active), nil
}

// GetFiscalYear returns a configured fiscal year, open or closed
func (p *Provider) GetFiscalYear(ctx context.Context, companyID, fiscalYearID string) (*entity.FiscalYear, error) {
	c, ok := p.companies[companyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrUnknownCompany, companyID)
	}
	fy, ok := c.years[fiscalYearID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", port.ErrUnknownFiscalYear, companyID, fiscalYearID)
	}
	return copyYear(fy), nil
}

// GetCompany returns company metadata
func (p *Provider) GetCompany(ctx context.Context, companyID string) (*entity.Company, error) {
	c, ok := p.companies[companyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrUnknownCompany, companyID)
	}
	info := c.info
	return &info, nil
}

func copyYear(fy *entity.FiscalYear) *entity.FiscalYear {
	clone := *fy
	clone.StartOverrides = make(map[entity.DocumentType]int64, len(fy.StartOverrides))
	for k, v := range fy.StartOverrides {
		clone.StartOverrides[k] = v
	}
	return &clone
}

var _ port.FiscalYearProvider = (*Provider)(nil)
