package entity

import (
	"fmt"
	"time"
)

// SequenceKey scopes a document-number counter
type SequenceKey struct {
	CompanyID    string       `json:"company_id"`
	DocumentType DocumentType `json:"document_type"`
	FiscalYearID string       `json:"fiscal_year_id"`
}

// String returns a compact representation used in logs and errors
func (k SequenceKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.CompanyID, k.DocumentType, k.FiscalYearID)
}

// SequenceCounter holds the last issued number for a key. Counters are
// created lazily, never deleted and never decrease.
type SequenceCounter struct {
	Key       SequenceKey `json:"key"`
	Value     int64       `json:"value"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Company is a legal entity documents are numbered for
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FiscalYear is a company's accounting year. StartOverrides holds the
// configured starting number per document type; the first allocation for a
// key begins after it.
type FiscalYear struct {
	ID             string                 `json:"id"`
	CompanyID      string                 `json:"company_id"`
	Closed         bool                   `json:"closed"`
	StartOverrides map[DocumentType]int64 `json:"start_overrides,omitempty"`
}

// StartOverride returns the configured starting number for a document type
func (f *FiscalYear) StartOverride(docType DocumentType) int64 {
	if f == nil || f.StartOverrides == nil {
		return 0
	}
	return f.StartOverrides[docType]
}
