package entity

import (
	"encoding/json"
	"time"
)

// TradeRecord is a trade-finance bookkeeping entry. Trade records have no
// approval stages; they are archived with an explicit flag instead.
type TradeRecord struct {
	ID         string          `json:"id"`
	CompanyID  string          `json:"company_id"`
	Reference  string          `json:"reference"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	IsArchived bool            `json:"is_archived"`
	ArchivedBy string          `json:"archived_by,omitempty"`
	ArchivedAt *time.Time      `json:"archived_at,omitempty"`
	CreatedBy  string          `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
