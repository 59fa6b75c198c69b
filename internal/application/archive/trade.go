package archive

import "github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"

// Trade-finance records have no stage graph. Their archive state is the
// explicit IsArchived flag, toggled by TradeService.SetArchived, and is kept
// apart from the stage-based Policy above.

// TradeStatusOf returns the view a trade record belongs to
func TradeStatusOf(trade *entity.TradeRecord) Status {
	if trade.IsArchived {
		return StatusArchived
	}
	return StatusActive
}

// TradeArchivedFilter converts a status into the flag filter used by trade stores
func TradeArchivedFilter(status Status) *bool {
	switch status {
	case StatusActive:
		archived := false
		return &archived
	case StatusArchived:
		archived := true
		return &archived
	}
	return nil
}

// FilterTrades returns the trade records with the given status
func FilterTrades(trades []*entity.TradeRecord, status Status) []*entity.TradeRecord {
	if status == "" {
		return trades
	}
	result := make([]*entity.TradeRecord, 0, len(trades))
	for _, t := range trades {
		if TradeStatusOf(t) == status {
			result = append(result, t)
		}
	}
	return result
}
