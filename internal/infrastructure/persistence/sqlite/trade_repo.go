package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

// TradeRepository implements port.TradeRepository
type TradeRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *DB, logger *zap.Logger) *TradeRepository {
	return &TradeRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a trade record
func (r *TradeRepository) Create(ctx context.Context, trade *entity.TradeRecord) error {
	query := `
		INSERT INTO trade_records (
			id, company_id, reference, payload, is_archived, archived_by,
			archived_at, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.getExecutor(ctx).ExecContext(ctx, query,
		trade.ID,
		trade.CompanyID,
		trade.Reference,
		nullPayload(trade.Payload),
		trade.IsArchived,
		trade.ArchivedBy,
		nullTime(trade.ArchivedAt),
		trade.CreatedBy,
		trade.CreatedAt.UTC(),
		trade.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create trade record", zap.String("id", trade.ID), zap.Error(err))
		return fmt.Errorf("failed to create trade record: %w", mapError(err))
	}
	return nil
}

// GetByID retrieves a trade record by ID
func (r *TradeRepository) GetByID(ctx context.Context, id string) (*entity.TradeRecord, error) {
	query := `
		SELECT id, company_id, reference, payload, is_archived, archived_by,
			archived_at, created_by, created_at, updated_at
		FROM trade_records
		WHERE id = ?
	`

	trade, err := scanTrade(r.db.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("trade record %s: %w", id, port.ErrNotFound)
		}
		r.logger.Error("Failed to get trade record", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get trade record: %w", mapError(err))
	}
	return trade, nil
}

// SetArchived sets the archive flag. Restoring a record clears the archive stamp.
func (r *TradeRepository) SetArchived(ctx context.Context, id string, archived bool, actorID string, at time.Time) error {
	query := `
		UPDATE trade_records
		SET is_archived = ?, archived_by = ?, archived_at = ?, updated_at = ?
		WHERE id = ?
	`

	archivedBy := ""
	var archivedAt sql.NullTime
	if archived {
		archivedBy = actorID
		archivedAt = sql.NullTime{Time: at.UTC(), Valid: true}
	}

	result, err := r.db.getExecutor(ctx).ExecContext(ctx, query, archived, archivedBy, archivedAt, at.UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update trade archive flag", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update trade archive flag: %w", mapError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("trade record %s: %w", id, port.ErrNotFound)
	}
	return nil
}

// List returns trade records ordered by creation time
func (r *TradeRepository) List(ctx context.Context, filter port.TradeFilter) ([]*entity.TradeRecord, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.CompanyID != "" {
		conditions = append(conditions, "company_id = ?")
		args = append(args, filter.CompanyID)
	}
	if filter.Archived != nil {
		conditions = append(conditions, "is_archived = ?")
		args = append(args, *filter.Archived)
	}

	query := `
		SELECT id, company_id, reference, payload, is_archived, archived_by,
			archived_at, created_by, created_at, updated_at
		FROM trade_records
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at, id"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list trade records", zap.Error(err))
		return nil, fmt.Errorf("failed to list trade records: %w", mapError(err))
	}
	defer rows.Close()

	trades := []*entity.TradeRecord{}
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade record: %w", err)
		}
		trades = append(trades, trade)
	}

	return trades, rows.Err()
}

func scanTrade(row rowScanner) (*entity.TradeRecord, error) {
	var trade entity.TradeRecord
	var payload sql.NullString
	var archivedAt sql.NullTime

	if err := row.Scan(
		&trade.ID,
		&trade.CompanyID,
		&trade.Reference,
		&payload,
		&trade.IsArchived,
		&trade.ArchivedBy,
		&archivedAt,
		&trade.CreatedBy,
		&trade.CreatedAt,
		&trade.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if payload.Valid {
		trade.Payload = json.RawMessage(payload.String)
	}
	if archivedAt.Valid {
		t := archivedAt.Time.UTC()
		trade.ArchivedAt = &t
	}
	trade.CreatedAt = trade.CreatedAt.UTC()
	trade.UpdatedAt = trade.UpdatedAt.UTC()

	return &trade, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// Verify interface compliance
var _ port.TradeRepository = (*TradeRepository)(nil)
