package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

// CounterRepository implements port.CounterRepository
type CounterRepository struct {
	db     *DB
	logger *zap.Logger
	now    func() time.Time
}

// NewCounterRepository creates a new counter repository
func NewCounterRepository(db *DB, logger *zap.Logger) *CounterRepository {
	return &CounterRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Increment advances the counter in a single upsert statement, so the read
// and the write cannot interleave with another caller
func (r *CounterRepository) Increment(ctx context.Context, key entity.SequenceKey, floor int64) (int64, error) {
	query := `
		INSERT INTO sequence_counters (company_id, document_type, fiscal_year_id, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (company_id, document_type, fiscal_year_id)
		DO UPDATE SET value = sequence_counters.value + 1, updated_at = excluded.updated_at
		RETURNING value
	`

	var value int64
	err := r.db.getExecutor(ctx).QueryRowContext(ctx, query,
		key.CompanyID,
		string(key.DocumentType),
		key.FiscalYearID,
		floor+1,
		r.now().UTC(),
	).Scan(&value)
	if err != nil {
		r.logger.Error("Failed to increment sequence counter", zap.String("key", key.String()), zap.Error(err))
		return 0, fmt.Errorf("failed to increment sequence counter: %w", mapError(err))
	}

	return value, nil
}

// Get returns the counter for key, or nil if it was never incremented
func (r *CounterRepository) Get(ctx context.Context, key entity.SequenceKey) (*entity.SequenceCounter, error) {
	query := `
		SELECT value, updated_at
		FROM sequence_counters
		WHERE company_id = ? AND document_type = ? AND fiscal_year_id = ?
	`

	counter := &entity.SequenceCounter{Key: key}
	err := r.db.getExecutor(ctx).QueryRowContext(ctx, query,
		key.CompanyID,
		string(key.DocumentType),
		key.FiscalYearID,
	).Scan(&counter.Value, &counter.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get sequence counter", zap.String("key", key.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get sequence counter: %w", mapError(err))
	}

	return counter, nil
}

// Verify interface compliance
var _ port.CounterRepository = (*CounterRepository)(nil)
