package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

// CounterRepository implements port.CounterRepository on Postgres
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

// Increment advances the counter with a single upsert. Concurrent upserts on
// the same key serialize on the row lock.
func (r *CounterRepository) Increment(ctx context.Context, key entity.SequenceKey, floor int64) (int64, error) {
	query := `
		INSERT INTO sequence_counters (company_id, document_type, fiscal_year_id, value, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id, document_type, fiscal_year_id)
		DO UPDATE SET value = sequence_counters.value + 1, updated_at = EXCLUDED.updated_at
		RETURNING value
	`

	var value int64
	err := r.db.getExecutor(ctx).QueryRow(ctx, query,
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
		WHERE company_id = $1 AND document_type = $2 AND fiscal_year_id = $3
	`

	counter := &entity.SequenceCounter{Key: key}
	err := r.db.getExecutor(ctx).QueryRow(ctx, query,
		key.CompanyID,
		string(key.DocumentType),
		key.FiscalYearID,
	).Scan(&counter.Value, &counter.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get sequence counter", zap.String("key", key.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get sequence counter: %w", mapError(err))
	}

	return counter, nil
}

var _ port.CounterRepository = (*CounterRepository)(nil)
