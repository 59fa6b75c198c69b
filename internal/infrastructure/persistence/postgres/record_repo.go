package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/workflow"
)

// RecordRepository implements port.RecordRepository on Postgres
type RecordRepository struct {
	db     *DB
	graphs *workflow.Registry
	logger *zap.Logger
}

// NewRecordRepository creates a record repository. When graphs is set,
// AppendTransition refuses entries that are not a legal move from the
// stored stage.
func NewRecordRepository(db *DB, graphs *workflow.Registry, logger *zap.Logger) *RecordRepository {
	return &RecordRepository{
		db:     db,
		graphs: graphs,
		logger: logger,
	}
}

// Create inserts a record and its initial history in one transaction
func (r *RecordRepository) Create(ctx context.Context, record *entity.WorkflowRecord) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO workflow_records (
				id, document_number, company_id, document_type, fiscal_year_id,
				current_stage, version, requester_id, payload, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`

		_, err := r.db.getExecutor(ctx).Exec(ctx, query,
			record.ID,
			record.DocumentNumber,
			record.CompanyID,
			string(record.DocumentType),
			record.FiscalYearID,
			string(record.CurrentStage),
			record.Version(),
			record.RequesterID,
			jsonParam(record.Payload),
			record.CreatedAt.UTC(),
			record.UpdatedAt.UTC(),
		)
		if err != nil {
			if isUniqueViolation(err, sequenceConstraint) {
				r.logger.Error("Document number already in use",
					zap.String("company_id", record.CompanyID),
					zap.String("document_type", string(record.DocumentType)),
					zap.String("fiscal_year_id", record.FiscalYearID),
					zap.Int64("document_number", record.DocumentNumber),
					zap.Error(err))
				return fmt.Errorf("%w: %s #%d", port.ErrDuplicateSequence, record.SequenceKey(), record.DocumentNumber)
			}
			r.logger.Error("Failed to create workflow record", zap.String("id", record.ID), zap.Error(err))
			return fmt.Errorf("failed to create workflow record: %w", mapError(err))
		}

		for _, entry := range record.StageHistory {
			if err := r.insertEntry(ctx, record.ID, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID loads a record and its stage history up to the stored version
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*entity.WorkflowRecord, error) {
	query := `
		SELECT id, document_number, company_id, document_type, fiscal_year_id,
			current_stage, version, requester_id, payload, created_at, updated_at
		FROM workflow_records
		WHERE id = $1
	`

	record, version, err := scanRecord(r.db.getExecutor(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("workflow record %s: %w", id, port.ErrNotFound)
		}
		r.logger.Error("Failed to get workflow record", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow record: %w", mapError(err))
	}

	historyQuery := `
		SELECT seq, from_stage, stage, actor_id, actor_role, action, note, created_at
		FROM stage_history
		WHERE record_id = $1 AND seq <= $2
		ORDER BY seq ASC
	`

	rows, err := r.db.getExecutor(ctx).Query(ctx, historyQuery, id, version)
	if err != nil {
		r.logger.Error("Failed to get stage history", zap.String("record_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get stage history: %w", mapError(err))
	}
	defer rows.Close()

	record.StageHistory = []entity.StageEntry{}
	for rows.Next() {
		var entry entity.StageEntry
		var fromStage, stage, actorRole, action string
		if err := rows.Scan(
			&entry.Seq,
			&fromStage,
			&stage,
			&entry.ActorID,
			&actorRole,
			&action,
			&entry.Note,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stage history: %w", err)
		}
		entry.FromStage = entity.Stage(fromStage)
		entry.Stage = entity.Stage(stage)
		entry.ActorRole = entity.Role(actorRole)
		entry.Action = entity.Action(action)
		entry.Timestamp = entry.Timestamp.UTC()
		record.StageHistory = append(record.StageHistory, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stage history: %w", err)
	}

	return record, nil
}

// AppendTransition moves the record to entry.Stage and appends entry, but
// only while the stored version equals expectedVersion
func (r *RecordRepository) AppendTransition(ctx context.Context, record *entity.WorkflowRecord, entry entity.StageEntry, expectedVersion int) error {
	if r.graphs != nil {
		graph, err := r.graphs.Lookup(record.DocumentType)
		if err != nil {
			return err
		}
		if err := workflow.CheckEntry(graph, entry.FromStage, expectedVersion, entry); err != nil {
			r.logger.Error("Refusing to persist illegal transition",
				zap.String("id", record.ID),
				zap.String("from_stage", string(entry.FromStage)),
				zap.String("stage", string(entry.Stage)),
				zap.String("action", string(entry.Action)),
				zap.Error(err))
			return err
		}
	}

	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		query := `
			UPDATE workflow_records
			SET current_stage = $1, version = version + 1, payload = $2, updated_at = $3
			WHERE id = $4 AND version = $5 AND current_stage = $6
		`

		tag, err := r.db.getExecutor(ctx).Exec(ctx, query,
			string(entry.Stage),
			jsonParam(record.Payload),
			entry.Timestamp.UTC(),
			record.ID,
			expectedVersion,
			string(entry.FromStage),
		)
		if err != nil {
			r.logger.Error("Failed to update workflow record stage", zap.String("id", record.ID), zap.Error(err))
			return fmt.Errorf("failed to update workflow record stage: %w", mapError(err))
		}

		if tag.RowsAffected() == 0 {
			var exists int
			err := r.db.getExecutor(ctx).QueryRow(ctx, "SELECT 1 FROM workflow_records WHERE id = $1", record.ID).Scan(&exists)
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("workflow record %s: %w", record.ID, port.ErrNotFound)
			}
			return fmt.Errorf("workflow record %s at version %d: %w", record.ID, expectedVersion, port.ErrStaleState)
		}

		return r.insertEntry(ctx, record.ID, entry)
	})
}

// List returns records ordered by document number, without history
func (r *RecordRepository) List(ctx context.Context, filter port.RecordFilter) ([]*entity.WorkflowRecord, error) {
	var (
		conditions []string
		args       []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CompanyID != "" {
		conditions = append(conditions, "company_id = "+arg(filter.CompanyID))
	}
	if filter.DocumentType != "" {
		conditions = append(conditions, "document_type = "+arg(string(filter.DocumentType)))
	}
	if len(filter.Stages) > 0 {
		stages := make([]string, len(filter.Stages))
		for i, stage := range filter.Stages {
			stages[i] = string(stage)
		}
		conditions = append(conditions, "current_stage = ANY("+arg(stages)+")")
	}

	query := `
		SELECT id, document_number, company_id, document_type, fiscal_year_id,
			current_stage, version, requester_id, payload, created_at, updated_at
		FROM workflow_records
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY document_type, fiscal_year_id, document_number"

	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := r.db.getExecutor(ctx).Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list workflow records", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflow records: %w", mapError(err))
	}
	defer rows.Close()

	records := []*entity.WorkflowRecord{}
	for rows.Next() {
		record, _, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func (r *RecordRepository) insertEntry(ctx context.Context, recordID string, entry entity.StageEntry) error {
	query := `
		INSERT INTO stage_history (
			record_id, seq, from_stage, stage, actor_id, actor_role, action, note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.getExecutor(ctx).Exec(ctx, query,
		recordID,
		entry.Seq,
		string(entry.FromStage),
		string(entry.Stage),
		entry.ActorID,
		string(entry.ActorRole),
		string(entry.Action),
		entry.Note,
		entry.Timestamp.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return fmt.Errorf("history entry %d of %s: %w", entry.Seq, recordID, port.ErrStaleState)
		}
		r.logger.Error("Failed to append stage history", zap.String("record_id", recordID), zap.Int("seq", entry.Seq), zap.Error(err))
		return fmt.Errorf("failed to append stage history: %w", mapError(err))
	}
	return nil
}

func scanRecord(row pgx.Row) (*entity.WorkflowRecord, int, error) {
	var record entity.WorkflowRecord
	var documentType, currentStage string
	var version int
	var payload []byte

	if err := row.Scan(
		&record.ID,
		&record.DocumentNumber,
		&record.CompanyID,
		&documentType,
		&record.FiscalYearID,
		&currentStage,
		&version,
		&record.RequesterID,
		&payload,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, 0, err
	}

	record.DocumentType = entity.DocumentType(documentType)
	record.CurrentStage = entity.Stage(currentStage)
	if payload != nil {
		record.Payload = json.RawMessage(payload)
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()

	return &record, version, nil
}

// jsonParam passes a payload as text so the server casts it to jsonb; an
// empty payload is stored as NULL
func jsonParam(payload json.RawMessage) any {
	if len(payload) == 0 {
		return nil
	}
	return string(payload)
}

var _ port.RecordRepository = (*RecordRepository)(nil)
