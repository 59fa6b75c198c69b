package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/workflow"
)

// RecordRepository implements port.RecordRepository
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
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`

		_, err := r.db.getExecutor(ctx).ExecContext(ctx, query,
			record.ID,
			record.DocumentNumber,
			record.CompanyID,
			string(record.DocumentType),
			record.FiscalYearID,
			string(record.CurrentStage),
			record.Version(),
			record.RequesterID,
			nullPayload(record.Payload),
			record.CreatedAt.UTC(),
			record.UpdatedAt.UTC(),
		)
		if err != nil {
			if isUniqueViolation(err) {
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

// GetByID loads a record and its full stage history
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*entity.WorkflowRecord, error) {
	query := `
		SELECT id, document_number, company_id, document_type, fiscal_year_id,
			current_stage, version, requester_id, payload, created_at, updated_at
		FROM workflow_records
		WHERE id = ?
	`

	record, version, err := scanRecord(r.db.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("workflow record %s: %w", id, port.ErrNotFound)
		}
		r.logger.Error("Failed to get workflow record", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow record: %w", mapError(err))
	}

	history, err := r.history(ctx, id, version)
	if err != nil {
		return nil, err
	}
	record.StageHistory = history

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
			SET current_stage = ?, version = version + 1, payload = ?, updated_at = ?
			WHERE id = ? AND version = ? AND current_stage = ?
		`

		result, err := r.db.getExecutor(ctx).ExecContext(ctx, query,
			string(entry.Stage),
			nullPayload(record.Payload),
			entry.Timestamp.UTC(),
			record.ID,
			expectedVersion,
			string(entry.FromStage),
		)
		if err != nil {
			r.logger.Error("Failed to update workflow record stage", zap.String("id", record.ID), zap.Error(err))
			return fmt.Errorf("failed to update workflow record stage: %w", mapError(err))
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			var exists int
			err := r.db.getExecutor(ctx).QueryRowContext(ctx, "SELECT 1 FROM workflow_records WHERE id = ?", record.ID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
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
		args       []interface{}
	)

	if filter.CompanyID != "" {
		conditions = append(conditions, "company_id = ?")
		args = append(args, filter.CompanyID)
	}
	if filter.DocumentType != "" {
		conditions = append(conditions, "document_type = ?")
		args = append(args, string(filter.DocumentType))
	}
	if len(filter.Stages) > 0 {
		placeholders := make([]string, len(filter.Stages))
		for i, stage := range filter.Stages {
			placeholders[i] = "?"
			args = append(args, string(stage))
		}
		conditions = append(conditions, "current_stage IN ("+strings.Join(placeholders, ", ")+")")
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.getExecutor(ctx).ExecContext(ctx, query,
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
		if isPrimaryKeyViolation(err) {
			return fmt.Errorf("history entry %d of %s: %w", entry.Seq, recordID, port.ErrStaleState)
		}
		r.logger.Error("Failed to append stage history", zap.String("record_id", recordID), zap.Int("seq", entry.Seq), zap.Error(err))
		return fmt.Errorf("failed to append stage history: %w", mapError(err))
	}
	return nil
}

// history reads entries up to version. Entries committed after the record
// row was read are left out so the result matches the stored stage.
func (r *RecordRepository) history(ctx context.Context, recordID string, version int) ([]entity.StageEntry, error) {
	query := `
		SELECT seq, from_stage, stage, actor_id, actor_role, action, note, created_at
		FROM stage_history
		WHERE record_id = ? AND seq <= ?
		ORDER BY seq ASC
	`

	rows, err := r.db.getExecutor(ctx).QueryContext(ctx, query, recordID, version)
	if err != nil {
		r.logger.Error("Failed to get stage history", zap.String("record_id", recordID), zap.Error(err))
		return nil, fmt.Errorf("failed to get stage history: %w", mapError(err))
	}
	defer rows.Close()

	history := []entity.StageEntry{}
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
		history = append(history, entry)
	}

	return history, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*entity.WorkflowRecord, int, error) {
	var record entity.WorkflowRecord
	var documentType, currentStage string
	var version int
	var payload sql.NullString

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
	if payload.Valid {
		record.Payload = json.RawMessage(payload.String)
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()

	return &record, version, nil
}

func nullPayload(payload json.RawMessage) sql.NullString {
	if len(payload) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(payload), Valid: true}
}

// Verify interface compliance
var _ port.RecordRepository = (*RecordRepository)(nil)
