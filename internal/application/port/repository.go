package port

import (
	"context"
	"errors"
	"time"

	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateSequence is returned when a write would reuse a document number
	// within its (company, document type, fiscal year) scope
	ErrDuplicateSequence = errors.New("duplicate document number")

	// ErrStaleState is returned when a transition was computed against an old version
	ErrStaleState = errors.New("stale record version")

	// ErrContention is returned when the store could not complete an atomic
	// update because of concurrent access; the caller retries with a fresh read
	ErrContention = errors.New("storage contention")
)

// RecordFilter selects workflow records for listing
type RecordFilter struct {
	CompanyID    string
	DocumentType entity.DocumentType
	// Stages restricts the result to these stages when non-empty
	Stages []entity.Stage
	Limit  int
	Offset int
}

// RecordRepository persists workflow records and their append-only audit trail
type RecordRepository interface {
	// Create inserts a new record and any initial history
	Create(ctx context.Context, record *entity.WorkflowRecord) error

	// GetByID loads a record with its full stage history
	GetByID(ctx context.Context, id string) (*entity.WorkflowRecord, error)

	// AppendTransition appends one audit entry and moves the record to
	// entry.Stage, but only if the stored version still equals expectedVersion
	AppendTransition(ctx context.Context, record *entity.WorkflowRecord, entry entity.StageEntry, expectedVersion int) error

	// List returns records ordered by document number, without history
	List(ctx context.Context, filter RecordFilter) ([]*entity.WorkflowRecord, error)
}

// CounterRepository stores sequence counters
type CounterRepository interface {
	// Increment atomically advances the counter for key and returns the new
	// value. A counter that does not exist yet starts from floor.
	Increment(ctx context.Context, key entity.SequenceKey, floor int64) (int64, error)

	// Get returns the counter for key, or nil if it has never been touched
	Get(ctx context.Context, key entity.SequenceKey) (*entity.SequenceCounter, error)
}

// TradeFilter selects trade records
type TradeFilter struct {
	CompanyID string
	// Archived filters by the archive flag when non-nil
	Archived *bool
	Limit    int
	Offset   int
}

// TradeRepository persists trade-finance records
type TradeRepository interface {
	Create(ctx context.Context, trade *entity.TradeRecord) error
	GetByID(ctx context.Context, id string) (*entity.TradeRecord, error)
	SetArchived(ctx context.Context, id string, archived bool, actorID string, at time.Time) error
	List(ctx context.Context, filter TradeFilter) ([]*entity.TradeRecord, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
