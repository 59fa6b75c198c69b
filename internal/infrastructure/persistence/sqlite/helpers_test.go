package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/workflow"
	"github.com/ebaz7/lepan-crm-sub000/migrations"
	"github.com/ebaz7/lepan-crm-sub000/pkg/database"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	logger := zap.NewNop()
	conn, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "docflow.db"),
		MaxOpenConns: 8,
		MaxIdleConns: 8,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	migrator := database.NewMigrator(database.NewSQLiteTarget(conn), logger)
	_, err = migrator.RunMigrations(context.Background(), migrations.FS, migrations.Dir("sqlite"))
	require.NoError(t, err)

	return NewDB(conn.DB, logger)
}

func newTestRecord(number int64) *entity.WorkflowRecord {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return &entity.WorkflowRecord{
		ID:             fmt.Sprintf("rec-%d", number),
		DocumentNumber: number,
		CompanyID:      "acme",
		DocumentType:   entity.DocumentPaymentOrder,
		FiscalYearID:   "2025",
		CurrentStage:   workflow.StagePending,
		StageHistory:   []entity.StageEntry{},
		RequesterID:    "u-requester",
		Payload:        []byte(`{"amount":1200}`),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func newTestMachine() *workflow.Machine {
	return workflow.NewMachine(workflow.DefaultRegistry(), workflow.WithAdminRole(entity.RoleAdmin))
}
