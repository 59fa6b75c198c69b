package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

func TestTradeRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewTradeRepository(db, zap.NewNop())
	ctx := context.Background()

	created := time.Date(2025, 5, 2, 8, 30, 0, 0, time.UTC)
	for _, id := range []string{"lc-1", "lc-2", "lc-3"} {
		require.NoError(t, repo.Create(ctx, &entity.TradeRecord{
			ID:        id,
			CompanyID: "acme",
			Reference: "LC/" + id,
			Payload:   []byte(`{"bank":"first"}`),
			CreatedBy: "u-finance",
			CreatedAt: created,
			UpdatedAt: created,
		}))
		created = created.Add(time.Minute)
	}

	t.Run("new records are active", func(t *testing.T) {
		trade, err := repo.GetByID(ctx, "lc-1")
		require.NoError(t, err)
		assert.False(t, trade.IsArchived)
		assert.Nil(t, trade.ArchivedAt)
		assert.Equal(t, "LC/lc-1", trade.Reference)
		assert.JSONEq(t, `{"bank":"first"}`, string(trade.Payload))
	})

	t.Run("archive sets the flag and stamp", func(t *testing.T) {
		at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, repo.SetArchived(ctx, "lc-2", true, "u-manager", at))

		trade, err := repo.GetByID(ctx, "lc-2")
		require.NoError(t, err)
		assert.True(t, trade.IsArchived)
		assert.Equal(t, "u-manager", trade.ArchivedBy)
		require.NotNil(t, trade.ArchivedAt)
		assert.True(t, at.Equal(*trade.ArchivedAt))
	})

	t.Run("list filters by archive flag", func(t *testing.T) {
		archived := true
		trades, err := repo.List(ctx, port.TradeFilter{CompanyID: "acme", Archived: &archived})
		require.NoError(t, err)
		require.Len(t, trades, 1)
		assert.Equal(t, "lc-2", trades[0].ID)

		active := false
		trades, err = repo.List(ctx, port.TradeFilter{CompanyID: "acme", Archived: &active})
		require.NoError(t, err)
		require.Len(t, trades, 2)
		assert.Equal(t, "lc-1", trades[0].ID)
		assert.Equal(t, "lc-3", trades[1].ID)

		all, err := repo.List(ctx, port.TradeFilter{CompanyID: "acme", Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "lc-2", all[0].ID)
	})

	t.Run("restore clears the stamp", func(t *testing.T) {
		require.NoError(t, repo.SetArchived(ctx, "lc-2", false, "u-manager", time.Now()))

		trade, err := repo.GetByID(ctx, "lc-2")
		require.NoError(t, err)
		assert.False(t, trade.IsArchived)
		assert.Empty(t, trade.ArchivedBy)
		assert.Nil(t, trade.ArchivedAt)
	})

	t.Run("unknown record", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, port.ErrNotFound)

		err = repo.SetArchived(ctx, "missing", true, "u-manager", time.Now())
		assert.ErrorIs(t, err, port.ErrNotFound)
	})
}
