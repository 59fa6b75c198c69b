package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
)

func TestStaticDirectory(t *testing.T) {
	dir, err := NewStaticDirectory(map[string]string{
		"u-finance": "FINANCE",
		"u-admin":   "ADMIN",
	})
	require.NoError(t, err)

	role, err := dir.GetRole(context.Background(), "u-finance")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleFinance, role)

	_, err = dir.GetRole(context.Background(), "u-nobody")
	assert.ErrorIs(t, err, port.ErrUnknownActor)

	_, err = NewStaticDirectory(map[string]string{"u-x": "JANITOR"})
	assert.Error(t, err)
}
