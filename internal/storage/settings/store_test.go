package settings

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/folio/internal/domain"
)

func TestStore_SaveLoad(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "allocation.json"))
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, store.Save(domain.AllocationTarget{
		"btc":  decimal.NewFromInt(60),
		"ETH":  decimal.RequireFromString("30.5"),
		"USDT": decimal.RequireFromString("9.5"),
	}))

	loaded, err = store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.True(t, loaded["BTC"].Equal(decimal.NewFromInt(60)))
	assert.True(t, loaded["ETH"].Equal(decimal.RequireFromString("30.5")))
}

func TestStore_RejectsInvalidTargets(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "allocation.json"))
	require.NoError(t, err)

	err = store.Save(domain.AllocationTarget{"BTC": decimal.NewFromInt(60), "ETH": decimal.NewFromInt(41)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidAllocation))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
