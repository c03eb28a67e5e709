package market

import (
	"testing"

	"farmmarket/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStatsCountsOnlyAcceptedOrders(t *testing.T) {
	db := newTestDB(t)
	farmer, consumer := seedUsers(t, db)

	tomato := model.Product{Name: "Tomato", Price: 12.5, Quantity: 100, FarmerID: farmer.ID}
	apple := model.Product{Name: "Apple", Price: 8.0, Quantity: 50, FarmerID: farmer.ID}
	require.NoError(t, db.Create(&tomato).Error)
	require.NoError(t, db.Create(&apple).Error)

	accepted, err := PlaceOrder(db, consumer.ID, tomato.ID, 10)
	require.NoError(t, err)
	_, err = AcceptOrder(db, farmer.ID, accepted.ID)
	require.NoError(t, err)

	alsoAccepted, err := PlaceOrder(db, consumer.ID, apple.ID, 4)
	require.NoError(t, err)
	_, err = AcceptOrder(db, farmer.ID, alsoAccepted.ID)
	require.NoError(t, err)

	pending, err := PlaceOrder(db, consumer.ID, tomato.ID, 7)
	require.NoError(t, err)
	_ = pending

	rejected, err := PlaceOrder(db, consumer.ID, apple.ID, 2)
	require.NoError(t, err)
	_, err = RejectOrder(db, farmer.ID, rejected.ID)
	require.NoError(t, err)

	stats, err := ComputeStats(db)
	require.NoError(t, err)

	assert.Equal(t, 14, stats.TotalSalesKg, "pending and rejected orders contribute nothing")
	// 10 * 12.50 + 4 * 8.00
	assert.True(t, stats.TotalRevenue.Equal(decimal.RequireFromString("157")),
		"got %s", stats.TotalRevenue)
	// 150 listed - 14 accepted
	assert.Equal(t, 136, stats.TotalInventory)
}

func TestComputeStatsEmptyMarketplace(t *testing.T) {
	db := newTestDB(t)

	stats, err := ComputeStats(db)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.TotalSalesKg)
	assert.True(t, stats.TotalRevenue.IsZero())
	assert.Equal(t, 0, stats.TotalInventory)
}
