package market

import (
	"farmmarket/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AdminStats are the aggregate totals shown on the admin overview.
type AdminStats struct {
	TotalSalesKg   int             `json:"total_sales_kg"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TotalInventory int             `json:"total_inventory"`
}

// ComputeStats totals accepted-order volume, revenue (quantity x unit price
// over accepted orders) and remaining inventory. Revenue is summed in decimal
// so fractional prices do not drift.
func ComputeStats(db *gorm.DB) (*AdminStats, error) {
	stats := &AdminStats{TotalRevenue: decimal.Zero}

	var accepted []model.Order
	if err := db.Preload("Product").
		Where("status = ?", model.OrderAccepted).
		Find(&accepted).Error; err != nil {
		return nil, err
	}

	for _, o := range accepted {
		stats.TotalSalesKg += o.Quantity
		if o.Product != nil {
			price := decimal.NewFromFloat(o.Product.Price)
			stats.TotalRevenue = stats.TotalRevenue.Add(price.Mul(decimal.NewFromInt(int64(o.Quantity))))
		}
	}

	var inventory *int
	if err := db.Model(&model.Product{}).
		Select("SUM(quantity)").
		Scan(&inventory).Error; err != nil {
		return nil, err
	}
	if inventory != nil {
		stats.TotalInventory = *inventory
	}

	return stats, nil
}
