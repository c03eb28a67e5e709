package handler

import (
	"net/http"
	"time"

	"farmmarket/internal/activity"
	"farmmarket/internal/market"
	"farmmarket/internal/middleware"
	"farmmarket/internal/model"
	"farmmarket/pkg/database"
	"farmmarket/pkg/logger"
	"farmmarket/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AdminDashboard returns the full marketplace picture: every user, product
// and order, the last 100 audit entries, and the aggregate totals.
func AdminDashboard(c echo.Context) error {
	log := logger.FromContext(c)
	db := database.GetDB()

	defer prometheus.TrackDBOperation("query")(time.Now())

	var users []model.User
	if err := db.Find(&users).Error; err != nil {
		log.Error("Failed to load users", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load dashboard"})
	}

	var products []model.Product
	if err := db.Preload("Farmer").Find(&products).Error; err != nil {
		log.Error("Failed to load products", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load dashboard"})
	}

	var orders []model.Order
	if err := db.Preload("Product").Preload("Consumer").Preload("Farmer").
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		log.Error("Failed to load orders", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load dashboard"})
	}

	logs, err := activity.Recent(db, 100)
	if err != nil {
		log.Error("Failed to load activity logs", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load dashboard"})
	}

	stats, err := market.ComputeStats(db)
	if err != nil {
		log.Error("Failed to compute stats", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load dashboard"})
	}
	prometheus.UpdateInventory(stats.TotalInventory)

	return c.JSON(http.StatusOK, echo.Map{
		"users":    users,
		"products": products,
		"orders":   orders,
		"logs":     logs,
		"stats":    stats,
	})
}

// FarmerDashboard returns the farmer's own products, incoming orders and the
// count of accepted sales.
func FarmerDashboard(c echo.Context) error {
	log := logger.FromContext(c)
	db := database.GetDB()
	farmerID := middleware.ActingUserID(c)

	var products []model.Product
	if err := db.Where("farmer_id = ?", farmerID).Find(&products).Error; err != nil {
		log.Error("Failed to load farmer products", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load dashboard"})
	}

	var orders []model.Order
	if err := db.Preload("Product").Preload("Consumer").
		Where("farmer_id = ?", farmerID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		log.Error("Failed to load incoming orders", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load dashboard"})
	}

	var accepted int64
	if err := db.Model(&model.Order{}).
		Where("farmer_id = ? AND status = ?", farmerID, model.OrderAccepted).
		Count(&accepted).Error; err != nil {
		log.Error("Failed to count accepted sales", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load dashboard"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"products":    products,
		"orders":      orders,
		"total_sales": accepted,
	})
}

// ConsumerDashboard returns the catalog (optionally filtered) and the
// consumer's own orders.
func ConsumerDashboard(c echo.Context) error {
	log := logger.FromContext(c)
	db := database.GetDB()
	consumerID := middleware.ActingUserID(c)

	query := c.QueryParam("q")
	products, err := market.SearchProducts(db, query)
	if err != nil {
		log.Error("Failed to search products", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load dashboard"})
	}

	var orders []model.Order
	if err := db.Preload("Product").
		Where("consumer_id = ?", consumerID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		log.Error("Failed to load consumer orders", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load dashboard"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"products":     products,
		"orders":       orders,
		"search_query": query,
	})
}
