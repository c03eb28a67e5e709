package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"farmmarket/internal/locale"
	"farmmarket/internal/market"
	"farmmarket/internal/middleware"
	"farmmarket/internal/model"
	"farmmarket/pkg/database"
	"farmmarket/pkg/logger"
	"farmmarket/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// PlaceOrder creates a Pending order for the acting consumer. Stock is only
// checked, never decremented, at placement time.
func PlaceOrder(c echo.Context) error {
	log := logger.FromContext(c)
	consumerID := middleware.ActingUserID(c)

	productID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	order, err := market.PlaceOrder(database.GetDB(), consumerID, uint(productID), req.Quantity)
	switch {
	case errors.Is(err, market.ErrProductNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
	case errors.Is(err, market.ErrBadQuantity), errors.Is(err, market.ErrInsufficientStock):
		prometheus.RecordOrderError("bad_quantity")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": locale.T(c, "Invalid quantity or out of stock!"),
		})
	case err != nil:
		log.Error("Failed to place order", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to place order"})
	}

	prometheus.RecordOrderOperation("place")
	log.Info("Order placed",
		zap.Uint("order_id", order.ID),
		zap.Uint("product_id", order.ProductID),
		zap.Int("quantity", order.Quantity))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": locale.T(c, fmt.Sprintf("Order placed for %d kg of %s!", order.Quantity, order.Product.Name)),
		"order":   order,
	})
}

// AcceptOrder transitions a Pending order to Accepted and decrements stock.
// Only the order's farmer may accept, and only while enough stock remains.
func AcceptOrder(c echo.Context) error {
	log := logger.FromContext(c)
	farmerID := middleware.ActingUserID(c)

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}

	order, err := market.AcceptOrder(database.GetDB(), farmerID, uint(orderID))
	if err != nil {
		return orderMutationError(c, log, err, "accept")
	}

	prometheus.RecordOrderOperation("accept")
	log.Info("Order accepted",
		zap.Uint("order_id", order.ID),
		zap.Int("quantity", order.Quantity))

	return c.JSON(http.StatusOK, echo.Map{
		"message": locale.T(c, "Order Accepted!"),
		"order":   order,
	})
}

// RejectOrder transitions a Pending order to Rejected. Stock is untouched.
func RejectOrder(c echo.Context) error {
	log := logger.FromContext(c)
	farmerID := middleware.ActingUserID(c)

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}

	order, err := market.RejectOrder(database.GetDB(), farmerID, uint(orderID))
	if err != nil {
		return orderMutationError(c, log, err, "reject")
	}

	prometheus.RecordOrderOperation("reject")
	log.Info("Order rejected", zap.Uint("order_id", order.ID))

	return c.JSON(http.StatusOK, echo.Map{
		"message": locale.T(c, "Order Rejected."),
		"order":   order,
	})
}

func orderMutationError(c echo.Context, log *zap.Logger, err error, op string) error {
	switch {
	case errors.Is(err, market.ErrOrderNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	case errors.Is(err, market.ErrNotOwner):
		prometheus.RecordOrderError("not_owner")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "unauthorized"})
	case errors.Is(err, market.ErrInsufficientStock):
		prometheus.RecordOrderError("insufficient_stock")
		return c.JSON(http.StatusConflict, echo.Map{
			"error": locale.T(c, "Not enough stock left to accept this order!"),
		})
	case errors.Is(err, market.ErrAlreadyDecided):
		prometheus.RecordOrderError("already_decided")
		return c.JSON(http.StatusConflict, echo.Map{"error": "order is no longer pending"})
	default:
		log.Error("Order mutation failed", zap.String("operation", op), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
	}
}

// MyOrders returns the acting consumer's orders, newest first.
func MyOrders(c echo.Context) error {
	log := logger.FromContext(c)
	consumerID := middleware.ActingUserID(c)

	var orders []model.Order
	err := database.GetDB().Preload("Product").
		Where("consumer_id = ?", consumerID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		log.Error("Failed to list orders", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve orders"})
	}

	return c.JSON(http.StatusOK, orders)
}

// IncomingOrders returns orders placed against the acting farmer's products.
func IncomingOrders(c echo.Context) error {
	log := logger.FromContext(c)
	farmerID := middleware.ActingUserID(c)

	var orders []model.Order
	err := database.GetDB().Preload("Product").Preload("Consumer").
		Where("farmer_id = ?", farmerID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		log.Error("Failed to list incoming orders", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve orders"})
	}

	return c.JSON(http.StatusOK, orders)
}
