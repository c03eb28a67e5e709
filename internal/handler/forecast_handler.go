package handler

import (
	"net/http"

	"farmmarket/pkg/logger"
	"farmmarket/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CheckForecast runs the seasonal demand estimate for a product name.
func CheckForecast(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Product string `json:"product"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Product == "" {
		req.Product = c.QueryParam("product")
	}
	if req.Product == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "product is required"})
	}

	result := Forecaster.Analyze(req.Product)
	prometheus.RecordForecastLookup(result.Trend)

	log.Info("Forecast lookup",
		zap.String("product", req.Product),
		zap.String("trend", result.Trend))

	return c.JSON(http.StatusOK, echo.Map{
		"product":  req.Product,
		"forecast": result,
	})
}

// ReloadForecast swaps in a fresh snapshot of the historical data file.
func ReloadForecast(c echo.Context) error {
	log := logger.FromContext(c)

	if err := Forecaster.Reload(); err != nil {
		log.Error("Forecast reload failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reload failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{"samples": Forecaster.Len()})
}
