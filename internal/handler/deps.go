package handler

import (
	"farmmarket/internal/forecast"
	"farmmarket/internal/media"
	"farmmarket/internal/otp"
	"farmmarket/internal/sms"
	"farmmarket/prometheus"

	"github.com/labstack/echo/v4"
)

// Shared collaborators, wired once at startup.
var (
	Forecaster *forecast.Forecaster
	OTP        *otp.Service
	SMS        sms.Sender
	Media      *media.Store
)

// Init wires the handler package's collaborators.
func Init(f *forecast.Forecaster, o *otp.Service, s sms.Sender, m *media.Store) {
	Forecaster = f
	OTP = o
	SMS = s
	Media = m
}

// MetricsHandler exposes the Prometheus scrape endpoint.
func MetricsHandler(c echo.Context) error {
	handler := prometheus.GetPrometheusHandler()
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
