package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login counters
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "market_login_total",
			Help: "Total number of login attempts",
		},
	)

	// Registration counters
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "market_register_total",
			Help: "Total number of user registrations",
		},
	)

	// OTP issue counter
	OTPIssuedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "market_otp_issued_total",
			Help: "Total number of one-time recovery codes issued",
		},
	)

	// Order operation counter
	OrderOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_order_operations_total",
			Help: "Total number of order operations",
		},
		[]string{"operation"}, // operation can be "place", "accept", "reject"
	)

	// Product listing counter
	ProductListedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "market_products_listed_total",
			Help: "Total number of products listed by farmers",
		},
	)

	// Forecast lookup counter
	ForecastCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_forecast_lookups_total",
			Help: "Total number of demand forecast lookups by trend outcome",
		},
		[]string{"trend"},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // type can be "login_failure", "invalid_token", "db_error" etc.
	)

	OrderErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_order_errors_total",
			Help: "Total number of rejected order mutations",
		},
		[]string{"type"}, // type can be "insufficient_stock", "not_owner", "bad_quantity" etc.
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	// Active tokens
	ActiveTokensGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_active_tokens",
			Help: "Number of currently active authentication tokens",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "market_info",
			Help: "Information about the marketplace service",
		},
		[]string{"version"},
	)

	// Total inventory across all products, in kg
	InventoryGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_inventory_kg",
			Help: "Total quantity on hand across all products",
		},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(OTPIssuedCounter)
	prometheus.MustRegister(OrderOperationCounter)
	prometheus.MustRegister(ProductListedCounter)
	prometheus.MustRegister(ForecastCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(OrderErrorCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	// Register gauges
	prometheus.MustRegister(ActiveTokensGauge)
	prometheus.MustRegister(InfoGauge)
	prometheus.MustRegister(InventoryGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// IncreaseActiveTokens increments the active tokens gauge
func IncreaseActiveTokens() {
	ActiveTokensGauge.Inc()
}

// DecreaseActiveTokens decrements the active tokens gauge
func DecreaseActiveTokens() {
	ActiveTokensGauge.Dec()
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordOrderOperation records a successful order operation
func RecordOrderOperation(operation string) {
	OrderOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordOrderError records a rejected order mutation by type
func RecordOrderError(errorType string) {
	OrderErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordForecastLookup records a forecast lookup by trend outcome
func RecordForecastLookup(trend string) {
	ForecastCounter.With(prometheus.Labels{"trend": trend}).Inc()
}

// UpdateInventory updates the total inventory gauge
func UpdateInventory(totalKg int) {
	InventoryGauge.Set(float64(totalKg))
}
