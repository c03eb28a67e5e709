// Package forecast estimates seasonal demand for a product from historical
// per-sale records loaded out of a CSV snapshot.
package forecast

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Trend labels returned by Analyze.
const (
	TrendNoData         = "No Historical Data"
	TrendNewProduct     = "New Product"
	TrendHigh           = "High Demand (Seasonal Peak)"
	TrendLow            = "Low Demand (Off-Season)"
	TrendStable         = "Stable Demand"
	TrendStableNoSeason = "Stable (No seasonal data)"
)

// Sample is one historical sale record. HasDate is false when the source row
// carried no parseable date; such rows still count toward overall means.
type Sample struct {
	ProductName  string
	Date         time.Time
	HasDate      bool
	PricePerKg   float64
	QuantitySold float64
}

// Result is the outcome of a demand lookup. AvgQty is truncated, AvgPrice is
// rounded to two decimal places.
type Result struct {
	Trend    string  `json:"trend"`
	AvgPrice float64 `json:"avg_price"`
	AvgQty   int     `json:"avg_qty"`
}

// Forecaster holds an immutable snapshot of historical sales. Reload swaps
// the whole snapshot; readers never see a partially loaded one.
type Forecaster struct {
	mu      sync.RWMutex
	samples []Sample
	path    string
	log     *zap.Logger
}

// New builds a forecaster over the CSV at path. A missing or unreadable file
// is not an error; the forecaster starts with an empty snapshot and reports
// no historical data.
func New(path string, log *zap.Logger) *Forecaster {
	f := &Forecaster{path: path, log: log}
	if err := f.Reload(); err != nil {
		log.Warn("Historical data unavailable, forecaster starts empty",
			zap.String("path", path),
			zap.Error(err))
	}
	return f
}

// Reload re-reads the data file and atomically replaces the snapshot.
func (f *Forecaster) Reload() error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer file.Close()

	samples, err := parseCSV(file, f.log)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.samples = samples
	f.mu.Unlock()

	f.log.Info("Historical data loaded",
		zap.String("path", f.path),
		zap.Int("samples", len(samples)))
	return nil
}

// Len returns the number of samples in the current snapshot.
func (f *Forecaster) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.samples)
}

// Analyze estimates demand for the product in the current calendar month.
func (f *Forecaster) Analyze(productName string) Result {
	return f.AnalyzeAt(productName, time.Now())
}

// AnalyzeAt is Analyze with an explicit reference time. The seasonal subset
// is every dated sample whose month matches now's calendar month; its mean
// quantity against the product's all-time mean decides the trend.
func (f *Forecaster) AnalyzeAt(productName string, now time.Time) Result {
	f.mu.RLock()
	samples := f.samples
	f.mu.RUnlock()

	if len(samples) == 0 {
		return Result{Trend: TrendNoData}
	}

	var product []Sample
	for _, s := range samples {
		if strings.EqualFold(s.ProductName, productName) {
			product = append(product, s)
		}
	}
	if len(product) == 0 {
		return Result{Trend: TrendNewProduct}
	}

	var seasonal []Sample
	for _, s := range product {
		if s.HasDate && s.Date.Month() == now.Month() {
			seasonal = append(seasonal, s)
		}
	}

	if len(seasonal) == 0 {
		avgPrice, avgQty := means(product)
		return Result{Trend: TrendStableNoSeason, AvgPrice: round2(avgPrice), AvgQty: int(avgQty)}
	}

	avgPrice, avgQty := means(seasonal)
	_, overallQty := means(product)

	trend := TrendStable
	switch {
	case avgQty > overallQty*1.1:
		trend = TrendHigh
	case avgQty < overallQty*0.9:
		trend = TrendLow
	}

	return Result{Trend: trend, AvgPrice: round2(avgPrice), AvgQty: int(avgQty)}
}

func means(samples []Sample) (price, qty float64) {
	for _, s := range samples {
		price += s.PricePerKg
		qty += s.QuantitySold
	}
	n := float64(len(samples))
	return price / n, qty / n
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseCSV reads {product_name,date,price_per_kg,quantity_sold} rows. Column
// order follows the header. Rows with malformed dates are kept without a
// date; rows with malformed numbers are dropped with a warning.
func parseCSV(r io.Reader, log *zap.Logger) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var samples []Sample
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			log.Warn("Skipping malformed CSV row", zap.Int("line", line), zap.Error(err))
			continue
		}

		name := field(record, col, "product_name")
		if name == "" {
			continue
		}

		price, err := strconv.ParseFloat(field(record, col, "price_per_kg"), 64)
		if err != nil {
			log.Warn("Skipping row with bad price", zap.Int("line", line))
			continue
		}
		qty, err := strconv.ParseFloat(field(record, col, "quantity_sold"), 64)
		if err != nil {
			log.Warn("Skipping row with bad quantity", zap.Int("line", line))
			continue
		}

		s := Sample{ProductName: name, PricePerKg: price, QuantitySold: qty}
		s.Date, s.HasDate = parseDate(field(record, col, "date"))
		samples = append(samples, s)
	}

	return samples, nil
}

func field(record []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
