// internal/domain/models.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date layout used on every external surface.
const DateLayout = "2006-01-02"

// FactRecord is the unified, cleaned per-product per-date record.
type FactRecord struct {
	ProductID       int64           `json:"product_id" db:"product_id"`
	Date            time.Time       `json:"date" db:"fact_date"`
	Quantity        int64           `json:"quantity" db:"quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost" db:"unit_cost"`
	Category        string          `json:"category" db:"category"`
	PromotionActive bool            `json:"promotion_active" db:"promotion_active"`

	// External signals. Nil means no matching external record for the date.
	GDP            *float64 `json:"gdp" db:"gdp"`
	InflationRate  *float64 `json:"inflation_rate" db:"inflation_rate"`
	SeasonalFactor *float64 `json:"seasonal_factor" db:"seasonal_factor"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DemandValue is quantity multiplied by unit cost.
func (f FactRecord) DemandValue() float64 {
	return decimal.NewFromInt(f.Quantity).Mul(f.UnitCost).InexactFloat64()
}

// DateKey returns the fact date formatted as YYYY-MM-DD.
func (f FactRecord) DateKey() string {
	return f.Date.Format(DateLayout)
}

// TruncateDate normalises t to a UTC calendar day.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return TruncateDate(t), nil
}

// ReorderPoint is the current reorder point of one product together with the
// figures it was derived from. Only the latest value is kept per product.
type ReorderPoint struct {
	ProductID          int64     `json:"product_id" db:"product_id"`
	ReorderPoint       float64   `json:"reorder_point" db:"reorder_point"`
	LeadTimeDemand     float64   `json:"lead_time_demand" db:"lead_time_demand"`
	SafetyStock        float64   `json:"safety_stock" db:"safety_stock"`
	AvgRollingSales    float64   `json:"avg_rolling_sales" db:"avg_rolling_sales"`
	AvgRollingVariance float64   `json:"avg_rolling_variance" db:"avg_rolling_variance"`
	HistoryRows        int       `json:"history_rows" db:"history_rows"`
	AsOf               time.Time `json:"as_of" db:"as_of"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// ReorderPointResult is the output of the reorder point calculator.
type ReorderPointResult struct {
	LeadTimeDemand float64 `json:"lead_time_demand"`
	SafetyStock    float64 `json:"safety_stock"`
	ReorderPoint   float64 `json:"reorder_point"`
}
