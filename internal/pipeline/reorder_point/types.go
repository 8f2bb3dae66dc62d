package reorder_point

import (
	"fmt"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/config"
	"github.com/andresuchdata/reorderpoint/internal/domain"
)

const (
	DefaultMeanWindow     = 7
	DefaultVarianceWindow = 6
	DefaultLeadTimeDays   = 7
	DefaultServiceZ       = 1.645
)

// Config holds configuration for the reorder point pipeline
type Config struct {
	MeanWindow     int                      // Trailing rows in the rolling mean (7)
	VarianceWindow int                      // Trailing rows in the rolling variance (6)
	Policy         domain.AggregationPolicy // How per-row values collapse to one scalar
	LeadTimeDays   float64                  // Days between reorder and replenishment
	ServiceZ       float64                  // Standard-normal quantile for the service level
}

// DefaultConfig returns the standard windows, 7-day lead time and 95% service level.
func DefaultConfig() Config {
	return Config{
		MeanWindow:     DefaultMeanWindow,
		VarianceWindow: DefaultVarianceWindow,
		Policy:         domain.PolicyLatestRow,
		LeadTimeDays:   DefaultLeadTimeDays,
		ServiceZ:       DefaultServiceZ,
	}
}

// ConfigFrom maps the environment settings onto a validated Config.
func ConfigFrom(c config.ReorderConfig) (Config, error) {
	policy, err := domain.ParseAggregationPolicy(c.AggregationPolicy)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		MeanWindow:     c.MeanWindow,
		VarianceWindow: c.VarianceWindow,
		Policy:         policy,
		LeadTimeDays:   c.LeadTimeDays,
		ServiceZ:       c.ServiceZ,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce a meaningful figure.
func (c Config) Validate() error {
	if c.MeanWindow < 1 {
		return fmt.Errorf("mean window must be >= 1, got %d", c.MeanWindow)
	}
	if c.VarianceWindow < 1 {
		return fmt.Errorf("variance window must be >= 1, got %d", c.VarianceWindow)
	}
	if c.LeadTimeDays < 0 {
		return fmt.Errorf("lead time days must be >= 0, got %g", c.LeadTimeDays)
	}
	if c.ServiceZ < 0 {
		return fmt.Errorf("service z must be >= 0, got %g", c.ServiceZ)
	}
	if _, err := domain.ParseAggregationPolicy(string(c.Policy)); err != nil {
		return err
	}
	return nil
}

// SeriesPoint holds the per-row rolling values of one fact row
type SeriesPoint struct {
	Date             time.Time `json:"date"`
	DemandValue      float64   `json:"demand_value"`
	RollingAvgSales  float64   `json:"rolling_avg_sales"`
	Deviation        float64   `json:"deviation"`
	SquaredDeviation float64   `json:"squared_deviation"`
	RollingVariance  float64   `json:"rolling_variance"`
}

// RollingStats is the engine output for one product as of a reference date
type RollingStats struct {
	ProductID          int64                    `json:"product_id"`
	AvgRollingSales    float64                  `json:"avg_rolling_sales"`
	AvgRollingVariance float64                  `json:"avg_rolling_variance"`
	Rows               int                      `json:"rows"`
	AsOf               time.Time                `json:"as_of"`
	Policy             domain.AggregationPolicy `json:"policy"`
	Series             []SeriesPoint            `json:"series,omitempty"`
}

// Breakdown is the full dry-run output for one product
type Breakdown struct {
	Stats     RollingStats              `json:"stats"`
	Result    domain.ReorderPointResult `json:"result"`
	Anomalies []domain.Anomaly          `json:"anomalies"`
}
