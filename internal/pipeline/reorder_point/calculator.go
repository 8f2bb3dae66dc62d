package reorder_point

import (
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/domain"
)

// Calculator converts rolling statistics into lead time demand, safety stock
// and reorder point.
type Calculator struct {
	leadTimeDays float64
	serviceZ     float64
}

// NewCalculator creates a new reorder point calculator
func NewCalculator(cfg Config) *Calculator {
	leadTime := cfg.LeadTimeDays
	if leadTime < 0 || math.IsNaN(leadTime) {
		leadTime = DefaultLeadTimeDays
	}
	z := cfg.ServiceZ
	if z < 0 || math.IsNaN(z) {
		z = DefaultServiceZ
	}
	return &Calculator{leadTimeDays: leadTime, serviceZ: z}
}

// Calculate computes the reorder point for one product. The result is always
// finite and non-negative; every clamp is reported as an anomaly.
func (c *Calculator) Calculate(s RollingStats) (domain.ReorderPointResult, []domain.Anomaly) {
	var anomalies []domain.Anomaly

	sales, ok := finiteOrZero(s.AvgRollingSales)
	if !ok {
		anomalies = append(anomalies, nonFinite(s.ProductID, "avg_rolling_sales", s.AvgRollingSales))
	}
	variance, ok := finiteOrZero(s.AvgRollingVariance)
	if !ok {
		anomalies = append(anomalies, nonFinite(s.ProductID, "avg_rolling_variance", s.AvgRollingVariance))
	}

	// 1. Lead time demand = avg rolling sales × lead time
	leadTimeDemand := sales * c.leadTimeDays
	if leadTimeDemand < 0 {
		anomalies = append(anomalies, domain.Anomaly{
			ProductID: s.ProductID,
			Kind:      domain.AnomalyNegativeLeadTimeDemand,
			Value:     leadTimeDemand,
			Detail:    fmt.Sprintf("lead time demand %g clamped to 0", leadTimeDemand),
		})
		leadTimeDemand = 0
	}

	// 2. Safety stock = Z × sqrt(variance × lead time), never on a negative radicand
	if variance < 0 {
		anomalies = append(anomalies, domain.Anomaly{
			ProductID: s.ProductID,
			Kind:      domain.AnomalyNegativeVariance,
			Value:     variance,
			Detail:    fmt.Sprintf("rolling variance %g treated as 0", variance),
		})
		variance = 0
	}
	safetyStock := c.serviceZ * math.Sqrt(variance*c.leadTimeDays)

	// 3. Reorder point = lead time demand + safety stock
	reorderPoint := leadTimeDemand + safetyStock
	if v, ok := finiteOrZero(reorderPoint); !ok {
		anomalies = append(anomalies, nonFinite(s.ProductID, "reorder_point", reorderPoint))
		reorderPoint, leadTimeDemand, safetyStock = v, 0, 0
	}

	return domain.ReorderPointResult{
		LeadTimeDemand: leadTimeDemand,
		SafetyStock:    safetyStock,
		ReorderPoint:   reorderPoint,
	}, anomalies
}

// Evaluate runs the engine and calculator over history without persisting.
func Evaluate(engine *RollingEngine, calc *Calculator, productID int64, history []domain.FactRecord) (Breakdown, error) {
	rolling, anomalies, err := engine.Compute(productID, history, time.Time{})
	if err != nil {
		return Breakdown{}, err
	}
	result, calcAnomalies := calc.Calculate(rolling)
	return Breakdown{
		Stats:     rolling,
		Result:    result,
		Anomalies: append(anomalies, calcAnomalies...),
	}, nil
}
