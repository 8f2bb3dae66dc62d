package domain

import (
	"fmt"
	"strings"
)

// AnomalyKind classifies a non-fatal computation anomaly.
type AnomalyKind string

const (
	AnomalyInsufficientHistory    AnomalyKind = "insufficient_history"
	AnomalyNegativeVariance       AnomalyKind = "negative_variance"
	AnomalyNegativeLeadTimeDemand AnomalyKind = "negative_lead_time_demand"
	AnomalyNonFiniteValue         AnomalyKind = "non_finite_value"
)

// Anomaly is surfaced for operator review; it never aborts a recompute.
type Anomaly struct {
	ProductID int64       `json:"product_id"`
	Kind      AnomalyKind `json:"kind"`
	Value     float64     `json:"value"`
	Detail    string      `json:"detail"`
}

func (a Anomaly) String() string {
	return fmt.Sprintf("product=%d %s (%g): %s", a.ProductID, a.Kind, a.Value, a.Detail)
}

// AggregationPolicy selects how per-row rolling values collapse into the
// per-product scalar used by the calculator.
type AggregationPolicy string

const (
	PolicyLatestRow       AggregationPolicy = "latest-row"
	PolicyFullHistoryMean AggregationPolicy = "full-history-mean"
)

// ParseAggregationPolicy returns the policy for a label (case-insensitive).
func ParseAggregationPolicy(label string) (AggregationPolicy, error) {
	switch AggregationPolicy(strings.ToLower(strings.TrimSpace(label))) {
	case "", PolicyLatestRow:
		return PolicyLatestRow, nil
	case PolicyFullHistoryMean:
		return PolicyFullHistoryMean, nil
	default:
		return "", fmt.Errorf("unknown aggregation policy %q", label)
	}
}
