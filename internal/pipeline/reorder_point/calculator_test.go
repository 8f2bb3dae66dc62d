package reorder_point

import (
	"math"
	"testing"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/config"
	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculator_Calculate(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	tests := []struct {
		name           string
		sales          float64
		variance       float64
		leadTimeDemand float64
		safetyStock    float64
		reorderPoint   float64
		anomaly        domain.AnomalyKind
	}{
		{
			name:           "constant_demand",
			sales:          50,
			variance:       0,
			leadTimeDemand: 350,
			safetyStock:    0,
			reorderPoint:   350,
		},
		{
			name:           "variable_demand",
			sales:          450.0 / 7,
			variance:       1224.4897959183672,
			leadTimeDemand: 450,
			safetyStock:    152.2974064126,
			reorderPoint:   602.2974064126,
		},
		{
			name:           "negative_variance_guard",
			sales:          10,
			variance:       -25,
			leadTimeDemand: 70,
			safetyStock:    0,
			reorderPoint:   70,
			anomaly:        domain.AnomalyNegativeVariance,
		},
		{
			name:           "negative_lead_time_demand_clamped",
			sales:          -3,
			variance:       0,
			leadTimeDemand: 0,
			safetyStock:    0,
			reorderPoint:   0,
			anomaly:        domain.AnomalyNegativeLeadTimeDemand,
		},
		{
			name:           "non_finite_variance",
			sales:          10,
			variance:       math.NaN(),
			leadTimeDemand: 70,
			safetyStock:    0,
			reorderPoint:   70,
			anomaly:        domain.AnomalyNonFiniteValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, anomalies := calc.Calculate(RollingStats{
				ProductID:          1,
				AvgRollingSales:    tt.sales,
				AvgRollingVariance: tt.variance,
			})

			assert.InDelta(t, tt.leadTimeDemand, result.LeadTimeDemand, tolerance)
			assert.InDelta(t, tt.safetyStock, result.SafetyStock, tolerance)
			assert.InDelta(t, tt.reorderPoint, result.ReorderPoint, tolerance)
			assert.GreaterOrEqual(t, result.ReorderPoint, 0.0)
			assert.False(t, math.IsNaN(result.ReorderPoint))

			if tt.anomaly == "" {
				assert.Empty(t, anomalies)
				return
			}
			require.Len(t, anomalies, 1)
			assert.Equal(t, tt.anomaly, anomalies[0].Kind)
			assert.Equal(t, int64(1), anomalies[0].ProductID)
		})
	}
}

func TestCalculator_InfiniteVarianceStaysFinite(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	result, anomalies := calc.Calculate(RollingStats{AvgRollingSales: math.MaxFloat64, AvgRollingVariance: math.MaxFloat64})

	assert.False(t, math.IsInf(result.ReorderPoint, 0))
	assert.GreaterOrEqual(t, result.ReorderPoint, 0.0)
	assert.NotEmpty(t, anomalies)
}

func TestCalculator_CustomParameters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LeadTimeDays = 14
	cfg.ServiceZ = 2.33
	calc := NewCalculator(cfg)

	result, _ := calc.Calculate(RollingStats{AvgRollingSales: 10, AvgRollingVariance: 4})

	assert.InDelta(t, 140, result.LeadTimeDemand, tolerance)
	assert.InDelta(t, 2.33*math.Sqrt(56), result.SafetyStock, tolerance)
}

func TestEvaluate_EndToEnd(t *testing.T) {
	engine := NewRollingEngine(DefaultConfig())
	calc := NewCalculator(DefaultConfig())

	t.Run("product_101", func(t *testing.T) {
		b, err := Evaluate(engine, calc, 101, dailyFacts(101, 10, 10, 10, 10, 10, 10, 10))
		require.NoError(t, err)
		assert.Equal(t, 50.0, b.Stats.AvgRollingSales)
		assert.Equal(t, 0.0, b.Stats.AvgRollingVariance)
		assert.Equal(t, 350.0, b.Result.LeadTimeDemand)
		assert.Equal(t, 0.0, b.Result.SafetyStock)
		assert.Equal(t, 350.0, b.Result.ReorderPoint)
	})

	t.Run("product_202", func(t *testing.T) {
		b, err := Evaluate(engine, calc, 202, dailyFacts(202, 10, 10, 10, 10, 10, 10, 30))
		require.NoError(t, err)
		assert.InDelta(t, 64.2857142857, b.Stats.AvgRollingSales, tolerance)
		assert.Greater(t, b.Stats.AvgRollingVariance, 0.0)
		assert.Greater(t, b.Result.SafetyStock, 0.0)
		assert.InDelta(t, 450.0, b.Result.LeadTimeDemand, tolerance)
		assert.InDelta(t, 152.2974064126, b.Result.SafetyStock, tolerance)
		assert.InDelta(t, 602.2974064126, b.Result.ReorderPoint, tolerance)
	})

	t.Run("single_record", func(t *testing.T) {
		b, err := Evaluate(engine, calc, 303, dailyFacts(303, 10))
		require.NoError(t, err)
		assert.Equal(t, 0.0, b.Result.ReorderPoint)
		require.Len(t, b.Anomalies, 1)
		assert.Equal(t, domain.AnomalyInsufficientHistory, b.Anomalies[0].Kind)
	})

	t.Run("invalid_history", func(t *testing.T) {
		facts := dailyFacts(404, 10, 10)
		facts[1].Date = facts[0].Date.Add(3 * time.Hour)
		_, err := Evaluate(engine, calc, 404, facts)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestConfigFrom(t *testing.T) {
	cfg, err := ConfigFrom(config.ReorderConfig{
		LeadTimeDays:      7,
		ServiceZ:          1.645,
		MeanWindow:        7,
		VarianceWindow:    6,
		AggregationPolicy: "Full-History-Mean",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyFullHistoryMean, cfg.Policy)

	_, err = ConfigFrom(config.ReorderConfig{MeanWindow: 7, VarianceWindow: 6, AggregationPolicy: "median"})
	assert.Error(t, err)

	_, err = ConfigFrom(config.ReorderConfig{MeanWindow: 0, VarianceWindow: 6})
	assert.Error(t, err)
}
