package reorder_point

import (
	"fmt"
	"sort"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/montanaflynn/stats"
)

// RollingEngine derives rolling mean and rolling variance of demand value from
// a product's ordered fact history.
type RollingEngine struct {
	config Config
}

// NewRollingEngine creates a new rolling statistics engine
func NewRollingEngine(cfg Config) *RollingEngine {
	if cfg.MeanWindow < 1 {
		cfg.MeanWindow = DefaultMeanWindow
	}
	if cfg.VarianceWindow < 1 {
		cfg.VarianceWindow = DefaultVarianceWindow
	}
	if cfg.Policy == "" {
		cfg.Policy = domain.PolicyLatestRow
	}
	return &RollingEngine{config: cfg}
}

// Compute returns the rolling statistics of productID as of asOf. A zero asOf
// uses the full history. History need not be sorted; duplicate dates and rows
// violating the fact contract yield *domain.InvalidInputError.
func (e *RollingEngine) Compute(productID int64, history []domain.FactRecord, asOf time.Time) (RollingStats, []domain.Anomaly, error) {
	rows, err := e.prepare(productID, history, asOf)
	if err != nil {
		return RollingStats{}, nil, err
	}

	result := RollingStats{
		ProductID: productID,
		Rows:      len(rows),
		Policy:    e.config.Policy,
	}
	if len(rows) > 0 {
		result.AsOf = rows[len(rows)-1].Date
	}

	// Zero or one row carries no usable demand signal.
	if len(rows) <= 1 {
		anomaly := domain.Anomaly{
			ProductID: productID,
			Kind:      domain.AnomalyInsufficientHistory,
			Value:     float64(len(rows)),
			Detail:    fmt.Sprintf("%d fact rows, treating demand as unknown", len(rows)),
		}
		if len(rows) == 1 {
			result.Series = e.series(rows)
		}
		return result, []domain.Anomaly{anomaly}, nil
	}

	result.Series = e.series(rows)

	var anomalies []domain.Anomaly
	avgSales, avgVariance, err := e.aggregate(result.Series)
	if err != nil {
		return RollingStats{}, nil, fmt.Errorf("aggregate rolling series for product %d: %w", productID, err)
	}

	if s, ok := finiteOrZero(avgSales); !ok {
		anomalies = append(anomalies, nonFinite(productID, "avg_rolling_sales", avgSales))
		avgSales = s
	}
	if v, ok := finiteOrZero(avgVariance); !ok {
		anomalies = append(anomalies, nonFinite(productID, "avg_rolling_variance", avgVariance))
		avgVariance = v
	}

	result.AvgRollingSales = avgSales
	result.AvgRollingVariance = avgVariance
	return result, anomalies, nil
}

// prepare filters to asOf, sorts by date and validates every row.
func (e *RollingEngine) prepare(productID int64, history []domain.FactRecord, asOf time.Time) ([]domain.FactRecord, error) {
	rows := make([]domain.FactRecord, 0, len(history))
	var cutoff time.Time
	if !asOf.IsZero() {
		cutoff = domain.TruncateDate(asOf)
	}

	for _, f := range history {
		if !cutoff.IsZero() && domain.TruncateDate(f.Date).After(cutoff) {
			continue
		}
		rows = append(rows, f)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	var bad []domain.RowRef
	for i, f := range rows {
		if f.ProductID != productID {
			bad = append(bad, domain.RowRef{ProductID: f.ProductID, Date: f.DateKey(), Reason: fmt.Sprintf("row belongs to product %d", f.ProductID)})
			continue
		}
		bad = append(bad, domain.RowViolations(f)...)
		if i > 0 && domain.TruncateDate(rows[i-1].Date).Equal(domain.TruncateDate(f.Date)) {
			bad = append(bad, domain.RowRef{ProductID: productID, Date: f.DateKey(), Reason: "duplicate (product_id, date)"})
		}
	}
	if len(bad) > 0 {
		return nil, &domain.InvalidInputError{ProductID: productID, Rows: bad}
	}

	return rows, nil
}

// series walks the ordered rows once, advancing the mean window and the
// variance window row by row.
func (e *RollingEngine) series(rows []domain.FactRecord) []SeriesPoint {
	meanWin := newWindow(e.config.MeanWindow)
	varWin := newWindow(e.config.VarianceWindow)

	points := make([]SeriesPoint, len(rows))
	for i, f := range rows {
		demand := f.DemandValue()
		meanWin.push(demand)
		avg := meanWin.mean()

		dev := demand - avg
		sq := squaredDeviation(demand, avg)
		varWin.push(sq)

		points[i] = SeriesPoint{
			Date:             f.Date,
			DemandValue:      demand,
			RollingAvgSales:  avg,
			Deviation:        dev,
			SquaredDeviation: sq,
			RollingVariance:  varWin.mean(),
		}
	}
	return points
}

func (e *RollingEngine) aggregate(points []SeriesPoint) (float64, float64, error) {
	if e.config.Policy == domain.PolicyFullHistoryMean {
		sales := make(stats.Float64Data, len(points))
		variances := make(stats.Float64Data, len(points))
		for i, p := range points {
			sales[i] = p.RollingAvgSales
			variances[i] = p.RollingVariance
		}
		avgSales, err := stats.Mean(sales)
		if err != nil {
			return 0, 0, err
		}
		avgVariance, err := stats.Mean(variances)
		if err != nil {
			return 0, 0, err
		}
		return avgSales, avgVariance, nil
	}

	last := points[len(points)-1]
	return last.RollingAvgSales, last.RollingVariance, nil
}

// squaredDeviation is the single deviation definition feeding the variance
// window: the row's demand value minus the mean window's value at that row,
// squared.
func squaredDeviation(demand, rollingMean float64) float64 {
	d := demand - rollingMean
	return d * d
}

func nonFinite(productID int64, field string, v float64) domain.Anomaly {
	return domain.Anomaly{
		ProductID: productID,
		Kind:      domain.AnomalyNonFiniteValue,
		Value:     0,
		Detail:    fmt.Sprintf("%s was %v, coerced to 0", field, v),
	}
}
