// Package ingest turns CSV and XLSX fact files into fact records. It accepts
// the unified fact layout produced upstream; it does not clean or join.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/shopspring/decimal"
)

var requiredColumns = []string{"product_id", "date", "quantity", "unit_cost"}

// Result is the outcome of parsing one file. Rejected rows could not be
// parsed at all; contract checks happen later at append time.
type Result struct {
	Facts    []domain.FactRecord
	Rejected []domain.RowRef
}

// ReadCSV parses a fact CSV with a header row. Column names are matched
// case-insensitively, spaces and dashes folded to underscores.
func ReadCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty fact file")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		rows = append(rows, record)
	}

	return parseRows(header, rows)
}

func parseRows(header []string, rows [][]string) (*Result, error) {
	colMap := make(map[string]int, len(header))
	for i, col := range header {
		colMap[normalizeColumn(col)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colMap[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	res := &Result{}
	for i, record := range rows {
		if blank(record) {
			continue
		}
		// Line numbers count the header as line 1.
		fact, err := parseRow(record, colMap)
		if err != nil {
			res.Rejected = append(res.Rejected, domain.RowRef{
				ProductID: fact.ProductID,
				Date:      value(record, colMap, "date"),
				Reason:    fmt.Sprintf("line %d: %v", i+2, err),
			})
			continue
		}
		res.Facts = append(res.Facts, fact)
	}
	return res, nil
}

func parseRow(record []string, colMap map[string]int) (domain.FactRecord, error) {
	var fact domain.FactRecord
	get := func(col string) string { return value(record, colMap, col) }

	id, err := strconv.ParseInt(get("product_id"), 10, 64)
	if err != nil {
		return fact, fmt.Errorf("invalid product_id %q", get("product_id"))
	}
	fact.ProductID = id

	date, err := domain.ParseDate(firstN(get("date"), len(domain.DateLayout)))
	if err != nil {
		return fact, fmt.Errorf("invalid date %q", get("date"))
	}
	fact.Date = date

	qty, err := parseQuantity(get("quantity"))
	if err != nil {
		return fact, err
	}
	fact.Quantity = qty

	cost, err := decimal.NewFromString(get("unit_cost"))
	if err != nil {
		return fact, fmt.Errorf("invalid unit_cost %q", get("unit_cost"))
	}
	fact.UnitCost = cost

	fact.Category = get("category")
	fact.PromotionActive = parseBool(get("promotion_active"))

	if fact.GDP, err = parseSignal(get("gdp")); err != nil {
		return fact, fmt.Errorf("invalid gdp: %w", err)
	}
	if fact.InflationRate, err = parseSignal(get("inflation_rate")); err != nil {
		return fact, fmt.Errorf("invalid inflation_rate: %w", err)
	}
	if fact.SeasonalFactor, err = parseSignal(get("seasonal_factor")); err != nil {
		return fact, fmt.Errorf("invalid seasonal_factor: %w", err)
	}

	return fact, nil
}

// parseQuantity accepts integral floats such as "10.0" from spreadsheet exports.
func parseQuantity(s string) (int64, error) {
	if q, err := strconv.ParseInt(s, 10, 64); err == nil {
		return q, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("quantity %q out of range", s)
	}
	return int64(f), nil
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "t", "yes", "y":
		return true
	}
	return false
}

// parseSignal maps an empty or null-like cell to nil, meaning no adjustment.
func parseSignal(s string) (*float64, error) {
	switch strings.ToLower(s) {
	case "", "na", "n/a", "nan", "null", "none":
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, nil
	}
	return &f, nil
}

func normalizeColumn(col string) string {
	col = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(col)
}

func value(record []string, colMap map[string]int, col string) string {
	if idx, ok := colMap[col]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func firstN(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
