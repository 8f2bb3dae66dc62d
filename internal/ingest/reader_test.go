package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sample = `Product_ID,Date,Quantity,Unit_Cost,Category,Promotion_Active,GDP,Inflation_Rate,Seasonal_Factor
101,2024-01-01,10,5.00,grocery,0,21000.5,3.1,1.02
101,2024-01-02,10.0,5,grocery,true,,NA,
,2024-01-03,10,5,grocery,0,,,
101,2024-01-04,ten,5,grocery,0,,,
101,2024-01-05,10,5,grocery,0,abc,,

202,2024-01-01T00:00:00Z,7,2.5,beverage,1,,,
`

func TestReadCSV(t *testing.T) {
	res, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)

	require.Len(t, res.Facts, 3)
	first := res.Facts[0]
	assert.Equal(t, int64(101), first.ProductID)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, int64(10), first.Quantity)
	assert.Equal(t, "5", first.UnitCost.String())
	assert.Equal(t, 50.0, first.DemandValue())
	assert.False(t, first.PromotionActive)
	require.NotNil(t, first.GDP)
	assert.Equal(t, 21000.5, *first.GDP)

	second := res.Facts[1]
	assert.Equal(t, int64(10), second.Quantity)
	assert.True(t, second.PromotionActive)
	assert.Nil(t, second.GDP)
	assert.Nil(t, second.InflationRate)
	assert.Nil(t, second.SeasonalFactor)

	assert.Equal(t, int64(202), res.Facts[2].ProductID)
	assert.Equal(t, "2024-01-01", res.Facts[2].DateKey())

	require.Len(t, res.Rejected, 3)
	assert.Contains(t, res.Rejected[0].Reason, "line 4: invalid product_id")
	assert.Contains(t, res.Rejected[1].Reason, `invalid quantity "ten"`)
	assert.Equal(t, int64(101), res.Rejected[1].ProductID)
	assert.Contains(t, res.Rejected[2].Reason, "invalid gdp")
}

func TestReadCSV_MissingColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("product_id,date,quantity\n1,2024-01-01,3\n"))
	assert.EqualError(t, err, "missing required column: unit_cost")

	_, err = ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseQuantity(t *testing.T) {
	q, err := parseQuantity("0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), q)

	q, err = parseQuantity("12.0")
	require.NoError(t, err)
	assert.Equal(t, int64(12), q)

	_, err = parseQuantity("1.5")
	assert.Error(t, err)

	// Negative quantities parse; the contract check rejects them at append.
	q, err = parseQuantity("-3")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), q)

	for _, s := range []string{"1e30", "-1e30", "9223372036854775808.0"} {
		_, err = parseQuantity(s)
		assert.ErrorContains(t, err, "out of range", s)
	}

	res, err := ReadCSV(strings.NewReader("product_id,date,quantity,unit_cost\n1,2024-01-01,1e30,5\n"))
	require.NoError(t, err)
	assert.Empty(t, res.Facts)
	require.Len(t, res.Rejected, 1)
	assert.Contains(t, res.Rejected[0].Reason, "out of range")
}

func TestReadXLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facts.xlsx")

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"product_id", "date", "quantity", "unit_cost", "category"},
		{"303", "2024-02-01", "4", "12.5", "hardware"},
		{"303", "2024-02-02", "6", "12.5", "hardware"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	res, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, res.Facts, 2)
	assert.Equal(t, 75.0, res.Facts[1].DemandValue())
	assert.Equal(t, "hardware", res.Facts[0].Category)

	csvPath := filepath.Join(dir, "facts.csv")
	require.NoError(t, ConvertXLSXToCSV(path, csvPath))
	body, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "product_id,date,quantity,unit_cost,category\n"))

	viaCSV, err := ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, res.Facts, viaCSV.Facts)

	_, err = ReadFile(filepath.Join(dir, "facts.json"))
	assert.Error(t, err)
}
