package app

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/config"
	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		App: config.AppConfig{UploadDir: t.TempDir()},
		Reorder: config.ReorderConfig{
			LeadTimeDays:   7,
			ServiceZ:       1.645,
			MeanWindow:     7,
			VarianceWindow: 6,
		},
		Events:   config.EventsConfig{Transport: TransportMemory},
		Backfill: config.BackfillConfig{Workers: 2, ReportDir: t.TempDir()},
	}
}

func TestNew_MemoryBackendEndToEnd(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Drive)

	day0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, q := range []int64{10, 10, 10, 10, 10, 10, 10} {
		require.NoError(t, a.Facts.Append(ctx, domain.FactRecord{
			ProductID: 101,
			Date:      day0.AddDate(0, 0, i),
			Quantity:  q,
			UnitCost:  decimal.NewFromInt(5),
		}))
	}

	rp, err := a.ReorderPoints.Get(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, 350.0, rp.ReorderPoint)

	report, err := a.Backfill.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Events.Transport = "kafka"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Reorder.AggregationPolicy = "median"
	_, err = New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestBackfillConfig(t *testing.T) {
	bc := BackfillConfig(config.BackfillConfig{Workers: 8, RetryAttempts: 0, RetryBackoffMS: 50, ReportDir: "out"})
	assert.Equal(t, 8, bc.WorkerCount)
	assert.Equal(t, 0, bc.RetryAttempts)
	assert.Equal(t, 50*time.Millisecond, bc.RetryBackoff)
	assert.Equal(t, "out", bc.ReportDir)

	bc = BackfillConfig(config.BackfillConfig{})
	assert.Equal(t, 4, bc.WorkerCount)
}
