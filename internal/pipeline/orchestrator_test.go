package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/domain"
	reorderpoint "github.com/andresuchdata/reorderpoint/internal/pipeline/reorder_point"
	"github.com/andresuchdata/reorderpoint/internal/repository/memory"
	"github.com/andresuchdata/reorderpoint/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func seededService(t *testing.T, products map[int64][]int64) (*service.ReorderPointService, *memory.FactRepository, *memory.ReorderPointRepository) {
	t.Helper()
	facts := memory.NewFactRepository()
	points := memory.NewReorderPointRepository()
	for id, quantities := range products {
		for i, q := range quantities {
			require.NoError(t, facts.Append(context.Background(), domain.FactRecord{
				ProductID: id,
				Date:      day0.AddDate(0, 0, i),
				Quantity:  q,
				UnitCost:  decimal.NewFromInt(5),
			}))
		}
	}
	svc := service.NewReorderPointService(facts, points, memory.NewKeyedLocker(), nil, reorderpoint.DefaultConfig())
	return svc, facts, points
}

func testConfig(t *testing.T) BackfillConfig {
	cfg := DefaultBackfillConfig()
	cfg.RetryBackoff = time.Millisecond
	cfg.ReportDir = t.TempDir()
	return cfg
}

func TestOrchestrator_RunIsolatesFailures(t *testing.T) {
	svc, facts, points := seededService(t, map[int64][]int64{
		101: {10, 10, 10, 10, 10, 10, 10},
		202: {10, 10, 10, 10, 10, 10, 30},
		303: {10},
	})
	facts.Inject(domain.FactRecord{ProductID: 404, Date: day0, Quantity: -1, UnitCost: decimal.NewFromInt(5)})

	uploader := &recordingUploader{}
	store := NewMemoryRunStore()
	orch := NewOrchestrator(svc, store, testConfig(t), uploader)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Products)
	assert.Equal(t, 3, report.Succeeded)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, int64(404), report.Failures[0].ProductID)
	assert.True(t, report.Failures[0].Invalid)
	assert.Equal(t, 1, report.Failures[0].Attempts)

	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, domain.AnomalyInsufficientHistory, report.Anomalies[0].Kind)

	rp, err := points.Get(context.Background(), 202)
	require.NoError(t, err)
	assert.InDelta(t, 602.2974064126, rp.ReorderPoint, 1e-6)
	assert.Equal(t, 3, points.Count())

	run, err := store.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	require.NotNil(t, run.ErrorMessage)
	assert.Equal(t, "1 of 4 products failed", *run.ErrorMessage)

	require.NotEmpty(t, report.ReportPath)
	f, err := os.Open(report.ReportPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, reportHeader, records[0])
	assert.Equal(t, "404", records[1][1])
	assert.Equal(t, "failure", records[1][2])
	assert.Equal(t, "insufficient_history", records[2][2])

	assert.Equal(t, []string{report.ReportKey}, uploader.keys)
	assert.Contains(t, report.ReportKey, "backfill/")
}

func TestOrchestrator_RetriesTransientFailures(t *testing.T) {
	svc, _, _ := seededService(t, map[int64][]int64{1: {10, 10}})
	flaky := &flakyRecomputer{Recomputer: svc, failures: map[int64]int{1: 2}}

	cfg := testConfig(t)
	cfg.RetryAttempts = 2
	report, err := NewOrchestrator(flaky, nil, cfg, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Empty(t, report.Failures)
	assert.Equal(t, 3, flaky.calls[1])

	cfg.RetryAttempts = 0
	flaky = &flakyRecomputer{Recomputer: svc, failures: map[int64]int{1: 1}}
	report, err = NewOrchestrator(flaky, nil, cfg, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.False(t, report.Failures[0].Invalid)
}

func TestOrchestrator_Partitions(t *testing.T) {
	products := map[int64][]int64{}
	for id := int64(1); id <= 6; id++ {
		products[id] = []int64{10, 10}
	}
	svc, _, points := seededService(t, products)

	cfg := testConfig(t)
	cfg.Partitions = 2
	cfg.Partition = 1
	report, err := NewOrchestrator(svc, nil, cfg, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Products)
	for _, id := range []int64{1, 3, 5} {
		_, err := points.Get(context.Background(), id)
		assert.NoError(t, err)
	}
	for _, id := range []int64{2, 4, 6} {
		_, err := points.Get(context.Background(), id)
		assert.ErrorIs(t, err, domain.ErrReorderPointNotFound)
	}
}

func TestOrchestrator_ResumeSkipsCompleted(t *testing.T) {
	svc, _, _ := seededService(t, map[int64][]int64{1: {10, 10}, 2: {10, 10}, 3: {10, 10}})
	store := NewMemoryRunStore()
	cfg := testConfig(t)
	cfg.RetryAttempts = 0

	failing := &flakyRecomputer{Recomputer: svc, failures: map[int64]int{2: 100}}
	first, err := NewOrchestrator(failing, store, cfg, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Failures, 1)

	healthy := &flakyRecomputer{Recomputer: svc}
	second, err := NewOrchestrator(healthy, store, cfg, nil).Resume(context.Background(), first.RunID)
	require.NoError(t, err)

	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 1, second.Succeeded)
	assert.Equal(t, map[int64]int{2: 1}, healthy.calls)

	for _, job := range store.Jobs(first.RunID) {
		assert.Equal(t, JobStatusCompleted, job.Status, "product %d", job.ProductID)
	}

	_, err = NewOrchestrator(healthy, store, cfg, nil).Resume(context.Background(), 999)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestOrchestrator_CleanRunWritesNoReport(t *testing.T) {
	svc, _, _ := seededService(t, map[int64][]int64{1: {10, 10}})
	uploader := &recordingUploader{}

	report, err := NewOrchestrator(svc, nil, testConfig(t), uploader).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.ReportPath)
	assert.Empty(t, uploader.keys)
}

func TestBackfillConfig_Owns(t *testing.T) {
	cfg := BackfillConfig{}
	assert.True(t, cfg.Owns(7))

	cfg = BackfillConfig{Partitions: 3, Partition: 1}
	assert.True(t, cfg.Owns(7))
	assert.False(t, cfg.Owns(8))
}

var errTransient = errors.New("connection reset")

type flakyRecomputer struct {
	Recomputer
	mu       sync.Mutex
	failures map[int64]int
	calls    map[int64]int
}

func (f *flakyRecomputer) Recompute(ctx context.Context, productID int64) (*service.RecomputeResult, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[int64]int{}
	}
	f.calls[productID]++
	fail := f.failures[productID] > 0
	if fail {
		f.failures[productID]--
	}
	f.mu.Unlock()

	if fail {
		return nil, errTransient
	}
	return f.Recomputer.Recompute(ctx, productID)
}

type recordingUploader struct {
	mu   sync.Mutex
	keys []string
}

func (u *recordingUploader) UploadFile(_ context.Context, key string, srcPath string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, err := os.Stat(srcPath); err != nil {
		return err
	}
	u.keys = append(u.keys, key)
	return nil
}
