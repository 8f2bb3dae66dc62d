package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator runs a recompute over every known product and tracks the run
// so it can be resumed.
type Orchestrator struct {
	rec      Recomputer
	store    RunStore
	cfg      BackfillConfig
	uploader ReportUploader
	now      func() time.Time
}

// NewOrchestrator creates a new Orchestrator. uploader may be nil.
func NewOrchestrator(rec Recomputer, store RunStore, cfg BackfillConfig, uploader ReportUploader) *Orchestrator {
	if store == nil {
		store = NewMemoryRunStore()
	}
	return &Orchestrator{
		rec:      rec,
		store:    store,
		cfg:      cfg,
		uploader: uploader,
		now:      time.Now,
	}
}

// Run starts a new run over the products in this orchestrator's partition.
func (o *Orchestrator) Run(ctx context.Context) (*domain.BatchReport, error) {
	ids, err := o.ownedProducts(ctx)
	if err != nil {
		return nil, err
	}

	run := &Run{Status: StatusPending, TotalJobs: len(ids), StartedAt: o.now()}
	if err := o.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create backfill run: %w", err)
	}

	return o.execute(ctx, run, ids, 0)
}

// Resume continues a run, skipping products it already completed. Products
// added since the run started are included.
func (o *Orchestrator) Resume(ctx context.Context, runID int64) (*domain.BatchReport, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load backfill run %d: %w", runID, err)
	}

	done, err := o.store.CompletedProducts(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed products: %w", err)
	}

	ids, err := o.ownedProducts(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !done[id] {
			pending = append(pending, id)
		}
	}

	run.TotalJobs = len(ids)
	run.CompletedAt = nil
	run.ErrorMessage = nil
	log.Info().Int64("run_id", runID).Int("skipped", len(ids)-len(pending)).Int("pending", len(pending)).Msg("backfill: resuming run")

	return o.execute(ctx, run, pending, len(ids)-len(pending))
}

func (o *Orchestrator) ownedProducts(ctx context.Context) ([]int64, error) {
	all, err := o.rec.ProductIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	ids := make([]int64, 0, len(all))
	for _, id := range all {
		if o.cfg.Owns(id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (o *Orchestrator) execute(ctx context.Context, run *Run, ids []int64, skipped int) (*domain.BatchReport, error) {
	report := &domain.BatchReport{
		RunID:     run.ID,
		StartedAt: run.StartedAt,
		Products:  len(ids) + skipped,
		Skipped:   skipped,
		Failures:  []domain.ProductFailure{},
		Anomalies: []domain.Anomaly{},
	}

	run.Status = StatusProcessing
	if err := o.store.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to update backfill run: %w", err)
	}

	log.Info().Int64("run_id", run.ID).Int("products", len(ids)).Int("workers", o.cfg.WorkerCount).Msg("backfill: started")

	var mu sync.Mutex
	collect := func(out outcome) {
		mu.Lock()
		defer mu.Unlock()
		if out.err != nil {
			report.Failures = append(report.Failures, domain.ProductFailure{
				ProductID: out.productID,
				Error:     out.err.Error(),
				Invalid:   errors.Is(out.err, domain.ErrInvalidInput),
				Attempts:  out.attempts,
			})
			return
		}
		report.Succeeded++
		if out.result != nil {
			report.Anomalies = append(report.Anomalies, out.result.Anomalies...)
		}
	}

	worker := NewWorker(o.rec, o.store, o.cfg)
	runErr := worker.processProducts(ctx, run, ids, collect)

	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].ProductID < report.Failures[j].ProductID })
	sort.SliceStable(report.Anomalies, func(i, j int) bool { return report.Anomalies[i].ProductID < report.Anomalies[j].ProductID })
	report.CompletedAt = o.now()

	// Use a fresh context so a cancelled run still records its final state.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := o.publishReport(finishCtx, report); err != nil {
		log.Error().Err(err).Int64("run_id", run.ID).Msg("backfill: report not published")
	}

	completedAt := report.CompletedAt
	run.CompletedAt = &completedAt
	switch {
	case runErr != nil:
		run.Status = StatusFailed
		msg := runErr.Error()
		run.ErrorMessage = &msg
	case report.Failed():
		run.Status = StatusCompleted
		msg := fmt.Sprintf("%d of %d products failed", len(report.Failures), len(ids))
		run.ErrorMessage = &msg
	default:
		run.Status = StatusCompleted
	}
	if err := o.store.UpdateRun(finishCtx, run); err != nil {
		log.Error().Err(err).Int64("run_id", run.ID).Msg("backfill: failed to record run completion")
	}

	log.Info().
		Int64("run_id", run.ID).
		Int("succeeded", report.Succeeded).
		Int("failed", len(report.Failures)).
		Int("skipped", report.Skipped).
		Int("anomalies", len(report.Anomalies)).
		Dur("took", report.CompletedAt.Sub(report.StartedAt)).
		Msg("backfill: finished")

	if runErr != nil {
		return report, fmt.Errorf("backfill run %d aborted: %w", run.ID, runErr)
	}
	return report, nil
}

func (o *Orchestrator) publishReport(ctx context.Context, report *domain.BatchReport) error {
	if o.cfg.ReportDir == "" {
		return nil
	}

	localPath, err := writeReport(o.cfg.ReportDir, report)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if localPath == "" {
		return nil
	}
	report.ReportPath = localPath

	if o.uploader == nil {
		return nil
	}
	key := path.Join(o.cfg.ReportPrefix, reportFileName(report))
	if err := o.uploader.UploadFile(ctx, key, localPath); err != nil {
		return err
	}
	report.ReportKey = key
	return nil
}
