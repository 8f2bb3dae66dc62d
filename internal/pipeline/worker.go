package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/andresuchdata/reorderpoint/internal/service"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// outcome is the final state of one product after all attempts.
type outcome struct {
	productID int64
	result    *service.RecomputeResult
	err       error
	attempts  int
}

// Worker fans product recomputes out over a bounded pool
type Worker struct {
	rec   Recomputer
	store RunStore
	cfg   BackfillConfig
}

// NewWorker creates a new backfill worker
func NewWorker(rec Recomputer, store RunStore, cfg BackfillConfig) *Worker {
	return &Worker{rec: rec, store: store, cfg: cfg}
}

// processProducts recomputes ids with cfg.WorkerCount goroutines. A product
// failure is reported through collect and never stops the pool; only a run
// tracking failure or ctx cancellation does.
func (w *Worker) processProducts(ctx context.Context, run *Run, ids []int64, collect func(outcome)) error {
	workerCount := w.cfg.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}

	jobChan := make(chan int64)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < workerCount; i++ {
		workerID := i
		g.Go(func() error {
			for id := range jobChan {
				out, err := w.processProduct(gctx, run, id)
				if err != nil {
					return fmt.Errorf("worker %d: %w", workerID, err)
				}
				collect(out)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobChan)
		for _, id := range ids {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case jobChan <- id:
			}
		}
		return nil
	})

	return g.Wait()
}

// processProduct runs one product with retries. Invalid history is never
// retried: the answer cannot change until the facts do.
func (w *Worker) processProduct(ctx context.Context, run *Run, productID int64) (outcome, error) {
	job := &ProductJob{RunID: run.ID, ProductID: productID, Status: JobStatusProcessing}
	if err := w.store.SaveJob(ctx, job); err != nil {
		return outcome{}, err
	}

	out := outcome{productID: productID}
	backoff := w.cfg.RetryBackoff
	maxAttempts := 1 + max(0, w.cfg.RetryAttempts)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out.attempts = attempt
		out.result, out.err = w.rec.Recompute(ctx, productID)
		if out.err == nil || !retryable(out.err) || ctx.Err() != nil || attempt == maxAttempts {
			break
		}

		log.Warn().Err(out.err).
			Int64("run_id", run.ID).
			Int64("product_id", productID).
			Int("attempt", attempt).
			Msg("backfill: recompute failed, retrying")

		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	job.Attempts = out.attempts
	if out.err != nil {
		msg := out.err.Error()
		job.Status = JobStatusFailed
		job.ErrorMessage = &msg
	} else {
		job.Status = JobStatusCompleted
	}

	// Record the final state even when the run context is already cancelled.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.store.SaveJob(saveCtx, job); err != nil {
		return outcome{}, err
	}

	return out, nil
}

func retryable(err error) bool {
	return !errors.Is(err, domain.ErrInvalidInput) && !errors.Is(err, domain.ErrNoFacts)
}
