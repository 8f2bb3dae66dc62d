package pipeline

import (
	"context"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/service"
)

// Recomputer is the per-product unit of work a backfill fans out.
type Recomputer interface {
	Recompute(ctx context.Context, productID int64) (*service.RecomputeResult, error)
	ProductIDs(ctx context.Context) ([]int64, error)
}

// ReportUploader ships a finished report to object storage.
type ReportUploader interface {
	UploadFile(ctx context.Context, key string, srcPath string) error
}

// BackfillConfig holds configuration for a recompute-all run
type BackfillConfig struct {
	WorkerCount   int           // Number of concurrent workers
	RetryAttempts int           // Extra attempts for a product after a transient failure
	RetryBackoff  time.Duration // Backoff between attempts, doubled each time
	Partitions    int           // Split products by id % Partitions; 0 or 1 means all
	Partition     int           // The partition this run owns
	ReportDir     string        // Directory for per-run CSV reports
	ReportPrefix  string        // Object key prefix for uploaded reports
}

// DefaultBackfillConfig returns sensible defaults
func DefaultBackfillConfig() BackfillConfig {
	return BackfillConfig{
		WorkerCount:   4,
		RetryAttempts: 2,
		RetryBackoff:  200 * time.Millisecond,
		ReportDir:     "data/reports",
		ReportPrefix:  "backfill",
	}
}

// Owns reports whether productID falls in this run's partition.
func (c BackfillConfig) Owns(productID int64) bool {
	if c.Partitions <= 1 {
		return true
	}
	return productID%int64(c.Partitions) == int64(c.Partition)
}

// RunStatus represents the current state of a backfill run
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// JobStatus represents the state of a single product recompute
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Run tracks a single backfill execution
type Run struct {
	ID           int64      `db:"id"`
	Status       RunStatus  `db:"status"`
	TotalJobs    int        `db:"total_jobs"`
	StartedAt    time.Time  `db:"started_at"`
	CompletedAt  *time.Time `db:"completed_at"`
	ErrorMessage *string    `db:"error_message"`
}

// ProductJob tracks the recompute of one product within a run
type ProductJob struct {
	RunID        int64     `db:"run_id"`
	ProductID    int64     `db:"product_id"`
	Status       JobStatus `db:"status"`
	Attempts     int       `db:"attempts"`
	ErrorMessage *string   `db:"error_message"`
}

// RunStore persists run progress so an interrupted backfill can resume.
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id int64) (*Run, error)
	SaveJob(ctx context.Context, job *ProductJob) error
	CompletedProducts(ctx context.Context, runID int64) (map[int64]bool, error)
}
