package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrRunNotFound = errors.New("backfill run not found")

// Repository handles database operations for backfill tracking
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new pipeline repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

var _ RunStore = (*Repository)(nil)

// CreateRun creates a new run record
func (r *Repository) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO pipeline_runs (status, total_jobs, started_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query, run.Status, run.TotalJobs, run.StartedAt).Scan(&run.ID)
}

// UpdateRun updates an existing run
func (r *Repository) UpdateRun(ctx context.Context, run *Run) error {
	query := `
		UPDATE pipeline_runs
		SET status = $1, total_jobs = $2, completed_at = $3, error_message = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, run.Status, run.TotalJobs, run.CompletedAt, run.ErrorMessage, run.ID)
	return err
}

// GetRun retrieves a run by ID
func (r *Repository) GetRun(ctx context.Context, id int64) (*Run, error) {
	query := `
		SELECT id, status, total_jobs, started_at, completed_at, error_message
		FROM pipeline_runs
		WHERE id = $1
	`

	run := &Run{}
	if err := r.db.GetContext(ctx, run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

// SaveJob upserts the state of one product within a run
func (r *Repository) SaveJob(ctx context.Context, job *ProductJob) error {
	query := `
		INSERT INTO pipeline_product_jobs (run_id, product_id, status, attempts, error_message, updated_at)
		VALUES (:run_id, :product_id, :status, :attempts, :error_message, NOW())
		ON CONFLICT (run_id, product_id) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			error_message = EXCLUDED.error_message,
			updated_at = NOW()
	`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to save job for product %d: %w", job.ProductID, err)
	}
	return nil
}

// CompletedProducts returns the products already recomputed in a run
func (r *Repository) CompletedProducts(ctx context.Context, runID int64) (map[int64]bool, error) {
	var ids []int64
	query := `SELECT product_id FROM pipeline_product_jobs WHERE run_id = $1 AND status = $2`
	if err := r.db.SelectContext(ctx, &ids, query, runID, JobStatusCompleted); err != nil {
		return nil, err
	}

	done := make(map[int64]bool, len(ids))
	for _, id := range ids {
		done[id] = true
	}
	return done, nil
}

// MemoryRunStore keeps run tracking in process. Runs do not survive a restart.
type MemoryRunStore struct {
	mu     sync.Mutex
	nextID int64
	runs   map[int64]Run
	jobs   map[int64]map[int64]ProductJob
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		runs: make(map[int64]Run),
		jobs: make(map[int64]map[int64]ProductJob),
	}
}

var _ RunStore = (*MemoryRunStore)(nil)

func (s *MemoryRunStore) CreateRun(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	run.ID = s.nextID
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	s.runs[run.ID] = *run
	s.jobs[run.ID] = make(map[int64]ProductJob)
	return nil
}

func (s *MemoryRunStore) UpdateRun(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return ErrRunNotFound
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *MemoryRunStore) GetRun(_ context.Context, id int64) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &run, nil
}

func (s *MemoryRunStore) SaveJob(_ context.Context, job *ProductJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, ok := s.jobs[job.RunID]
	if !ok {
		return ErrRunNotFound
	}
	jobs[job.ProductID] = *job
	return nil
}

func (s *MemoryRunStore) CompletedProducts(_ context.Context, runID int64) (map[int64]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	done := make(map[int64]bool)
	for id, job := range s.jobs[runID] {
		if job.Status == JobStatusCompleted {
			done[id] = true
		}
	}
	return done, nil
}

// Jobs returns the jobs of a run ordered by product id.
func (s *MemoryRunStore) Jobs(runID int64) []ProductJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProductJob, 0, len(s.jobs[runID]))
	for _, job := range s.jobs[runID] {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
