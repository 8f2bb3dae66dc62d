package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/andresuchdata/reorderpoint/internal/repository"
	"github.com/jmoiron/sqlx"
)

type reorderPointRepository struct {
	db *DB
}

// NewReorderPointRepository creates the Postgres reorder point store
func NewReorderPointRepository(db *DB) repository.ReorderPointRepository {
	return &reorderPointRepository{db: db}
}

// Upsert is a single statement. The WHERE on the conflict branch drops writes
// derived from fewer fact rows than the stored one.
func (r *reorderPointRepository) Upsert(ctx context.Context, rp domain.ReorderPoint) error {
	query := `
		INSERT INTO reorder_points (
			product_id, reorder_point, lead_time_demand, safety_stock,
			avg_rolling_sales, avg_rolling_variance, history_rows, as_of, updated_at
		) VALUES (
			:product_id, :reorder_point, :lead_time_demand, :safety_stock,
			:avg_rolling_sales, :avg_rolling_variance, :history_rows, :as_of, NOW()
		)
		ON CONFLICT (product_id) DO UPDATE SET
			reorder_point = EXCLUDED.reorder_point,
			lead_time_demand = EXCLUDED.lead_time_demand,
			safety_stock = EXCLUDED.safety_stock,
			avg_rolling_sales = EXCLUDED.avg_rolling_sales,
			avg_rolling_variance = EXCLUDED.avg_rolling_variance,
			history_rows = EXCLUDED.history_rows,
			as_of = EXCLUDED.as_of,
			updated_at = NOW()
		WHERE reorder_points.history_rows <= EXCLUDED.history_rows
	`

	res, err := r.db.namedExec(ctx, query, rp)
	if err != nil {
		return fmt.Errorf("failed to upsert reorder point for product %d: %w", rp.ProductID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read upsert result: %w", err)
	}
	if affected == 0 {
		return domain.ErrStaleReorderPoint
	}
	return nil
}

func (r *reorderPointRepository) Get(ctx context.Context, productID int64) (*domain.ReorderPoint, error) {
	query := `
		SELECT product_id, reorder_point, lead_time_demand, safety_stock, avg_rolling_sales,
			avg_rolling_variance, history_rows, as_of, updated_at
		FROM reorder_points
		WHERE product_id = $1
	`

	var rp domain.ReorderPoint
	if err := sqlx.GetContext(ctx, r.db.q(ctx), &rp, query, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReorderPointNotFound
		}
		return nil, fmt.Errorf("failed to get reorder point for product %d: %w", productID, err)
	}
	return &rp, nil
}

func (r *reorderPointRepository) List(ctx context.Context, limit, offset int) ([]domain.ReorderPoint, int, error) {
	var total int
	if err := sqlx.GetContext(ctx, r.db.q(ctx), &total, `SELECT COUNT(*) FROM reorder_points`); err != nil {
		return nil, 0, fmt.Errorf("failed to count reorder points: %w", err)
	}

	query := `
		SELECT product_id, reorder_point, lead_time_demand, safety_stock, avg_rolling_sales,
			avg_rolling_variance, history_rows, as_of, updated_at
		FROM reorder_points
		ORDER BY product_id
		LIMIT $1 OFFSET $2
	`

	rows := []domain.ReorderPoint{}
	if err := sqlx.SelectContext(ctx, r.db.q(ctx), &rows, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list reorder points: %w", err)
	}
	return rows, total, nil
}
