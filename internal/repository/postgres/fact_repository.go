package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/andresuchdata/reorderpoint/internal/repository"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type factRepository struct {
	db *DB
}

// NewFactRepository creates a Postgres-backed append-only fact store
func NewFactRepository(db *DB) repository.FactRepository {
	return &factRepository{db: db}
}

func (r *factRepository) Append(ctx context.Context, fact domain.FactRecord) error {
	if err := domain.ValidateFact(fact); err != nil {
		return err
	}
	fact.Date = domain.TruncateDate(fact.Date)

	query := `
		INSERT INTO facts (
			product_id, fact_date, quantity, unit_cost, category,
			promotion_active, gdp, inflation_rate, seasonal_factor, created_at
		) VALUES (
			:product_id, :fact_date, :quantity, :unit_cost, :category,
			:promotion_active, :gdp, :inflation_rate, :seasonal_factor, NOW()
		)
	`

	if _, err := r.db.namedExec(ctx, query, fact); err != nil {
		if isUniqueViolation(err) {
			return &domain.DataQualityError{Rows: []domain.RowRef{{
				ProductID: fact.ProductID,
				Date:      fact.DateKey(),
				Reason:    "duplicate (product_id, date)",
			}}}
		}
		return fmt.Errorf("failed to insert fact: %w", err)
	}

	return nil
}

func (r *factRepository) History(ctx context.Context, productID int64) ([]domain.FactRecord, error) {
	query := `
		SELECT product_id, fact_date, quantity, unit_cost, category, promotion_active,
			gdp, inflation_rate, seasonal_factor, created_at
		FROM facts
		WHERE product_id = $1
		ORDER BY fact_date ASC
	`

	var facts []domain.FactRecord
	if err := sqlx.SelectContext(ctx, r.db.q(ctx), &facts, query, productID); err != nil {
		return nil, fmt.Errorf("failed to load fact history for product %d: %w", productID, err)
	}

	for i := range facts {
		facts[i].Date = domain.TruncateDate(facts[i].Date)
	}
	return facts, nil
}

func (r *factRepository) ProductIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := sqlx.SelectContext(ctx, r.db.q(ctx), &ids, `SELECT DISTINCT product_id FROM facts ORDER BY product_id`); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return ids, nil
}

// isUniqueViolation recognises a unique constraint failure from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}
