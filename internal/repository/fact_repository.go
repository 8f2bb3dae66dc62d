package repository

import (
	"context"

	"github.com/andresuchdata/reorderpoint/internal/domain"
)

// FactRepository is the append-only fact store.
type FactRepository interface {
	// Append durably stores a new fact. A second fact for the same
	// (product_id, date) is rejected with *domain.DataQualityError.
	Append(ctx context.Context, fact domain.FactRecord) error

	// History returns every fact of a product ordered by date ascending.
	History(ctx context.Context, productID int64) ([]domain.FactRecord, error)

	// ProductIDs returns every product with at least one fact, ascending.
	ProductIDs(ctx context.Context) ([]int64, error)
}
