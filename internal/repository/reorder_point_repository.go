package repository

import (
	"context"

	"github.com/andresuchdata/reorderpoint/internal/domain"
)

// ReorderPointRepository is the only writer of reorder point rows.
type ReorderPointRepository interface {
	// Upsert atomically replaces the reorder point of rp.ProductID. It returns
	// domain.ErrStaleReorderPoint when the stored row was derived from more
	// fact rows than rp.
	Upsert(ctx context.Context, rp domain.ReorderPoint) error

	// Get returns domain.ErrReorderPointNotFound when nothing is computed yet.
	Get(ctx context.Context, productID int64) (*domain.ReorderPoint, error)

	List(ctx context.Context, limit, offset int) ([]domain.ReorderPoint, int, error)
}

// ProductLocker serialises recomputation per product. Repository calls made
// while the lock is held must use the returned context.
type ProductLocker interface {
	LockProduct(ctx context.Context, productID int64) (locked context.Context, unlock func(), err error)
}
