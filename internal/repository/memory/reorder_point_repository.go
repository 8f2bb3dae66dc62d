package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/andresuchdata/reorderpoint/internal/repository"
)

// ReorderPointRepository provides in-memory reorder point storage keyed by product
type ReorderPointRepository struct {
	mu     sync.RWMutex
	points map[int64]domain.ReorderPoint
	now    func() time.Time
}

// NewReorderPointRepository creates a new in-memory reorder point repository
func NewReorderPointRepository() *ReorderPointRepository {
	return &ReorderPointRepository{
		points: make(map[int64]domain.ReorderPoint),
		now:    time.Now,
	}
}

// Verify interface compliance
var _ repository.ReorderPointRepository = (*ReorderPointRepository)(nil)

// Upsert replaces the product's row unless the stored row is newer
func (r *ReorderPointRepository) Upsert(ctx context.Context, rp domain.ReorderPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.points[rp.ProductID]; ok && current.HistoryRows > rp.HistoryRows {
		return domain.ErrStaleReorderPoint
	}

	rp.UpdatedAt = r.now()
	r.points[rp.ProductID] = rp
	return nil
}

// Get returns the product's current reorder point
func (r *ReorderPointRepository) Get(ctx context.Context, productID int64) (*domain.ReorderPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rp, ok := r.points[productID]
	if !ok {
		return nil, domain.ErrReorderPointNotFound
	}
	return &rp, nil
}

// List returns reorder points ordered by product id with the total count
func (r *ReorderPointRepository) List(ctx context.Context, limit, offset int) ([]domain.ReorderPoint, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]domain.ReorderPoint, 0, len(r.points))
	for _, rp := range r.points {
		all = append(all, rp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ProductID < all[j].ProductID })

	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []domain.ReorderPoint{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

// Count returns the number of stored rows.
func (r *ReorderPointRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.points)
}
