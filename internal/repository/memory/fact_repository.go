package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/andresuchdata/reorderpoint/internal/repository"
)

// FactRepository provides in-memory append-only fact storage
type FactRepository struct {
	mu    sync.RWMutex
	facts map[int64][]domain.FactRecord // product -> facts ordered by date
	now   func() time.Time
}

// NewFactRepository creates a new in-memory fact repository
func NewFactRepository() *FactRepository {
	return &FactRepository{
		facts: make(map[int64][]domain.FactRecord),
		now:   time.Now,
	}
}

// Verify interface compliance
var _ repository.FactRepository = (*FactRepository)(nil)

// Append inserts the fact in date order, rejecting a duplicate (product, date).
func (r *FactRepository) Append(ctx context.Context, fact domain.FactRecord) error {
	if err := domain.ValidateFact(fact); err != nil {
		return err
	}
	fact.Date = domain.TruncateDate(fact.Date)

	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.facts[fact.ProductID]
	idx := sort.Search(len(existing), func(i int) bool { return !existing[i].Date.Before(fact.Date) })
	if idx < len(existing) && existing[idx].Date.Equal(fact.Date) {
		return &domain.DataQualityError{Rows: []domain.RowRef{{
			ProductID: fact.ProductID,
			Date:      fact.DateKey(),
			Reason:    "duplicate (product_id, date)",
		}}}
	}

	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = r.now()
	}

	existing = append(existing, domain.FactRecord{})
	copy(existing[idx+1:], existing[idx:])
	existing[idx] = fact
	r.facts[fact.ProductID] = existing

	return nil
}

// History returns a copy of the product's facts ordered by date
func (r *FactRepository) History(ctx context.Context, productID int64) ([]domain.FactRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	facts := r.facts[productID]
	out := make([]domain.FactRecord, len(facts))
	copy(out, facts)
	return out, nil
}

// ProductIDs returns every known product id in ascending order
func (r *FactRepository) ProductIDs(ctx context.Context) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.facts))
	for id := range r.facts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Inject stores a fact without validation. It exists so tests can place rows
// the ingestion boundary would normally reject.
func (r *FactRepository) Inject(fact domain.FactRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facts[fact.ProductID] = append(r.facts[fact.ProductID], fact)
}
