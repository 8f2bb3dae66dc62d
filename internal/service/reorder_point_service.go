package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresuchdata/reorderpoint/internal/cache"
	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/andresuchdata/reorderpoint/internal/events"
	reorderpoint "github.com/andresuchdata/reorderpoint/internal/pipeline/reorder_point"
	"github.com/andresuchdata/reorderpoint/internal/repository"
	"github.com/rs/zerolog/log"
)

// staleRetries is how many times a recompute re-reads history after losing an
// upsert to a write derived from newer facts.
const staleRetries = 1

// RecomputeResult is the stored reorder point plus the anomalies raised while
// deriving it.
type RecomputeResult struct {
	ReorderPoint domain.ReorderPoint `json:"reorder_point"`
	Anomalies    []domain.Anomaly    `json:"anomalies"`
}

type ReorderPointService struct {
	facts  repository.FactRepository
	points repository.ReorderPointRepository
	locker repository.ProductLocker
	cache  cache.ReorderPointCache
	engine *reorderpoint.RollingEngine
	calc   *reorderpoint.Calculator
}

func NewReorderPointService(
	facts repository.FactRepository,
	points repository.ReorderPointRepository,
	locker repository.ProductLocker,
	cacheImpl cache.ReorderPointCache,
	cfg reorderpoint.Config,
) *ReorderPointService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopReorderPointCache()
	}
	return &ReorderPointService{
		facts:  facts,
		points: points,
		locker: locker,
		cache:  cacheImpl,
		engine: reorderpoint.NewRollingEngine(cfg),
		calc:   reorderpoint.NewCalculator(cfg),
	}
}

// HandleFactAppended is the ingestion trigger. It is safe to deliver the same
// event more than once.
func (s *ReorderPointService) HandleFactAppended(ctx context.Context, evt events.FactAppended) error {
	_, err := s.Recompute(ctx, evt.ProductID)
	return err
}

// Recompute derives the product's reorder point from its full persisted
// history and stores it. Invalid history leaves the stored value untouched.
func (s *ReorderPointService) Recompute(ctx context.Context, productID int64) (*RecomputeResult, error) {
	var (
		res *RecomputeResult
		err error
	)
	for attempt := 0; attempt <= staleRetries; attempt++ {
		res, err = s.recomputeLocked(ctx, productID)
		if !errors.Is(err, domain.ErrStaleReorderPoint) {
			return res, err
		}
		log.Warn().Int64("product_id", productID).Int("attempt", attempt+1).Msg("reorder point: stale write, re-reading history")
	}
	return nil, err
}

func (s *ReorderPointService) recomputeLocked(ctx context.Context, productID int64) (*RecomputeResult, error) {
	ctx, unlock, err := s.locker.LockProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("lock product %d: %w", productID, err)
	}
	defer unlock()

	history, err := s.facts.History(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, domain.ErrNoFacts
	}

	b, err := reorderpoint.Evaluate(s.engine, s.calc, productID, history)
	if err != nil {
		log.Error().Err(err).Int64("product_id", productID).Msg("reorder point: history rejected, keeping previous value")
		return nil, err
	}

	rp := domain.ReorderPoint{
		ProductID:          productID,
		ReorderPoint:       b.Result.ReorderPoint,
		LeadTimeDemand:     b.Result.LeadTimeDemand,
		SafetyStock:        b.Result.SafetyStock,
		AvgRollingSales:    b.Stats.AvgRollingSales,
		AvgRollingVariance: b.Stats.AvgRollingVariance,
		HistoryRows:        b.Stats.Rows,
		AsOf:               b.Stats.AsOf,
	}
	if err := s.points.Upsert(ctx, rp); err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, productID); err != nil {
		log.Warn().Err(err).Int64("product_id", productID).Msg("reorder point: cache invalidate failed")
	}

	for _, a := range b.Anomalies {
		log.Warn().Int64("product_id", a.ProductID).Str("anomaly", string(a.Kind)).Float64("value", a.Value).Msg(a.Detail)
	}

	log.Debug().
		Int64("product_id", productID).
		Int("rows", rp.HistoryRows).
		Float64("reorder_point", rp.ReorderPoint).
		Msg("reorder point recomputed")

	stored, err := s.points.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &RecomputeResult{ReorderPoint: *stored, Anomalies: b.Anomalies}, nil
}

// Get returns the stored reorder point, reading through the cache. A miss is
// filled under the product lock so a concurrent recompute cannot be
// overwritten by the row read before it.
func (s *ReorderPointService) Get(ctx context.Context, productID int64) (*domain.ReorderPoint, error) {
	if rp, ok, err := s.cache.Get(ctx, productID); err == nil && ok {
		return rp, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("reorder point: cache get failed")
	}

	ctx, unlock, err := s.locker.LockProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("lock product %d: %w", productID, err)
	}
	defer unlock()

	rp, err := s.points.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, rp); err != nil {
		log.Warn().Err(err).Msg("reorder point: cache set failed")
	}
	return rp, nil
}

// List pages through stored reorder points ordered by product id.
func (s *ReorderPointService) List(ctx context.Context, page, pageSize int) ([]domain.ReorderPoint, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	return s.points.List(ctx, pageSize, (page-1)*pageSize)
}

// Breakdown evaluates the product's history without storing anything.
func (s *ReorderPointService) Breakdown(ctx context.Context, productID int64) (*reorderpoint.Breakdown, error) {
	history, err := s.facts.History(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, domain.ErrNoFacts
	}

	b, err := reorderpoint.Evaluate(s.engine, s.calc, productID, history)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ProductIDs lists every product with facts, for batch recomputes.
func (s *ReorderPointService) ProductIDs(ctx context.Context) ([]int64, error) {
	return s.facts.ProductIDs(ctx)
}
