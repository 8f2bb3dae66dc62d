package handlers

import (
	"errors"
	"net/http"

	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/andresuchdata/reorderpoint/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type FactHandler struct {
	facts  *service.FactService
	points *service.ReorderPointService
}

func NewFactHandler(facts *service.FactService, points *service.ReorderPointService) *FactHandler {
	return &FactHandler{facts: facts, points: points}
}

// factRequest is the wire shape of a fact. Required numeric fields are
// pointers so a missing field is distinguishable from zero.
type factRequest struct {
	ProductID       *int64           `json:"product_id"`
	Date            string           `json:"date"`
	Quantity        *int64           `json:"quantity"`
	UnitCost        *decimal.Decimal `json:"unit_cost"`
	Category        string           `json:"category"`
	PromotionActive bool             `json:"promotion_active"`
	GDP             *float64         `json:"gdp"`
	InflationRate   *float64         `json:"inflation_rate"`
	SeasonalFactor  *float64         `json:"seasonal_factor"`
}

func (r factRequest) toFact() (domain.FactRecord, error) {
	var missing []domain.RowRef
	ref := func(reason string) {
		var id int64
		if r.ProductID != nil {
			id = *r.ProductID
		}
		missing = append(missing, domain.RowRef{ProductID: id, Date: r.Date, Reason: reason})
	}

	if r.ProductID == nil {
		ref("missing product_id")
	}
	if r.Quantity == nil {
		ref("missing quantity")
	}
	if r.UnitCost == nil {
		ref("missing or zero unit_cost")
	}
	date, err := domain.ParseDate(r.Date)
	if err != nil {
		ref("missing or malformed date")
	}
	if len(missing) > 0 {
		return domain.FactRecord{}, &domain.DataQualityError{Rows: missing}
	}

	return domain.FactRecord{
		ProductID:       *r.ProductID,
		Date:            date,
		Quantity:        *r.Quantity,
		UnitCost:        *r.UnitCost,
		Category:        r.Category,
		PromotionActive: r.PromotionActive,
		GDP:             r.GDP,
		InflationRate:   r.InflationRate,
		SeasonalFactor:  r.SeasonalFactor,
	}, nil
}

// Append stores one fact and returns the product's recomputed reorder point.
// POST /api/v1/facts
func (h *FactHandler) Append(c *gin.Context) {
	var req factRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	fact, err := req.toFact()
	if err != nil {
		writeError(c, "invalid fact", err)
		return
	}

	ctx := c.Request.Context()
	if err := h.facts.Append(ctx, fact); err != nil {
		var trigger *service.TriggerError
		if errors.As(err, &trigger) {
			// The fact is durable; only the recompute failed.
			c.JSON(http.StatusAccepted, gin.H{
				"fact":    fact,
				"error":   "recompute failed",
				"details": err.Error(),
				"rows":    rowsOf(err),
			})
			return
		}
		writeError(c, "failed to append fact", err)
		return
	}

	rp, err := h.points.Get(ctx, fact.ProductID)
	if err != nil {
		// Recompute runs out of process with a remote event bus.
		if errors.Is(err, domain.ErrReorderPointNotFound) {
			c.JSON(http.StatusAccepted, gin.H{"fact": fact})
			return
		}
		writeError(c, "failed to fetch reorder point", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"fact": fact, "reorder_point": rp})
}

// AppendBatch stores many facts, continuing past rejected rows.
// POST /api/v1/facts/batch
func (h *FactHandler) AppendBatch(c *gin.Context) {
	var reqs []factRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	facts := make([]domain.FactRecord, 0, len(reqs))
	var rejected []domain.RowRef
	for _, r := range reqs {
		fact, err := r.toFact()
		if err != nil {
			rejected = append(rejected, rowsOf(err)...)
			continue
		}
		facts = append(facts, fact)
	}

	report, err := h.facts.AppendBatch(c.Request.Context(), facts)
	if err != nil {
		writeError(c, "failed to append facts", err)
		return
	}
	report.Received += len(rejected)
	report.Rejected = append(rejected, report.Rejected...)

	c.JSON(http.StatusOK, report)
}
