package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/andresuchdata/reorderpoint/internal/service"
	"github.com/gin-gonic/gin"
)

// BatchRunner runs a recompute over every product.
type BatchRunner interface {
	Run(ctx context.Context) (*domain.BatchReport, error)
}

type ReorderPointHandler struct {
	service *service.ReorderPointService
	batch   BatchRunner
}

func NewReorderPointHandler(svc *service.ReorderPointService, batch BatchRunner) *ReorderPointHandler {
	return &ReorderPointHandler{service: svc, batch: batch}
}

// List godoc
// GET /api/v1/reorder_points?page=1&page_size=50
func (h *ReorderPointHandler) List(c *gin.Context) {
	page := 1
	pageSize := 50
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("page_size", "50")); err == nil && v > 0 {
		pageSize = min(v, 500)
	}

	items, total, err := h.service.List(c.Request.Context(), page, pageSize)
	if err != nil {
		writeError(c, "failed to list reorder points", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":     items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GET /api/v1/reorder_points/:product_id
func (h *ReorderPointHandler) Get(c *gin.Context) {
	id, ok := productIDParam(c)
	if !ok {
		return
	}

	rp, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, "failed to fetch reorder point", err)
		return
	}
	c.JSON(http.StatusOK, rp)
}

// POST /api/v1/reorder_points/:product_id/recompute
func (h *ReorderPointHandler) Recompute(c *gin.Context) {
	id, ok := productIDParam(c)
	if !ok {
		return
	}

	res, err := h.service.Recompute(c.Request.Context(), id)
	if err != nil {
		writeError(c, "failed to recompute reorder point", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/v1/reorder_points/recompute
func (h *ReorderPointHandler) RecomputeAll(c *gin.Context) {
	if h.batch == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "batch recompute is not configured"})
		return
	}

	report, err := h.batch.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch recompute aborted", "details": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}

// RollingStats is a dry run of the engine and calculator with the per-row series.
// GET /api/v1/products/:product_id/rolling_stats
func (h *ReorderPointHandler) RollingStats(c *gin.Context) {
	id, ok := productIDParam(c)
	if !ok {
		return
	}

	b, err := h.service.Breakdown(c.Request.Context(), id)
	if err != nil {
		writeError(c, "failed to evaluate rolling stats", err)
		return
	}
	c.JSON(http.StatusOK, b)
}
