package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrReorderPointNotFound), errors.Is(err, domain.ErrNoFacts):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func rowsOf(err error) []domain.RowRef {
	var dq *domain.DataQualityError
	if errors.As(err, &dq) {
		return dq.Rows
	}
	var invalid *domain.InvalidInputError
	if errors.As(err, &invalid) {
		return invalid.Rows
	}
	return nil
}

func writeError(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	}

	body := gin.H{"error": message, "details": err.Error()}
	if rows := rowsOf(err); len(rows) > 0 {
		body["rows"] = rows
	}
	c.JSON(status, body)
}

func productIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product_id", "details": c.Param("product_id")})
		return 0, false
	}
	return id, true
}
