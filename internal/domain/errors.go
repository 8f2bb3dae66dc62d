package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput is matched by both DataQualityError and InvalidInputError.
	ErrInvalidInput = errors.New("invalid input")

	// ErrReorderPointNotFound means the product has no computed reorder point yet.
	ErrReorderPointNotFound = errors.New("reorder point not yet computed")

	// ErrNoFacts means the product has no fact rows at all.
	ErrNoFacts = errors.New("product has no facts")

	// ErrStaleReorderPoint is returned by an upsert whose value was derived from
	// an older fact history than the one already stored.
	ErrStaleReorderPoint = errors.New("reorder point derived from stale history")
)

// RowRef identifies a fact row in error reports.
type RowRef struct {
	ProductID int64  `json:"product_id"`
	Date      string `json:"date"`
	Reason    string `json:"reason"`
}

func (r RowRef) String() string {
	return fmt.Sprintf("product=%d date=%s: %s", r.ProductID, r.Date, r.Reason)
}

// DataQualityError is raised at ingestion when a row violates the fact contract.
type DataQualityError struct {
	Rows []RowRef
}

func (e *DataQualityError) Error() string {
	return "data quality: " + joinRows(e.Rows)
}

func (e *DataQualityError) Is(target error) bool {
	return target == ErrInvalidInput
}

// InvalidInputError is raised by the core when persisted history for a product
// cannot be used. The stored reorder point for that product is left untouched.
type InvalidInputError struct {
	ProductID int64
	Rows      []RowRef
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid history for product %d: %s", e.ProductID, joinRows(e.Rows))
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func joinRows(rows []RowRef) string {
	if len(rows) == 0 {
		return "no rows"
	}
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = r.String()
	}
	return strings.Join(parts, "; ")
}
