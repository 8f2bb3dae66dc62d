package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fact(productID int64, day int, qty int64) domain.FactRecord {
	return domain.FactRecord{
		ProductID: productID,
		Date:      time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		Quantity:  qty,
		UnitCost:  decimal.RequireFromString("2.50"),
		Category:  "beverage",
	}
}

func TestFactRepository_AppendKeepsDateOrder(t *testing.T) {
	repo := NewFactRepository()
	ctx := context.Background()

	for _, day := range []int{5, 1, 3, 2, 4} {
		require.NoError(t, repo.Append(ctx, fact(1, day, int64(day))))
	}

	history, err := repo.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i, f := range history {
		assert.Equal(t, i+1, f.Date.Day())
		assert.False(t, f.CreatedAt.IsZero())
	}
}

func TestFactRepository_RejectsDuplicateDate(t *testing.T) {
	repo := NewFactRepository()
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, fact(1, 1, 10)))

	dup := fact(1, 1, 99)
	dup.Date = dup.Date.Add(9 * time.Hour)
	err := repo.Append(ctx, dup)
	require.Error(t, err)

	var dq *domain.DataQualityError
	require.True(t, errors.As(err, &dq))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.Equal(t, "2024-03-01", dq.Rows[0].Date)

	history, _ := repo.History(ctx, 1)
	assert.Len(t, history, 1)
	assert.Equal(t, int64(10), history[0].Quantity)
}

func TestFactRepository_RejectsContractViolations(t *testing.T) {
	repo := NewFactRepository()
	ctx := context.Background()

	negative := fact(1, 1, -1)
	noCost := fact(1, 2, 1)
	noCost.UnitCost = decimal.Zero
	noProduct := fact(0, 3, 1)

	for _, f := range []domain.FactRecord{negative, noCost, noProduct} {
		assert.ErrorIs(t, repo.Append(ctx, f), domain.ErrInvalidInput)
	}

	ids, err := repo.ProductIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFactRepository_HistoryIsACopy(t *testing.T) {
	repo := NewFactRepository()
	ctx := context.Background()
	require.NoError(t, repo.Append(ctx, fact(1, 1, 10)))

	history, _ := repo.History(ctx, 1)
	history[0].Quantity = 500

	again, _ := repo.History(ctx, 1)
	assert.Equal(t, int64(10), again[0].Quantity)
}

func TestFactRepository_ProductIDsSorted(t *testing.T) {
	repo := NewFactRepository()
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, fact(30, 1, 1)))
	require.NoError(t, repo.Append(ctx, fact(10, 1, 1)))
	require.NoError(t, repo.Append(ctx, fact(20, 1, 1)))
	require.NoError(t, repo.Append(ctx, fact(10, 2, 1)))

	ids, err := repo.ProductIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, ids)
}
