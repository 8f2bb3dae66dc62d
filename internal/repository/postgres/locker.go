package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/repository"
	"github.com/rs/zerolog/log"
)

const (
	advisoryLockSQL   = `SELECT pg_advisory_lock($1)`
	advisoryUnlockSQL = `SELECT pg_advisory_unlock($1)`
)

// AdvisoryLocker serialises recomputation of a product across processes with a
// session-level advisory lock keyed by the product id. The lock lives on a
// dedicated connection held until unlock; the returned context carries that
// connection so repository calls made under the lock do not need a second one
// from the pool.
type AdvisoryLocker struct {
	db *DB
}

func NewAdvisoryLocker(db *DB) *AdvisoryLocker {
	return &AdvisoryLocker{db: db}
}

var _ repository.ProductLocker = (*AdvisoryLocker)(nil)

func (l *AdvisoryLocker) LockProduct(ctx context.Context, productID int64) (context.Context, func(), error) {
	conn, err := l.db.Connx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.ExecContext(ctx, advisoryLockSQL, productID); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("advisory lock product %d: %w", productID, err)
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.ExecContext(ctxUnlock, advisoryUnlockSQL, productID); err != nil {
			log.Warn().Err(err).Int64("product_id", productID).Msg("advisory unlock failed")
		}
		conn.Close()
	}
	return withConn(ctx, conn), unlock, nil
}
