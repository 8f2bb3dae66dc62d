package memory

import (
	"context"
	"sync"

	"github.com/andresuchdata/reorderpoint/internal/repository"
)

// KeyedLocker hands out one mutex per product id. Locks for different
// products never contend.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[int64]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedLocker creates a new per-product locker
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[int64]*keyedLock)}
}

// Verify interface compliance
var _ repository.ProductLocker = (*KeyedLocker)(nil)

// LockProduct blocks until the product lock is held or ctx is done.
func (l *KeyedLocker) LockProduct(ctx context.Context, productID int64) (context.Context, func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[productID]
	if !ok {
		lk = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[productID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(productID, lk)
		return nil, nil, ctx.Err()
	}

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			<-lk.ch
			l.release(productID, lk)
		})
	}, nil
}

// release drops a reference and forgets the lock when nobody holds or waits on it.
func (l *KeyedLocker) release(productID int64, lk *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, productID)
	}
}
