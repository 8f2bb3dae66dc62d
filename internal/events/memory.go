package events

import (
	"context"
	"errors"
	"sync"
)

// MemoryBus delivers events synchronously on the publisher's goroutine, so a
// Publish returns only after every handler finished. Handler errors are
// returned joined.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

var _ Bus = (*MemoryBus)(nil)

func (b *MemoryBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *MemoryBus) Publish(ctx context.Context, evt FactAppended) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
