package service

import (
	"context"
	"sync"
	"time"

	"github.com/sunilkumartc/vet-cares-sub000/pkg/errors"
)

// productLocks serializes stock mutations per product. Operations on
// different products proceed in parallel; there is no global lock. Lock
// entries are never removed, which keeps acquisition race-free and is
// bounded by the product catalog size.
type productLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newProductLocks() *productLocks {
	return &productLocks{
		locks: make(map[string]chan struct{}),
	}
}

func (l *productLocks) get(productID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.locks[productID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[productID] = ch
	}
	return ch
}

// Acquire takes the lock for a product, waiting at most timeout. On timeout
// it fails with a contention error and the caller must not proceed; there
// is no partial acquisition. The returned release function must be called
// exactly once.
func (l *productLocks) Acquire(ctx context.Context, productID string, timeout time.Duration) (func(), error) {
	ch := l.get(productID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, errors.Contention("product " + productID)
	}
}
