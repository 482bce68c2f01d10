// pkg/catalog/resolver.go
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store fetches the full catalog mapping from the backing store.
type Store interface {
	FetchCatalog(ctx context.Context) (map[ProductKey]ProductRecord, error)
}

// Resolver maps product keys to records through a bounded-staleness cache.
// A store failure after the first successful load is recovered by serving
// the stale mapping; a cold failure surfaces ErrConfigUnavailable.
type Resolver struct {
	store Store
	ttl   time.Duration
	log   *zap.Logger

	// guarded by mu; last-writer-wins on concurrent refresh is fine,
	// a catalog stale by seconds is harmless
	mu          sync.RWMutex
	products    map[ProductKey]ProductRecord
	lastRefresh time.Time
}

// NewResolver builds a resolver with the given staleness bound.
func NewResolver(store Store, ttl time.Duration, log *zap.Logger) *Resolver {
	return &Resolver{store: store, ttl: ttl, log: log}
}

// Resolve returns the record for key, refreshing the catalog when stale.
func (r *Resolver) Resolve(ctx context.Context, key ProductKey) (ProductRecord, error) {
	products, err := r.loadCatalog(ctx)
	if err != nil {
		return ProductRecord{}, err
	}
	rec, ok := products[key]
	if !ok {
		return ProductRecord{}, fmt.Errorf("%w: %q", ErrProductNotFound, key)
	}
	return rec, nil
}

// Keys returns every product key in the loaded catalog.
func (r *Resolver) Keys(ctx context.Context) ([]ProductKey, error) {
	products, err := r.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]ProductKey, 0, len(products))
	for k := range products {
		keys = append(keys, k)
	}
	return keys, nil
}

func (r *Resolver) loadCatalog(ctx context.Context) (map[ProductKey]ProductRecord, error) {
	r.mu.RLock()
	cached := r.products
	fresh := cached != nil && time.Since(r.lastRefresh) < r.ttl
	r.mu.RUnlock()

	if fresh {
		return cached, nil
	}

	products, err := r.store.FetchCatalog(ctx)
	if err != nil {
		if cached != nil {
			// Warm: store failure is non-fatal, serve the stale mapping.
			r.log.Warn("catalog refresh failed, serving stale",
				zap.String("operation", "catalog.refresh"),
				zap.Error(err),
			)
			return cached, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrConfigUnavailable, err)
	}

	r.mu.Lock()
	r.products = products
	r.lastRefresh = time.Now()
	r.mu.Unlock()
	return products, nil
}
