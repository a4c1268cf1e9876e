package feature

import (
	"context"
	"strings"
	"sync"

	"github.com/trezcool/darasa/core"
)

// Registry holds one Store per principal context for the gateway process.
// It is constructed once at startup and passed by reference to the API layer
// and the sync channel.
type Registry struct {
	client Client
	logger core.Logger

	mu     sync.RWMutex
	stores map[Context]*Store
}

func NewRegistry(client Client, logger core.Logger) *Registry {
	return &Registry{
		client: client,
		logger: logger,
		stores: make(map[Context]*Store),
	}
}

// Store returns the store bound to fctx, creating an empty one if needed.
func (r *Registry) Store(fctx Context) *Store {
	fctx.Tenant = core.CleanString(fctx.Tenant, true /* lower */)

	r.mu.RLock()
	store, ok := r.stores[fctx]
	r.mu.RUnlock()
	if ok {
		return store
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if store, ok = r.stores[fctx]; !ok {
		store = NewStore(r.client, r.logger)
		r.stores[fctx] = store
	}
	return store
}

// Refresh refreshes the store bound to fctx, creating it if needed.
func (r *Registry) Refresh(ctx context.Context, fctx Context) error {
	return r.Store(fctx).Refresh(ctx, fctx)
}

// Invalidate refreshes every store bound to the given tenant, matched
// case-insensitively. Refreshes are sequential; a failing store keeps its
// stale snapshot and does not block the others.
func (r *Registry) Invalidate(ctx context.Context, tenant string) {
	r.mu.RLock()
	contexts := make([]Context, 0, len(r.stores))
	for fctx := range r.stores {
		if strings.EqualFold(fctx.Tenant, tenant) {
			contexts = append(contexts, fctx)
		}
	}
	r.mu.RUnlock()

	for _, fctx := range contexts {
		_ = r.Refresh(ctx, fctx) // cold-start errors already logged by the store
	}
}

// Drop removes the store bound to fctx. Used on tenant teardown.
func (r *Registry) Drop(fctx Context) {
	fctx.Tenant = core.CleanString(fctx.Tenant, true /* lower */)
	r.mu.Lock()
	delete(r.stores, fctx)
	r.mu.Unlock()
}
