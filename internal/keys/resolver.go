package keys

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/logger"
	"github.com/feral-file/ff-inspection-warehouse/internal/store"
)

// Resolver maps natural keys to stable surrogate keys
type Resolver interface {
	// Resolve returns the surrogate key of a natural key, allocating one on first use
	Resolve(ctx context.Context, dim domain.Dimension, naturalKey string) (int64, error)
	// Lookup returns the surrogate key of a natural key without allocating
	Lookup(ctx context.Context, dim domain.Dimension, naturalKey string) (int64, bool, error)
	// ResolveAll resolves a set of natural keys in sorted order so fresh
	// allocations do not depend on input order
	ResolveAll(ctx context.Context, dim domain.Dimension, naturalKeys []string) (map[string]int64, error)
}

type resolver struct {
	store store.KeyStore
	// locks serializes allocation per natural key
	locks *xsync.Map[string, *sync.Mutex]
	// cache holds keys already resolved in this process; mappings never change
	cache *xsync.Map[string, int64]
}

// NewResolver creates a resolver over a key store
func NewResolver(keyStore store.KeyStore) Resolver {
	return &resolver{
		store: keyStore,
		locks: xsync.NewMap[string, *sync.Mutex](),
		cache: xsync.NewMap[string, int64](),
	}
}

func cacheKey(dim domain.Dimension, naturalKey string) string {
	return string(dim) + "\x00" + naturalKey
}

// Resolve returns the surrogate key of a natural key, allocating one on first use
func (r *resolver) Resolve(ctx context.Context, dim domain.Dimension, naturalKey string) (int64, error) {
	k := cacheKey(dim, naturalKey)
	if key, ok := r.cache.Load(k); ok {
		return key, nil
	}

	mu, _ := r.locks.LoadOrStore(k, &sync.Mutex{})
	mu.Lock()
	defer mu.Unlock()

	if key, ok := r.cache.Load(k); ok {
		return key, nil
	}

	key, err := r.store.GetOrAllocateKey(ctx, dim, naturalKey)
	if errors.Is(err, domain.ErrConcurrencyConflict) {
		logger.WarnCtx(ctx, "Key allocation raced with another writer, re-fetching",
			zap.String("dimension", string(dim)),
			zap.String("natural_key", naturalKey))
		key, err = r.refetch(ctx, dim, naturalKey)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve %s key %q: %w", dim, naturalKey, err)
	}

	r.cache.Store(k, key)
	return key, nil
}

// refetch reads the mapping written by the writer that won the race, allocating
// once more if it is still missing. A second conflict is returned to the caller.
func (r *resolver) refetch(ctx context.Context, dim domain.Dimension, naturalKey string) (int64, error) {
	key, found, err := r.store.LookupKey(ctx, dim, naturalKey)
	if err != nil {
		return 0, err
	}
	if found {
		return key, nil
	}
	return r.store.GetOrAllocateKey(ctx, dim, naturalKey)
}

// Lookup returns the surrogate key of a natural key without allocating
func (r *resolver) Lookup(ctx context.Context, dim domain.Dimension, naturalKey string) (int64, bool, error) {
	k := cacheKey(dim, naturalKey)
	if key, ok := r.cache.Load(k); ok {
		return key, true, nil
	}

	key, found, err := r.store.LookupKey(ctx, dim, naturalKey)
	if err != nil {
		return 0, false, fmt.Errorf("failed to lookup %s key %q: %w", dim, naturalKey, err)
	}
	if found {
		r.cache.Store(k, key)
	}
	return key, found, nil
}

// ResolveAll resolves a set of natural keys in sorted order
func (r *resolver) ResolveAll(ctx context.Context, dim domain.Dimension, naturalKeys []string) (map[string]int64, error) {
	unique := make(map[string]struct{}, len(naturalKeys))
	for _, nk := range naturalKeys {
		unique[nk] = struct{}{}
	}
	sorted := make([]string, 0, len(unique))
	for nk := range unique {
		sorted = append(sorted, nk)
	}
	sort.Strings(sorted)

	resolved := make(map[string]int64, len(sorted))
	for _, nk := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key, err := r.Resolve(ctx, dim, nk)
		if err != nil {
			return nil, err
		}
		resolved[nk] = key
	}

	return resolved, nil
}
