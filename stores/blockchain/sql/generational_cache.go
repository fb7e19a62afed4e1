package sql

import (
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/atomic"
)

// GenerationalCache wraps ttlcache with generation-based invalidation tracking.
//
// A reader that misses the cache, queries the database and then caches the result can
// race with a StoreBlock that invalidates the cache in between. Begin captures the
// generation, DeleteAll bumps it, and CacheOperation.Set drops the write when the two
// no longer match.
type GenerationalCache struct {
	ttlCache   *ttlcache.Cache[chainhash.Hash, any]
	generation atomic.Uint64
	stopped    atomic.Bool
}

func NewGenerationalCache() *GenerationalCache {
	gc := &GenerationalCache{
		ttlCache: ttlcache.New[chainhash.Hash, any](
			ttlcache.WithDisableTouchOnHit[chainhash.Hash, any](),
		),
	}

	go gc.ttlCache.Start()

	return gc
}

func (gc *GenerationalCache) Begin(key chainhash.Hash) *CacheOperation {
	return &CacheOperation{
		generationalCache: gc,
		key:               key,
		generation:        gc.generation.Load(),
	}
}

// DeleteAll clears all cached entries and invalidates in-flight operations.
func (gc *GenerationalCache) DeleteAll() {
	gc.ttlCache.DeleteAll()
	gc.generation.Inc()
}

// Stop halts automatic cleanup. It is safe to call Stop multiple times.
func (gc *GenerationalCache) Stop() {
	if gc.stopped.CompareAndSwap(false, true) {
		gc.ttlCache.Stop()
	}
}

// CacheOperation is a Get, query, Set sequence bound to the generation seen at Begin.
//
//	op := cache.Begin(key)
//	if item := op.Get(); item != nil {
//	    return item.Value()
//	}
//	result := query()
//	op.Set(result, ttl)
type CacheOperation struct {
	generationalCache *GenerationalCache
	key               chainhash.Hash
	generation        uint64
}

func (co *CacheOperation) Get() *ttlcache.Item[chainhash.Hash, any] {
	return co.generationalCache.ttlCache.Get(co.key)
}

// Set caches value unless the cache was invalidated since Begin. It reports whether the value was cached.
func (co *CacheOperation) Set(value any, ttl time.Duration) bool {
	if co.generation == co.generationalCache.generation.Load() {
		co.generationalCache.ttlCache.Set(co.key, value, ttl)
		return true
	}

	return false
}
