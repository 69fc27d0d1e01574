package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Cache is the subset of the redis wrapper the cached store needs.
type Cache interface {
	GetCache(ctx context.Context, key string, dest interface{}) error
	SetCache(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DeleteCache(ctx context.Context, keys ...string) error
}

// CachedStore serves Get for selected collections from a read-through
// cache. Every successful write drops the cache entries of the ids it
// touched; queries always go to the inner store.
//
// A fill is skipped when a write to the same key happened while the
// document was being read, so this process never caches a copy older than
// its own writes. Writers in other processes can still race a fill; such
// an entry lives at most one TTL, and a guarded update that fails with
// ErrConflict drops it immediately.
type CachedStore struct {
	inner       Store
	cache       Cache
	ttl         time.Duration
	collections map[string]bool
	logger      *zap.Logger

	mu          sync.Mutex
	generations map[string]uint64
}

func NewCachedStore(inner Store, cache Cache, ttl time.Duration, logger *zap.Logger, collections ...string) *CachedStore {
	set := make(map[string]bool, len(collections))
	for _, c := range collections {
		set[c] = true
	}
	return &CachedStore{
		inner:       inner,
		cache:       cache,
		ttl:         ttl,
		collections: set,
		logger:      logger,
		generations: make(map[string]uint64),
	}
}

func cacheKey(collection, id string) string {
	return "doc:" + collection + ":" + id
}

func (s *CachedStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if !s.collections[collection] {
		return s.inner.Get(ctx, collection, id)
	}

	var cached json.RawMessage
	if err := s.cache.GetCache(ctx, cacheKey(collection, id), &cached); err == nil && len(cached) > 0 {
		return cached, nil
	}

	key := cacheKey(collection, id)
	s.mu.Lock()
	gen := s.generations[key]
	s.mu.Unlock()

	doc, err := s.inner.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	// The lock spans the check and the fill so that a concurrent
	// invalidate either lands before the check or deletes after the fill.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[key] != gen {
		return doc, nil
	}
	if err := s.cache.SetCache(ctx, key, doc, s.ttl); err != nil {
		s.logger.Warn("Failed to populate document cache",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err),
		)
	}
	return doc, nil
}

func (s *CachedStore) Query(ctx context.Context, collection string, filter Filter, opts ...QueryOption) ([]json.RawMessage, error) {
	return s.inner.Query(ctx, collection, filter, opts...)
}

func (s *CachedStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := s.inner.Update(ctx, collection, id, fields); err != nil {
		return err
	}
	s.invalidate(ctx, []WriteOp{{Collection: collection, ID: id}})
	return nil
}

// AtomicBatch invalidates after success, and also after a conflict since
// the caller's cached copy is then known to be stale.
func (s *CachedStore) AtomicBatch(ctx context.Context, ops []WriteOp) error {
	if err := s.inner.AtomicBatch(ctx, ops); err != nil {
		if errors.Is(err, ErrConflict) {
			s.invalidate(ctx, ops)
		}
		return err
	}
	s.invalidate(ctx, ops)
	return nil
}

func (s *CachedStore) invalidate(ctx context.Context, ops []WriteOp) {
	var keys []string
	for _, op := range ops {
		if s.collections[op.Collection] {
			keys = append(keys, cacheKey(op.Collection, op.ID))
		}
	}
	if len(keys) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.generations[k]++
	}
	if err := s.cache.DeleteCache(ctx, keys...); err != nil {
		s.logger.Warn("Failed to invalidate document cache",
			zap.Strings("keys", keys),
			zap.Error(err),
		)
	}
}
