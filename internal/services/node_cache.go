package services

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/charlesng35/backoffice/internal/cache"
	"github.com/charlesng35/backoffice/internal/permissions"
)

const (
	nodesCacheKey      = "menu:nodes"
	defaultNodeListTTL = 5 * time.Minute
)

// cachedNodeStore serves FetchNodes from a cache and collapses concurrent misses
// into one database read. Grants always go to the database.
//
// generation advances on every Invalidate. A fill that observes a newer
// generation after writing deletes its entry again, so a read that started
// before a menu change cannot outlive the invalidation in the cache.
type cachedNodeStore struct {
	*AccessStore

	cache      cache.Store
	ttl        time.Duration
	group      singleflight.Group
	generation atomic.Uint64
	log        *zap.Logger
}

func newCachedNodeStore(store *AccessStore, nodeCache cache.Store, ttl time.Duration, log *zap.Logger) *cachedNodeStore {
	if ttl <= 0 {
		ttl = defaultNodeListTTL
	}
	return &cachedNodeStore{AccessStore: store, cache: nodeCache, ttl: ttl, log: log}
}

func (s *cachedNodeStore) FetchNodes(ctx context.Context) ([]permissions.ResourceNode, error) {
	ctx = ensureContext(ctx)

	if s.cache != nil {
		payload, ok, err := s.cache.Get(ctx, nodesCacheKey)
		switch {
		case err != nil:
			s.log.Warn("node cache read failed", zap.Error(err))
		case ok:
			var nodes []permissions.ResourceNode
			if err := json.Unmarshal(payload, &nodes); err == nil {
				return nodes, nil
			}
			s.log.Warn("discarding undecodable node cache entry")
		}
	}

	result := s.group.DoChan(nodesCacheKey, func() (any, error) {
		fillCtx := context.WithoutCancel(ctx)
		generation := s.generation.Load()
		nodes, err := s.AccessStore.FetchNodes(fillCtx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.fill(fillCtx, generation, nodes)
		}
		return nodes, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := res.Val.([]permissions.ResourceNode)
		nodes := make([]permissions.ResourceNode, len(shared))
		copy(nodes, shared)
		return nodes, nil
	}
}

func (s *cachedNodeStore) fill(ctx context.Context, generation uint64, nodes []permissions.ResourceNode) {
	if s.generation.Load() != generation {
		return
	}
	payload, err := json.Marshal(nodes)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, nodesCacheKey, payload, s.ttl); err != nil {
		s.log.Warn("node cache write failed", zap.Error(err))
		return
	}
	if s.generation.Load() != generation {
		if err := s.cache.Delete(ctx, nodesCacheKey); err != nil {
			s.log.Warn("node cache rollback failed", zap.Error(err))
		}
	}
}

// Invalidate drops the cached node list. Only this process's local tier is
// cleared; other instances keep their local copy until it expires.
func (s *cachedNodeStore) Invalidate(ctx context.Context) {
	s.generation.Add(1)
	if s.cache == nil {
		return
	}
	s.group.Forget(nodesCacheKey)
	if err := s.cache.Delete(ensureContext(ctx), nodesCacheKey); err != nil {
		s.log.Warn("node cache invalidation failed", zap.Error(err))
	}
}
