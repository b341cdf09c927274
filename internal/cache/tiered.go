package cache

import (
	"context"
	"time"

	"go.uber.org/multierr"
)

// Tier names reported by TieredStore lookups.
const (
	TierLocal  = "local"
	TierShared = "shared"
)

// TieredStore reads through a local store before a shared one and back-fills the
// local tier on a shared hit. Writes and deletes go to both tiers. Either tier may
// be nil.
type TieredStore struct {
	local  Store
	shared Store

	// OnLookup, when set, observes every tier lookup.
	OnLookup func(tier string, hit bool)
}

func NewTieredStore(local, shared Store) *TieredStore {
	return &TieredStore{local: local, shared: shared}
}

func (s *TieredStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.local != nil {
		value, ok, err := s.local.Get(ctx, key)
		s.observe(TierLocal, ok && err == nil)
		if err == nil && ok {
			return value, true, nil
		}
	}
	if s.shared == nil {
		return nil, false, nil
	}

	value, ok, err := s.shared.Get(ctx, key)
	s.observe(TierShared, ok && err == nil)
	if err != nil || !ok {
		return nil, false, err
	}
	if s.local != nil {
		_ = s.local.Set(ctx, key, value, 0)
	}
	return value, true, nil
}

func (s *TieredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var err error
	if s.local != nil {
		err = multierr.Append(err, s.local.Set(ctx, key, value, ttl))
	}
	if s.shared != nil {
		err = multierr.Append(err, s.shared.Set(ctx, key, value, ttl))
	}
	return err
}

func (s *TieredStore) Delete(ctx context.Context, keys ...string) error {
	var err error
	if s.local != nil {
		err = multierr.Append(err, s.local.Delete(ctx, keys...))
	}
	if s.shared != nil {
		err = multierr.Append(err, s.shared.Delete(ctx, keys...))
	}
	return err
}

func (s *TieredStore) observe(tier string, hit bool) {
	if s.OnLookup != nil {
		s.OnLookup(tier, hit)
	}
}
