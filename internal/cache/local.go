package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultLocalSize = 256
	defaultLocalTTL  = time.Minute
)

// LocalStore is an in-process LRU with a single expiry applied to every entry.
// The per-call ttl passed to Set is ignored.
type LocalStore struct {
	lru *expirable.LRU[string, []byte]
}

// NewLocalStore builds a LocalStore holding at most size entries for ttl each.
func NewLocalStore(size int, ttl time.Duration) *LocalStore {
	if size <= 0 {
		size = defaultLocalSize
	}
	if ttl <= 0 {
		ttl = defaultLocalTTL
	}
	return &LocalStore{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := s.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(value), true, nil
}

func (s *LocalStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.lru.Add(key, cloneBytes(value))
	return nil
}

func (s *LocalStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.lru.Remove(key)
	}
	return nil
}

// Len reports the number of live entries.
func (s *LocalStore) Len() int {
	return s.lru.Len()
}

func cloneBytes(value []byte) []byte {
	if value == nil {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
