package cache

import (
	"context"
	"time"
)

// Store is a byte cache shared by the services. A miss is reported as found=false
// with a nil error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
