package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/backoffice/internal/cache"
	"github.com/charlesng35/backoffice/internal/database"
	"github.com/charlesng35/backoffice/internal/database/testutil"
	"github.com/charlesng35/backoffice/internal/models"
	"github.com/charlesng35/backoffice/internal/permissions"
)

// gatedCache holds the first Set until release is closed.
type gatedCache struct {
	cache.Store

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedCache() *gatedCache {
	return &gatedCache{
		Store:   cache.NewLocalStore(16, time.Minute),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (c *gatedCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	first := false
	c.once.Do(func() { first = true })
	if first {
		close(c.entered)
		<-c.release
	}
	return c.Store.Set(ctx, key, value, ttl)
}

func TestNodeCacheInvalidationBeatsInFlightFill(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	gated := newGatedCache()
	set, err := NewSet(db, gated, AccessConfig{})
	require.NoError(t, err)

	f := &serviceFixture{db: db, access: set.Access}
	root := f.root(t)
	ctx := context.Background()

	var administration models.MenuNode
	require.NoError(t, db.Where(models.MenuNode{Key: database.MenuAdministration}).First(&administration).Error)

	type menuResult struct {
		keys []string
		err  error
	}
	inFlight := make(chan menuResult, 1)
	go func() {
		menu, err := set.Access.VisibleMenu(ctx, root)
		inFlight <- menuResult{keys: menuKeys(menu), err: err}
	}()

	<-gated.entered
	_, err = set.Access.MoveMenu(ctx, root, administration.ID, permissions.DirectionUp)
	require.NoError(t, err)
	close(gated.release)

	res := <-inFlight
	require.NoError(t, res.err)
	require.Equal(t, []string{database.MenuDashboard, database.MenuAdministration, database.MenuAudit}, res.keys)

	after, err := set.Access.VisibleMenu(ctx, root)
	require.NoError(t, err)
	require.Equal(t, []string{database.MenuAdministration, database.MenuDashboard, database.MenuAudit}, menuKeys(after))

	_, cached, err := gated.Get(ctx, nodesCacheKey)
	require.NoError(t, err)
	require.True(t, cached)
}

func TestNodeCacheFillAndInvalidate(t *testing.T) {
	f := newServiceFixture(t, AccessConfig{})
	ctx := context.Background()

	_, err := f.access.Nodes(ctx)
	require.NoError(t, err)

	_, cached, err := f.cache.Get(ctx, nodesCacheKey)
	require.NoError(t, err)
	require.True(t, cached)

	f.access.InvalidateNodes(ctx)
	_, cached, err = f.cache.Get(ctx, nodesCacheKey)
	require.NoError(t, err)
	require.False(t, cached)
}
