package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/backoffice/internal/app"
	"github.com/charlesng35/backoffice/internal/cache"
	"github.com/charlesng35/backoffice/internal/database"
	"github.com/charlesng35/backoffice/internal/models"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)
	cfg.Database.Path = filepath.Join(t.TempDir(), "backoffice.sqlite")
	cfg.Auth.JWT.Secret = "bootstrap-test-secret"
	return cfg
}

func TestBootstrapRuntime(t *testing.T) {
	cfg := testConfig(t)
	log := zap.NewNop()

	stack, err := bootstrapRuntime(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), log) })

	require.NotNil(t, stack.Services)
	require.NotNil(t, stack.Cleaner)
	require.Nil(t, stack.Redis)

	rec := httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBootstrapRuntimeFallsBackWhenRedisIsDown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Redis.Enabled = true
	cfg.Cache.Redis.Address = "127.0.0.1:1"
	cfg.Cache.Redis.Timeout = 200 * time.Millisecond
	cfg.Maintenance.Enabled = false

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.Nil(t, stack.Redis)
	require.Nil(t, stack.Cleaner)
}

func TestBootstrapRuntimeRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestBuildNodeCacheUsesSharedTier(t *testing.T) {
	srv := miniredis.RunT(t)

	cfg := testConfig(t)
	shared, err := cache.NewRedisStore(context.Background(), cache.RedisConfig{Address: srv.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shared.Close() })

	store := buildNodeCache(cfg, shared)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "nodes", []byte("payload"), time.Minute))

	value, ok, err := shared.Get(ctx, "nodes")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), value)

	local := buildNodeCache(cfg, nil)
	require.NoError(t, local.Set(ctx, "nodes", []byte("payload"), time.Minute))
	value, ok, err = local.Get(ctx, "nodes")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), value)
}

func TestEnsureSecretsPresent(t *testing.T) {
	require.Error(t, ensureSecretsPresent(nil))
	require.Error(t, ensureSecretsPresent(&app.Config{}))

	cfg := &app.Config{}
	cfg.Auth.JWT.Secret = "  secret  "
	require.NoError(t, ensureSecretsPresent(cfg))
	require.Equal(t, "secret", cfg.Auth.JWT.Secret)
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing"))
	require.ErrorContains(t, err, "does not exist")
}

func TestRunMigrateOnly(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migrated.sqlite")
	t.Setenv("BACKOFFICE_DATABASE_PATH", dbPath)
	t.Setenv("BACKOFFICE_SERVER_LOG_LEVEL", "error")

	require.NoError(t, run(context.Background(), []string{"-config", t.TempDir(), "-migrate-only"}))

	db, err := database.Open(database.Config{Driver: "sqlite", Path: dbPath})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	var nodes int64
	require.NoError(t, db.Model(&models.MenuNode{}).Count(&nodes).Error)
	require.Positive(t, nodes)
}
