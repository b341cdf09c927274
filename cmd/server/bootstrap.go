package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/backoffice/internal/api"
	"github.com/charlesng35/backoffice/internal/app"
	"github.com/charlesng35/backoffice/internal/app/maintenance"
	iauth "github.com/charlesng35/backoffice/internal/auth"
	"github.com/charlesng35/backoffice/internal/cache"
	"github.com/charlesng35/backoffice/internal/database"
	"github.com/charlesng35/backoffice/internal/monitoring"
	"github.com/charlesng35/backoffice/internal/monitoring/checks"
	"github.com/charlesng35/backoffice/internal/services"
	"github.com/charlesng35/backoffice/pkg/logger"
	"github.com/charlesng35/backoffice/pkg/metrics"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB       *gorm.DB
	Redis    *cache.RedisStore
	Services *services.Set
	Cleaner  *maintenance.Cleaner
	Router   *gin.Engine
}

// bootstrapRuntime initialises the database, node cache, services, maintenance jobs, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; node cache stays in-process", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	stack.Services, err = services.NewSet(stack.DB, buildNodeCache(cfg, stack.Redis), cfg.ServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(stack.Services.Access.Store(), stack.Services.Audit,
			maintenance.WithGrantSchedule(cfg.Maintenance.GrantCleanupSchedule),
			maintenance.WithAuditSchedule(cfg.Maintenance.AuditSchedule),
			maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(stack.DB, jwtSvc, stack.Services, api.Options{
		MetricsEnabled:  cfg.Monitoring.Prometheus.Enabled,
		MetricsEndpoint: cfg.Monitoring.Prometheus.Endpoint,
		Health:          buildHealthManager(cfg, stack),
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// buildNodeCache layers the in-process LRU in front of Redis when a shared tier is available.
func buildNodeCache(cfg *app.Config, shared *cache.RedisStore) cache.Store {
	local := cache.NewLocalStore(cfg.Cache.LocalSize(), cfg.Cache.MenuTTL)

	var tiered *cache.TieredStore
	if shared != nil {
		tiered = cache.NewTieredStore(local, shared)
	} else {
		tiered = cache.NewTieredStore(local, nil)
	}
	tiered.OnLookup = func(tier string, hit bool) {
		result := "miss"
		if hit {
			result = "hit"
		}
		metrics.NodeCacheLookups.WithLabelValues(tier, result).Inc()
	}
	return tiered
}

func buildHealthManager(cfg *app.Config, stack *runtimeStack) *monitoring.HealthManager {
	manager := monitoring.NewHealthManager(0)
	manager.RegisterReadiness(checks.Database(stack.DB))
	manager.RegisterReadiness(checks.MenuTree(stack.Services.Access))

	var redis checks.RedisPinger
	if stack.Redis != nil {
		redis = stack.Redis
	}
	manager.RegisterReadiness(checks.Redis(redis, cfg.Cache.Redis.Enabled))
	return manager
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		closeDatabase(db, logger.WithModule("database"))
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
