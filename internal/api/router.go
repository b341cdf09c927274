package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/charlesng35/backoffice/internal/auth"
	"github.com/charlesng35/backoffice/internal/handlers"
	"github.com/charlesng35/backoffice/internal/middleware"
	"github.com/charlesng35/backoffice/internal/monitoring"
	"github.com/charlesng35/backoffice/internal/monitoring/checks"
	"github.com/charlesng35/backoffice/internal/realtime"
	"github.com/charlesng35/backoffice/internal/security"
	"github.com/charlesng35/backoffice/internal/services"
)

// Options toggles optional router features.
type Options struct {
	MetricsEnabled  bool
	MetricsEndpoint string

	// Health runs the /health probes. Nil registers the database and menu tree checks.
	Health *monitoring.HealthManager

	// Realtime receives access change events from svc. Nil creates a private hub.
	Realtime *realtime.Hub
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, svc *services.Set, opts Options) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if svc == nil {
		return nil, fmt.Errorf("services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RequestMetadata())

	health := opts.Health
	if health == nil {
		health = monitoring.NewHealthManager(0)
		health.RegisterReadiness(checks.Database(db))
		health.RegisterReadiness(checks.MenuTree(svc.Access))
	}
	registerHealthRoutes(r, health)

	public := r.Group("/api")
	registerSetupRoutes(public, handlers.NewSetupHandler(svc.Users))

	authHandler := handlers.NewAuthHandler(svc.Users, jwt)
	public.POST("/auth/login", authHandler.Login)

	hub := opts.Realtime
	if hub == nil {
		hub = realtime.NewHub()
	}
	svc.UseNotifier(hub)
	public.GET("/ws", handlers.NewRealtimeHandler(hub, jwt).Stream)

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	registerAuthRoutes(api, authHandler)
	registerAccessRoutes(api, handlers.NewAccessHandler(svc.Access))
	registerUserRoutes(api, handlers.NewUserHandler(svc.Users), handlers.NewGrantHandler(svc.Access), svc.Access)
	registerCompanyRoutes(api, handlers.NewCompanyHandler(svc.Companies), svc.Access)
	registerMenuRoutes(api, handlers.NewMenuHandler(svc.Menus, svc.Access), svc.Access)
	registerAuditRoutes(api, handlers.NewAuditHandler(svc.Audit, security.NewAuditService(db, jwt)), svc.Access)

	if opts.MetricsEnabled {
		endpoint := strings.TrimSpace(opts.MetricsEndpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
