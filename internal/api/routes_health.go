package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/backoffice/internal/monitoring"
)

// /health is the load balancer summary; /health/live and /health/ready carry
// per-probe detail for orchestrators.
func registerHealthRoutes(r *gin.Engine, manager *monitoring.HealthManager) {
	for _, router := range []gin.IRouter{r, r.Group("/api")} {
		router.GET("/health", healthEndpoint(manager.EvaluateReadiness, false))
		router.GET("/health/live", healthEndpoint(manager.EvaluateLiveness, true))
		router.GET("/health/ready", healthEndpoint(manager.EvaluateReadiness, true))
	}
}

func healthEndpoint(evaluate func(context.Context) monitoring.HealthReport, detailed bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := evaluate(c.Request.Context())

		code := http.StatusOK
		if report.Status == monitoring.StatusDown {
			code = http.StatusServiceUnavailable
		}
		if !detailed {
			report.Checks = nil
		}
		c.JSON(code, report)
	}
}
