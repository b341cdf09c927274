package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/backoffice/pkg/logger"
)

// Logger writes one structured access line per request. Authenticated requests
// carry the caller's role and company so denied requests can be traced to the
// tenant that made them.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		route := c.FullPath()

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if route != "" && route != path {
			fields = append(fields, zap.String("route", route))
		}
		if identity, ok := IdentityFrom(c); ok {
			fields = append(fields,
				zap.String("user_id", identity.ID),
				zap.String("role", identity.Role.String()),
				zap.String("company_id", identity.CompanyID),
			)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		log := logger.WithModule("http")
		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status == 401 || status == 403:
			log.Info("request denied", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Debug("request", fields...)
		}
	}
}
