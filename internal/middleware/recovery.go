package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/backoffice/pkg/errors"
	"github.com/charlesng35/backoffice/pkg/logger"
	"github.com/charlesng35/backoffice/pkg/metrics"
	"github.com/charlesng35/backoffice/pkg/response"
)

// Recovery turns a panicking handler into a 500 envelope. A request that has
// already started writing its body is left as is.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			fields := []zap.Field{
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", r),
				zap.Stack("stack"),
			}
			if identity, ok := IdentityFrom(c); ok {
				fields = append(fields, zap.String("user_id", identity.ID))
			}
			logger.WithModule("http").Error("handler panicked", fields...)
			metrics.HandlerPanics.Inc()

			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Error(c, errors.ErrInternalServer)
		}()
		c.Next()
	}
}

// NotFoundHandler answers unknown routes with a JSON 404 envelope.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.ErrNotFound.WithMessage(fmt.Sprintf("route %s %s not found", c.Request.Method, c.Request.URL.Path)))
}
