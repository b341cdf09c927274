package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/backoffice/internal/permissions"
	"github.com/charlesng35/backoffice/pkg/errors"
	"github.com/charlesng35/backoffice/pkg/logger"
	"github.com/charlesng35/backoffice/pkg/response"
)

// MenuAuthorizer answers whether an identity may act on the menu node with key.
type MenuAuthorizer interface {
	CanKey(ctx context.Context, id permissions.Identity, key string, action permissions.Action) (bool, error)
}

// RequireMenuAction lets the request through when the caller holds action on the
// menu node identified by key.
func RequireMenuAction(authz MenuAuthorizer, key string, action permissions.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			return
		}

		allowed, err := authz.CanKey(c.Request.Context(), identity, key, action)
		if err != nil {
			logger.WithModule("http").Error("permission check failed",
				zap.String("key", key),
				zap.String("action", string(action)),
				zap.Error(err),
			)
			response.Error(c, err)
			return
		}
		if !allowed {
			response.Error(c, errors.ErrForbidden)
			return
		}
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...permissions.Role) gin.HandlerFunc {
	allowed := make(map[permissions.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[identity.Role]; !ok {
			response.Error(c, errors.ErrForbidden)
			return
		}
		c.Next()
	}
}
