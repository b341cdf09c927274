package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/backoffice/internal/auth"
	"github.com/charlesng35/backoffice/internal/auditctx"
	"github.com/charlesng35/backoffice/internal/permissions"
	"github.com/charlesng35/backoffice/pkg/errors"
	"github.com/charlesng35/backoffice/pkg/response"
)

const (
	CtxClaimsKey   = "authClaims"
	CtxUserIDKey   = "userID"
	CtxIdentityKey = "identity"
)

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			return
		}

		claims, err := jwt.ValidateAccessToken(strings.TrimSpace(authz[7:]))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			return
		}

		identity := claims.Identity()
		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, identity.ID)
		c.Set(CtxIdentityKey, identity)

		ctx := auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			UserID:    identity.ID,
			Role:      identity.Role.String(),
			CompanyID: identity.CompanyID,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequestMetadata attaches the client address to the request context so audit
// entries of unauthenticated calls still record it.
func RequestMetadata() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := auditctx.FromContext(c.Request.Context()); !ok {
			ctx := auditctx.WithActor(c.Request.Context(), auditctx.Actor{
				IPAddress: c.ClientIP(),
				UserAgent: c.Request.UserAgent(),
			})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Auth.
func IdentityFrom(c *gin.Context) (permissions.Identity, bool) {
	v, ok := c.Get(CtxIdentityKey)
	if !ok {
		return permissions.Identity{}, false
	}
	identity, ok := v.(permissions.Identity)
	return identity, ok && identity.ID != ""
}
