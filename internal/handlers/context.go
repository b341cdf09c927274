package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/backoffice/internal/middleware"
	"github.com/charlesng35/backoffice/internal/permissions"
	"github.com/charlesng35/backoffice/pkg/errors"
	"github.com/charlesng35/backoffice/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentIdentity returns the authenticated caller or writes a 401.
func currentIdentity(c *gin.Context) (permissions.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return permissions.Identity{}, false
	}
	return identity, true
}
