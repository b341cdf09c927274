package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/backoffice/internal/permissions"
)

type stubAuthorizer struct {
	allowed map[string]bool
	err     error
}

func (s stubAuthorizer) CanKey(_ context.Context, id permissions.Identity, key string, action permissions.Action) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.allowed[id.ID+"|"+key+"|"+string(action)], nil
}

func withIdentity(id permissions.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(CtxIdentityKey, id)
		c.Next()
	}
}

func serve(r *gin.Engine) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/secure", nil))
	return w.Code
}

func TestRequireMenuAction(t *testing.T) {
	gin.SetMode(gin.TestMode)

	authz := stubAuthorizer{allowed: map[string]bool{"u1|users|read": true}}
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	r := gin.New()
	r.GET("/secure", RequireMenuAction(authz, "users", permissions.ActionRead), ok)
	require.Equal(t, http.StatusUnauthorized, serve(r))

	r = gin.New()
	r.GET("/secure", withIdentity(permissions.Identity{ID: "u1", Role: permissions.RoleUser}),
		RequireMenuAction(authz, "users", permissions.ActionRead), ok)
	require.Equal(t, http.StatusOK, serve(r))

	r = gin.New()
	r.GET("/secure", withIdentity(permissions.Identity{ID: "u1", Role: permissions.RoleUser}),
		RequireMenuAction(authz, "users", permissions.ActionDelete), ok)
	require.Equal(t, http.StatusForbidden, serve(r))

	r = gin.New()
	r.GET("/secure", withIdentity(permissions.Identity{ID: "u1", Role: permissions.RoleUser}),
		RequireMenuAction(stubAuthorizer{err: errors.New("db down")}, "users", permissions.ActionRead), ok)
	require.Equal(t, http.StatusInternalServerError, serve(r))
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	r := gin.New()
	r.GET("/secure", withIdentity(permissions.Identity{ID: "a", Role: permissions.RoleAudit}),
		RequireRoles(permissions.RoleRoot, permissions.RoleAudit), ok)
	require.Equal(t, http.StatusOK, serve(r))

	r = gin.New()
	r.GET("/secure", withIdentity(permissions.Identity{ID: "b", Role: permissions.RoleAdmin}),
		RequireRoles(permissions.RoleRoot, permissions.RoleAudit), ok)
	require.Equal(t, http.StatusForbidden, serve(r))
}
