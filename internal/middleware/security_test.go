package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/backoffice/internal/permissions"
)

func TestSecurityHeadersSurviveDeniedRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/open", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/closed",
		withIdentity(permissions.Identity{ID: "u-1", Role: permissions.RoleUser}),
		RequireRoles(permissions.RoleRoot),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	for path, code := range map[string]int{"/open": http.StatusOK, "/closed": http.StatusForbidden} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, code, w.Code, path)

		h := w.Header()
		require.Equal(t, "DENY", h.Get("X-Frame-Options"), path)
		require.Equal(t, "nosniff", h.Get("X-Content-Type-Options"), path)
		require.Equal(t, DefaultContentSecurityPolicy, h.Get("Content-Security-Policy"), path)
		require.Equal(t, "no-store", h.Get("Cache-Control"), path)
		require.Equal(t, "no-referrer", h.Get("Referrer-Policy"), path)
		require.Contains(t, h.Get("Strict-Transport-Security"), "max-age=")
	}
}
