package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/backoffice/internal/auth"
	"github.com/charlesng35/backoffice/internal/cache"
	"github.com/charlesng35/backoffice/internal/database/testutil"
	"github.com/charlesng35/backoffice/internal/monitoring"
	"github.com/charlesng35/backoffice/internal/services"
)

func newTestRouter(t *testing.T, opts Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-test-secret", AccessTokenTTL: time.Minute})
	require.NoError(t, err)
	set, err := services.NewSet(db, cache.NewLocalStore(8, time.Minute), services.AccessConfig{})
	require.NoError(t, err)

	router, err := NewRouter(db, jwt, set, opts)
	require.NoError(t, err)
	return router
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(nil, nil, nil, Options{})
	require.Error(t, err)
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	router := newTestRouter(t, Options{})

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health").Code)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/health").Code)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/setup/status").Code)

	for _, path := range []string{"/api/auth/me", "/api/access/me/menu", "/api/users", "/api/menus", "/api/audit"} {
		rec := serve(router, http.MethodGet, path)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer", path)
	}

	require.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/metrics").Code)
}

func TestRouterCustomMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, Options{MetricsEnabled: true, MetricsEndpoint: "/internal/metrics"})

	rec := serve(router, http.MethodGet, "/internal/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouterReadinessReportsChecks(t *testing.T) {
	router := newTestRouter(t, Options{})

	rec := serve(router, http.MethodGet, "/health/ready")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Checks  []struct {
			Component string `json:"component"`
			Status    string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Len(t, body.Checks, 2)
	require.Equal(t, "database", body.Checks[0].Component)
	require.Equal(t, "menu_tree", body.Checks[1].Component)

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/health/live").Code)
}

func TestRouterHealthStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		status monitoring.ProbeStatus
		code   int
	}{
		{"up", monitoring.StatusUp, http.StatusOK},
		{"degraded", monitoring.StatusDegraded, http.StatusOK},
		{"down", monitoring.StatusDown, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			manager := monitoring.NewHealthManager(0)
			manager.RegisterReadiness(monitoring.NewCheck("redis", func(context.Context) monitoring.ProbeResult {
				return monitoring.ProbeResult{Status: tc.status}
			}))
			router := newTestRouter(t, Options{Health: manager})

			summary := serve(router, http.MethodGet, "/health")
			require.Equal(t, tc.code, summary.Code)
			require.Contains(t, summary.Body.String(), `"checks":null`)

			ready := serve(router, http.MethodGet, "/api/health/ready")
			require.Equal(t, tc.code, ready.Code)
			require.Contains(t, ready.Body.String(), `"component":"redis"`)
		})
	}
}
