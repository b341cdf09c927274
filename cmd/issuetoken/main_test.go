package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/backoffice/internal/app"
	iauth "github.com/charlesng35/backoffice/internal/auth"
	"github.com/charlesng35/backoffice/internal/permissions"
)

func TestRunIssuesVerifiableToken(t *testing.T) {
	t.Setenv("BACKOFFICE_AUTH_JWT_SECRET", "issuetoken-secret")

	var out bytes.Buffer
	require.NoError(t, run([]string{"-config", t.TempDir(), "-user", "u-1", "-role", "admin", "-company", "c-1"}, &out))

	token := strings.SplitN(out.String(), "\n", 2)[0]

	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)
	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	claims, err := jwtSvc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, permissions.Identity{ID: "u-1", Role: permissions.RoleAdmin, CompanyID: "c-1"}, claims.Identity())
}

func TestRunRequiresSecretAndUser(t *testing.T) {
	t.Setenv("BACKOFFICE_AUTH_JWT_SECRET", "")
	require.ErrorContains(t, run([]string{"-config", t.TempDir(), "-user", "u-1"}, &bytes.Buffer{}), "secret")

	t.Setenv("BACKOFFICE_AUTH_JWT_SECRET", "issuetoken-secret")
	require.Error(t, run([]string{"-config", t.TempDir()}, &bytes.Buffer{}))
	require.Error(t, run([]string{"-config", t.TempDir(), "-user", "u-1", "-role", "owner"}, &bytes.Buffer{}))
}
