// Command issuetoken mints a signed identity token for local development.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charlesng35/backoffice/internal/app"
	iauth "github.com/charlesng35/backoffice/internal/auth"
	"github.com/charlesng35/backoffice/internal/models"
	"github.com/charlesng35/backoffice/internal/permissions"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("issuetoken", flag.ContinueOnError)
	fs.SetOutput(out)

	var (
		configPath string
		userID     string
		role       string
		companyID  string
		ttl        time.Duration
	)
	fs.StringVar(&configPath, "config", "", "Path to configuration directory")
	fs.StringVar(&userID, "user", "", "User id to embed in the token")
	fs.StringVar(&role, "role", string(permissions.RoleUser), "Role to embed (root, admin, audit, user)")
	fs.StringVar(&companyID, "company", models.SystemCompanyID, "Company id to embed")
	fs.DurationVar(&ttl, "ttl", 0, "Token lifetime; defaults to auth.jwt.access_token_ttl")

	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		cfg *app.Config
		err error
	)
	if strings.TrimSpace(configPath) == "" {
		cfg, err = app.LoadConfig()
	} else {
		cfg, err = app.LoadConfig(configPath)
	}
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		return errors.New("auth.jwt.secret must be configured; a generated secret would not match the server")
	}

	jwtCfg := cfg.Auth.JWTServiceConfig()
	if ttl > 0 {
		jwtCfg.AccessTokenTTL = ttl
	}
	jwtSvc, err := iauth.NewJWTService(jwtCfg)
	if err != nil {
		return err
	}

	token, expiresAt, err := jwtSvc.IssueIdentity(permissions.Identity{
		ID:        strings.TrimSpace(userID),
		Role:      permissions.ParseRole(role),
		CompanyID: strings.TrimSpace(companyID),
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, token)
	fmt.Fprintf(out, "# expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}
