package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/backoffice/internal/auth"
	"github.com/charlesng35/backoffice/pkg/crypto"
)

const jwtSecretBytes = 48

// Adjustment records a configuration value ApplyRuntimeDefaults had to fill in.
// Secret values are never included.
type Adjustment struct {
	Key    string
	Secret bool
	Value  string
}

// ApplyRuntimeDefaults fills values the server cannot start without and repairs
// out-of-range settings left by partial config files or env overrides.
func ApplyRuntimeDefaults(cfg *Config) ([]Adjustment, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	var adjusted []Adjustment

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateSecret(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		adjusted = append(adjusted, Adjustment{Key: "auth.jwt.secret", Secret: true})
	}

	if cfg.Auth.JWT.TTL <= 0 {
		cfg.Auth.JWT.TTL = auth.DefaultAccessTokenTTL
		adjusted = append(adjusted, Adjustment{Key: "auth.jwt.access_token_ttl", Value: cfg.Auth.JWT.TTL.String()})
	}

	if cfg.Cache.MenuSize <= 0 {
		cfg.Cache.MenuSize = defaultMenuCacheSize
		adjusted = append(adjusted, Adjustment{Key: "cache.menu_size", Value: fmt.Sprint(cfg.Cache.MenuSize)})
	}

	// Zero disables retention pruning; negative values are a typo, not a policy.
	if cfg.Maintenance.AuditRetentionDays < 0 {
		cfg.Maintenance.AuditRetentionDays = 0
		adjusted = append(adjusted, Adjustment{Key: "maintenance.audit_retention_days", Value: "0"})
	}

	return adjusted, nil
}
