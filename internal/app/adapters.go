package app

import (
	"strings"

	"github.com/charlesng35/backoffice/internal/auth"
	"github.com/charlesng35/backoffice/internal/cache"
	"github.com/charlesng35/backoffice/internal/database"
	"github.com/charlesng35/backoffice/internal/services"
)

const (
	defaultMenuCacheSize = 64
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
	}
}

// LocalSize returns the in-process cache capacity.
func (c CacheConfig) LocalSize() int {
	if c.MenuSize <= 0 {
		return defaultMenuCacheSize
	}
	return c.MenuSize
}

// ServiceConfig converts the access and cache sections into AccessService settings.
func (c Config) ServiceConfig() services.AccessConfig {
	return services.AccessConfig{
		PurgeUnmentionedGrants: c.Access.PurgeUnmentionedGrants,
		NodeCacheTTL:           c.Cache.MenuTTL,
	}
}

// ConnectionConfig selects the database connection parameters for the configured driver.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:   c.Path,
		DSN:    strings.TrimSpace(c.DSN),
	}

	var host DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql", "mariadb":
		host = c.MySQL
	default:
		return cfg
	}

	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	return cfg
}
