package authapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls the HTTP auth surface. Session cookie name and Secure flag
// come from session.Config.
type Config struct {
	CookieDomain string `env:"GATEKEEP_AUTH_COOKIE_DOMAIN"`
	CookiePath   string `env:"GATEKEEP_AUTH_COOKIE_PATH" envDefault:"/"`

	// FlowTTL bounds the login round trip (state and PKCE verifier cookies).
	FlowTTL time.Duration `env:"GATEKEEP_AUTH_OAUTH_FLOW_TTL" envDefault:"10m"`

	// PostLoginRedirect is where the callback sends the browser on success.
	PostLoginRedirect string `env:"GATEKEEP_AUTH_POST_LOGIN_REDIRECT" envDefault:"/"`

	// AllowBearer also accepts "Authorization: Bearer <token>" for non-browser clients.
	AllowBearer bool `env:"GATEKEEP_AUTH_ALLOW_BEARER" envDefault:"false"`

	CookieSameSite http.SameSite
}

// DefaultConfig returns the defaults used when the environment sets nothing.
func DefaultConfig() Config {
	return Config{
		CookiePath:        "/",
		FlowTTL:           10 * time.Minute,
		PostLoginRedirect: "/",
		CookieSameSite:    http.SameSiteLaxMode,
	}
}

// LoadConfigFromEnv loads auth API config from environment variables.
func LoadConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("authapi: config: %w", err)
	}
	// Lax lets the session cookie ride the top-level redirect back from the provider.
	cfg.CookieSameSite = http.SameSiteLaxMode

	if cfg.FlowTTL < time.Minute || cfg.FlowTTL > time.Hour {
		return Config{}, fmt.Errorf("authapi: config: GATEKEEP_AUTH_OAUTH_FLOW_TTL must be within [1m, 1h]")
	}
	if !isLocalRedirect(cfg.PostLoginRedirect) {
		return Config{}, fmt.Errorf("authapi: config: GATEKEEP_AUTH_POST_LOGIN_REDIRECT must be a relative path")
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	return cfg, nil
}

// isLocalRedirect accepts only same-origin absolute paths. Browsers read "/\"
// like "//", so both scheme-relative forms are refused.
func isLocalRedirect(p string) bool {
	if !strings.HasPrefix(p, "/") {
		return false
	}
	if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
		return false
	}
	return true
}
