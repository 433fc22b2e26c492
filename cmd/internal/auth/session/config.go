package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultRefreshPeriod is the trailing renewal window (15 days).
const DefaultRefreshPeriod = 15 * 24 * time.Hour

// Config defines runtime configuration for the session subsystem.
type Config struct {
	// RefreshPeriod is the trailing window before expiry in which an access
	// renews the session. Sessions live for ExtendTime() = 2 * RefreshPeriod.
	RefreshPeriod time.Duration `env:"GATEKEEP_SESSION_REFRESH_PERIOD" envDefault:"360h"`

	// Cookie carrying the raw token.
	CookieName   string `env:"GATEKEEP_SESSION_COOKIE_NAME" envDefault:"session"`
	CookieSecure bool   `env:"GATEKEEP_SESSION_COOKIE_SECURE" envDefault:"true"`
}

// ExtendTime is the full session lifetime granted on creation or renewal.
func (c Config) ExtendTime() time.Duration {
	return 2 * c.RefreshPeriod
}

// DefaultConfig returns the production defaults (15-day window, 30-day lifetime).
func DefaultConfig() Config {
	return Config{
		RefreshPeriod: DefaultRefreshPeriod,
		CookieName:    "session",
		CookieSecure:  true,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional:
//   - GATEKEEP_SESSION_REFRESH_PERIOD (Go duration, >= 1m)
//   - GATEKEEP_SESSION_COOKIE_NAME
//   - GATEKEEP_SESSION_COOKIE_SECURE
//
// Returns an error wrapping ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants that env parsing cannot express.
func (c Config) Validate() error {
	if c.RefreshPeriod < time.Minute {
		return fmt.Errorf("%w: refresh period must be at least 1m", ErrConfig)
	}
	if strings.TrimSpace(c.CookieName) == "" || strings.ContainsAny(c.CookieName, " ;,=\t") {
		return fmt.Errorf("%w: bad cookie name %q", ErrConfig, c.CookieName)
	}
	return nil
}
