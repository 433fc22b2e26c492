package oauth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds provider credentials and the public base URL used to build
// callback URLs ({HostName}/api/login/{provider}/callback).
type Config struct {
	HostName string `env:"GATEKEEP_HOST_NAME" envDefault:"http://localhost:8080"`

	GitHubClientID     string `env:"GATEKEEP_GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GATEKEEP_GITHUB_CLIENT_SECRET"`

	GoogleClientID     string `env:"GATEKEEP_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GATEKEEP_GOOGLE_CLIENT_SECRET"`
}

// LoadConfigFromEnv reads provider configuration from the environment.
func LoadConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	cfg.HostName = strings.TrimRight(strings.TrimSpace(cfg.HostName), "/")

	u, err := url.Parse(cfg.HostName)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Config{}, fmt.Errorf("%w: GATEKEEP_HOST_NAME must be an absolute http(s) URL", ErrConfig)
	}
	return cfg, nil
}

// CallbackURL returns the redirect URI registered with provider.
func (c Config) CallbackURL(provider string) string {
	return c.HostName + "/api/login/" + provider + "/callback"
}

// GitHubEnabled reports whether both GitHub credentials are present.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// GoogleEnabled reports whether both Google credentials are present.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// NewRegistryFromConfig registers every provider whose credentials are set.
// Google performs OIDC discovery, so ctx bounds a network call.
func NewRegistryFromConfig(ctx context.Context, cfg Config) (*Registry, error) {
	var list []Provider

	if cfg.GitHubEnabled() {
		p, err := NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.CallbackURL(githubName))
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	if cfg.GoogleEnabled() {
		p, err := NewGoogleProvider(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.CallbackURL(googleName))
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return NewRegistry(list...), nil
}
