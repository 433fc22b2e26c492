package oauth

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"gatekeep/cmd/identity"
)

// Provider is the contract every external login provider implements.
type Provider interface {
	// Name returns the registry key and URL segment ("github", "google").
	Name() string

	// AuthCodeURL returns the authorization URL for state and the PKCE verifier.
	AuthCodeURL(state, verifier string) string

	// Exchange trades the authorization code for a normalized identity.
	Exchange(ctx context.Context, code, verifier string) (identity.OAuthIdentity, error)
}

// Registry holds the configured providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry registers providers by Name. A later provider with the same name wins.
func NewRegistry(list ...Provider) *Registry {
	m := make(map[string]Provider, len(list))
	for _, p := range list {
		if p == nil {
			continue
		}
		m[strings.ToLower(p.Name())] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names lists registered provider names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
