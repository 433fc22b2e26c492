package oauth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"gatekeep/cmd/identity"
)

const (
	googleName   = "google"
	googleIssuer = "https://accounts.google.com"
)

// GoogleProvider signs users in with Google via OpenID Connect.
// The ID token is verified against Google's published keys.
type GoogleProvider struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogleProvider discovers Google's OIDC configuration and builds the provider.
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, fmt.Errorf("%w: google client id, secret and redirect url are required", ErrConfig)
	}

	op, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("oauth: google discovery: %w", err)
	}

	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     op.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: op.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (p *GoogleProvider) Name() string { return googleName }

func (p *GoogleProvider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

type googleClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier string) (identity.OAuthIdentity, error) {
	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return identity.OAuthIdentity{}, fmt.Errorf("%w: google: %v", ErrExchange, err)
	}

	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return identity.OAuthIdentity{}, fmt.Errorf("%w: google: no id_token", ErrExchange)
	}

	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return identity.OAuthIdentity{}, fmt.Errorf("%w: google: verify id_token: %v", ErrExchange, err)
	}

	var c googleClaims
	if err := idToken.Claims(&c); err != nil {
		return identity.OAuthIdentity{}, fmt.Errorf("%w: google: claims: %v", ErrProfile, err)
	}
	return c.identity()
}

func (c googleClaims) identity() (identity.OAuthIdentity, error) {
	if c.Subject == "" {
		return identity.OAuthIdentity{}, fmt.Errorf("%w: google: missing sub", ErrProfile)
	}
	out := identity.OAuthIdentity{
		Provider:       googleName,
		ProviderUserID: c.Subject,
		DisplayName:    c.Name,
		AvatarURL:      c.Picture,
	}
	// Unverified addresses are not recorded.
	if c.EmailVerified {
		out.Email = c.Email
	}
	return out, nil
}
