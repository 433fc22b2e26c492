// Package oauth adapts external OAuth providers (GitHub, Google) to
// identity.OAuthIdentity.
//
// Providers return identity facts only. They never create users or sessions;
// the HTTP layer does that with identity.Store and session.Manager.
package oauth
