package provider

import (
	"context"

	"rifftube/internal/auth"
)

// OAuthProvider is an external sign-in strategy. Implementations return
// identity facts only; they never create users or sessions.
type OAuthProvider interface {
	// Name is the strategy name used in routes and failure redirects
	// (e.g. "google_oauth2").
	Name() string

	// AuthCodeURL returns the authorization URL. State and PKCE are
	// generated by the caller.
	AuthCodeURL(state string, codeChallenge string) string

	// ExchangeCode trades the authorization code for a verified identity.
	ExchangeCode(
		ctx context.Context,
		code string,
		codeVerifier string,
	) (*auth.Identity, error)
}
