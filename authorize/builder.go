// Package authorize assembles provider authorization URLs with scope
// filtering and PKCE parameters attached.
package authorize

import (
	"golang.org/x/oauth2"
)

// Builder constructs authorization URLs for the registered client. Requested
// scopes are intersected with the client's provisioned allow-list before being
// forwarded; caller-supplied scopes never reach the provider unfiltered.
type Builder struct {
	clientID string
	endpoint oauth2.Endpoint
	allowed  map[string]struct{}
	defaults []string
}

// NewBuilder creates a Builder. allowedScopes is the fixed allow-list the
// client is provisioned for; defaultScopes is the minimal set substituted when
// a request yields an empty intersection.
func NewBuilder(clientID string, endpoint oauth2.Endpoint, allowedScopes, defaultScopes []string) *Builder {
	allowed := make(map[string]struct{}, len(allowedScopes))
	for _, s := range allowedScopes {
		allowed[s] = struct{}{}
	}
	return &Builder{
		clientID: clientID,
		endpoint: endpoint,
		allowed:  allowed,
		defaults: defaultScopes,
	}
}

// FilterScopes intersects the requested scopes with the allow-list, preserving
// request order. An empty intersection substitutes the default set.
func (b *Builder) FilterScopes(requested []string) []string {
	var filtered []string
	for _, s := range requested {
		if _, ok := b.allowed[s]; ok {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return append([]string(nil), b.defaults...)
	}
	return filtered
}

// AuthURL builds the authorization URL for one flow attempt. The verifier's
// S256 challenge and code_challenge_method are always attached; the state is
// carried opaquely.
func (b *Builder) AuthURL(redirectURI string, requestedScopes []string, state, verifier string) string {
	cfg := oauth2.Config{
		ClientID:    b.clientID,
		Endpoint:    b.endpoint,
		RedirectURL: redirectURI,
		Scopes:      b.FilterScopes(requestedScopes),
	}
	return cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}
