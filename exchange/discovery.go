package exchange

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Endpoints are the provider URLs a flow needs.
type Endpoints struct {
	oauth2.Endpoint
	UserInfoURL string
}

// Discover resolves the provider's endpoints from its OIDC discovery
// document.
func Discover(ctx context.Context, issuer string) (Endpoints, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return Endpoints{}, errors.Wrap(err, "[Discover] oidc.NewProvider")
	}
	return Endpoints{
		Endpoint:    provider.Endpoint(),
		UserInfoURL: provider.UserInfoEndpoint(),
	}, nil
}

// StaticEndpoints builds Endpoints from configured URLs, for providers
// without a discovery document or when discovery is disabled.
func StaticEndpoints(authURL, tokenURL, userInfoURL string) Endpoints {
	return Endpoints{
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
		UserInfoURL: userInfoURL,
	}
}
