package config

import (
	"net/url"

	"github.com/pkg/errors"

	autherrors "github.com/timetrackhq/bexio-auth/internal/errors"
)

// Validate checks the configuration before first use. Failing locally gives a
// clearer error than the provider's redirect_uri rejection would.
func Validate(c Config) error {
	if c.GetClientID() == "" {
		return autherrors.NewConfiguration(errors.New("BEXIO_CLIENT_ID is not set"))
	}
	if c.GetClientSecret() == "" {
		return autherrors.NewConfiguration(errors.New("BEXIO_CLIENT_SECRET is not set"))
	}

	base, err := url.Parse(c.GetBaseURL())
	if err != nil || base.Scheme == "" || base.Host == "" {
		return autherrors.NewConfiguration(errors.Errorf("BASE_URL %q is not an absolute URL", c.GetBaseURL()))
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return autherrors.NewConfiguration(errors.Errorf("BASE_URL scheme %q must be http or https", base.Scheme))
	}

	for name, raw := range map[string]string{
		"BEXIO_AUTH_URL":     c.GetAuthURL(),
		"BEXIO_TOKEN_URL":    c.GetTokenURL(),
		"BEXIO_USERINFO_URL": c.GetUserInfoURL(),
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme != "https" && u.Scheme != "http" || u.Host == "" {
			return autherrors.NewConfiguration(errors.Errorf("%s %q is not an absolute http(s) URL", name, raw))
		}
	}

	if backend := c.GetBridgeBackend(); backend != "memory" && backend != "redis" {
		return autherrors.NewConfiguration(errors.Errorf("BRIDGE_BACKEND %q must be memory or redis", backend))
	}

	return nil
}
