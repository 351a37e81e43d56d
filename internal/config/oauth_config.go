package config

import (
	"strings"
	"time"
)

type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetIssuerURL() string
	GetUseDiscovery() bool
	GetAuthURL() string
	GetTokenURL() string
	GetUserInfoURL() string
	GetAppScheme() string
	GetAllowedScopes() []string
	GetDefaultScopes() []string
	GetFlowStateTTL() time.Duration
	GetSessionTTL() time.Duration
	GetExchangeTimeout() time.Duration
	GetPollInterval() time.Duration
	GetPollMaxAttempts() int
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetClientID() string {
	return GetEnv("BEXIO_CLIENT_ID", "")
}

func (OAuth) GetClientSecret() string {
	return GetEnv("BEXIO_CLIENT_SECRET", "")
}

// GetIssuerURL returns the Bexio IdP issuer, used for OIDC discovery when
// enabled and as the base for the static endpoint fallbacks.
func (OAuth) GetIssuerURL() string {
	return GetEnv("BEXIO_ISSUER_URL", "https://idp.bexio.com")
}

func (OAuth) GetUseDiscovery() bool {
	return GetEnv("BEXIO_USE_DISCOVERY", "true") == "true"
}

func (o OAuth) GetAuthURL() string {
	return GetEnv("BEXIO_AUTH_URL", o.GetIssuerURL()+"/authorize")
}

func (o OAuth) GetTokenURL() string {
	return GetEnv("BEXIO_TOKEN_URL", o.GetIssuerURL()+"/token")
}

func (o OAuth) GetUserInfoURL() string {
	return GetEnv("BEXIO_USERINFO_URL", o.GetIssuerURL()+"/userinfo")
}

// GetAppScheme returns the custom URL scheme registered by the native app
// (e.g. "timetrack"). When set, native flows use direct deep-link completion
// and skip the session bridge entirely.
func (OAuth) GetAppScheme() string {
	return GetEnv("APP_SCHEME", "")
}

// GetAllowedScopes is the fixed allow-list of scopes the registered client is
// provisioned for. Requested scopes outside this list are never forwarded to
// the provider.
func (OAuth) GetAllowedScopes() []string {
	scopes := GetEnv("BEXIO_ALLOWED_SCOPES",
		"openid profile email offline_access company_profile contact_show contact_edit project_show project_edit monitoring_show monitoring_edit")
	return strings.Fields(scopes)
}

func (OAuth) GetDefaultScopes() []string {
	return []string{"openid", "profile", "email", "offline_access"}
}

func (OAuth) GetFlowStateTTL() time.Duration {
	return 10 * time.Minute
}

func (OAuth) GetSessionTTL() time.Duration {
	return 5 * time.Minute
}

func (OAuth) GetExchangeTimeout() time.Duration {
	return 30 * time.Second
}

func (OAuth) GetPollInterval() time.Duration {
	return 5 * time.Second
}

func (OAuth) GetPollMaxAttempts() int {
	return 60
}
