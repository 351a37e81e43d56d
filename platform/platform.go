// Package platform decides, per execution environment, which redirect URI and
// completion strategy an authorization flow uses.
package platform

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"

	autherrors "github.com/timetrackhq/bexio-auth/internal/errors"
)

// Strategy is how completed credentials travel back to the initiating context.
type Strategy string

const (
	// StrategyPopup signals completion via a cross-window message from a
	// sized popup to its opener.
	StrategyPopup Strategy = "popup"

	// StrategyFullRedirect navigates the whole page; the callback response is
	// itself the return destination.
	StrategyFullRedirect Strategy = "full-redirect"

	// StrategyDeepLink redirects to the native app's custom URL scheme; the
	// OS delivers the callback directly to the app with no server relay.
	StrategyDeepLink Strategy = "deep-link"

	// StrategyServerPoll relays through the session bridge: the server
	// performs the exchange and the app polls for the outcome.
	StrategyServerPoll Strategy = "server-poll"
)

// Platform names accepted from callers.
const (
	PlatformWeb    = "web"
	PlatformMobile = "mobile"
)

// Environment describes the initiating context of one flow attempt.
type Environment struct {
	Platform string

	// PopupBlocked is set by web callers whose popup was blocked by the
	// browser; they fall back to a full-page redirect.
	PopupBlocked bool
}

// Resolution is the per-flow routing decision.
type Resolution struct {
	// RedirectURI is the redirect_uri sent to the provider. It must match
	// exactly at token-exchange time.
	RedirectURI string

	// CallbackURI is where this system observes the provider callback. For
	// deep links the OS delivers it to the app and the two are the same.
	CallbackURI string

	Strategy Strategy
}

// Resolver derives flow resolutions from static service configuration.
type Resolver struct {
	webCallback string
	appScheme   string
}

// NewResolver builds a resolver for the given public base URL and callback
// path. appScheme is the native app's custom URL scheme; when empty, native
// flows use the server relay. The resolved URIs are validated here so that a
// misconfiguration fails at startup rather than as an opaque provider error.
func NewResolver(baseURL, callbackPath, appScheme string) (*Resolver, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, autherrors.NewConfiguration(errors.Errorf("[NewResolver] base URL %q is not absolute", baseURL))
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, autherrors.NewConfiguration(errors.Errorf("[NewResolver] base URL scheme %q must be http or https", base.Scheme))
	}
	if !strings.HasPrefix(callbackPath, "/") {
		return nil, autherrors.NewConfiguration(errors.Errorf("[NewResolver] callback path %q must be absolute", callbackPath))
	}
	if appScheme != "" && !validScheme(appScheme) {
		return nil, autherrors.NewConfiguration(errors.Errorf("[NewResolver] app scheme %q is not a valid URL scheme", appScheme))
	}

	return &Resolver{
		webCallback: strings.TrimSuffix(baseURL, "/") + callbackPath,
		appScheme:   appScheme,
	}, nil
}

// Resolve picks the redirect URI and completion strategy for one attempt.
func (r *Resolver) Resolve(env Environment) (Resolution, error) {
	switch env.Platform {
	case PlatformWeb:
		strategy := StrategyPopup
		if env.PopupBlocked {
			strategy = StrategyFullRedirect
		}
		return Resolution{
			RedirectURI: r.webCallback,
			CallbackURI: r.webCallback,
			Strategy:    strategy,
		}, nil

	case PlatformMobile:
		if r.appScheme != "" {
			deepLink := r.appScheme + "://oauth/callback"
			return Resolution{
				RedirectURI: deepLink,
				CallbackURI: deepLink,
				Strategy:    StrategyDeepLink,
			}, nil
		}
		// Provider does not accept custom-scheme redirect URIs: relay via
		// the public HTTPS callback and let the app poll the bridge.
		return Resolution{
			RedirectURI: r.webCallback,
			CallbackURI: r.webCallback,
			Strategy:    StrategyServerPoll,
		}, nil

	default:
		return Resolution{}, autherrors.NewConfiguration(errors.Errorf("[Resolve] unknown platform %q", env.Platform))
	}
}

func validScheme(scheme string) bool {
	if scheme == "" {
		return false
	}
	for i, c := range scheme {
		switch {
		case c >= 'a' && c <= 'z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}
