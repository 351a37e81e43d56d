package authorize_test

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/timetrackhq/bexio-auth/authorize"
	"github.com/timetrackhq/bexio-auth/pkce"
)

var testEndpoint = oauth2.Endpoint{
	AuthURL:  "https://idp.bexio.com/authorize",
	TokenURL: "https://idp.bexio.com/token",
}

func newBuilder() *authorize.Builder {
	return authorize.NewBuilder(
		"client-1",
		testEndpoint,
		[]string{"openid", "profile", "email", "offline_access", "contact_show", "project_show"},
		[]string{"openid", "profile", "email", "offline_access"},
	)
}

func TestFilterScopes(t *testing.T) {
	b := newBuilder()

	t.Run("drops scopes outside the allow-list", func(t *testing.T) {
		filtered := b.FilterScopes([]string{"openid", "evil_scope", "contact_show"})
		require.Equal(t, []string{"openid", "contact_show"}, filtered)
	})

	t.Run("empty intersection substitutes defaults", func(t *testing.T) {
		filtered := b.FilterScopes([]string{"evil_scope", "another_evil"})
		require.Equal(t, []string{"openid", "profile", "email", "offline_access"}, filtered)
	})

	t.Run("nil request substitutes defaults", func(t *testing.T) {
		filtered := b.FilterScopes(nil)
		require.Equal(t, []string{"openid", "profile", "email", "offline_access"}, filtered)
	})
}

func TestAuthURL(t *testing.T) {
	b := newBuilder()

	verifier, err := pkce.GenerateVerifier()
	require.NoError(t, err)

	rawURL := b.AuthURL("https://auth.timetrack.example/oauth/callback", []string{"openid", "evil_scope", "contact_show"}, "state-123", verifier)

	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	require.Equal(t, "idp.bexio.com", parsed.Host)
	require.Equal(t, "/authorize", parsed.Path)

	q := parsed.Query()
	require.Equal(t, "client-1", q.Get("client_id"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "https://auth.timetrack.example/oauth/callback", q.Get("redirect_uri"))
	require.Equal(t, "state-123", q.Get("state"))
	require.Equal(t, pkce.DeriveChallenge(verifier), q.Get("code_challenge"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))

	scopes := strings.Fields(q.Get("scope"))
	require.Equal(t, []string{"openid", "contact_show"}, scopes)
	require.NotContains(t, scopes, "evil_scope")
}

func TestAuthURLStableOutput(t *testing.T) {
	b := newBuilder()
	first := b.AuthURL("https://auth.timetrack.example/oauth/callback", []string{"openid"}, "s", "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
	second := b.AuthURL("https://auth.timetrack.example/oauth/callback", []string{"openid"}, "s", "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
	require.Equal(t, first, second)
}
