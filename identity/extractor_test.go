package identity_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timetrackhq/bexio-auth/exchange"
	"github.com/timetrackhq/bexio-auth/identity"
)

// unsignedJWT builds a structurally valid JWT with a junk signature, matching
// what the extractor decodes without verification.
func unsignedJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".c2ln"
}

func TestExtractFromAccessToken(t *testing.T) {
	e := identity.NewExtractor("")
	ts := exchange.TokenSet{
		AccessToken: unsignedJWT(t, map[string]any{
			"company_id": "company-42",
			"email":      "user@example.com",
		}),
	}

	id := e.Extract(context.Background(), ts)
	require.Equal(t, "company-42", id.CompanyID)
	require.Equal(t, "user@example.com", id.UserEmail)
}

func TestExtractAlternateClaimNames(t *testing.T) {
	e := identity.NewExtractor("")

	t.Run("camelCase company and login_id", func(t *testing.T) {
		ts := exchange.TokenSet{
			AccessToken: unsignedJWT(t, map[string]any{
				"companyId": "company-7",
				"login_id":  "login@example.com",
			}),
		}
		id := e.Extract(context.Background(), ts)
		require.Equal(t, "company-7", id.CompanyID)
		require.Equal(t, "login@example.com", id.UserEmail)
	})

	t.Run("numeric company id", func(t *testing.T) {
		ts := exchange.TokenSet{
			AccessToken: unsignedJWT(t, map[string]any{"company_id": 42}),
		}
		id := e.Extract(context.Background(), ts)
		require.Equal(t, "42", id.CompanyID)
	})
}

func TestExtractFallsBackToIDToken(t *testing.T) {
	e := identity.NewExtractor("")
	ts := exchange.TokenSet{
		AccessToken: "opaque-not-a-jwt",
		IDToken: unsignedJWT(t, map[string]any{
			"company_id": "company-9",
			"email":      "id-token@example.com",
		}),
	}

	id := e.Extract(context.Background(), ts)
	require.Equal(t, "company-9", id.CompanyID)
	require.Equal(t, "id-token@example.com", id.UserEmail)
}

func TestExtractUserInfoFallback(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"userinfo@example.com","name":"Someone"}`))
	}))
	defer server.Close()

	e := identity.NewExtractor(server.URL)
	ts := exchange.TokenSet{
		AccessToken: unsignedJWT(t, map[string]any{"company_id": "company-1"}),
	}

	id := e.Extract(context.Background(), ts)
	require.Equal(t, "company-1", id.CompanyID)
	require.Equal(t, "userinfo@example.com", id.UserEmail)
	require.Contains(t, gotAuth, "Bearer ")
}

func TestExtractDegradesToSentinels(t *testing.T) {
	t.Run("opaque tokens and no userinfo", func(t *testing.T) {
		e := identity.NewExtractor("")
		id := e.Extract(context.Background(), exchange.TokenSet{AccessToken: "opaque"})
		require.Equal(t, identity.UnknownCompanyID, id.CompanyID)
		require.Equal(t, identity.UnknownUserEmail, id.UserEmail)
	})

	t.Run("userinfo failure is not flow-fatal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		e := identity.NewExtractor(server.URL)
		id := e.Extract(context.Background(), exchange.TokenSet{AccessToken: "opaque"})
		require.Equal(t, identity.UnknownCompanyID, id.CompanyID)
		require.Equal(t, identity.UnknownUserEmail, id.UserEmail)
	})

	t.Run("empty token set", func(t *testing.T) {
		e := identity.NewExtractor("")
		id := e.Extract(context.Background(), exchange.TokenSet{})
		require.Equal(t, identity.UnknownCompanyID, id.CompanyID)
		require.Equal(t, identity.UnknownUserEmail, id.UserEmail)
	})
}
