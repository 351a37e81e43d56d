// Package identity recovers company and user identity from a completed token
// set.
//
// JWT payloads are decoded without signature verification. That is acceptable
// here only because the tokens were obtained via a direct TLS exchange with
// the trusted provider; this package must not be reused for tokens arriving
// from untrusted sources.
package identity

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/timetrackhq/bexio-auth/exchange"
)

// Sentinel values for unresolved identity fields, so downstream consumers get
// a stable type instead of an absent one.
const (
	UnknownCompanyID = "unknown"
	UnknownUserEmail = "OAuth User"
)

// Identity is the best-effort identity derived from a token set.
type Identity struct {
	CompanyID string
	UserEmail string
}

// Extractor decodes token payloads and falls back to the provider's userinfo
// endpoint. Extraction is opportunistic: parse failures degrade the identity
// fields, they never fail the flow.
type Extractor struct {
	userInfoURL string
	httpClient  *http.Client
}

// ExtractorOption modifies an Extractor instance.
type ExtractorOption func(*Extractor)

// WithHTTPClient overrides the HTTP client used for the userinfo fallback.
func WithHTTPClient(httpClient *http.Client) ExtractorOption {
	return func(e *Extractor) {
		e.httpClient = httpClient
	}
}

// NewExtractor creates an extractor. userInfoURL may be empty to disable the
// fallback call.
func NewExtractor(userInfoURL string, options ...ExtractorOption) *Extractor {
	e := &Extractor{
		userInfoURL: userInfoURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Extract derives identity from the access token and ID token payloads, then
// from the userinfo endpoint for a still-missing email.
func (e *Extractor) Extract(ctx context.Context, ts exchange.TokenSet) Identity {
	id := Identity{}

	for _, raw := range []string{ts.AccessToken, ts.IDToken} {
		if raw == "" || (id.CompanyID != "" && id.UserEmail != "") {
			continue
		}
		claims, err := decodeClaims(raw)
		if err != nil {
			log.Debug().Err(err).Msg("token payload not decodable, skipping")
			continue
		}
		if id.CompanyID == "" {
			id.CompanyID = claimString(claims, "company_id", "companyId")
		}
		if id.UserEmail == "" {
			id.UserEmail = claimString(claims, "email", "login_id")
		}
	}

	if id.UserEmail == "" {
		id.UserEmail = e.userInfoEmail(ctx, ts.AccessToken)
	}

	if id.CompanyID == "" {
		id.CompanyID = UnknownCompanyID
	}
	if id.UserEmail == "" {
		id.UserEmail = UnknownUserEmail
	}
	return id
}

func decodeClaims(raw string) (jwt.MapClaims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}
	claims, _ := token.Claims.(jwt.MapClaims)
	return claims, nil
}

func claimString(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}

func (e *Extractor) userInfoEmail(ctx context.Context, accessToken string) string {
	if e.userInfoURL == "" || accessToken == "" {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.userInfoURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("userinfo fallback failed")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debug().Int("status", resp.StatusCode).Msg("userinfo fallback rejected")
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ""
	}
	return gjson.GetBytes(body, "email").String()
}
