// Package exchange calls the provider's token endpoint to trade authorization
// codes and refresh tokens for credentials.
package exchange

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	autherrors "github.com/timetrackhq/bexio-auth/internal/errors"
)

// TokenSet is the credential produced by a successful exchange or refresh.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	IDToken      string

	// ExpiresAt is absolute: issuance time plus the provider's expires_in.
	ExpiresAt time.Time
}

// Client performs token endpoint calls for the registered client.
type Client struct {
	cfg        *oauth2.Config
	httpClient *http.Client
	timeout    time.Duration
}

// ClientOption modifies a Client instance.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for token endpoint calls
// (primarily for testing).
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout overrides the per-call request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a token exchange client against the given endpoint.
func NewClient(clientID, clientSecret string, endpoint oauth2.Endpoint, options ...ClientOption) *Client {
	c := &Client{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
		},
		httpClient: http.DefaultClient,
		timeout:    30 * time.Second,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// ExchangeCode trades an authorization code plus its PKCE verifier for
// tokens. redirectURI must exactly match the one used in the authorization
// request. Authorization codes are single-use: the caller must not retry a
// rejected exchange with the same code.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier, redirectURI string) (TokenSet, error) {
	if code == "" {
		return TokenSet{}, errors.New("[ExchangeCode] code is required")
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	cfg := *c.cfg
	cfg.RedirectURL = redirectURI

	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return TokenSet{}, classify(err)
	}
	return fromToken(token), nil
}

// Refresh trades a refresh token for a new token set. Providers may omit a
// new refresh token; the prior one is retained so a working refresh token is
// never nulled out.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenSet, error) {
	if refreshToken == "" {
		return TokenSet{}, errors.New("[Refresh] refresh token is required")
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	token, err := c.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return TokenSet{}, classify(err)
	}

	ts := fromToken(token)
	if ts.RefreshToken == "" {
		ts.RefreshToken = refreshToken
	}
	return ts, nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return context.WithTimeout(ctx, c.timeout)
}

func fromToken(token *oauth2.Token) TokenSet {
	ts := TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.Expiry,
	}
	if scope, ok := token.Extra("scope").(string); ok {
		ts.Scope = scope
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		ts.IDToken = idToken
	}
	return ts
}

// classify splits provider rejections (terminal for the code) from transport
// failures (retryable).
func classify(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return autherrors.NewExchange(status, string(retrieveErr.Body), err)
	}
	return autherrors.NewNetwork(err)
}
