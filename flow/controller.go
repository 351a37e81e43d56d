// Package flow orchestrates one authorization attempt end to end: initiation
// in the requesting context, and callback handling when the provider returns.
// The platform-specific completion strategies share this single state
// machine; only the delivery of the result differs.
package flow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/timetrackhq/bexio-auth/authorize"
	"github.com/timetrackhq/bexio-auth/bridge"
	"github.com/timetrackhq/bexio-auth/exchange"
	"github.com/timetrackhq/bexio-auth/flow/staterepo"
	"github.com/timetrackhq/bexio-auth/flowstate"
	"github.com/timetrackhq/bexio-auth/identity"
	autherrors "github.com/timetrackhq/bexio-auth/internal/errors"
	"github.com/timetrackhq/bexio-auth/internal/metrics"
	"github.com/timetrackhq/bexio-auth/notify"
	"github.com/timetrackhq/bexio-auth/pkce"
	"github.com/timetrackhq/bexio-auth/platform"
)

// Deps holds all dependencies for the Controller.
type Deps struct {
	Resolver  *platform.Resolver
	Builder   *authorize.Builder
	States    staterepo.Repo
	Sessions  bridge.Repo
	Exchanger *exchange.Client
	Extractor *identity.Extractor
	Metrics   *metrics.Metrics
}

// Controller drives the authorization-code-with-PKCE flow.
type Controller struct {
	deps    Deps
	nowTime func() time.Time
}

// ControllerOption modifies a Controller instance.
type ControllerOption func(*Controller)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.nowTime = nowFunc
	}
}

// NewController initializes a Controller with required dependencies. Metrics
// may be nil.
func NewController(deps Deps, options ...ControllerOption) (*Controller, error) {
	if deps.Resolver == nil {
		return nil, errors.New("[NewController] Resolver is required")
	}
	if deps.Builder == nil {
		return nil, errors.New("[NewController] Builder is required")
	}
	if deps.States == nil {
		return nil, errors.New("[NewController] States repo is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("[NewController] Sessions repo is required")
	}
	if deps.Exchanger == nil {
		return nil, errors.New("[NewController] Exchanger is required")
	}
	if deps.Extractor == nil {
		return nil, errors.New("[NewController] Extractor is required")
	}

	c := &Controller{
		deps:    deps,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Request describes one flow initiation.
type Request struct {
	Env       platform.Environment
	Scopes    []string
	ReturnURL string
}

// Initiation is the outcome of a flow initiation. SessionID is set only for
// server-poll flows.
type Initiation struct {
	AuthURL   string
	Strategy  platform.Strategy
	SessionID string
}

// Initiate starts an authorization attempt: fresh PKCE material and nonce,
// bridge session for relay flows, flow state stored for the callback, and the
// provider authorization URL assembled.
func (c *Controller) Initiate(ctx context.Context, req Request) (Initiation, error) {
	resolution, err := c.deps.Resolver.Resolve(req.Env)
	if err != nil {
		return Initiation{}, errors.Wrap(err, "[Initiate] resolve platform")
	}

	verifier, err := pkce.GenerateVerifier()
	if err != nil {
		return Initiation{}, errors.Wrap(err, "[Initiate] generate verifier")
	}
	nonce := flowstate.NewNonce()

	sessionID := ""
	if resolution.Strategy == platform.StrategyServerPoll {
		sessionID = uuid.New().String()
		if err := c.deps.Sessions.Create(ctx, sessionID, req.Env.Platform); err != nil {
			return Initiation{}, errors.Wrap(err, "[Initiate] create bridge session")
		}
	}

	packed, err := flowstate.Pack(flowstate.Data{
		Nonce:     nonce,
		Verifier:  verifier,
		ReturnURL: req.ReturnURL,
		SessionID: sessionID,
		Platform:  req.Env.Platform,
	})
	if err != nil {
		return Initiation{}, errors.Wrap(err, "[Initiate] pack state")
	}

	if err := c.deps.States.Upsert(nonce, &staterepo.FlowState{
		Nonce:       nonce,
		Verifier:    verifier,
		ReturnURL:   req.ReturnURL,
		SessionID:   sessionID,
		Platform:    req.Env.Platform,
		Strategy:    resolution.Strategy,
		RedirectURI: resolution.RedirectURI,
		CreatedAt:   c.nowTime(),
	}); err != nil {
		return Initiation{}, errors.Wrap(err, "[Initiate] store flow state")
	}

	c.deps.Metrics.IncStarted(string(resolution.Strategy))

	return Initiation{
		AuthURL:   c.deps.Builder.AuthURL(resolution.RedirectURI, req.Scopes, packed, verifier),
		Strategy:  resolution.Strategy,
		SessionID: sessionID,
	}, nil
}

// Callback carries the provider's callback parameters.
type Callback struct {
	Code             string
	State            string
	ErrorCode        string
	ErrorDescription string
}

// Completion is the routed outcome of a callback: which strategy delivers the
// result, where to, and the payload itself. It is populated for failures too,
// so the callback endpoint can always render something sensible.
type Completion struct {
	Strategy  platform.Strategy
	ReturnURL string
	SessionID string
	Result    notify.Result
}

// HandleCallback consumes the flow state exactly once, verifies the CSRF
// nonce, performs the exchange and identity extraction, and pushes the
// outcome to the bridge for relay flows. The returned error, when non-nil, is
// a classified FlowError; the Completion remains usable for rendering.
func (c *Controller) HandleCallback(ctx context.Context, cb Callback) (Completion, error) {
	data, unpackErr := flowstate.Unpack(cb.State)
	if unpackErr != nil && !errors.Is(unpackErr, flowstate.ErrOpaqueState) {
		return Completion{Result: notify.Failure("csrf_mismatch", "invalid state")}, autherrors.NewCsrfMismatch()
	}

	stored, err := c.deps.States.Get(data.Nonce)
	if err != nil {
		// Unknown state. A provider-reported error still surfaces as denied;
		// anything else is a forged or replayed callback.
		if cb.ErrorCode != "" {
			return Completion{Result: notify.Failure(cb.ErrorCode, cb.ErrorDescription)},
				autherrors.NewProviderDenied(cb.ErrorCode, cb.ErrorDescription)
		}
		return Completion{Result: notify.Failure("csrf_mismatch", "unknown state")}, autherrors.NewCsrfMismatch()
	}
	// Consumed exactly once, matched or not.
	_ = c.deps.States.Delete(data.Nonce)

	completion := Completion{
		Strategy:  stored.Strategy,
		ReturnURL: stored.ReturnURL,
		SessionID: stored.SessionID,
	}

	if stored.Nonce != data.Nonce {
		completion.Result = notify.Failure("csrf_mismatch", "state nonce mismatch")
		c.deps.Metrics.IncOutcome(string(stored.Strategy), "csrf")
		return completion, autherrors.NewCsrfMismatch()
	}

	if cb.ErrorCode != "" {
		completion.Result = notify.Failure(cb.ErrorCode, cb.ErrorDescription)
		c.failSession(ctx, stored.SessionID, cb.ErrorCode)
		c.deps.Metrics.IncOutcome(string(stored.Strategy), "denied")
		return completion, autherrors.NewProviderDenied(cb.ErrorCode, cb.ErrorDescription)
	}

	if cb.Code == "" {
		completion.Result = notify.Failure("invalid_request", "missing authorization code")
		c.failSession(ctx, stored.SessionID, "invalid_request")
		c.deps.Metrics.IncOutcome(string(stored.Strategy), "denied")
		return completion, autherrors.NewProviderDenied("invalid_request", "missing authorization code")
	}

	start := c.nowTime()
	tokenSet, err := c.deps.Exchanger.ExchangeCode(ctx, cb.Code, stored.Verifier, stored.RedirectURI)
	c.deps.Metrics.ObserveExchange("authorization_code", c.nowTime().Sub(start))
	if err != nil {
		completion.Result = notify.Failure("exchange_failed", "token exchange failed")
		c.failSession(ctx, stored.SessionID, "exchange_failed")
		if autherrors.IsKind(err, autherrors.KindNetwork) {
			c.deps.Metrics.IncOutcome(string(stored.Strategy), "network")
		} else {
			c.deps.Metrics.IncOutcome(string(stored.Strategy), "exchange_failed")
		}
		return completion, err
	}

	id := c.deps.Extractor.Extract(ctx, tokenSet)

	if stored.SessionID != "" {
		err := c.deps.Sessions.Complete(ctx, stored.SessionID, bridge.Tokens{
			AccessToken:  tokenSet.AccessToken,
			RefreshToken: tokenSet.RefreshToken,
			TokenType:    tokenSet.TokenType,
			Scope:        tokenSet.Scope,
			ExpiresAt:    tokenSet.ExpiresAt,
			CompanyID:    id.CompanyID,
			UserEmail:    id.UserEmail,
		})
		if errors.Is(err, bridge.ErrAlreadyFinalised) {
			// Duplicate callback delivery lost the race; the first outcome
			// stands.
			log.Warn().Str("sessionID", stored.SessionID).Msg("session already finalised, outcome discarded")
		} else if err != nil {
			completion.Result = notify.Failure("session_expired", "sign-in attempt timed out")
			c.deps.Metrics.IncOutcome(string(stored.Strategy), "expired")
			return completion, autherrors.NewSessionExpired()
		}
	}

	completion.Result = notify.Success(notify.Credentials{
		AccessToken:  tokenSet.AccessToken,
		RefreshToken: tokenSet.RefreshToken,
		CompanyID:    id.CompanyID,
		UserEmail:    id.UserEmail,
		ExpiresAt:    notify.ExpiresAtMillis(tokenSet.ExpiresAt),
	})
	c.deps.Metrics.IncOutcome(string(stored.Strategy), "success")
	return completion, nil
}

// Refresh trades a refresh token for fresh credentials and re-derives the
// identity fields.
func (c *Controller) Refresh(ctx context.Context, refreshToken string) (exchange.TokenSet, identity.Identity, error) {
	start := c.nowTime()
	tokenSet, err := c.deps.Exchanger.Refresh(ctx, refreshToken)
	c.deps.Metrics.ObserveExchange("refresh_token", c.nowTime().Sub(start))
	if err != nil {
		return exchange.TokenSet{}, identity.Identity{}, errors.Wrap(err, "[Refresh] exchange")
	}
	return tokenSet, c.deps.Extractor.Extract(ctx, tokenSet), nil
}

// Cancel releases a relay session after a user-initiated abort; the flow
// state itself ages out via its TTL.
func (c *Controller) Cancel(ctx context.Context, sessionID string) error {
	return errors.Wrap(c.deps.Sessions.Delete(ctx, sessionID), "[Cancel] delete session")
}

func (c *Controller) failSession(ctx context.Context, sessionID, reason string) {
	if sessionID == "" {
		return
	}
	if err := c.deps.Sessions.Fail(ctx, sessionID, reason); err != nil && !errors.Is(err, bridge.ErrAlreadyFinalised) {
		log.Warn().Err(err).Str("sessionID", sessionID).Msg("could not record session failure")
	}
}
