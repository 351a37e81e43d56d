package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a flow error. Classification happens once, at the boundary
// where the error is first observed; callers branch on Kind rather than on
// error strings.
type Kind string

const (
	// KindConfiguration indicates missing or inconsistent client configuration
	// (client id/secret, mismatched redirect URI). Fatal, not retryable.
	KindConfiguration Kind = "configuration"

	// KindCsrfMismatch indicates the state nonce returned on callback did not
	// match the one stored at initiation. Fatal, the flow must be restarted.
	KindCsrfMismatch Kind = "csrf_mismatch"

	// KindProviderDenied indicates the provider returned an error on callback
	// (e.g. access_denied). Terminal for this attempt.
	KindProviderDenied Kind = "provider_denied"

	// KindExchange indicates a non-2xx response from the token endpoint.
	// Terminal for this authorization code - codes are single-use.
	KindExchange Kind = "exchange"

	// KindNetwork indicates a transport failure or timeout talking to the
	// provider. Retryable, distinct from a provider rejection.
	KindNetwork Kind = "network"

	// KindSessionExpired indicates a bridge session exceeded its TTL.
	KindSessionExpired Kind = "session_expired"

	// KindDecode indicates a malformed token payload. Non-fatal; identity
	// fields degrade to sentinels and the flow continues.
	KindDecode Kind = "decode"
)

// RecoveryAction is the recommended recovery for an error kind. Execution of
// the recovery is left to the calling application.
type RecoveryAction string

const (
	RecoveryRetry           RecoveryAction = "retry"
	RecoveryReauthenticate  RecoveryAction = "reauthenticate"
	RecoveryCheckConnection RecoveryAction = "check-connection"
	RecoveryFixConfig       RecoveryAction = "fix-config"
	RecoveryContactSupport  RecoveryAction = "contact-support"
)

// FlowError is a classified authentication flow error.
type FlowError struct {
	Kind        Kind
	Recovery    RecoveryAction
	UserMessage string

	// Status and Body are populated for exchange errors (provider response).
	Status int
	Body   string

	Err error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
	}
	if e.UserMessage != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.UserMessage)
	}
	return string(e.Kind)
}

func (e *FlowError) Unwrap() error { return e.Err }

// NewConfiguration reports a configuration problem found at startup or flow
// initiation.
func NewConfiguration(err error) *FlowError {
	return &FlowError{
		Kind:        KindConfiguration,
		Recovery:    RecoveryFixConfig,
		UserMessage: "The authentication service is misconfigured.",
		Err:         err,
	}
}

// NewCsrfMismatch reports a state nonce mismatch on callback.
func NewCsrfMismatch() *FlowError {
	return &FlowError{
		Kind:        KindCsrfMismatch,
		Recovery:    RecoveryReauthenticate,
		UserMessage: "The sign-in attempt could not be verified. Please try again.",
	}
}

// NewProviderDenied reports an error returned by the provider on callback.
func NewProviderDenied(code, description string) *FlowError {
	return &FlowError{
		Kind:        KindProviderDenied,
		Recovery:    RecoveryReauthenticate,
		UserMessage: "Authentication was cancelled or denied.",
		Err:         fmt.Errorf("%s: %s", code, description),
	}
}

// NewExchange reports a token endpoint rejection.
func NewExchange(status int, body string, err error) *FlowError {
	return &FlowError{
		Kind:        KindExchange,
		Recovery:    RecoveryReauthenticate,
		UserMessage: "Sign-in failed. Please start over.",
		Status:      status,
		Body:        body,
		Err:         err,
	}
}

// NewNetwork reports a transport failure or timeout.
func NewNetwork(err error) *FlowError {
	return &FlowError{
		Kind:        KindNetwork,
		Recovery:    RecoveryCheckConnection,
		UserMessage: "Could not reach the authentication service. Check your connection.",
		Err:         err,
	}
}

// NewSessionExpired reports an expired bridge session.
func NewSessionExpired() *FlowError {
	return &FlowError{
		Kind:        KindSessionExpired,
		Recovery:    RecoveryReauthenticate,
		UserMessage: "The sign-in attempt timed out. Please start over.",
	}
}

// NewDecode reports a malformed token payload.
func NewDecode(err error) *FlowError {
	return &FlowError{
		Kind:        KindDecode,
		Recovery:    RecoveryContactSupport,
		UserMessage: "Signed in, but some account details could not be read.",
		Err:         err,
	}
}

// KindOf returns the Kind of err if it is (or wraps) a FlowError, or an empty
// Kind otherwise.
func KindOf(err error) Kind {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err is a FlowError of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
