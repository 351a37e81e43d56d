// Package staterepo stores in-flight flow state between initiation and
// callback, keyed by the CSRF nonce.
package staterepo

import (
	"time"

	"github.com/timetrackhq/bexio-auth/platform"
)

// FlowState is the transient record for one authorization attempt. The
// verifier never leaves this store except toward the provider's token
// endpoint; every attempt gets fresh PKCE material.
type FlowState struct {
	Nonce       string
	Verifier    string
	ReturnURL   string
	SessionID   string
	Platform    string
	Strategy    platform.Strategy
	RedirectURI string
	CreatedAt   time.Time
}

// Repo stores flow state for the window between initiation and callback.
// Entries are consumed exactly once and expire after a fixed TTL.
type Repo interface {
	Upsert(nonce string, state *FlowState) error
	Get(nonce string) (*FlowState, error)
	Delete(nonce string) error
}
