// Package bridge relays completed credentials from the callback handler to an
// initiating context that cannot receive the callback directly (native apps
// going through the server). Entries are transient: the bridge is never the
// system of record for tokens.
package bridge

import (
	"time"

	"github.com/pkg/errors"
)

// Status of one relayed flow.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

var (
	// ErrNotFound is returned for sessions that do not exist.
	ErrNotFound = errors.New("session not found")

	// ErrExpired is returned for sessions past their TTL. The entry is
	// reclaimed rather than served stale.
	ErrExpired = errors.New("session expired")

	// ErrAlreadyExists is returned when creating a session whose ID is still
	// live. Every flow attempt must use a fresh session.
	ErrAlreadyExists = errors.New("session already exists")

	// ErrAlreadyFinalised is returned on a second terminal write. The first
	// write's outcome is retained.
	ErrAlreadyFinalised = errors.New("session already finalised")
)

// Tokens is the credential set relayed on completion.
type Tokens struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenType    string    `json:"tokenType,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CompanyID    string    `json:"companyId"`
	UserEmail    string    `json:"userEmail"`
}

// Session is one bridge entry. At most one terminal transition happens per
// session: pending to completed, or pending to failed.
type Session struct {
	ID        string    `json:"sessionId"`
	Status    Status    `json:"status"`
	Platform  string    `json:"platform,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Tokens    *Tokens   `json:"tokens,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Terminal reports whether the session has reached a final status.
func (s Session) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}
