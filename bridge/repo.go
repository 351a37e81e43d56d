package bridge

import "context"

// Repo is the session bridge store. Implementations must serialize writes and
// expiry checks on the same key; concurrent reads are safe.
type Repo interface {
	// Create inserts a pending session. ErrAlreadyExists if the ID is live.
	Create(ctx context.Context, sessionID, platform string) error

	// Get returns the session. Sessions past their TTL are deleted and
	// reported as ErrExpired, never served stale.
	Get(ctx context.Context, sessionID string) (Session, error)

	// Complete records a successful outcome. ErrNotFound if absent,
	// ErrAlreadyFinalised if a terminal write already happened.
	Complete(ctx context.Context, sessionID string, tokens Tokens) error

	// Fail records a failed outcome with a reason. Same errors as Complete.
	Fail(ctx context.Context, sessionID, reason string) error

	// Delete removes a session. Deleting an absent session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// PurgeExpired removes all sessions past their TTL and reports how many
	// were reclaimed. Bounds memory growth from abandoned flows.
	PurgeExpired(ctx context.Context) (int, error)
}
