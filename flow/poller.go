package flow

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/timetrackhq/bexio-auth/bridge"
	autherrors "github.com/timetrackhq/bexio-auth/internal/errors"
)

// PollSession polls a relay session until it reaches a terminal status. A
// completed session is deleted on retrieval so credentials cannot be fetched
// twice; a failed session is returned with its recorded error and likewise
// removed. Expired or missing sessions, exhausted attempts, and context
// cancellation all abort the wait.
func PollSession(ctx context.Context, repo bridge.Repo, sessionID string, interval time.Duration, maxAttempts int) (bridge.Session, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		session, err := repo.Get(ctx, sessionID)
		switch {
		case errors.Is(err, bridge.ErrExpired), errors.Is(err, bridge.ErrNotFound):
			return bridge.Session{}, autherrors.NewSessionExpired()
		case err != nil:
			return bridge.Session{}, errors.Wrap(err, "[PollSession] get session")
		}

		if session.Terminal() {
			if err := repo.Delete(ctx, sessionID); err != nil {
				return bridge.Session{}, errors.Wrap(err, "[PollSession] delete session")
			}
			return session, nil
		}

		select {
		case <-ctx.Done():
			return bridge.Session{}, errors.Wrap(ctx.Err(), "[PollSession] wait")
		case <-time.After(interval):
		}
	}
	return bridge.Session{}, autherrors.NewSessionExpired()
}
