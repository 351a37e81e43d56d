package bridge

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepo is a thread-safe in-memory implementation of Repo for
// single-instance deployments.
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	nowTime  func() time.Time
}

// InMemoryRepoOption modifies an InMemoryRepo instance.
type InMemoryRepoOption func(*InMemoryRepo)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) InMemoryRepoOption {
	return func(r *InMemoryRepo) {
		r.nowTime = nowFunc
	}
}

// NewInMemoryRepo creates an in-memory session bridge with the given TTL.
func NewInMemoryRepo(ttl time.Duration, options ...InMemoryRepoOption) *InMemoryRepo {
	r := &InMemoryRepo{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Create inserts a pending session.
func (r *InMemoryRepo) Create(_ context.Context, sessionID, platform string) error {
	if sessionID == "" {
		return ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[sessionID]; ok && !r.expired(existing) {
		return ErrAlreadyExists
	}
	r.sessions[sessionID] = &Session{
		ID:        sessionID,
		Status:    StatusPending,
		Platform:  platform,
		CreatedAt: r.nowTime(),
	}
	return nil
}

// Get retrieves a session, lazily expiring it if past TTL.
func (r *InMemoryRepo) Get(_ context.Context, sessionID string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	if r.expired(session) {
		delete(r.sessions, sessionID)
		return Session{}, ErrExpired
	}
	return copySession(session), nil
}

// Complete records the success outcome; the first terminal write wins.
func (r *InMemoryRepo) Complete(_ context.Context, sessionID string, tokens Tokens) error {
	return r.finalise(sessionID, func(s *Session) {
		s.Status = StatusCompleted
		s.Tokens = &tokens
	})
}

// Fail records the failure outcome; the first terminal write wins.
func (r *InMemoryRepo) Fail(_ context.Context, sessionID, reason string) error {
	return r.finalise(sessionID, func(s *Session) {
		s.Status = StatusFailed
		s.Error = reason
	})
}

// Delete removes a session.
func (r *InMemoryRepo) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

// PurgeExpired reclaims every entry past its TTL.
func (r *InMemoryRepo) PurgeExpired(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	for id, session := range r.sessions {
		if r.expired(session) {
			delete(r.sessions, id)
			purged++
		}
	}
	return purged, nil
}

func (r *InMemoryRepo) finalise(sessionID string, apply func(*Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if r.expired(session) {
		delete(r.sessions, sessionID)
		return ErrExpired
	}
	if session.Terminal() {
		return ErrAlreadyFinalised
	}
	apply(session)
	return nil
}

func (r *InMemoryRepo) expired(s *Session) bool {
	return r.nowTime().Sub(s.CreatedAt) > r.ttl
}

func copySession(s *Session) Session {
	out := *s
	if s.Tokens != nil {
		tokens := *s.Tokens
		out.Tokens = &tokens
	}
	return out
}
