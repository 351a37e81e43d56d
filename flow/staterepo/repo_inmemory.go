package staterepo

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound covers both absent and expired flow state; the callback treats
// them identically (the nonce cannot be matched).
var ErrNotFound = errors.New("flow state not found")

// InMemoryRepo is a thread-safe in-memory implementation of Repo.
type InMemoryRepo struct {
	mu      sync.RWMutex
	states  map[string]*FlowState
	ttl     time.Duration
	nowTime func() time.Time
}

// InMemoryRepoOption modifies an InMemoryRepo instance.
type InMemoryRepoOption func(*InMemoryRepo)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) InMemoryRepoOption {
	return func(r *InMemoryRepo) {
		r.nowTime = nowFunc
	}
}

// NewInMemoryRepo creates an in-memory flow state repository with the given
// TTL.
func NewInMemoryRepo(ttl time.Duration, options ...InMemoryRepoOption) *InMemoryRepo {
	r := &InMemoryRepo{
		states:  make(map[string]*FlowState),
		ttl:     ttl,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Upsert stores flow state under its nonce.
func (r *InMemoryRepo) Upsert(nonce string, state *FlowState) error {
	if nonce == "" {
		return errors.New("nonce cannot be empty")
	}
	if state == nil {
		return errors.New("state cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *state
	r.states[nonce] = &stored
	return nil
}

// Get retrieves flow state by nonce, lazily expiring stale entries.
func (r *InMemoryRepo) Get(nonce string) (*FlowState, error) {
	if nonce == "" {
		return nil, ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, exists := r.states[nonce]
	if !exists {
		return nil, ErrNotFound
	}
	if r.nowTime().Sub(state.CreatedAt) > r.ttl {
		delete(r.states, nonce)
		return nil, ErrNotFound
	}

	out := *state
	return &out, nil
}

// Delete removes flow state.
func (r *InMemoryRepo) Delete(nonce string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, nonce)
	return nil
}
