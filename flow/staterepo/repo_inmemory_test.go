package staterepo_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/timetrackhq/bexio-auth/flow/staterepo"
	"github.com/timetrackhq/bexio-auth/platform"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testState(nonce string, createdAt time.Time) *staterepo.FlowState {
	return &staterepo.FlowState{
		Nonce:       nonce,
		Verifier:    "verifier-" + nonce,
		ReturnURL:   "https://app.example.com/dashboard",
		Platform:    "web",
		Strategy:    platform.StrategyPopup,
		RedirectURI: "https://auth.example.com/oauth/callback",
		CreatedAt:   createdAt,
	}
}

func TestInMemoryRepoUpsertAndGet(t *testing.T) {
	repo := staterepo.NewInMemoryRepo(10 * time.Minute)

	require.NoError(t, repo.Upsert("nonce-1", testState("nonce-1", time.Now())))

	state, err := repo.Get("nonce-1")
	require.NoError(t, err)
	require.Equal(t, "verifier-nonce-1", state.Verifier)
	require.Equal(t, platform.StrategyPopup, state.Strategy)
}

func TestInMemoryRepoGetReturnsCopy(t *testing.T) {
	repo := staterepo.NewInMemoryRepo(10 * time.Minute)
	require.NoError(t, repo.Upsert("nonce-1", testState("nonce-1", time.Now())))

	first, err := repo.Get("nonce-1")
	require.NoError(t, err)
	first.Verifier = "mutated"

	second, err := repo.Get("nonce-1")
	require.NoError(t, err)
	require.Equal(t, "verifier-nonce-1", second.Verifier)
}

func TestInMemoryRepoUpsertValidation(t *testing.T) {
	repo := staterepo.NewInMemoryRepo(10 * time.Minute)

	require.Error(t, repo.Upsert("", testState("x", time.Now())))
	require.Error(t, repo.Upsert("nonce-1", nil))
}

func TestInMemoryRepoGetMissing(t *testing.T) {
	repo := staterepo.NewInMemoryRepo(10 * time.Minute)

	_, err := repo.Get("absent")
	require.ErrorIs(t, err, staterepo.ErrNotFound)

	_, err = repo.Get("")
	require.ErrorIs(t, err, staterepo.ErrNotFound)
}

func TestInMemoryRepoLazyExpiry(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	repo := staterepo.NewInMemoryRepo(10*time.Minute, staterepo.WithNowTime(clock.Now))

	require.NoError(t, repo.Upsert("nonce-1", testState("nonce-1", clock.Now())))

	clock.Advance(11 * time.Minute)
	_, err := repo.Get("nonce-1")
	require.ErrorIs(t, err, staterepo.ErrNotFound)
}

func TestInMemoryRepoDeleteIdempotent(t *testing.T) {
	repo := staterepo.NewInMemoryRepo(10 * time.Minute)
	require.NoError(t, repo.Upsert("nonce-1", testState("nonce-1", time.Now())))

	require.NoError(t, repo.Delete("nonce-1"))
	require.NoError(t, repo.Delete("nonce-1"))

	_, err := repo.Get("nonce-1")
	require.ErrorIs(t, err, staterepo.ErrNotFound)
}
