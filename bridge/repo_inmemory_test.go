package bridge_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/timetrackhq/bexio-auth/bridge"
)

const testTTL = 5 * time.Minute

// fixedClock is an adjustable time source for TTL tests.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)}
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

func testTokens() bridge.Tokens {
	return bridge.Tokens{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Scope:        "openid profile",
		ExpiresAt:    time.Date(2026, 8, 26, 13, 0, 0, 0, time.UTC),
		CompanyID:    "company-42",
		UserEmail:    "user@example.com",
	}
}

func setupRepo(t *testing.T) (*bridge.InMemoryRepo, *fixedClock) {
	t.Helper()
	clock := newFixedClock()
	return bridge.NewInMemoryRepo(testTTL, bridge.WithNowTime(clock.Now)), clock
}

func TestCreateAndGet(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "sess-1", "mobile"))

	session, err := repo.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "sess-1", session.ID)
	require.Equal(t, bridge.StatusPending, session.Status)
	require.Equal(t, "mobile", session.Platform)
	require.Nil(t, session.Tokens)
}

func TestCreateDuplicate(t *testing.T) {
	repo, clock := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "sess-1", "mobile"))
	require.ErrorIs(t, repo.Create(ctx, "sess-1", "mobile"), bridge.ErrAlreadyExists)

	// An expired entry no longer blocks reuse of the ID.
	clock.Advance(testTTL + time.Second)
	require.NoError(t, repo.Create(ctx, "sess-1", "web"))
}

func TestGetExpired(t *testing.T) {
	repo, clock := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "sess-1", "mobile"))

	clock.Advance(testTTL + time.Second)
	_, err := repo.Get(ctx, "sess-1")
	require.ErrorIs(t, err, bridge.ErrExpired)

	// The entry was reclaimed, not just flagged.
	_, err = repo.Get(ctx, "sess-1")
	require.ErrorIs(t, err, bridge.ErrNotFound)
}

func TestGetMissing(t *testing.T) {
	repo, _ := setupRepo(t)
	_, err := repo.Get(context.Background(), "nope")
	require.ErrorIs(t, err, bridge.ErrNotFound)
}

func TestCompleteLifecycle(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "sess-1", "mobile"))
	require.NoError(t, repo.Complete(ctx, "sess-1", testTokens()))

	session, err := repo.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, bridge.StatusCompleted, session.Status)
	require.NotNil(t, session.Tokens)
	require.Equal(t, "access-1", session.Tokens.AccessToken)
	require.Equal(t, "company-42", session.Tokens.CompanyID)
}

func TestCompleteIsTerminalOnce(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "sess-1", "mobile"))
	require.NoError(t, repo.Complete(ctx, "sess-1", testTokens()))

	// A second terminal write (provider retry) must not overwrite the first.
	second := testTokens()
	second.AccessToken = "access-2"
	require.ErrorIs(t, repo.Complete(ctx, "sess-1", second), bridge.ErrAlreadyFinalised)
	require.ErrorIs(t, repo.Fail(ctx, "sess-1", "late failure"), bridge.ErrAlreadyFinalised)

	session, err := repo.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, bridge.StatusCompleted, session.Status)
	require.Equal(t, "access-1", session.Tokens.AccessToken)
	require.Empty(t, session.Error)
}

func TestFail(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "sess-1", "mobile"))
	require.NoError(t, repo.Fail(ctx, "sess-1", "access_denied"))

	session, err := repo.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, bridge.StatusFailed, session.Status)
	require.Equal(t, "access_denied", session.Error)
	require.Nil(t, session.Tokens)

	require.ErrorIs(t, repo.Complete(ctx, "sess-1", testTokens()), bridge.ErrAlreadyFinalised)
}

func TestUpdateMissingSession(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	// Updates never create sessions implicitly.
	require.ErrorIs(t, repo.Complete(ctx, "ghost", testTokens()), bridge.ErrNotFound)
	require.ErrorIs(t, repo.Fail(ctx, "ghost", "reason"), bridge.ErrNotFound)

	_, err := repo.Get(ctx, "ghost")
	require.ErrorIs(t, err, bridge.ErrNotFound)
}

func TestDeleteIdempotent(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "sess-1", "web"))
	require.NoError(t, repo.Delete(ctx, "sess-1"))
	require.NoError(t, repo.Delete(ctx, "sess-1"))

	_, err := repo.Get(ctx, "sess-1")
	require.ErrorIs(t, err, bridge.ErrNotFound)
}

func TestPurgeExpired(t *testing.T) {
	repo, clock := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "old-1", "mobile"))
	require.NoError(t, repo.Create(ctx, "old-2", "mobile"))

	clock.Advance(testTTL - time.Second)
	require.NoError(t, repo.Create(ctx, "fresh", "web"))

	clock.Advance(2 * time.Second)
	purged, err := repo.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, purged)

	_, err = repo.Get(ctx, "fresh")
	require.NoError(t, err)
}

func TestConcurrentPollsAndSingleTerminalWrite(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "sess-1", "mobile"))

	var wg sync.WaitGroup
	successes := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tokens := testTokens()
			if err := repo.Complete(ctx, "sess-1", tokens); err == nil {
				successes <- struct{}{}
			}
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Get(ctx, "sess-1")
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	require.Equal(t, 1, count)
}
