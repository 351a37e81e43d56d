package bridge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/timetrackhq/bexio-auth/bridge"
)

func TestSweeperReclaimsExpiredSessions(t *testing.T) {
	clock := newFixedClock()
	repo := bridge.NewInMemoryRepo(testTTL, bridge.WithNowTime(clock.Now))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "abandoned", "mobile"))
	clock.Advance(testTTL + time.Second)

	sweeper := bridge.NewSweeper(repo, 10*time.Millisecond)
	sweeper.Start()
	defer sweeper.Stop()

	require.Eventually(t, func() bool {
		_, err := repo.Get(ctx, "abandoned")
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestSweeperStopTerminates(t *testing.T) {
	repo := bridge.NewInMemoryRepo(testTTL)
	sweeper := bridge.NewSweeper(repo, 10*time.Millisecond)
	sweeper.Start()

	done := make(chan struct{})
	go func() {
		sweeper.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
