package bridge

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper periodically purges expired sessions so that abandoned flows do not
// accumulate regardless of access patterns.
type Sweeper struct {
	repo     Repo
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper over the given repo.
func NewSweeper(repo Repo, interval time.Duration) *Sweeper {
	return &Sweeper{
		repo:     repo,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine.
func (s *Sweeper) Start() {
	go s.run()
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			purged, err := s.repo.PurgeExpired(context.Background())
			if err != nil {
				log.Warn().Err(err).Msg("session sweep failed")
				continue
			}
			if purged > 0 {
				log.Debug().Int("purged", purged).Msg("reclaimed expired sessions")
			}
		}
	}
}
