package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ocrbot/internal/logger"
)

const (
	// DefaultTTL is how long a result may wait for the user.
	DefaultTTL = 30 * time.Minute

	// DefaultSweepInterval is the pause between two sweeps.
	DefaultSweepInterval = 10 * time.Minute
)

// ErrSweeperRunning is returned by Run when the sweeper loop is already active.
var ErrSweeperRunning = errors.New("sweeper already running")

// Sweeper periodically evicts results older than its TTL.
type Sweeper struct {
	cache    *Cache
	ttl      time.Duration
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSweeper creates a sweeper for c. It does nothing until Start or Run.
func NewSweeper(c *Cache, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{
		cache:    c,
		ttl:      ttl,
		interval: interval,
		log:      logger.WithComponent("sweeper"),
	}
}

// Start launches the sweep loop in the background. A second call while the
// loop runs is a no-op and returns false.
func (s *Sweeper) Start(ctx context.Context) bool {
	ctx, done, ok := s.claim(ctx)
	if !ok {
		return false
	}
	go s.loop(ctx, done)
	return true
}

// Run executes the sweep loop until ctx is canceled or Stop is called.
func (s *Sweeper) Run(ctx context.Context) error {
	ctx, done, ok := s.claim(ctx)
	if !ok {
		return ErrSweeperRunning
	}
	s.loop(ctx, done)
	return nil
}

// Stop ends the loop and waits for it to exit. Stopping an idle sweeper is a no-op.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Sweep evicts expired results once and returns how many were removed.
func (s *Sweeper) Sweep() (evicted int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panicked: %v", r)
		}
	}()
	return len(s.cache.EvictOlderThan(s.ttl)), nil
}

func (s *Sweeper) claim(parent context.Context) (context.Context, chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	return ctx, s.done, true
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
		close(done)
	}()

	s.log.Info().
		Dur("ttl", s.ttl).
		Dur("interval", s.interval).
		Msg("Result sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		evicted, err := s.Sweep()
		if err != nil {
			s.log.Error().Err(err).Msg("Sweep failed")
		} else if evicted > 0 {
			s.log.Info().
				Int("evicted", evicted).
				Int("pending", s.cache.Len()).
				Msg("Evicted expired results")
		} else {
			s.log.Debug().Int("pending", s.cache.Len()).Msg("Sweep found nothing to evict")
		}

		select {
		case <-ctx.Done():
			s.log.Info().Msg("Result sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}
